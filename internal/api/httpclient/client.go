// Package httpclient implements api.API over the audit server's JSON routes.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jask/rlaconsole/internal/api"
	"github.com/jask/rlaconsole/internal/task"
)

type Client struct {
	base *url.URL
	http *http.Client
	log  logrus.FieldLogger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q needs a scheme and host", baseURL)
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	c := &Client{base: u, http: &http.Client{Timeout: 10 * time.Second}, log: l}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type errorBody struct {
	Errors []struct {
		ErrorType string `json:"errorType"`
		Message   string `json:"message"`
	} `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	op := method + " " + path
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &api.TransientFetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &api.TransientFetchError{Op: op, Err: err}
	}
	c.log.WithFields(logrus.Fields{"method": method, "path": path, "status": resp.StatusCode}).Debug("api call")

	switch {
	case resp.StatusCode >= 500:
		return &api.TransientFetchError{Op: op, Err: errors.Errorf("server returned %s", resp.Status)}
	case resp.StatusCode == http.StatusNotFound:
		return errors.Wrapf(api.ErrNotFound, "%s: %s", op, errorMessage(data, resp.Status))
	case resp.StatusCode >= 400:
		return &api.ValidationError{Message: errorMessage(data, resp.Status)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decode %s", op)
	}
	return nil
}

func errorMessage(data []byte, fallback string) string {
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && len(eb.Errors) > 0 && eb.Errors[0].Message != "" {
		return eb.Errors[0].Message
	}
	return fallback
}

func electionPath(electionID string) string {
	return "/api/election/" + url.PathEscape(electionID)
}

func jurisdictionPath(electionID, jurisdictionID string) string {
	return electionPath(electionID) + "/jurisdiction/" + url.PathEscape(jurisdictionID)
}

func (c *Client) GetTaskStatus(ctx context.Context, ref api.ResourceRef) (*task.BackgroundTask, error) {
	var path string
	switch ref.Kind {
	case api.JurisdictionsFile:
		path = electionPath(ref.ElectionID) + "/jurisdiction/file"
	case api.BallotManifest, api.BatchTallies:
		path = jurisdictionPath(ref.ElectionID, ref.JurisdictionID) + "/" + string(ref.Kind)
	default:
		return nil, errors.Errorf("unknown resource kind %q", ref.Kind)
	}
	var out struct {
		Processing *task.BackgroundTask `json:"processing"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Processing, nil
}

func (c *Client) GetRounds(ctx context.Context, electionID string) ([]api.Round, error) {
	var out struct {
		Rounds []api.Round `json:"rounds"`
	}
	if err := c.do(ctx, http.MethodGet, electionPath(electionID)+"/round", nil, &out); err != nil {
		return nil, err
	}
	return out.Rounds, nil
}

func (c *Client) CreateRound(ctx context.Context, electionID string, req api.CreateRoundRequest) error {
	return c.do(ctx, http.MethodPost, electionPath(electionID)+"/round", req, nil)
}

func (c *Client) DeleteRound(ctx context.Context, electionID, roundID string) error {
	return c.do(ctx, http.MethodDelete, electionPath(electionID)+"/round/"+url.PathEscape(roundID), nil, nil)
}

func roundPath(electionID, jurisdictionID, roundID string) string {
	return fmt.Sprintf("%s/round/%s", jurisdictionPath(electionID, jurisdictionID), url.PathEscape(roundID))
}

func (c *Client) GetAuditBoards(ctx context.Context, electionID, jurisdictionID, roundID string) ([]api.AuditBoard, error) {
	var out struct {
		AuditBoards []api.AuditBoard `json:"auditBoards"`
	}
	if err := c.do(ctx, http.MethodGet, roundPath(electionID, jurisdictionID, roundID)+"/audit-board", nil, &out); err != nil {
		return nil, err
	}
	return out.AuditBoards, nil
}

func (c *Client) GetBatches(ctx context.Context, electionID, jurisdictionID, roundID string) ([]api.Batch, error) {
	var out struct {
		Batches []api.Batch `json:"batches"`
	}
	if err := c.do(ctx, http.MethodGet, roundPath(electionID, jurisdictionID, roundID)+"/batches", nil, &out); err != nil {
		return nil, err
	}
	return out.Batches, nil
}

func (c *Client) GetOfflineResults(ctx context.Context, electionID, jurisdictionID, roundID string) (api.OfflineResults, error) {
	var out api.OfflineResults
	err := c.do(ctx, http.MethodGet, roundPath(electionID, jurisdictionID, roundID)+"/results", nil, &out)
	return out, err
}

func (c *Client) GetTallyEntryAccountStatus(ctx context.Context, electionID, jurisdictionID string) (api.TallyEntryAccountStatus, error) {
	var out api.TallyEntryAccountStatus
	err := c.do(ctx, http.MethodGet, jurisdictionPath(electionID, jurisdictionID)+"/tally-entry", nil, &out)
	return out, err
}

func (c *Client) TurnOnTallyEntryAccounts(ctx context.Context, electionID, jurisdictionID string) error {
	return c.do(ctx, http.MethodPost, jurisdictionPath(electionID, jurisdictionID)+"/tally-entry", nil, nil)
}

func (c *Client) ConfirmLogin(ctx context.Context, electionID, jurisdictionID string, req api.ConfirmLoginRequest) error {
	return c.do(ctx, http.MethodPost, jurisdictionPath(electionID, jurisdictionID)+"/tally-entry/confirm", req, nil)
}

func (c *Client) RejectLogin(ctx context.Context, electionID, jurisdictionID string, req api.RejectLoginRequest) error {
	return c.do(ctx, http.MethodPost, jurisdictionPath(electionID, jurisdictionID)+"/tally-entry/reject", req, nil)
}

var _ api.API = (*Client)(nil)
