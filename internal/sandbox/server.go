package sandbox

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jask/rlaconsole/internal/api"
	"github.com/jask/rlaconsole/internal/task"
)

// ErrorBody is the error envelope shared with the HTTP client.
type ErrorBody struct {
	Errors []ErrorItem `json:"errors"`
}

type ErrorItem struct {
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
}

// FileStatus is the body of the upload status routes. Processing is null
// when no file has been uploaded.
type FileStatus struct {
	Processing *task.BackgroundTask `json:"processing"`
}

type RoundsBody struct {
	Rounds []api.Round `json:"rounds"`
}

type AuditBoardsBody struct {
	AuditBoards []api.AuditBoard `json:"auditBoards"`
}

type BatchesBody struct {
	Batches []api.Batch `json:"batches"`
}

type LoginBody struct {
	Passphrase string       `json:"passphrase"`
	Members    []api.Member `json:"members"`
}

type LoginResponse struct {
	TallyEntryUserID string `json:"tallyEntryUserId"`
	LoginCode        string `json:"loginCode"`
}

// Server exposes a Store over HTTP.
type Server struct {
	store  *Store
	log    logrus.FieldLogger
	router *mux.Router
}

func NewServer(store *Store, log logrus.FieldLogger) *Server {
	if log == nil {
		log = store.log
	}
	s := &Server{store: store, log: log, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.withLogging)

	e := s.router.PathPrefix("/api/election/{election}").Subrouter()
	e.HandleFunc("/jurisdiction/file", s.rosterStatus).Methods(http.MethodGet)
	e.HandleFunc("/jurisdiction/{jurisdiction}/ballot-manifest", s.fileStatus(api.BallotManifest)).Methods(http.MethodGet)
	e.HandleFunc("/jurisdiction/{jurisdiction}/batch-tallies", s.fileStatus(api.BatchTallies)).Methods(http.MethodGet)
	e.HandleFunc("/round", s.listRounds).Methods(http.MethodGet)
	e.HandleFunc("/round", s.createRound).Methods(http.MethodPost)
	e.HandleFunc("/round/{round}", s.deleteRound).Methods(http.MethodDelete)

	j := e.PathPrefix("/jurisdiction/{jurisdiction}").Subrouter()
	j.HandleFunc("/round/{round}/audit-board", s.auditBoards).Methods(http.MethodGet)
	j.HandleFunc("/round/{round}/batches", s.batches).Methods(http.MethodGet)
	j.HandleFunc("/round/{round}/results", s.offlineResults).Methods(http.MethodGet)
	j.HandleFunc("/tally-entry", s.tallyEntryStatus).Methods(http.MethodGet)
	j.HandleFunc("/tally-entry", s.turnOnTallyEntry).Methods(http.MethodPost)
	j.HandleFunc("/tally-entry/confirm", s.confirmLogin).Methods(http.MethodPost)
	j.HandleFunc("/tally-entry/reject", s.rejectLogin).Methods(http.MethodPost)

	s.router.HandleFunc("/auth/tallyentry", s.requestLogin).Methods(http.MethodPost)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("request completed")
	})
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, ErrorBody{Errors: []ErrorItem{{ErrorType: http.StatusText(status), Message: message}}})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	var v *api.ValidationError
	switch {
	case errors.As(err, &v):
		errorResponse(w, http.StatusBadRequest, v.Message)
	case errors.Is(err, api.ErrNotFound):
		errorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrClosed):
		errorResponse(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.WithError(err).Error("sandbox request failed")
		errorResponse(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func decode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &api.ValidationError{Message: "Invalid JSON"}
	}
	return nil
}

func (s *Server) rosterStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t, err := s.store.GetTaskStatus(r.Context(), api.ResourceRef{ElectionID: vars["election"], Kind: api.JurisdictionsFile})
	if err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, FileStatus{Processing: t})
}

func (s *Server) fileStatus(kind api.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		t, err := s.store.GetTaskStatus(r.Context(), api.ResourceRef{ElectionID: vars["election"], JurisdictionID: vars["jurisdiction"], Kind: kind})
		if err != nil {
			s.fail(w, err)
			return
		}
		jsonResponse(w, http.StatusOK, FileStatus{Processing: t})
	}
}

func (s *Server) listRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := s.store.GetRounds(r.Context(), mux.Vars(r)["election"])
	if err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, RoundsBody{Rounds: rounds})
}

func (s *Server) createRound(w http.ResponseWriter, r *http.Request) {
	var req api.CreateRoundRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.store.CreateRound(r.Context(), mux.Vars(r)["election"], req); err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) deleteRound(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.store.DeleteRound(r.Context(), vars["election"], vars["round"]); err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) auditBoards(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	boards, err := s.store.GetAuditBoards(r.Context(), vars["election"], vars["jurisdiction"], vars["round"])
	if err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, AuditBoardsBody{AuditBoards: boards})
}

func (s *Server) batches(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	batches, err := s.store.GetBatches(r.Context(), vars["election"], vars["jurisdiction"], vars["round"])
	if err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, BatchesBody{Batches: batches})
}

func (s *Server) offlineResults(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	res, err := s.store.GetOfflineResults(r.Context(), vars["election"], vars["jurisdiction"], vars["round"])
	if err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

func (s *Server) tallyEntryStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	st, err := s.store.GetTallyEntryAccountStatus(r.Context(), vars["election"], vars["jurisdiction"])
	if err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, st)
}

func (s *Server) turnOnTallyEntry(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.store.TurnOnTallyEntryAccounts(r.Context(), vars["election"], vars["jurisdiction"]); err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) confirmLogin(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req api.ConfirmLoginRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.store.ConfirmLogin(r.Context(), vars["election"], vars["jurisdiction"], req); err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) rejectLogin(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req api.RejectLoginRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.store.RejectLogin(r.Context(), vars["election"], vars["jurisdiction"], req); err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) requestLogin(w http.ResponseWriter, r *http.Request) {
	var body LoginBody
	if err := decode(r, &body); err != nil {
		s.fail(w, err)
		return
	}
	userID, code, err := s.store.RequestLogin(body.Passphrase, body.Members)
	if err != nil {
		s.fail(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, LoginResponse{TallyEntryUserID: userID, LoginCode: code})
}
