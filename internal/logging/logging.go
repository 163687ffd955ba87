// Package logging builds the logger every component writes to. While the TUI
// owns the terminal, output goes to a file.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Path  string
	Level string
	JSON  bool
	// Output overrides Path when set.
	Output io.Writer
}

// ParseLevel accepts logrus level names; an empty string means info.
func ParseLevel(s string) (logrus.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return 0, errors.Wrapf(err, "log level %q", s)
	}
	return lvl, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a configured logger and the closer for its file.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	l := logrus.New()
	l.SetLevel(lvl)
	if opts.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}

	var closer io.Closer = nopCloser{}
	switch {
	case opts.Output != nil:
		l.SetOutput(opts.Output)
	case opts.Path != "":
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, nil, errors.Wrap(err, "mkdir log dir")
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open log file")
		}
		l.SetOutput(f)
		closer = f
	default:
		l.SetOutput(io.Discard)
	}
	return l, closer, nil
}
