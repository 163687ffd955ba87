// Package service holds the coordinators that turn eventually-consistent
// server state into the snapshots the terminal views render.
package service

import (
	"io"

	"github.com/sirupsen/logrus"
)

func loggerOrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l != nil {
		return l
	}
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	return quiet
}
