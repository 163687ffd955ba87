package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"", logrus.InfoLevel},
		{"debug", logrus.DebugLevel},
		{" WARN ", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got)
	}
	_, err := ParseLevel("chatty")
	require.Error(t, err)
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l, closer, err := New(Options{Level: "debug", JSON: true, Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	l.WithFields(logrus.Fields{"election": "election-1", "stage": "review"}).Debug("stage activated")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "stage activated", entry["msg"])
	require.Equal(t, "election-1", entry["election"])
	require.Equal(t, "debug", entry["level"])
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rlaconsole.log")
	l, closer, err := New(Options{Path: path, Level: "warn"})
	require.NoError(t, err)

	l.Info("dropped")
	l.WithField("round", 2).Warn("draw poll stopped")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "dropped")
	require.Contains(t, string(data), "draw poll stopped")
	require.Contains(t, string(data), "round=2")
}

func TestHookSeesEntries(t *testing.T) {
	l, _, err := New(Options{})
	require.NoError(t, err)
	hook := test.NewLocal(l)

	l.WithField("user", "u1").Info("login confirmed")
	require.Len(t, hook.AllEntries(), 1)
	require.Equal(t, "u1", hook.LastEntry().Data["user"])
	require.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}
