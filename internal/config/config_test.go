package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sample = `
[server]
base_url = "https://audit.example.gov"
origin = "https://audit.example.gov"

[audit]
election_id = "election-1"
jurisdiction_ids = ["jurisdiction-1", "jurisdiction-2"]
audit_type = "BATCH_COMPARISON"
online_entry = false

[poll]
interval = "500ms"
timeout = "90s"

[login]
confirmed_dismiss = "2s"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "missing.toml")).Load()
	require.NoError(t, err)
	require.Equal(t, time.Second, cfg.Poll.Interval)
	require.Equal(t, 2*time.Minute, cfg.Poll.Timeout)
	require.Equal(t, 3, cfg.Login.CodeLength)
	require.Equal(t, 1500*time.Millisecond, cfg.Login.ConfirmedDismiss)
	require.Equal(t, "BALLOT_POLLING", cfg.Audit.AuditType)
	require.True(t, cfg.Audit.OnlineEntry)
	require.Error(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, sample)
	t.Setenv("RLACONSOLE_CONFIG", path)
	t.Setenv("RLACONSOLE_POLL_TIMEOUT", "45s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://audit.example.gov", cfg.Server.BaseURL)
	require.Equal(t, []string{"jurisdiction-1", "jurisdiction-2"}, cfg.Audit.JurisdictionIDs)
	require.False(t, cfg.Audit.OnlineEntry)
	require.Equal(t, 500*time.Millisecond, cfg.Poll.Interval)
	require.Equal(t, 45*time.Second, cfg.Poll.Timeout)
	require.Equal(t, 2*time.Second, cfg.Login.ConfirmedDismiss)
	require.NoError(t, cfg.Validate())
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	_, err := NewLoader(writeConfig(t, "[audit\nelection_id=")).Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := NewLoader(writeConfig(t, sample)).Load()
	require.NoError(t, err)

	bad := cfg
	bad.Audit.AuditType = "RANKED"
	require.ErrorContains(t, bad.Validate(), "audit_type")

	bad = cfg
	bad.Login.CodeLength = 0
	require.ErrorContains(t, bad.Validate(), "code_length")

	bad = cfg
	bad.Poll.Interval = -time.Second
	require.Error(t, bad.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := NewLoader(writeConfig(t, sample)).Load()
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, Save(out, cfg))
	again, err := NewLoader(out).Load()
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestWatchPicksUpEdits(t *testing.T) {
	path := writeConfig(t, sample)
	l := NewLoader(path)
	_, err := l.Load()
	require.NoError(t, err)

	got := make(chan Config, 4)
	l.Watch(func(c Config, err error) {
		if err == nil {
			got <- c
		}
	})
	require.NoError(t, os.WriteFile(path, []byte(sample+"\n[log]\nlevel = \"debug\"\n"), 0o644))

	require.Eventually(t, func() bool {
		select {
		case c := <-got:
			return c.Log.Level == "debug"
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)
}
