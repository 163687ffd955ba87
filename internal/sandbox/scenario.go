package sandbox

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Scenario seeds the sandbox with elections and jurisdictions.
type Scenario struct {
	Elections []ElectionFixture `toml:"election" yaml:"elections"`
}

type ElectionFixture struct {
	ID        string `toml:"id" yaml:"id"`
	AuditType string `toml:"audit_type" yaml:"audit_type"`
	// Roster, when set, starts jurisdictions file processing at load time.
	Roster *JobFixture `toml:"roster" yaml:"roster"`
	// DrawError makes every sample draw in this election fail.
	DrawError     string                `toml:"draw_error" yaml:"draw_error"`
	Jurisdictions []JurisdictionFixture `toml:"jurisdiction" yaml:"jurisdictions"`
}

type JobFixture struct {
	Error string `toml:"error" yaml:"error"`
}

type JurisdictionFixture struct {
	ID              string `toml:"id" yaml:"id"`
	Name            string `toml:"name" yaml:"name"`
	AuditBoards     int    `toml:"audit_boards" yaml:"audit_boards"`
	BallotsPerBoard int    `toml:"ballots_per_board" yaml:"ballots_per_board"`
	Batches         int    `toml:"batches" yaml:"batches"`
	Passphrase      string `toml:"passphrase" yaml:"passphrase"`
}

// LoadScenario reads a TOML or YAML fixture, chosen by file extension.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, errors.Wrap(err, "read scenario")
	}
	var sc Scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &sc); err != nil {
			return Scenario{}, errors.Wrapf(err, "decode %s", path)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &sc); err != nil {
			return Scenario{}, errors.Wrapf(err, "decode %s", path)
		}
	default:
		return Scenario{}, errors.Errorf("unsupported scenario format %q", filepath.Ext(path))
	}
	return sc, nil
}

// DefaultScenario is used when no fixture is configured: one ballot polling
// election with a processed roster and two jurisdictions.
func DefaultScenario() Scenario {
	return Scenario{Elections: []ElectionFixture{{
		ID:        "election-1",
		AuditType: "BALLOT_POLLING",
		Roster:    &JobFixture{},
		Jurisdictions: []JurisdictionFixture{
			{ID: "jurisdiction-1", Name: "Clearwater County", AuditBoards: 2, BallotsPerBoard: 20},
			{ID: "jurisdiction-2", Name: "Pine Ridge County", AuditBoards: 1, BallotsPerBoard: 15},
		},
	}}}
}
