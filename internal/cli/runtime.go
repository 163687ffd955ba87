package cli

import (
	"context"
	"database/sql"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jask/rlaconsole/internal/api"
	"github.com/jask/rlaconsole/internal/config"
	"github.com/jask/rlaconsole/internal/database"
	"github.com/jask/rlaconsole/internal/database/repository"
	"github.com/jask/rlaconsole/internal/logging"
	"github.com/jask/rlaconsole/internal/poll"
	"github.com/jask/rlaconsole/internal/service"
)

// runtime is what every subcommand needs before it can build coordinators.
type runtime struct {
	cfg     config.Config
	loader  *config.Loader
	log     *logrus.Logger
	db      *sql.DB
	journal *service.Journal
	closers []io.Closer
}

// openRuntime loads and validates config, then sets up logging and the
// activity journal. A nil logOut sends logs to the configured file.
func openRuntime(l *config.Loader, logOut io.Writer) (*runtime, error) {
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	log, logCloser, err := logging.New(logging.Options{
		Path:   cfg.Log.Path,
		Level:  cfg.Log.Level,
		JSON:   cfg.Log.JSON,
		Output: logOut,
	})
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, loader: l, log: log, closers: []io.Closer{logCloser}}

	if err := database.RunMigrations(cfg.Database.Path, cfg.Database.Migrations); err != nil {
		rt.Close()
		return nil, err
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.db = db
	rt.closers = append(rt.closers, db)
	rt.journal = &service.Journal{Activity: repository.NewActivityRepo(db), Log: log}
	return rt, nil
}

// watchConfig applies log level edits while running. Everything else needs
// a restart.
func (rt *runtime) watchConfig() {
	rt.loader.Watch(func(c config.Config, err error) {
		if err != nil {
			rt.log.WithError(err).Warn("config reload failed")
			return
		}
		lvl, err := logging.ParseLevel(c.Log.Level)
		if err != nil {
			rt.log.WithError(err).Warn("config reload: bad log level")
			return
		}
		if lvl != rt.log.GetLevel() {
			rt.log.SetLevel(lvl)
			rt.log.WithField("level", lvl).Info("log level changed")
		}
	})
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i].Close()
	}
	rt.closers = nil
}

// sinks receive every coordinator snapshot.
type sinks struct {
	Stage  func(api.Result[service.StageSnapshot])
	Rounds func(api.Result[service.RoundSnapshot])
	Login  func(api.Result[service.LoginSnapshot])
}

type coordinators struct {
	Stage  *service.StageGate
	Rounds *service.RoundTracker
	Login  *service.LoginCoordinator
}

// newCoordinators builds the three coordinators for the configured election.
// The login handshake runs against the first configured jurisdiction.
func newCoordinators(cfg config.Config, server api.API, log logrus.FieldLogger, journal *service.Journal, s sinks) (*coordinators, error) {
	if len(cfg.Audit.JurisdictionIDs) == 0 {
		return nil, errors.New("audit.jurisdiction_ids needs at least one jurisdiction")
	}
	auditType := api.AuditType(cfg.Audit.AuditType)
	opts := poll.Options{Interval: cfg.Poll.Interval, Timeout: cfg.Poll.Timeout}
	loginOpts := poll.Options{Interval: cfg.Poll.LoginInterval, Timeout: cfg.Poll.Timeout}

	return &coordinators{
		Stage: service.NewStageGate(service.StageGateConfig{
			Tasks:      server,
			ElectionID: cfg.Audit.ElectionID,
			AuditType:  auditType,
			Poll:       opts,
			Log:        log,
			Journal:    journal,
			OnChange:   s.Stage,
		}),
		Rounds: service.NewRoundTracker(service.RoundTrackerConfig{
			API:             server,
			ElectionID:      cfg.Audit.ElectionID,
			JurisdictionIDs: cfg.Audit.JurisdictionIDs,
			Mode:            service.SelectProgressMode(auditType, cfg.Audit.OnlineEntry),
			Poll:            opts,
			Log:             log,
			Journal:         journal,
			OnChange:        s.Rounds,
		}),
		Login: service.NewLoginCoordinator(service.LoginCoordinatorConfig{
			API:            server,
			ElectionID:     cfg.Audit.ElectionID,
			JurisdictionID: cfg.Audit.JurisdictionIDs[0],
			Origin:         cfg.Server.Origin,
			CodeLength:     cfg.Login.CodeLength,
			Poll:           loginOpts,
			Log:            log,
			Journal:        journal,
			OnChange:       s.Login,
		}),
	}, nil
}

func (c *coordinators) Close() {
	c.Stage.Close()
	c.Rounds.Close()
	c.Login.Close()
}

// shutdown releases the sinks' consumer first, so a loop blocked publishing
// into a full sink can return before Close waits for it.
func (c *coordinators) shutdown(cancelSinks context.CancelFunc) {
	cancelSinks()
	c.Close()
}
