package cli

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jask/rlaconsole/internal/config"
	"github.com/jask/rlaconsole/internal/logging"
	"github.com/jask/rlaconsole/internal/sandbox"
)

var (
	sandboxAddr     string
	sandboxScenario string
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Serve an in-memory audit server for local testing",
	Long: `Starts a fake audit server with the routes the console uses. Roster
processing and sample draws finish after the configured durations, and
POST /auth/tallyentry simulates an agent asking to sign in.`,
	Args: cobra.NoArgs,
	RunE: runSandbox,
}

func init() {
	sandboxCmd.Flags().StringVar(&sandboxAddr, "addr", "", "listen address (default sandbox.addr)")
	sandboxCmd.Flags().StringVar(&sandboxScenario, "scenario", "", "TOML or YAML scenario file (default sandbox.scenario)")
	rootCmd.AddCommand(sandboxCmd)
}

func runSandbox(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loader().Load()
	if err != nil {
		return err
	}
	if sandboxAddr != "" {
		cfg.Sandbox.Addr = sandboxAddr
	}
	if sandboxScenario != "" {
		cfg.Sandbox.Scenario = sandboxScenario
	}
	log, closer, err := logging.New(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON, Output: os.Stderr})
	if err != nil {
		return err
	}
	defer closer.Close()

	store, err := newSandboxStore(cfg.Sandbox, log)
	if err != nil {
		return err
	}
	defer store.Close()

	ln, err := net.Listen("tcp", cfg.Sandbox.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", cfg.Sandbox.Addr)
	}
	return serveSandbox(ctx, ln, store, log)
}

func newSandboxStore(cfg config.SandboxConfig, log logrus.FieldLogger) (*sandbox.Store, error) {
	sc := sandbox.DefaultScenario()
	if cfg.Scenario != "" {
		var err error
		if sc, err = sandbox.LoadScenario(cfg.Scenario); err != nil {
			return nil, err
		}
	}
	store := sandbox.NewStore(sandbox.Config{
		RosterDuration: cfg.RosterDuration,
		DrawDuration:   cfg.DrawDuration,
		Log:            log,
	})
	if err := store.Load(sc); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// serveSandbox serves on ln until ctx is done, then shuts down gracefully.
func serveSandbox(ctx context.Context, ln net.Listener, store *sandbox.Store, log logrus.FieldLogger) error {
	srv := &http.Server{
		Handler:           sandbox.NewServer(store, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", ln.Addr().String()).Info("sandbox listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
