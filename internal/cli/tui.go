package cli

import (
	"context"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jask/rlaconsole/internal/api/httpclient"
	"github.com/jask/rlaconsole/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive console (default)",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := openRuntime(loader(), nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.watchConfig()

	client, err := httpclient.New(rt.cfg.Server.BaseURL,
		httpclient.WithTimeout(rt.cfg.Server.RequestTimeout),
		httpclient.WithLogger(rt.log))
	if err != nil {
		return err
	}

	busCtx, cancelBus := context.WithCancel(ctx)
	defer cancelBus()
	bus := tui.NewBus(busCtx)
	co, err := newCoordinators(rt.cfg, client, rt.log, rt.journal, sinks{
		Stage:  bus.StageSink,
		Rounds: bus.RoundSink,
		Login:  bus.LoginSink,
	})
	if err != nil {
		return err
	}
	defer co.shutdown(cancelBus)

	app := tui.New(ctx, tui.Options{
		ElectionID:       rt.cfg.Audit.ElectionID,
		Stage:            co.Stage,
		Rounds:           co.Rounds,
		Login:            co.Login,
		Journal:          rt.journal,
		Bus:              bus,
		ConfirmedDismiss: rt.cfg.Login.ConfirmedDismiss,
	})
	rt.log.WithField("election", rt.cfg.Audit.ElectionID).Info("console started")
	if _, err := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run console")
	}
	return nil
}
