package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jask/rlaconsole/internal/api"
	"github.com/jask/rlaconsole/internal/api/httpclient"
	"github.com/jask/rlaconsole/internal/service"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the audit headless, logging every change",
	Long: `Runs the same coordinators as the console without a terminal UI and
logs each snapshot to stderr until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(loader(), os.Stderr)
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
	return watch(ctx, rt, client)
}

// watch starts every coordinator and blocks until ctx is done.
func watch(ctx context.Context, rt *runtime, server api.API) error {
	co, err := newCoordinators(rt.cfg, server, rt.log, rt.journal, logSinks(rt.log))
	if err != nil {
		return err
	}
	defer co.Close()

	if err := co.Stage.Refresh(ctx); err != nil {
		return errors.Wrap(err, "load stages")
	}
	if err := co.Rounds.Refresh(ctx); err != nil {
		return errors.Wrap(err, "load rounds")
	}
	if err := co.Login.Start(ctx); err != nil {
		return errors.Wrap(err, "load tally entry status")
	}
	<-ctx.Done()
	return nil
}

func logSinks(log logrus.FieldLogger) sinks {
	return sinks{
		Stage: func(r api.Result[service.StageSnapshot]) {
			if r.Err != nil {
				log.WithError(r.Err).Warn("stages")
				return
			}
			f := logrus.Fields{"current": r.Value.Current.Title(), "roster": r.Value.Roster.Status().String()}
			for _, st := range r.Value.Stages {
				f[string(st.ID)] = st.State.String()
			}
			log.WithFields(f).Info("stages")
		},
		Rounds: func(r api.Result[service.RoundSnapshot]) {
			if r.Err != nil {
				log.WithError(r.Err).Warn("rounds")
				return
			}
			f := logrus.Fields{"state": r.Value.State.Label()}
			if r.Value.Round != nil {
				f["round"] = r.Value.Round.RoundNum
			}
			if r.Value.State.Active() {
				f["completed"] = r.Value.Progress.Completed
				f["total"] = r.Value.Progress.Total
				f["mode"] = r.Value.Mode.String()
			}
			if r.Value.ProgressErr != nil {
				f["progress_error"] = r.Value.ProgressErr.Error()
			}
			log.WithFields(f).Info("rounds")
		},
		Login: func(r api.Result[service.LoginSnapshot]) {
			if r.Err != nil {
				log.WithError(r.Err).Warn("tally entry")
				return
			}
			log.WithFields(logrus.Fields{
				"enabled":    r.Value.Enabled,
				"share_link": r.Value.ShareLink,
				"pending":    len(r.Value.Pending()),
				"duplicates": len(r.Value.Duplicates),
			}).Info("tally entry")
		},
	}
}
