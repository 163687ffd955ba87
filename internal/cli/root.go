package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jask/rlaconsole/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "rlaconsole",
	Short: "Audit admin console for risk-limiting audits",
	Long: `rlaconsole follows an audit's server-side work from the terminal:
jurisdictions file processing, sample draws, round progress and tally entry
logins. Without a subcommand it opens the interactive console.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// a missing .env is fine
		_ = godotenv.Load()
		return nil
	},
	RunE: runTUI,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("rlaconsole version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $RLACONSOLE_CONFIG or ~/.config/rlaconsole/config.toml)")
}

// loader returns the config loader for --config, falling back to the
// default location.
func loader() *config.Loader {
	if configPath != "" {
		return config.NewLoader(configPath)
	}
	return config.NewLoader(config.Path())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
