// Command govagenda serves the governor's agenda and division task API and
// offers offline maintenance commands.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/gov-agenda/internal/config"
	"github.com/example/gov-agenda/internal/logging"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Erreur: %v\n", err)
		return 1
	}
	return 0
}

// rootOptions carries the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	dsn        string
	logLevel   string
	stdout     io.Writer
}

// load resolves the configuration and builds the logger. Flags override the
// file and the environment.
func (o *rootOptions) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if o.dsn != "" {
		cfg.SQLiteDSN = o.dsn
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	logger, err := logging.New(os.Stderr, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout}

	root := &cobra.Command{
		Use:           "govagenda",
		Short:         "Agenda du gouverneur et suivi des tâches des divisions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("GOVAGENDA_CONFIG"), "YAML configuration file")
	root.PersistentFlags().StringVar(&opts.dsn, "db", "", "SQLite DSN, overrides the configuration")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newRolesCmd(opts),
		newCheckCmd(opts),
	)
	return root
}
