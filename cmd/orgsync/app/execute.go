package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/orgsync/internal/cmd/output"
	"github.com/agentstation/orgsync/pkg/logging"
)

// Execute runs the CLI with args.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "orgsync",
		Short:   "Organization directory reconciliation",
		Version: a.build.Version,
		Long: `orgsync keeps the organization directory consistent with Apiary,
Keycloak, Ramp, Google Workspace and HubSpot.

Reconciliation procedures link accounts, import hierarchy and report
anything they could not fix safely. Directory changes are pushed to
Google Workspace by the worker.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{
		ID:    "sync",
		Title: "Reconciliation Commands:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "directory",
		Title: "Directory Commands:",
	})

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.orgsync.yaml)")
	flags.BoolP("verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	flags.BoolP("quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	flags.Bool("no-color", false, "disable colored output")
	flags.StringP("format", "o", "", "output format: text, table, json, yaml")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")

	rootCmd.SetVersionTemplate("orgsync {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand applies the persistent flags on top of the loaded
// configuration and installs the resulting logger.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	if configFile := mustGetString(cmd, "config"); configFile != "" {
		config, err := loadConfig(configFile)
		if err != nil {
			return err
		}
		a.config = config
	}

	format := mustGetString(cmd, "format")
	if _, err := output.ParseFormat(format); err != nil {
		return err
	}

	a.config.UpdateFromFlags(
		mustGetBool(cmd, "verbose"),
		mustGetBool(cmd, "quiet"),
		mustGetBool(cmd, "no-color"),
		format,
		mustGetString(cmd, "log-level"),
	)

	logger := NewLogger(a.config)
	a.logger = &logger
	logging.SetDefault(logger)
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.logger))

	return nil
}

func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(a.NewReconcileCommand())
	rootCmd.AddCommand(a.NewImportCommand())
	rootCmd.AddCommand(a.NewWorkerCommand())

	rootCmd.AddCommand(a.NewPersonCommand())
	rootCmd.AddCommand(a.NewPositionCommand())
	rootCmd.AddCommand(a.NewTasksCommand())

	rootCmd.AddCommand(a.NewVersionCommand())
}

// outputFormat resolves --format, using fallback on a terminal.
func (a *App) outputFormat(fallback output.Format) output.Format {
	return output.DetectFormat(a.config.Format, fallback)
}

// ExitOnError prints err and exits 1. A nil err is a no-op.
func ExitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// The persistent flags are all registered in createRootCommand, so a lookup
// failure is a bug.
func mustGetBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag --%s: %v", name, err))
	}
	return v
}

func mustGetString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag --%s: %v", name, err))
	}
	return v
}
