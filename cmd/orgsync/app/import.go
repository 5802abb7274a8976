package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentstation/orgsync/internal/cmd/output"
	"github.com/agentstation/orgsync/pkg/report"
)

// NewImportCommand creates the import command and its subcommands.
func (a *App) NewImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "import",
		GroupID: "sync",
		Short:   "Import a single account into the directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ramp-user <uuid>",
		Short: "Import a Ramp user, their manager chain and hierarchy",
		Long: `Import a Ramp user by ID. The user must have a Keycloak account
linked by Ramp ID or email and an Apiary account. Managers are imported
first; Ramp's manager wins over Apiary's when they disagree.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.Reconciler(cmd.Context())
			if err != nil {
				return err
			}
			return a.printReport(cmd, r.ImportRampUser, args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "workspace-user <id>",
		Short: "Link a freshly created Google Workspace user",
		Long: `Link a Google Workspace user by numeric ID to the Keycloak account
that names it, then queue a directory update. A user that is not visible
yet is retried with backoff.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.Reconciler(cmd.Context())
			if err != nil {
				return err
			}
			return a.printReport(cmd, r.ImportWorkspaceUser, args[0])
		},
	})

	return cmd
}

// printReport runs fn and prints whatever report it produced.
func (a *App) printReport(cmd *cobra.Command, fn func(ctx context.Context, id string) (*report.Report, error), id string) error {
	rep, err := fn(cmd.Context(), id)
	if rep != nil {
		if printErr := output.Print(cmd.OutOrStdout(), a.outputFormat(output.FormatText), output.Reports{rep}); printErr != nil {
			return printErr
		}
	}
	return err
}
