package app

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentstation/orgsync/internal/cmd/output"
	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/orgedit"
	"github.com/agentstation/orgsync/pkg/report"
)

// NewPersonCommand creates the person command and its subcommands.
func (a *App) NewPersonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "person",
		Aliases: []string{"people"},
		GroupID: "directory",
		Short:   "Inspect and edit people in the directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List people",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.Store()
			if err != nil {
				return err
			}
			var people []*directory.Person
			err = store.View(cmd.Context(), func(r directory.Reader) error {
				people, err = r.People(cmd.Context())
				return err
			})
			if err != nil {
				return err
			}
			return output.Print(cmd.OutOrStdout(), a.outputFormat(output.FormatTable), output.People(people))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id|username>",
		Short: "Show one person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.Store()
			if err != nil {
				return err
			}
			var person *directory.Person
			err = store.View(cmd.Context(), func(r directory.Reader) error {
				person, err = lookupPerson(cmd.Context(), r, args[0])
				return err
			})
			if err != nil {
				return err
			}
			return output.Print(cmd.OutOrStdout(), a.outputFormat(output.FormatTable), *person)
		},
	})

	cmd.AddCommand(a.newPersonSetCommand())

	return cmd
}

func (a *App) newPersonSetCommand() *cobra.Command {
	var (
		title     string
		team      int64
		reportsTo int64
		manual    bool
		rampUser  string
	)

	cmd := &cobra.Command{
		Use:   "set <id|username>",
		Short: "Edit a person's title, team, reporting position or Ramp link",
		Long: `Edit a person the way an administrator would. A changed reporting
position is pushed to Ramp and queues a directory update. Pass 0 or an
empty string to clear a field.`,
		Example: `  orgsync person set gburdell3 --reports-to 12
  orgsync person set 42 --ramp-user-id "" --manual-hierarchy=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			editor, err := a.Editor(ctx)
			if err != nil {
				return err
			}
			id, err := a.personID(ctx, args[0])
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			edit := orgedit.PersonEdit{ID: id}
			if flags.Changed("title") {
				edit.Title = &title
			}
			if flags.Changed("team") {
				edit.PrimaryTeamID = &team
			}
			if flags.Changed("reports-to") {
				edit.ReportsToPositionID = &reportsTo
			}
			if flags.Changed("manual-hierarchy") {
				edit.ManualHierarchy = &manual
			}
			if flags.Changed("ramp-user-id") {
				edit.RampUserID = &rampUser
			}

			rep, err := editor.SavePerson(ctx, edit)
			return a.finishEdit(cmd, rep, err)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "job title")
	cmd.Flags().Int64Var(&team, "team", 0, "primary team ID")
	cmd.Flags().Int64Var(&reportsTo, "reports-to", 0, "reporting position ID")
	cmd.Flags().BoolVar(&manual, "manual-hierarchy", false, "protect team and reporting position from Apiary imports")
	cmd.Flags().StringVar(&rampUser, "ramp-user-id", "", "Ramp user UUID")

	return cmd
}

// personID resolves a numeric ID or a username.
func (a *App) personID(ctx context.Context, key string) (int64, error) {
	store, err := a.Store()
	if err != nil {
		return 0, err
	}
	var id int64
	err = store.View(ctx, func(r directory.Reader) error {
		person, err := lookupPerson(ctx, r, key)
		if err != nil {
			return err
		}
		id = person.ID
		return nil
	})
	return id, err
}

func lookupPerson(ctx context.Context, r directory.Reader, key string) (*directory.Person, error) {
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		return r.Person(ctx, id)
	}
	return r.PersonByUsername(ctx, key)
}

// finishEdit prints an edit report and returns the edit error.
func (a *App) finishEdit(cmd *cobra.Command, rep *report.Report, err error) error {
	if rep != nil && (err == nil || rep.Changed() || len(rep.Warnings) > 0) {
		if printErr := output.Print(cmd.OutOrStdout(), a.outputFormat(output.FormatText), output.Reports{rep}); printErr != nil {
			return printErr
		}
	}
	return err
}
