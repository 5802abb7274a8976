package app

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/agentstation/orgsync/internal/cmd/output"
	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/orgedit"
)

// positionFlags are shared by position set and position create.
type positionFlags struct {
	name      string
	team      int64
	manages   int64
	reportsTo int64
	person    int64
}

func (f *positionFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.name, "name", "", "position name")
	flags.Int64Var(&f.team, "team", 0, "primary team ID")
	flags.Int64Var(&f.manages, "manages", 0, "ID of the team this position manages")
	flags.Int64Var(&f.reportsTo, "reports-to", 0, "reporting position ID")
	flags.Int64Var(&f.person, "person", 0, "occupant person ID (0 vacates)")
}

// NewPositionCommand creates the position command and its subcommands.
func (a *App) NewPositionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "position",
		Aliases: []string{"positions"},
		GroupID: "directory",
		Short:   "Inspect and edit positions in the directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.Store()
			if err != nil {
				return err
			}
			var positions []*directory.Position
			err = store.View(cmd.Context(), func(r directory.Reader) error {
				positions, err = r.Positions(cmd.Context())
				return err
			})
			if err != nil {
				return err
			}
			return output.Print(cmd.OutOrStdout(), a.outputFormat(output.FormatTable), output.Positions(positions))
		},
	})

	cmd.AddCommand(a.newPositionSetCommand())
	cmd.AddCommand(a.newPositionCreateCommand())

	return cmd
}

func (a *App) newPositionSetCommand() *cobra.Command {
	var f positionFlags

	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Edit a position",
		Long: `Edit a position the way an administrator would. A new reporting
position or occupant is pushed to Ramp, and a new occupant of a team's
managing position becomes the team's project manager in Apiary.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return errors.NewValidationError("id", args[0], "must be a number")
			}
			ctx := cmd.Context()
			editor, err := a.Editor(ctx)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			edit := orgedit.PositionEdit{ID: id}
			if flags.Changed("name") {
				edit.Name = &f.name
			}
			if flags.Changed("team") {
				edit.PrimaryTeamID = &f.team
			}
			if flags.Changed("manages") {
				edit.ManagesTeamID = &f.manages
			}
			if flags.Changed("reports-to") {
				edit.ReportsToPositionID = &f.reportsTo
			}
			if flags.Changed("person") {
				edit.PersonID = &f.person
			}

			rep, err := editor.SavePosition(ctx, edit)
			return a.finishEdit(cmd, rep, err)
		},
	}
	f.register(cmd.Flags())

	return cmd
}

func (a *App) newPositionCreateCommand() *cobra.Command {
	var f positionFlags

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a position",
		Example: `  orgsync position create --name "Project Manager" --team 5 --manages 5 --person 42`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			editor, err := a.Editor(ctx)
			if err != nil {
				return err
			}

			pos := &directory.Position{
				Name:          f.name,
				PrimaryTeamID: f.team,
			}
			if f.manages != 0 {
				pos.ManagesTeamID = directory.Int64(f.manages)
			}
			if f.reportsTo != 0 {
				pos.ReportsToPositionID = directory.Int64(f.reportsTo)
			}
			if f.person != 0 {
				pos.PersonID = directory.Int64(f.person)
			}

			rep, err := editor.CreatePosition(ctx, pos)
			return a.finishEdit(cmd, rep, err)
		},
	}
	f.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}
