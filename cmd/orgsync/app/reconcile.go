package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/orgsync/internal/cmd/output"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/reconcile"
	"github.com/agentstation/orgsync/pkg/report"
)

// procedureNames maps command arguments to bulk procedures.
var procedureNames = map[string]string{
	"keycloak":         reconcile.ProcedureKeycloak,
	"apiary-hierarchy": reconcile.ProcedureApiaryHierarchy,
	"apiary-positions": reconcile.ProcedureApiaryPositions,
	"ramp":             reconcile.ProcedureRamp,
	"workspace":        reconcile.ProcedureWorkspace,
	"hubspot":          reconcile.ProcedureHubSpot,
}

// resolveProcedures turns a command argument into the procedures to run.
func resolveProcedures(arg string) ([]string, error) {
	if arg == "all" {
		return reconcile.Bulk, nil
	}
	if procedure, ok := procedureNames[arg]; ok {
		return []string{procedure}, nil
	}
	// Full procedure names are accepted too.
	for _, procedure := range reconcile.Bulk {
		if arg == procedure {
			return []string{procedure}, nil
		}
	}
	return nil, fmt.Errorf("unknown procedure %q: must be one of: %s, all", arg, strings.Join(procedureArgs(), ", "))
}

func procedureArgs() []string {
	args := make([]string, 0, len(procedureNames))
	for name := range procedureNames {
		args = append(args, name)
	}
	sort.Strings(args)
	return args
}

// NewReconcileCommand creates the reconcile command.
func (a *App) NewReconcileCommand() *cobra.Command {
	var drain bool

	cmd := &cobra.Command{
		Use:     "reconcile <procedure>",
		GroupID: "sync",
		Short:   "Run a reconciliation procedure",
		Long: `Reconcile compares the directory with an external system, corrects
what can be corrected safely and reports the rest as warnings.

Procedures: keycloak, apiary-hierarchy, apiary-positions, ramp,
workspace, hubspot, or all to run every procedure in order. A procedure
that aborts leaves the records it already processed in place.`,
		Example: `  orgsync reconcile keycloak
  orgsync reconcile all --drain -o json`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: append(procedureArgs(), "all"),
		RunE: func(cmd *cobra.Command, args []string) error {
			procedures, err := resolveProcedures(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			r, err := a.Reconciler(ctx)
			if err != nil {
				return err
			}

			var reports output.Reports
			var runErr error
			for _, procedure := range procedures {
				var rep *report.Report
				rep, runErr = r.Run(ctx, procedure)
				if rep != nil {
					reports = append(reports, rep)
				}
				if runErr != nil {
					break
				}
			}

			if err := output.Print(cmd.OutOrStdout(), a.outputFormat(output.FormatText), reports); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}

			if drain {
				return a.drain(cmd)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&drain, "drain", false, "process queued directory updates once the procedures finish")

	return cmd
}

// drain runs the worker until the outbox has no claimable work.
func (a *App) drain(cmd *cobra.Command) error {
	ctx := cmd.Context()
	worker, err := a.Worker(ctx)
	if err != nil {
		return err
	}
	stats, err := worker.RunOnce(ctx)
	if err != nil {
		return err
	}
	logging.Ctx(ctx).Info().
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Msg("Drained directory updates")
	return nil
}
