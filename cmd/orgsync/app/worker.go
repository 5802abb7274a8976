package app

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/orgsync/internal/cmd/output"
	"github.com/agentstation/orgsync/internal/server"
	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/tasks"
)

// NewWorkerCommand creates the worker command.
func (a *App) NewWorkerCommand() *cobra.Command {
	var (
		once        bool
		interval    time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:     "worker",
		GroupID: "sync",
		Short:   "Push queued directory updates to Google Workspace",
		Long: `Worker claims queued directory updates and pushes each person's
title, team, manager and phone to Google Workspace. Failed updates are
retried with a growing delay until they have failed too often.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			worker, err := a.Worker(ctx, tasks.WithInterval(interval))
			if err != nil {
				return err
			}

			if once {
				stats, err := worker.RunOnce(ctx)
				if err != nil {
					return err
				}
				return output.Print(cmd.OutOrStdout(), a.outputFormat(output.FormatTable), stats)
			}

			if metricsAddr == "" {
				metricsAddr = a.config.MetricsAddr
			}
			if metricsAddr != "" {
				store, err := a.Store()
				if err != nil {
					return err
				}
				srv := server.New(metricsAddr, store, a.logger)
				if err := srv.Start(ctx); err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			return worker.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "process available tasks and exit")
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default from WORKER_INTERVAL)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address, e.g. :9090")

	return cmd
}

// NewTasksCommand creates the tasks command.
func (a *App) NewTasksCommand() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:     "tasks",
		GroupID: "directory",
		Short:   "List queued directory updates",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.Store()
			if err != nil {
				return err
			}
			list, err := store.Tasks(cmd.Context(), directory.TaskStatus(status))
			if err != nil {
				return err
			}
			return output.Print(cmd.OutOrStdout(), a.outputFormat(output.FormatTable), output.Tasks(list))
		},
	}

	cmd.Flags().StringVar(&status, "status", string(directory.TaskPending), "task status: pending, running, done, failed")

	return cmd
}
