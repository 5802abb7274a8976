package app

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			b := a.build
			fmt.Fprintf(cmd.OutOrStdout(),
				"orgsync version %s\ncommit: %s\nbuilt: %s\nbuilt by: %s\ngo version: %s\nplatform: %s/%s\n",
				b.Version, b.Commit, b.Date, b.BuiltBy, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
