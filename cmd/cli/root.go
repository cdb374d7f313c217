package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bgtask/cmd/cli/runcmd"
)

var RootCmd = &cobra.Command{
	Use:   "bgtctl",
	Short: "bgtask - a persistent background task scheduler",
	Long: `bgtask is a persistent, priority-ordered task scheduler. Workers pull deferred
tasks from a shared database, execute them under a time-bounded lease, and retry
failures with backoff until they succeed or are archived.

At a minimum, you need a migrated database and at least 1 worker.`,
}

func init() {
	RootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	RootCmd.AddCommand(runcmd.Command)
	RootCmd.AddCommand(runcmd.MigrateCmd)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v", err)
		os.Exit(1)
	}
}
