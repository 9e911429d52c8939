// Command recur expands recurrence rules and prints month grids from the
// command line, using the same expander as the planner service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "recur",
		Short:         "Expand study-plan recurrence rules",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(expandCmd())
	rootCmd.AddCommand(gridCmd())

	return rootCmd
}
