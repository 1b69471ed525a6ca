package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "solclock",
		Short:         "Mars simulation clock",
		Long:          "Run a pulse based Mars simulation clock with its event scheduler.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newRunCommand())
	root.AddCommand(newCalendarCommand())

	return root
}
