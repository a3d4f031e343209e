package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the application version.
// It is set at build time with -ldflags "-X main.Version=1.2.3".
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pagerun version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "pagerun %s\n", Version)
			return err
		},
	}
}
