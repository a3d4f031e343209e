package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wanmail/webdriver/locator"
)

func newStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the locator strategies and their WebDriver names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STRATEGY\tNATIVE")
			for _, s := range locator.Strategies() {
				native, err := s.Native()
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\n", s, native)
			}
			return tw.Flush()
		},
	}
}
