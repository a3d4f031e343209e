package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wanmail/webdriver/internal/suite"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <file>",
		Short: "Summarize a saved run report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := suite.LoadReport(args[0])
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), r)
			return nil
		},
	}
}

// printSummary lists every case that did not pass and the totals.
func printSummary(w io.Writer, r *suite.Report) {
	for _, c := range r.Cases {
		if c.Outcome == suite.Passed {
			continue
		}
		fmt.Fprintf(w, "%-7s %s.%s: %s\n", c.Outcome, c.Suite, c.Name, c.Message)
	}
	fmt.Fprintf(w, "run %s: %d passed, %d failed, %d errored in %v\n",
		r.RunID, r.Passed, r.Failed, r.Errored, r.Duration)
}
