package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wanmail/webdriver/internal/observability"
	"github.com/wanmail/webdriver/internal/searchcase"
	"github.com/wanmail/webdriver/internal/suite"
	"github.com/wanmail/webdriver/page"
)

func newRunCmd(app *cli) *cobra.Command {
	var (
		run      string
		baseURL  string
		headless bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the search suite and write a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			flags := cmd.Flags()
			if flags.Changed("run") {
				cfg.SetSuiteRun(run)
			}
			if flags.Changed("base-url") {
				cfg.SetSuiteBaseURL(baseURL)
			}
			if flags.Changed("headless") {
				cfg.SetBrowserHeadless(headless)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := observability.GetLogger()
			reg := prometheus.NewRegistry()
			pageMetrics := page.NewMetrics(reg)
			suiteCfg := cfg.Suite()

			var sess *session
			s := searchcase.New(
				func() (*suite.Fixture, error) {
					var err error
					if sess, err = openSession(cmd.Context(), cfg.Browser(), logger); err != nil {
						return nil, err
					}
					p := page.New(sess.wd, page.Config(cfg.Page()), logger, page.WithMetrics(pageMetrics))
					return &suite.Fixture{Page: p, BaseURL: suiteCfg.BaseURL}, nil
				},
				func(*suite.Fixture) error { return sess.Close() },
			)

			runner, err := suite.NewRunner(suite.Options{Pattern: suiteCfg.Pattern, Run: suiteCfg.Run}, logger, reg)
			if err != nil {
				return err
			}
			report := runner.Run(s)

			path, err := report.Save(suiteCfg.ReportDir, reg)
			if err != nil {
				return err
			}
			logger.Info("report written", zap.String("path", path))
			printSummary(cmd.OutOrStdout(), report)

			if code := report.ExitCode(); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&run, "run", "", "only run cases whose name matches this regular expression")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "homepage the cases open")
	cmd.Flags().BoolVar(&headless, "headless", true, "run the browser without a window")
	return cmd
}
