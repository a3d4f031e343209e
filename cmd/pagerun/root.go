package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wanmail/webdriver/internal/config"
	"github.com/wanmail/webdriver/internal/observability"
)

// exitError carries a process exit code out of a command without printing
// anything further.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// cli holds the state shared by the subcommands of one invocation.
type cli struct {
	cfgFile string
	cfg     *config.Config
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	app := &cli{}
	cmd := &cobra.Command{
		Use:           "pagerun",
		Short:         "pagerun drives a browser through the page suites.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(app.cfgFile)
			if err != nil {
				return errors.Wrap(err, "failed to initialize configuration")
			}
			app.cfg = cfg
			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting pagerun", zap.String("version", Version))
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&app.cfgFile, "config", "c", "", "config file (default: built-in defaults and PAGERUN_* environment)")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.AddCommand(
		newRunCmd(app),
		newStrategiesCmd(),
		newReportCmd(),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	return execute(ctx, newRootCmd())
}

func execute(ctx context.Context, cmd *cobra.Command) int {
	defer observability.Sync()

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	return 1
}
