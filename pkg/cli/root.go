// Package cli implements the nl2db command line: an interactive REPL, one-shot
// questions, schema listing and a stdio MCP server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nl2db/nl2db/pkg/config"
)

// errReported marks a failure already shown to the user.
var errReported = errors.New("reported")

// Execute runs the root command and returns the process exit code.
// Credentials in a .env file in the working directory are loaded first;
// variables already set in the environment win.
func Execute(version string) int {
	_ = godotenv.Load() // loads .env if present, silently ignores if not

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd(version).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		}
		return 1
	}
	return 0
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}
	var noColor bool

	root := &cobra.Command{
		Use:   "nl2db",
		Short: "Ask questions about your warehouse in plain English",
		Long: `nl2db turns natural-language questions into validated, read-only SQL and runs it.

Without a subcommand it starts an interactive session. Connection settings come
from config.yaml and REDSHIFT_* environment variables; GEMINI_API_KEY and
ANTHROPIC_API_KEY enable the LLM backends, otherwise the rule-based generator
answers alone.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), version, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			r := newREPL(a.agent, cmd.InOrStdin(), cmd.OutOrStdout(), noColor)
			r.spin = true
			r.interrupt = true
			return r.run(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "path to config.yaml")
	flags.BoolVar(&opts.refreshSchema, "refresh-schema", false, "ignore the schema cache and rediscover tables")
	flags.BoolVar(&opts.rulesOnly, "rules-only", false, "use only the rule-based SQL generator")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newAskCmd(version, opts, &noColor),
		newSchemaCmd(version, opts),
		newMCPCmd(version, opts),
	)

	root.SetErr(os.Stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\nRun '%s --help' for usage", err, cmd.CommandPath())
	})
	return root
}
