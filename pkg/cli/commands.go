package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nl2db/nl2db/pkg/catalog"
	"github.com/nl2db/nl2db/pkg/mcp"
	"github.com/nl2db/nl2db/pkg/mcp/tools"
	"github.com/nl2db/nl2db/pkg/observability"
)

func newAskCmd(version string, opts *globalOptions, noColor *bool) *cobra.Command {
	var explain bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and exit",
		Example: `  nl2db ask "count cameras by status"
  nl2db ask --explain "top 5 most recent fleets"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := newApp(ctx, version, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.agent.Answer(ctx, strings.Join(args, " "), explain)
			newPrinter(cmd.OutOrStdout(), *noColor).result(result)
			if result.Err != nil {
				return fmt.Errorf("%w: %w", errReported, result.Err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&explain, "explain", "e", false, "print the SQL without running it")
	return cmd
}

func newSchemaCmd(version string, opts *globalOptions) *cobra.Command {
	var question string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "List the queryable tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), version, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if question == "" {
				fmt.Fprintln(out, a.agent.SchemaSummary())
				return nil
			}
			for _, t := range a.agent.RelevantTables(question) {
				fmt.Fprintln(out, catalog.RenderTable(t))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&question, "question", "q", "", "show only the tables relevant to this question")
	return cmd
}

func newMCPCmd(version string, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the question tools over MCP on stdin/stdout",
		Long: `Runs a Model Context Protocol server on stdin/stdout exposing ask_database,
get_schema, get_query_history and health. Logs go to stderr. When metrics.addr
(NL2DB_METRICS_ADDR) is set, Prometheus metrics are served on /metrics there.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := newApp(ctx, version, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			server := mcp.NewServer("nl2db", version, a.logger)
			tools.RegisterAll(server.MCP(), &tools.ToolDeps{
				Agent:   a.agent,
				Version: version,
				Logger:  a.logger.Named("tools"),
			})

			g, gctx := errgroup.WithContext(ctx)
			if addr := a.cfg.Metrics.Addr; addr != "" {
				g.Go(func() error { return observability.Serve(gctx, addr, a.logger) })
			}
			g.Go(func() error {
				err := server.ServeStdio(gctx, cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil && gctx.Err() == nil {
					a.logger.Error("MCP server stopped", zap.Error(err))
				}
				// Closing stdin ends the session; stop the metrics listener too.
				stop()
				return nil
			})
			return g.Wait()
		},
	}
}
