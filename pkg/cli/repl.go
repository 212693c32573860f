package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"

	"github.com/nl2db/nl2db/pkg/catalog"
	"github.com/nl2db/nl2db/pkg/services"
)

const replHelp = `Ask a question in plain English, or use a command:
  /help             show this help
  /schema [q]       list tables, or the tables relevant to question q
  /history [n]      show the last n questions (default 10)
  /explain <q>      show the SQL for q without running it
  /sql              show the last generated SQL
  /quit             exit`

// repl is the interactive question loop.
type repl struct {
	agent   services.AgentService
	in      io.Reader
	out     io.Writer
	printer *printer

	// spin shows a progress spinner on stderr while a question runs.
	spin bool
	// interrupt cancels the running question on Ctrl-C.
	interrupt bool
}

func newREPL(agent services.AgentService, in io.Reader, out io.Writer, noColor bool) *repl {
	return &repl{
		agent:   agent,
		in:      in,
		out:     out,
		printer: newPrinter(out, noColor),
	}
}

// run reads lines until EOF, /quit or ctx is done.
func (r *repl) run(ctx context.Context) error {
	fmt.Fprintln(r.out, r.printer.header.Sprint("nl2db")+r.printer.dim.Sprint(" - type /help for commands, /quit to exit"))

	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, r.printer.ok.Sprint("nl2db> "))
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		if quit := r.handle(ctx, strings.TrimSpace(scanner.Text())); quit {
			return nil
		}
	}
}

// handle processes one input line and reports whether to exit.
func (r *repl) handle(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		r.ask(ctx, line, false)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "/quit", "/exit", "/q":
		return true
	case "/help", "/?":
		fmt.Fprintln(r.out, replHelp)
	case "/schema":
		r.schema(arg)
	case "/history":
		n := 10
		if arg != "" {
			v, err := strconv.Atoi(arg)
			if err != nil || v <= 0 {
				fmt.Fprintln(r.out, r.printer.fail.Sprint("usage: /history [n]"))
				return false
			}
			n = v
		}
		r.printer.history(r.agent.Session().History(n))
	case "/explain":
		if arg == "" {
			fmt.Fprintln(r.out, r.printer.fail.Sprint("usage: /explain <question>"))
			return false
		}
		r.ask(ctx, arg, true)
	case "/sql":
		if sqlText, ok := r.agent.Session().LastSQL(); ok {
			fmt.Fprintln(r.out, r.printer.sqlText.Sprint(sqlText))
		} else {
			fmt.Fprintln(r.out, r.printer.dim.Sprint("No SQL generated yet."))
		}
	default:
		fmt.Fprintf(r.out, "%s %s\n", r.printer.fail.Sprint("Unknown command:"), cmd)
		fmt.Fprintln(r.out, r.printer.dim.Sprint("Type /help for commands."))
	}
	return false
}

func (r *repl) ask(ctx context.Context, question string, explainOnly bool) {
	if r.interrupt {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
	}

	var s *spinner.Spinner
	if r.spin {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " thinking..."
		s.Start()
	}

	result := r.agent.Answer(ctx, question, explainOnly)

	if s != nil {
		s.Stop()
	}
	r.printer.result(result)
}

func (r *repl) schema(question string) {
	if question == "" {
		fmt.Fprintln(r.out, r.agent.SchemaSummary())
		return
	}

	tables := r.agent.RelevantTables(question)
	if len(tables) == 0 {
		fmt.Fprintln(r.out, r.printer.dim.Sprint("No tables available."))
		return
	}
	for _, t := range tables {
		fmt.Fprintln(r.out, catalog.RenderTable(t))
		if t.Description != "" {
			fmt.Fprintln(r.out, r.printer.dim.Sprint("  "+t.Description))
		}
	}
}
