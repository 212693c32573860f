package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/nl2db/nl2db/pkg/apperrors"
	"github.com/nl2db/nl2db/pkg/models"
)

// maxDisplayRows caps the rows printed for one result.
const maxDisplayRows = 50

// printer renders results for a terminal.
type printer struct {
	out io.Writer

	header  *color.Color
	sqlText *color.Color
	ok      *color.Color
	fail    *color.Color
	dim     *color.Color
}

func newPrinter(out io.Writer, noColor bool) *printer {
	p := &printer{
		out:     out,
		header:  color.New(color.Bold),
		sqlText: color.New(color.FgCyan),
		ok:      color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		dim:     color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{p.header, p.sqlText, p.ok, p.fail, p.dim} {
			c.DisableColor()
		}
	}
	return p
}

// result prints the SQL, then rows or the error of r.
func (p *printer) result(r *models.QueryResult) {
	if r.SQL != "" {
		label := "SQL"
		if r.Backend != "" {
			label = fmt.Sprintf("SQL (%s)", r.Backend)
		}
		fmt.Fprintln(p.out, p.dim.Sprint(label+":"))
		fmt.Fprintln(p.out, "  "+p.sqlText.Sprint(r.SQL))
	}

	if r.Err != nil {
		fmt.Fprintf(p.out, "%s %s\n", p.fail.Sprintf("Error [%s]:", r.ErrorKind()), r.Err.Error())
		if r.ErrorKind() == apperrors.KindUnsupportedIntent {
			fmt.Fprintln(p.out, p.dim.Sprint("Try rephrasing, e.g. \"count cameras by status\" or \"top 5 most recent fleets\"."))
		}
		return
	}

	if r.Rows == nil {
		return
	}

	if len(r.Rows) > 0 {
		p.table(r.Columns, r.Rows)
	}
	fmt.Fprintln(p.out, p.ok.Sprintf("(%d %s, %s)", len(r.Rows), plural(len(r.Rows), "row"), r.Duration.Round(time.Millisecond)))
}

func (p *printer) table(columns []string, rows [][]any) {
	tw := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, p.header.Sprint(strings.Join(columns, "\t")))
	shown := rows
	if len(shown) > maxDisplayRows {
		shown = shown[:maxDisplayRows]
	}
	for _, row := range shown {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()

	if hidden := len(rows) - len(shown); hidden > 0 {
		fmt.Fprintln(p.out, p.dim.Sprintf("... %d more %s not shown", hidden, plural(hidden, "row")))
	}
}

// history prints entries oldest first.
func (p *printer) history(entries []models.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(p.out, p.dim.Sprint("No questions asked yet."))
		return
	}
	for i, e := range entries {
		status := p.ok.Sprint("ok")
		if !e.Success {
			status = p.fail.Sprint(e.ErrorKind)
		}
		fmt.Fprintf(p.out, "%d. [%s] %s %s\n", i+1, e.Timestamp.Format("15:04:05"), e.NaturalLanguage, status)
		if e.SQL != "" {
			fmt.Fprintln(p.out, "   "+p.sqlText.Sprint(e.SQL))
		}
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05")
	case []byte:
		return string(val)
	case string:
		return strings.ReplaceAll(val, "\t", " ")
	default:
		return fmt.Sprint(val)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
