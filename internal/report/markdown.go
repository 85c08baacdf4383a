package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/nucheck/internal/filter"
	"github.com/nao1215/nucheck/internal/highlight"
	"github.com/nao1215/nucheck/internal/model"
)

// syntaxHTML is the code block language for markup excerpts.
const syntaxHTML = markdown.SyntaxHighlight("html")

// MarkdownWriter outputs reports in Markdown format, for pull request
// comments and CI job summaries.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...Option) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output, opts),
	}
}

// Write outputs one report in Markdown format.
func (w *MarkdownWriter) Write(r *Report) (int, error) {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	w.writeHeader(md, r)
	if w.opts.showFilters {
		w.writeFilters(md, r.Filters)
	}
	if r.showResults() {
		w.writeGroups(md, r)
	}
	w.writeFooter(md)

	if err := md.Build(); err != nil {
		return 0, err
	}
	return w.emit(buf.Bytes())
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, r *Report) {
	run := r.Run
	md.H1(r.Heading())
	md.PlainText("")

	rows := [][]string{
		{"Target", "`" + run.Target + "`"},
	}
	if run.ValidatorURL != "" {
		rows = append(rows, []string{"Validator", run.ValidatorURL})
	}
	if !run.StartedAt.IsZero() {
		rows = append(rows, []string{"Checked", run.StartedAt.Format("2006-01-02 15:04:05 MST")})
	}
	rows = append(rows, []string{"Status", statusText(run)})
	if r.showResults() {
		c := r.Counts()
		rows = append(rows,
			[]string{"Errors", strconv.Itoa(c.Errors)},
			[]string{"Warnings", strconv.Itoa(c.Warnings)},
			[]string{"Infos", strconv.Itoa(c.Infos)},
			[]string{"Hidden", strconv.Itoa(r.Result.Hidden())},
		)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeAlert(md, r)
}

func statusText(run *model.Run) string {
	if run.Failed() {
		return "❌ Error - " + run.ErrorMessage
	}
	return "✅ Complete"
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, r *Report) {
	if r.Run.Failed() {
		md.Cautionf("Validation failed: %s", r.Run.ErrorMessage)
		md.PlainText("")
		if len(r.Result.Groups) > 0 {
			md.Note("The messages below are from the last successful validation.")
			md.PlainText("")
		}
		return
	}

	c := r.Counts()
	switch {
	case c.Errors > 0:
		md.Warningf("%d error(s) found.", c.Errors)
	case c.Warnings > 0:
		md.Importantf("No errors, %d warning(s) found.", c.Warnings)
	case c.Infos > 0:
		md.Note("Only informational messages.")
	default:
		md.Tip("The document is valid.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFilters(md *markdown.Markdown, st filter.State) {
	md.H2("Filters")
	md.PlainText("")

	if st.IsEmpty() {
		md.PlainText("No active filters.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(st.Types)+len(st.Messages))
	for _, t := range st.Types {
		rows = append(rows, []string{"type", t})
	}
	for _, m := range st.Messages {
		rows = append(rows, []string{"message", escapeCell(m)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Hides", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeGroups(md *markdown.Markdown, r *Report) {
	md.H2("Messages")
	md.PlainText("")

	visible := r.Result.Visible()
	if len(visible) == 0 {
		md.PlainText(NoMessages)
		md.PlainText("")
		return
	}

	if label := r.HiddenLabel(); label != "" {
		md.PlainText("*" + label + "*")
		md.PlainText("")
	}

	w.writePieChart(md, visible)

	for _, g := range visible {
		md.H3(fmt.Sprintf("%s: %s", KindLabel(g.Kind), g.Message))
		md.PlainText("")

		items := make([]string, 0, len(g.Filtered))
		for _, m := range g.Filtered {
			items = append(items, messageItem(m))
		}
		md.BulletList(items...)
		md.PlainText("")

		if w.opts.contextLines > 0 {
			w.writeContext(md, r, g.Filtered)
		}
	}
}

// messageItem renders one occurrence as "line 3, column 5-9: `<foo>`".
func messageItem(m model.Message) string {
	pos := position(m)
	if pos == "" {
		pos = "no position"
	}
	span := highlight.ExtractSpan(m)
	if span.IsEmpty() {
		return pos
	}
	return pos + ": `" + strings.ReplaceAll(singleLine(span.Highlight), "`", "'") + "`"
}

func (w *MarkdownWriter) writeContext(md *markdown.Markdown, r *Report, messages []model.Message) {
	for _, m := range messages {
		lines := r.context(m, w.opts.contextLines)
		if len(lines) == 0 {
			continue
		}
		var sb strings.Builder
		for i, line := range lines {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(line.Text)
		}
		md.Details(position(m), "\n```"+string(syntaxHTML)+"\n"+sb.String()+"\n```\n")
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of visible messages per kind.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, groups []filter.Group) {
	if len(groups) < 2 {
		return
	}

	order := make([]string, 0)
	counts := make(map[string]uint64)
	for _, g := range groups {
		if _, ok := counts[g.Kind]; !ok {
			order = append(order, g.Kind)
		}
		counts[g.Kind] += uint64(len(g.Filtered))
	}
	if len(order) < 2 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Messages by kind"),
		piechart.WithShowData(true),
	)
	for _, kind := range order {
		chart.LabelAndIntValue(KindLabel(kind), counts[kind])
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [nucheck](https://github.com/nao1215/nucheck)*")
}

// WriteSummary outputs a table with one row per report.
func (w *MarkdownWriter) WriteSummary(rs []*Report) (int, error) {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	md.H1("Validation Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		c := r.Counts()
		rows = append(rows, []string{
			"`" + r.Run.Target + "`",
			strconv.Itoa(c.Errors),
			strconv.Itoa(c.Warnings),
			strconv.Itoa(c.Infos),
			strconv.Itoa(r.Result.Hidden()),
			escapeCell(statusText(r.Run)),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Target", "Errors", "Warnings", "Infos", "Hidden", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	if err := md.Build(); err != nil {
		return 0, err
	}
	return w.emit(buf.Bytes())
}

// escapeCell keeps a value from breaking a table row.
func escapeCell(s string) string {
	return strings.ReplaceAll(singleLine(s), "|", `\|`)
}
