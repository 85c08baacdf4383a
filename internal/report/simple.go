package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/nao1215/nucheck/internal/filter"
	"github.com/nao1215/nucheck/internal/highlight"
	"github.com/nao1215/nucheck/internal/model"
)

const ruleWidth = 70

// maxTargetWidth caps the target column of the summary table.
const maxTargetWidth = 48

// SimpleWriter outputs human-readable text reports for terminal display.
// Message kinds are shown as colored badges and the offending fragment of
// each extract is marked with carets.
type SimpleWriter struct {
	baseWriter

	bold      *color.Color
	dim       *color.Color
	errorC    *color.Color
	warningC  *color.Color
	infoC     *color.Color
	highlight *color.Color
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
// Colors are off unless WithColor(true) is passed.
func NewSimpleWriter(output io.Writer, opts ...Option) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output, opts),
		bold:       color.New(color.Bold),
		dim:        color.New(color.FgHiBlack),
		errorC:     color.New(color.FgHiRed, color.Bold),
		warningC:   color.New(color.FgYellow, color.Bold),
		infoC:      color.New(color.FgCyan),
		highlight:  color.New(color.FgRed, color.Underline),
	}
	for _, c := range []*color.Color{w.bold, w.dim, w.errorC, w.warningC, w.infoC, w.highlight} {
		if w.opts.color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return w
}

// Write outputs one report in human-readable format.
func (w *SimpleWriter) Write(r *Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, r)
	if w.opts.showFilters {
		w.writeFilters(&sb, r.Filters)
	}
	if r.showResults() {
		w.writeGroups(&sb, r)
	}

	return w.emit([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, r *Report) {
	run := r.Run

	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(w.bold.Sprint(r.Heading()))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Target:     %s\n", run.Target)
	if run.ValidatorURL != "" {
		fmt.Fprintf(sb, "Validator:  %s\n", run.ValidatorURL)
	}
	if !run.StartedAt.IsZero() {
		fmt.Fprintf(sb, "Checked:    %s (%s)\n",
			run.StartedAt.Format("2006-01-02 15:04:05 MST"), run.Duration.Round(time.Millisecond))
	}

	if run.Failed() {
		fmt.Fprintf(sb, "Status:     %s\n", w.errorC.Sprint("ERROR - "+run.ErrorMessage))
		if len(r.Result.Groups) > 0 {
			sb.WriteString("            showing the last successful results\n")
		}
	} else {
		sb.WriteString("Status:     Complete\n")
	}

	if r.showResults() {
		fmt.Fprintf(sb, "Messages:   %s", countsText(r.Counts()))
		if label := r.HiddenLabel(); label != "" {
			sb.WriteString(" ")
			sb.WriteString(w.dim.Sprint(label))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFilters(sb *strings.Builder, st filter.State) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("FILTERS\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")

	if st.IsEmpty() {
		sb.WriteString("  No active filters\n\n")
		return
	}
	if len(st.Types) > 0 {
		sb.WriteString("  Hidden types:\n")
		for _, t := range st.Types {
			fmt.Fprintf(sb, "    - %s\n", t)
		}
	}
	if len(st.Messages) > 0 {
		sb.WriteString("  Hidden messages:\n")
		for _, m := range st.Messages {
			fmt.Fprintf(sb, "    - %s\n", m)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeGroups(sb *strings.Builder, r *Report) {
	visible := r.Result.Visible()
	if len(visible) == 0 {
		sb.WriteString(NoMessages)
		sb.WriteString("\n\n")
		return
	}

	for _, g := range visible {
		fmt.Fprintf(sb, "%s %s", w.badge(g.Kind, g.Filtered[0].Level()), g.Message)
		if n := len(g.Filtered); n > 1 {
			sb.WriteString(w.dim.Sprintf(" (%d occurrences)", n))
		}
		sb.WriteString("\n")

		for _, m := range g.Filtered {
			w.writeMessage(sb, r, m)
		}
		sb.WriteString("\n")
	}
}

func (w *SimpleWriter) writeMessage(sb *strings.Builder, r *Report, m model.Message) {
	if pos := position(m); pos != "" {
		fmt.Fprintf(sb, "  %s\n", pos)
	}

	if m.Extract != "" {
		w.writeSpan(sb, "    ", highlight.ExtractSpan(m))
	}

	ctx := r.context(m, w.opts.contextLines)
	if len(ctx) == 0 {
		return
	}
	width := len(fmt.Sprint(ctx[len(ctx)-1].Number))
	for _, line := range ctx {
		marker := " "
		if line.Span != nil {
			marker = ">"
		}
		prefix := fmt.Sprintf("  %s %*d | ", marker, width, line.Number)
		if line.Span == nil {
			sb.WriteString(w.dim.Sprint(prefix))
			sb.WriteString(singleLine(line.Text))
			sb.WriteString("\n")
			continue
		}
		w.writeSpan(sb, prefix, *line.Span)
	}
}

// writeSpan writes a span on one line followed by a caret line under the
// highlighted fragment. Carets are aligned by display width.
func (w *SimpleWriter) writeSpan(sb *strings.Builder, indent string, span highlight.Span) {
	prefix := singleLine(span.Prefix)
	hl := singleLine(span.Highlight)
	suffix := singleLine(span.Suffix)

	sb.WriteString(indent)
	sb.WriteString(prefix)
	sb.WriteString(w.highlight.Sprint(hl))
	sb.WriteString(suffix)
	sb.WriteString("\n")

	if span.IsEmpty() {
		return
	}
	pad := runewidth.StringWidth(indent) + runewidth.StringWidth(prefix)
	carets := max(runewidth.StringWidth(hl), 1)
	sb.WriteString(strings.Repeat(" ", pad))
	sb.WriteString(w.highlight.Sprint(strings.Repeat("^", carets)))
	sb.WriteString("\n")
}

// badge renders a message kind as "[Error]" in the color of its level.
func (w *SimpleWriter) badge(kind string, level model.Level) string {
	text := "[" + KindLabel(kind) + "]"
	switch level {
	case model.LevelError:
		return w.errorC.Sprint(text)
	case model.LevelWarning:
		return w.warningC.Sprint(text)
	default:
		return w.infoC.Sprint(text)
	}
}

// WriteSummary outputs a table with one row per report.
func (w *SimpleWriter) WriteSummary(rs []*Report) (int, error) {
	var sb strings.Builder

	targetWidth := len("Target")
	for _, r := range rs {
		targetWidth = max(targetWidth, runewidth.StringWidth(r.Run.Target))
	}
	targetWidth = min(targetWidth, maxTargetWidth)

	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(w.bold.Sprint("SUMMARY"))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "%s  %6s  %8s  %5s  %6s  %s\n",
		runewidth.FillRight("Target", targetWidth), "Errors", "Warnings", "Infos", "Hidden", "Status")

	var total model.Counts
	failed := 0
	for _, r := range rs {
		c := r.Counts()
		total.Errors += c.Errors
		total.Warnings += c.Warnings
		total.Infos += c.Infos

		status := "ok"
		if r.Run.Failed() {
			failed++
			status = w.errorC.Sprint("failed: " + r.Run.ErrorMessage)
		}

		target := runewidth.Truncate(r.Run.Target, targetWidth, "...")
		fmt.Fprintf(&sb, "%s  %6d  %8d  %5d  %6d  %s\n",
			runewidth.FillRight(target, targetWidth), c.Errors, c.Warnings, c.Infos, r.Result.Hidden(), status)
	}

	fmt.Fprintf(&sb, "\n%d targets, %d failed, %s\n", len(rs), failed, countsText(total))
	return w.emit([]byte(sb.String()))
}

// countsText renders counts as "2 errors, 1 warning, 0 infos".
func countsText(c model.Counts) string {
	return fmt.Sprintf("%s, %s, %s",
		plural(c.Errors, "error"), plural(c.Warnings, "warning"), plural(c.Infos, "info"))
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
