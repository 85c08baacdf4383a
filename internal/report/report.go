package report

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/nucheck/internal/filter"
	"github.com/nao1215/nucheck/internal/highlight"
	"github.com/nao1215/nucheck/internal/model"
	"github.com/nao1215/nucheck/internal/session"
)

// NoMessages is printed when no message survives the filters.
const NoMessages = "No (unfiltered) messages"

// Report is one run with the filters applied, ready to be written.
type Report struct {
	// Run is the validation attempt being reported.
	Run *model.Run

	// Result holds the grouped messages after filtering.
	Result filter.Result

	// Filters is the filter state that produced Result.
	Filters filter.State

	// Markup is the source the message positions refer to. It differs from
	// Run.Markup when a failed run is reported with earlier results.
	Markup string
}

// New groups the messages of run and applies st.
func New(run *model.Run, st filter.State) *Report {
	groups := model.GroupMessages(model.NormalizeAll(run.Messages))
	return &Report{
		Run:     run,
		Result:  filter.Apply(groups, st),
		Filters: st,
		Markup:  run.Markup,
	}
}

// FromView reports run with the results held by a session view. A failed
// run is then shown together with the last successful results.
func FromView(run *model.Run, v session.View) *Report {
	return &Report{
		Run:     run,
		Result:  v.Result,
		Filters: v.Filters,
		Markup:  v.Markup,
	}
}

// Counts tallies the visible messages per level.
func (r *Report) Counts() model.Counts {
	return model.CountMessages(r.Result.VisibleMessages())
}

// HiddenLabel returns "(n messages hidden)" or "".
func (r *Report) HiddenLabel() string {
	return filter.HiddenLabel(r.Result.Hidden())
}

// Heading is the page title, or the target when there is none.
func (r *Report) Heading() string {
	if r.Run.Title != "" {
		return r.Run.Title
	}
	return r.Run.Target
}

// showResults reports whether the message section should be rendered.
// A failed run with no earlier results has nothing to show.
func (r *Report) showResults() bool {
	return !r.Run.Failed() || len(r.Result.Groups) > 0
}

// context returns the source lines around m, or nil when context is
// disabled or the message points outside the source.
func (r *Report) context(m model.Message, lines int) []highlight.ContextLine {
	if lines <= 0 || r.Markup == "" || m.LastLine == 0 {
		return nil
	}
	out, err := highlight.Context(r.Markup, highlight.LocationOf(m), lines)
	if err != nil {
		return nil
	}
	return out
}

// options are shared by every writer.
type options struct {
	showFilters  bool
	contextLines int
	color        bool
	pretty       bool
	version      string
}

// Option configures a writer.
type Option func(*options)

// WithShowFilters includes the active filters in the output.
func WithShowFilters(show bool) Option {
	return func(o *options) {
		o.showFilters = show
	}
}

// WithContext shows the source line of each message with n lines on each
// side. Zero disables context.
func WithContext(n int) Option {
	return func(o *options) {
		o.contextLines = max(n, 0)
	}
}

// WithColor enables ANSI colors in text output.
func WithColor(enabled bool) Option {
	return func(o *options) {
		o.color = enabled
	}
}

// WithPrettyPrint indents JSON output.
func WithPrettyPrint() Option {
	return func(o *options) {
		o.pretty = true
	}
}

// WithVersion records the tool version in JSON output.
func WithVersion(version string) Option {
	return func(o *options) {
		o.version = version
	}
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// KindLabel turns a message kind into a display label,
// "non-document-error" into "Non Document Error".
func KindLabel(kind string) string {
	if kind == "" {
		return "Unknown"
	}
	return cases.Title(language.English).String(strings.ReplaceAll(kind, "-", " "))
}

// position renders where a message points, for example "line 3, column 5-9".
func position(m model.Message) string {
	var sb strings.Builder
	switch {
	case m.LastLine == 0:
		return ""
	case m.FirstLine != 0 && m.FirstLine != m.LastLine:
		sb.WriteString("lines ")
		sb.WriteString(strconv.Itoa(m.FirstLine))
		sb.WriteString("-")
		sb.WriteString(strconv.Itoa(m.LastLine))
	default:
		sb.WriteString("line ")
		sb.WriteString(strconv.Itoa(m.LastLine))
	}

	loc := highlight.LocationOf(m)
	if m.LastColumn != 0 {
		first := loc.Start() + 1
		sb.WriteString(", column ")
		if first > 0 && first < m.LastColumn {
			sb.WriteString(strconv.Itoa(first))
			sb.WriteString("-")
		}
		sb.WriteString(strconv.Itoa(m.LastColumn))
	}
	return sb.String()
}

// singleLine flattens line breaks so a fragment fits on one output line.
func singleLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(s)
}
