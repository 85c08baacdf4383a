package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/nucheck/internal/filter"
	"github.com/nao1215/nucheck/internal/highlight"
	"github.com/nao1215/nucheck/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...Option) *JSONWriter {
	return &JSONWriter{
		baseWriter: newBaseWriter(output, opts),
	}
}

// JSONReport is the JSON document written for one report.
type JSONReport struct {
	// Version is the nucheck version that generated this report.
	Version string `json:"version,omitempty"`

	ID           int64         `json:"id,omitempty"`
	Target       string        `json:"target"`
	Title        string        `json:"title,omitempty"`
	ValidatorURL string        `json:"validator_url,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
	Error        string        `json:"error,omitempty"`

	// Counts covers visible messages only.
	Counts model.Counts `json:"counts"`

	// Hidden is the number of messages removed by filters.
	Hidden      int    `json:"hidden"`
	HiddenLabel string `json:"hidden_label,omitempty"`

	// Groups holds the visible groups in first-occurrence order.
	Groups []JSONGroup `json:"groups"`

	// Filters is set when filters are shown.
	Filters *filter.State `json:"filters,omitempty"`
}

// JSONGroup is a visible message group.
type JSONGroup struct {
	Kind     string        `json:"kind"`
	Message  string        `json:"message"`
	Hidden   int           `json:"hidden"`
	Messages []JSONMessage `json:"messages"`
}

// JSONMessage is one visible message with its highlight resolved.
type JSONMessage struct {
	model.Message

	// Span splits the extract around the offending fragment.
	Span *highlight.Span `json:"span,omitempty"`

	// Context holds source lines around the message when requested.
	Context []highlight.ContextLine `json:"context,omitempty"`
}

// NewJSONReport converts a report to its JSON form.
func (w *JSONWriter) NewJSONReport(r *Report) *JSONReport {
	run := r.Run
	out := &JSONReport{
		Version:      w.opts.version,
		ID:           run.ID,
		Target:       run.Target,
		Title:        run.Title,
		ValidatorURL: run.ValidatorURL,
		StartedAt:    run.StartedAt,
		Duration:     run.Duration,
		Error:        run.ErrorMessage,
		Counts:       r.Counts(),
		Hidden:       r.Result.Hidden(),
		HiddenLabel:  r.HiddenLabel(),
		Groups:       make([]JSONGroup, 0),
	}
	if w.opts.showFilters {
		st := r.Filters
		out.Filters = &st
	}

	for _, g := range r.Result.Visible() {
		jg := JSONGroup{
			Kind:     g.Kind,
			Message:  g.Message,
			Hidden:   g.NumFiltered,
			Messages: make([]JSONMessage, 0, len(g.Filtered)),
		}
		for _, m := range g.Filtered {
			jm := JSONMessage{Message: m, Context: r.context(m, w.opts.contextLines)}
			if m.Extract != "" {
				span := highlight.ExtractSpan(m)
				jm.Span = &span
			}
			jg.Messages = append(jg.Messages, jm)
		}
		out.Groups = append(out.Groups, jg)
	}
	return out
}

// Write outputs one report as a JSON object.
func (w *JSONWriter) Write(r *Report) (int, error) {
	return w.writeJSON(w.NewJSONReport(r))
}

// WriteSummary outputs all reports as a JSON array.
func (w *JSONWriter) WriteSummary(rs []*Report) (int, error) {
	out := make([]*JSONReport, 0, len(rs))
	for _, r := range rs {
		out = append(out, w.NewJSONReport(r))
	}
	return w.writeJSON(out)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.opts.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.emit(data)
}
