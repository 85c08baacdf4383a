package report

import (
	"io"
	"sync"
)

// Writer renders reports in one output format.
type Writer interface {
	// Write renders a single report.
	// Returns the number of bytes written and any error encountered.
	Write(r *Report) (int, error)

	// WriteSummary renders a one-line-per-target overview of several
	// reports, used after a batch.
	WriteSummary(rs []*Report) (int, error)
}

// MultiWriter writes to multiple Writers in turn.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write renders the report with every writer.
// Stops on first error encountered.
func (m *MultiWriter) Write(r *Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(r)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary renders the summary with every writer.
func (m *MultiWriter) WriteSummary(rs []*Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(rs)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
// Reports are rendered into a buffer first and written under mu, so
// concurrent batch callbacks never interleave output.
type baseWriter struct {
	output io.Writer
	opts   options
	mu     *sync.Mutex
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer, opts []Option) baseWriter {
	return baseWriter{output: output, opts: newOptions(opts), mu: &sync.Mutex{}}
}

// emit writes p to the output.
func (b baseWriter) emit(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.output.Write(p)
}
