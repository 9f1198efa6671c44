package report

import "io"

// Writer defines the interface for digest output.
// Implementations render a digest in one format.
//
// Design decision: the same Digest feeds the email body, the CLI preview and
// the JSON API, so formats are interchangeable Writers rather than methods on
// Digest.
type Writer interface {
	// Write renders the digest to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(digest *Digest) (int, error)
}

// MultiWriter writes to multiple Writers in order.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the digest to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(digest *Digest) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(digest)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for digest writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// NewWriter returns the writer for format ("markdown", "json" or "text").
// Unknown formats yield nil and false.
func NewWriter(format string, output io.Writer) (Writer, bool) {
	switch format {
	case FormatMarkdown:
		return NewMarkdownWriter(output), true
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), true
	case FormatText:
		return NewSimpleWriter(output), true
	default:
		return nil, false
	}
}

// Output formats accepted by NewWriter.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatText     = "text"
)
