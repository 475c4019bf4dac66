// Package transcript writes the per-frame pressed-key log and scores one
// log against another.
//
// Each line has the form
//
//	<index>: [<key1>, <key2>, ...]
//
// with keys rendered as note and octave (C#4) in keyboard order.
package transcript

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/alextompkins/piano-vision/internal/keys"
)

// ErrMalformedLine is returned for lines that are not `<index>: [...]`.
var ErrMalformedLine = errors.New("transcript: malformed line")

const separator = ", "

// FormatLine renders one log line for the keys pressed at index.
func FormatLine(index int, ks []keys.Key) string {
	tokens := make([]string, len(ks))
	for i, k := range ks {
		tokens[i] = k.String()
	}
	return FormatTokens(index, tokens)
}

// FormatTokens renders one log line from already rendered key names.
func FormatTokens(index int, tokens []string) string {
	return strconv.Itoa(index) + ": [" + strings.Join(tokens, separator) + "]"
}

// Line is one parsed log line.
type Line struct {
	Index  int
	Tokens []string
}

// ParseLine splits a log line into its index and key tokens. An empty
// bracket yields no tokens.
func ParseLine(line string) (int, []string, error) {
	head, rest, ok := strings.Cut(line, ":")
	if !ok {
		return 0, nil, fmt.Errorf("%w: missing index in %q", ErrMalformedLine, line)
	}
	index, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: bad index in %q", ErrMalformedLine, line)
	}

	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "[") || !strings.HasSuffix(rest, "]") {
		return 0, nil, fmt.Errorf("%w: missing brackets in %q", ErrMalformedLine, line)
	}
	inner := strings.TrimSpace(rest[1 : len(rest)-1])
	if inner == "" {
		return index, nil, nil
	}

	parts := strings.Split(inner, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return 0, nil, fmt.Errorf("%w: empty key in %q", ErrMalformedLine, line)
		}
		tokens = append(tokens, p)
	}
	return index, tokens, nil
}

// ReadLog parses every non-blank line of r.
func ReadLog(r io.Reader) ([]Line, error) {
	var lines []Line
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		index, tokens, err := ParseLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		lines = append(lines, Line{Index: index, Tokens: tokens})
	}
	return lines, sc.Err()
}

// Writer appends log lines to an underlying writer. It is safe for
// concurrent use.
type Writer struct {
	mu    sync.Mutex
	w     *bufio.Writer
	lines int
}

// NewWriter returns a Writer buffering into w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteLine writes the line for the keys pressed at index.
func (w *Writer) WriteLine(index int, ks []keys.Key) error {
	line := FormatLine(index, ks)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.WriteString(line + "\n"); err != nil {
		return err
	}
	w.lines++
	return nil
}

// Lines returns the number of lines written.
func (w *Writer) Lines() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

// Flush writes any buffered lines.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Flush()
}
