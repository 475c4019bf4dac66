package transcript

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alextompkins/piano-vision/internal/keys"
)

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name  string
		index int
		keys  []keys.Key
		want  string
	}{
		{"no keys", 1, nil, "1: []"},
		{"one key", 7, []keys.Key{{Note: keys.C, Octave: 4, HasOctave: true}}, "7: [C4]"},
		{
			name:  "several keys with placeholders",
			index: 12,
			keys: []keys.Key{
				{Note: keys.CSharp, Octave: 4, HasOctave: true},
				{Note: keys.E, Octave: 4, HasOctave: true},
				{Note: keys.FSharp},
				{},
			},
			want: "12: [C#4, E4, F#?, ??]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatLine(tt.index, tt.keys); got != tt.want {
				t.Errorf("FormatLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line       string
		wantIndex  int
		wantTokens []string
		wantErr    bool
	}{
		{"1: []", 1, nil, false},
		{"12: [C#4, E4]", 12, []string{"C#4", "E4"}, false},
		{"  3 :  [ A0 ]  ", 3, []string{"A0"}, false},
		{"4: [C4,E4]", 4, []string{"C4", "E4"}, false},
		{"5: [??, C#?]", 5, []string{"??", "C#?"}, false},
		{"no colon [C4]", 0, nil, true},
		{"x: [C4]", 0, nil, true},
		{"6: C4, E4", 0, nil, true},
		{"7: [C4, , E4]", 0, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			index, tokens, err := ParseLine(tt.line)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedLine) {
					t.Fatalf("ParseLine() error = %v, want ErrMalformedLine", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			if index != tt.wantIndex {
				t.Errorf("index = %d, want %d", index, tt.wantIndex)
			}
			if strings.Join(tokens, "|") != strings.Join(tt.wantTokens, "|") || len(tokens) != len(tt.wantTokens) {
				t.Errorf("tokens = %q, want %q", tokens, tt.wantTokens)
			}
		})
	}
}

func TestFormatParseAgree(t *testing.T) {
	tokens := []string{"A0", "C#4", "??"}
	index, got, err := ParseLine(FormatTokens(99, tokens))
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if index != 99 || strings.Join(got, ",") != strings.Join(tokens, ",") {
		t.Errorf("got %d %q", index, got)
	}
}

func TestReadLog(t *testing.T) {
	lines, err := ReadLog(strings.NewReader("1: [C4]\n\n2: []\n"))
	if err != nil {
		t.Fatalf("ReadLog() error = %v", err)
	}
	if len(lines) != 2 || lines[1].Index != 2 || len(lines[1].Tokens) != 0 {
		t.Errorf("ReadLog() = %+v", lines)
	}

	_, err = ReadLog(strings.NewReader("1: [C4]\nbroken\n"))
	if !errors.Is(err, ErrMalformedLine) || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("ReadLog() error = %v, want ErrMalformedLine on line 2", err)
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	c4 := keys.Key{Note: keys.C, Octave: 4, HasOctave: true}
	e4 := keys.Key{Note: keys.E, Octave: 4, HasOctave: true}

	if err := w.WriteLine(1, nil); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteLine(2, []keys.Key{c4, e4}); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	want := "1: []\n2: [C4, E4]\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
	if w.Lines() != 2 {
		t.Errorf("Lines() = %d, want 2", w.Lines())
	}
}

func TestWriter_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w.WriteLine(i, nil)
		}(i)
	}
	wg.Wait()
	w.Flush()

	lines, err := ReadLog(&buf)
	if err != nil {
		t.Fatalf("interleaved output: %v", err)
	}
	if len(lines) != 50 {
		t.Errorf("got %d lines, want 50", len(lines))
	}
}
