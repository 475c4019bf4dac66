package keys

// Note is one of the twelve pitch classes, ordered A < A# < B < C < ... < G#.
// The zero value is NoteUnknown.
type Note int

const (
	NoteUnknown Note = iota
	A
	ASharp
	B
	C
	CSharp
	D
	DSharp
	E
	F
	FSharp
	G
	GSharp
)

var noteNames = [...]string{
	NoteUnknown: "?",
	A:           "A",
	ASharp:      "A#",
	B:           "B",
	C:           "C",
	CSharp:      "C#",
	D:           "D",
	DSharp:      "D#",
	E:           "E",
	F:           "F",
	FSharp:      "F#",
	G:           "G",
	GSharp:      "G#",
}

// String returns the note name with sharps rendered as '#', or "?" when unknown.
func (n Note) String() string {
	if n < NoteUnknown || int(n) >= len(noteNames) {
		return noteNames[NoteUnknown]
	}
	return noteNames[n]
}

// Sharp reports whether the note sits on a black key.
func (n Note) Sharp() bool {
	return indexOf(blackCycle[:], n) >= 0
}

// Octave numbering changes at C for white keys and at C# for black keys,
// so both cycles start there.
var (
	whiteCycle = [...]Note{C, D, E, F, G, A, B}
	blackCycle = [...]Note{CSharp, DSharp, FSharp, GSharp, ASharp}
)

// WhiteStep moves steps white keys away from the white key (note, octave).
// Negative steps move left. ok is false when note is not a white-key note.
func WhiteStep(note Note, octave, steps int) (Note, int, bool) {
	return step(whiteCycle[:], note, octave, steps)
}

// BlackStep moves steps black keys away from the black key (note, octave).
// Negative steps move left. ok is false when note is not a black-key note.
func BlackStep(note Note, octave, steps int) (Note, int, bool) {
	return step(blackCycle[:], note, octave, steps)
}

func step(cycle []Note, note Note, octave, steps int) (Note, int, bool) {
	i := indexOf(cycle, note)
	if i < 0 {
		return NoteUnknown, 0, false
	}
	p := i + steps
	n := len(cycle)
	return cycle[mod(p, n)], octave + floorDiv(p, n), true
}

func indexOf(cycle []Note, note Note) int {
	for i, n := range cycle {
		if n == note {
			return i
		}
	}
	return -1
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// mod returns a non-negative remainder for positive b.
func mod(a, b int) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}
