package keys

import (
	"sort"

	"github.com/alextompkins/piano-vision/internal/imgproc"
)

// Label assigns notes and octaves to the given keys and returns labeled
// copies of both slices, each sorted by x. The inputs are not modified.
//
// Black keys are grouped by spacing into the repeating 2/3 pattern; the
// white key sitting between the first G#/A# pair is the A1 anchor from which
// every other key is counted. Keys that cannot be resolved keep
// NoteUnknown and HasOctave=false.
func Label(white, black []Key) ([]Key, []Key) {
	w := sortedCopy(white)
	b := sortedCopy(black)
	for i := range w {
		w[i].Black = false
	}
	for i := range b {
		b[i].Black = true
	}

	groups := groupBlack(b)
	nameGroups(b, groups)

	anchorWhite, anchorBlack := findAnchor(w, b)
	if anchorWhite < 0 {
		return w, b
	}

	for i := range w {
		note, octave, _ := WhiteStep(A, 1, i-anchorWhite)
		w[i].Note = note
		w[i].Octave = octave
		w[i].HasOctave = true
	}
	for i := range b {
		note, octave, _ := BlackStep(ASharp, 1, i-anchorBlack)
		if b[i].Note == NoteUnknown {
			b[i].Note = note
		}
		b[i].Octave = octave
		b[i].HasOctave = true
	}
	return w, b
}

func sortedCopy(in []Key) []Key {
	out := make([]Key, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Center().X < out[j].Center().X
	})
	return out
}

// groupBlack splits sorted black keys into runs whose gap to the previous
// key is below the mean gap. Each group is a [start, end) index pair.
func groupBlack(b []Key) [][2]int {
	if len(b) == 0 {
		return nil
	}

	gaps := make([]float64, 0, len(b)-1)
	for i := 1; i < len(b); i++ {
		gaps = append(gaps, float64(b[i].Center().X-b[i-1].Center().X))
	}
	meanGap, _, ok := imgproc.MeanStdDev(gaps)
	if !ok {
		return [][2]int{{0, len(b)}}
	}

	groups := [][2]int{{0, 1}}
	for i := 1; i < len(b); i++ {
		if gaps[i-1] < meanGap {
			groups[len(groups)-1][1] = i + 1
		} else {
			groups = append(groups, [2]int{i, i + 1})
		}
	}
	return groups
}

var groupNotes = map[int][]Note{
	2: {CSharp, DSharp},
	3: {FSharp, GSharp, ASharp},
}

func nameGroups(b []Key, groups [][2]int) {
	for _, g := range groups {
		if notes, ok := groupNotes[g[1]-g[0]]; ok {
			for i, n := range notes {
				b[g[0]+i].Note = n
			}
		}
	}

	// A lone key is named from whichever neighbouring group is resolved.
	for gi, g := range groups {
		if g[1]-g[0] != 1 {
			continue
		}
		if gi > 0 {
			prev := b[groups[gi-1][1]-1].Note
			if n, _, ok := BlackStep(prev, 0, 1); ok {
				b[g[0]].Note = n
				continue
			}
		}
		if gi < len(groups)-1 {
			next := b[groups[gi+1][0]].Note
			if n, _, ok := BlackStep(next, 0, -1); ok {
				b[g[0]].Note = n
			}
		}
	}
}

// findAnchor returns the index of the first white key whose centre lies
// between a consecutive G#/A# black pair, and the index of that A#.
// Both are -1 when no such key exists.
func findAnchor(w, b []Key) (int, int) {
	for i, key := range w {
		cx := key.Center().X
		for j := 0; j+1 < len(b); j++ {
			left, right := b[j], b[j+1]
			if left.Note == GSharp && right.Note == ASharp &&
				left.Center().X < cx && cx < right.Center().X {
				return i, j + 1
			}
		}
	}
	return -1, -1
}
