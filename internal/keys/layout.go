// Package keys segments a rectified keyboard image into individual black and
// white keys and labels each with its note and octave.
package keys

import (
	"errors"
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// ErrEmptyReference is returned when a layout is requested for an empty image.
var ErrEmptyReference = errors.New("keys: empty reference image")

// Layout is the immutable set of keys found in one reference image.
type Layout struct {
	White  []Key
	Black  []Key
	Width  int
	Height int

	all   []Key
	index map[image.Rectangle]int
}

// NewLayout segments and labels the keys of a rectified reference keyboard.
// A partially labeled layout is not an error.
func NewLayout(ref gocv.Mat) (*Layout, error) {
	if ref.Empty() {
		return nil, ErrEmptyReference
	}
	white, black := Label(findWhiteKeys(ref), findBlackKeys(ref))
	return newLayout(white, black, ref.Cols(), ref.Rows()), nil
}

// LayoutFromKeys builds a layout from keys found elsewhere, labeling them.
func LayoutFromKeys(white, black []Key, width, height int) *Layout {
	w, b := Label(white, black)
	return newLayout(w, b, width, height)
}

func newLayout(white, black []Key, width, height int) *Layout {
	l := &Layout{
		White:  white,
		Black:  black,
		Width:  width,
		Height: height,
		index:  make(map[image.Rectangle]int, len(white)+len(black)),
	}

	l.all = make([]Key, 0, len(white)+len(black))
	l.all = append(l.all, white...)
	l.all = append(l.all, black...)
	sort.SliceStable(l.all, func(i, j int) bool {
		return l.all[i].Rect.Min.X < l.all[j].Rect.Min.X
	})
	for i, k := range l.all {
		if _, dup := l.index[k.ID()]; !dup {
			l.index[k.ID()] = i
		}
	}
	return l
}

// Keys returns every key ordered by x.
func (l *Layout) Keys() []Key {
	out := make([]Key, len(l.all))
	copy(out, l.all)
	return out
}

// Lookup returns the key with the given identity.
func (l *Layout) Lookup(id image.Rectangle) (Key, bool) {
	i, ok := l.index[id]
	if !ok {
		return Key{}, false
	}
	return l.all[i], true
}

// At returns the key under p. Black keys sit on top of white keys and win.
func (l *Layout) At(p image.Point) (Key, bool) {
	for _, k := range l.Black {
		if k.Contains(p) {
			return k, true
		}
	}
	for _, k := range l.White {
		if k.Contains(p) {
			return k, true
		}
	}
	return Key{}, false
}

// Containing returns every key, white or black, whose rectangle contains p.
func (l *Layout) Containing(p image.Point) []Key {
	var out []Key
	for _, k := range l.all {
		if k.Contains(p) {
			out = append(out, k)
		}
	}
	return out
}

// Labeled returns the number of keys with both note and octave resolved.
func (l *Layout) Labeled() int {
	n := 0
	for _, k := range l.all {
		if k.Labeled() {
			n++
		}
	}
	return n
}

// Sort orders keys by x, matching layout iteration order.
func Sort(ks []Key) {
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].Rect.Min.X != ks[j].Rect.Min.X {
			return ks[i].Rect.Min.X < ks[j].Rect.Min.X
		}
		return ks[i].Rect.Min.Y < ks[j].Rect.Min.Y
	})
}
