package keys

import (
	"fmt"
	"image"
)

// Key is a single physical key in the rectified keyboard plane.
type Key struct {
	Rect      image.Rectangle
	Note      Note
	Octave    int
	HasOctave bool
	Black     bool
}

// ID identifies a key by its rectangle. Two keys with the same geometry are
// the same key.
func (k Key) ID() image.Rectangle {
	return k.Rect
}

// Center returns the centre point of the key's rectangle.
func (k Key) Center() image.Point {
	return image.Pt((k.Rect.Min.X+k.Rect.Max.X)/2, (k.Rect.Min.Y+k.Rect.Max.Y)/2)
}

// Contains reports whether p lies strictly inside the key's rectangle.
func (k Key) Contains(p image.Point) bool {
	return k.Rect.Min.X < p.X && p.X < k.Rect.Max.X &&
		k.Rect.Min.Y < p.Y && p.Y < k.Rect.Max.Y
}

// Labeled reports whether both note and octave are resolved.
func (k Key) Labeled() bool {
	return k.Note != NoteUnknown && k.HasOctave
}

// String renders the key as note and octave, e.g. "C#4". A missing octave
// is rendered as '?', so an unlabeled key reads "??".
func (k Key) String() string {
	if k.Note == NoteUnknown {
		return "??"
	}
	if !k.HasOctave {
		return k.Note.String() + "?"
	}
	return fmt.Sprintf("%s%d", k.Note, k.Octave)
}
