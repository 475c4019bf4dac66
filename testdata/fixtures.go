// Package testdata draws synthetic keyboard frames for tests. Every image is
// generated in memory so tests do not depend on recorded video.
package testdata

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Geometry of the synthetic keyboard: two octaves starting at C.
const (
	WhiteKeys      = 14
	WhiteWidth     = 40
	KeyboardWidth  = WhiteKeys * WhiteWidth
	KeyboardHeight = 200
	BlackWidth     = 24
	BlackHeight    = KeyboardHeight * 3 / 5

	SceneWidth  = 720
	SceneHeight = 360
	SceneX      = 80
	SceneY      = 80
)

var (
	white     = color.RGBA{255, 255, 255, 0}
	separator = color.RGBA{220, 220, 220, 0}
	black     = color.RGBA{0, 0, 0, 0}
	shadow    = color.RGBA{90, 90, 90, 0}
	highlight = color.RGBA{160, 160, 160, 0}

	// Skin is drawn as BGR (80,120,200) in gocv's RGBA-to-BGR mapping.
	Skin = color.RGBA{200, 120, 80, 0}
)

// blackAfter lists the white-key positions within an octave (C=0) whose
// right-hand boundary carries a black key.
var blackAfter = map[int]bool{0: true, 1: true, 3: true, 4: true, 5: true}

// WhiteNames lists the expected labels of the white keys from left to right.
var WhiteNames = []string{
	"C1", "D1", "E1", "F1", "G1", "A1", "B1",
	"C2", "D2", "E2", "F2", "G2", "A2", "B2",
}

// BlackNames lists the expected labels of the black keys from left to right.
var BlackNames = []string{
	"C#1", "D#1", "F#1", "G#1", "A#1",
	"C#2", "D#2", "F#2", "G#2", "A#2",
}

// WhiteRect returns the rectangle of the i-th white key in keyboard coordinates.
func WhiteRect(i int) image.Rectangle {
	return image.Rect(i*WhiteWidth, 0, (i+1)*WhiteWidth, KeyboardHeight)
}

// BlackRects returns the black key rectangles in keyboard coordinates.
func BlackRects() []image.Rectangle {
	var rects []image.Rectangle
	for i := 0; i < WhiteKeys-1; i++ {
		if !blackAfter[i%7] {
			continue
		}
		x := (i + 1) * WhiteWidth
		rects = append(rects, image.Rect(x-BlackWidth/2, 0, x+BlackWidth/2, BlackHeight))
	}
	return rects
}

// Keyboard draws the rectified keyboard. The caller owns the returned Mat.
func Keyboard() gocv.Mat {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), KeyboardHeight, KeyboardWidth, gocv.MatTypeCV8UC3)
	drawKeyboard(&img, image.Pt(0, 0))
	return img
}

// Scene draws the keyboard on a dark backdrop at (SceneX, SceneY) and returns
// the frame and the keyboard's rectangle within it.
func Scene() (gocv.Mat, image.Rectangle) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 40, 40, 0), SceneHeight, SceneWidth, gocv.MatTypeCV8UC3)
	drawKeyboard(&img, image.Pt(SceneX, SceneY))
	return img, image.Rect(SceneX, SceneY, SceneX+KeyboardWidth, SceneY+KeyboardHeight)
}

// Blank returns a dark frame without any keyboard.
func Blank() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 40, 40, 0), SceneHeight, SceneWidth, gocv.MatTypeCV8UC3)
}

func drawKeyboard(img *gocv.Mat, origin image.Point) {
	gocv.Rectangle(img, image.Rect(0, 0, KeyboardWidth, KeyboardHeight).Add(origin), white, -1)
	for i := 1; i < WhiteKeys; i++ {
		x := i * WhiteWidth
		gocv.Rectangle(img, image.Rect(x-1, 0, x+1, KeyboardHeight).Add(origin), separator, -1)
	}
	for _, r := range BlackRects() {
		gocv.Rectangle(img, r.Add(origin), black, -1)
	}
}

// PressShadow darkens a thin vertical stripe in the lower half of a white key,
// the way a depressed key shades its neighbours' edges.
func PressShadow(img *gocv.Mat, key image.Rectangle) {
	cx := (key.Min.X + key.Max.X) / 2
	stripe := image.Rect(cx-3, key.Max.Y-80, cx+3, key.Max.Y-20)
	gocv.Rectangle(img, stripe, shadow, -1)
}

// PressHighlight lightens a thin vertical stripe in a black key.
func PressHighlight(img *gocv.Mat, key image.Rectangle) {
	cx := (key.Min.X + key.Max.X) / 2
	stripe := image.Rect(cx-3, key.Min.Y+20, cx+3, key.Max.Y-20)
	gocv.Rectangle(img, stripe, highlight, -1)
}

// DrawHand paints a skin-coloured palm with four raised fingers whose
// tips reach up to top. It returns the x-centre of each finger.
func DrawHand(img *gocv.Mat, center image.Point, top int) []int {
	gocv.Circle(img, center, 40, Skin, -1)

	fingers := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		x := center.X - 42 + i*24
		gocv.Rectangle(img, image.Rect(x, top, x+12, center.Y), Skin, -1)
		fingers = append(fingers, x+6)
	}
	return fingers
}

// SkinMask returns an empty single-channel mask the size of img.
func SkinMask(img gocv.Mat) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), img.Rows(), img.Cols(), gocv.MatTypeCV8U)
}

// WriteImage encodes img to path. The format follows the file extension.
func WriteImage(path string, img gocv.Mat) error {
	if ok := gocv.IMWrite(path, img); !ok {
		return fmt.Errorf("write image %s", path)
	}
	return nil
}
