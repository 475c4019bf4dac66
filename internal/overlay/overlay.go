// Package overlay renders detection results onto the rectified keyboard
// image and encodes the result for snapshots and the preview stream.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"github.com/alextompkins/piano-vision/internal/keys"
)

var (
	outlineColor   = color.RGBA{0, 160, 255, 0}
	pressedColor   = color.RGBA{0, 200, 0, 0}
	centroidColor  = color.RGBA{255, 0, 0, 0}
	fingertipColor = color.RGBA{255, 0, 255, 0}
	labelColor     = color.RGBA{0, 0, 255, 0}
)

// Annotations are the per-frame marks drawn over the layout.
type Annotations struct {
	Pressed    []keys.Key
	Centroids  []image.Point
	Fingertips []image.Point
}

// Draw outlines every key with its name, fills pressed keys and marks
// difference centroids and fingertips along with the keys under them. img
// is modified in place.
func Draw(img *gocv.Mat, layout *keys.Layout, a Annotations) {
	if layout != nil {
		for _, k := range layout.Keys() {
			gocv.Rectangle(img, k.Rect, outlineColor, 1)
		}
		for _, k := range layout.White {
			at := image.Pt(k.Rect.Min.X+3, k.Rect.Max.Y-6)
			gocv.PutText(img, k.String(), at, gocv.FontHersheyPlain, 0.8, labelColor, 1)
		}
	}

	for _, k := range a.Pressed {
		gocv.Rectangle(img, k.Rect.Inset(2), pressedColor, 2)
	}
	for _, p := range a.Centroids {
		gocv.Circle(img, p, 4, centroidColor, -1)
	}
	for _, k := range Touched(layout, a.Fingertips) {
		gocv.Rectangle(img, k.Rect, fingertipColor, 1)
	}
	for _, p := range a.Fingertips {
		gocv.Circle(img, p, 5, fingertipColor, 2)
	}
}

// Touched returns the keys under the given fingertips, black keys winning
// where they overlap white ones, each listed once in fingertip order.
func Touched(layout *keys.Layout, fingertips []image.Point) []keys.Key {
	if layout == nil {
		return nil
	}
	seen := make(map[image.Rectangle]bool)
	var out []keys.Key
	for _, p := range fingertips {
		k, ok := layout.At(p)
		if !ok || seen[k.ID()] {
			continue
		}
		seen[k.ID()] = true
		out = append(out, k)
	}
	return out
}

// Thumbnail converts img to an image.Image no wider than maxWidth. A
// non-positive maxWidth keeps the original size.
func Thumbnail(img gocv.Mat, maxWidth int) (image.Image, error) {
	if img.Empty() {
		return nil, fmt.Errorf("overlay: empty image")
	}
	src, err := img.ToImage()
	if err != nil {
		return nil, err
	}
	if maxWidth > 0 && src.Bounds().Dx() > maxWidth {
		return imaging.Resize(src, maxWidth, 0, imaging.Lanczos), nil
	}
	return src, nil
}

// EncodeJPEG returns img as JPEG bytes, downscaled to maxWidth.
func EncodeJPEG(img gocv.Mat, maxWidth int) ([]byte, error) {
	thumb, err := Thumbnail(img, maxWidth)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveSnapshot writes img to path. The format follows the extension.
func SaveSnapshot(path string, img gocv.Mat) error {
	thumb, err := Thumbnail(img, 0)
	if err != nil {
		return err
	}
	if err := imaging.Save(thumb, path); err != nil {
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	return nil
}
