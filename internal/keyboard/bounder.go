// Package keyboard locates a piano keyboard in a frame, measures its tilt and
// rectifies it into an upright keyboard-plane image.
package keyboard

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/alextompkins/piano-vision/internal/imgproc"
)

// ErrGeometryNotFound is returned when the keyboard cannot be located, its
// bounds are degenerate or no edge lines are available to measure tilt.
var ErrGeometryNotFound = errors.New("keyboard: geometry not found")

// Config holds the thresholds used to find the keyboard.
type Config struct {
	// Offset insets the top corners horizontally to trim overhang (default: 25).
	Offset int

	// WhiteLower and WhiteUpper bound near-white pixels in HSV.
	WhiteLower gocv.Scalar
	WhiteUpper gocv.Scalar
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Offset:     25,
		WhiteLower: gocv.NewScalar(0, 0, 240, 0),
		WhiteUpper: gocv.NewScalar(255, 30, 255, 0),
	}
}

// Bounds is the axis-aligned quadrilateral enclosing the keyboard in an
// un-rectified frame.
type Bounds struct {
	TopLeft     image.Point `json:"top_left"`
	TopRight    image.Point `json:"top_right"`
	BottomLeft  image.Point `json:"bottom_left"`
	BottomRight image.Point `json:"bottom_right"`
}

// BoundsFromRect converts a rectangle into four-corner bounds.
func BoundsFromRect(r image.Rectangle) Bounds {
	return Bounds{
		TopLeft:     r.Min,
		TopRight:    image.Pt(r.Max.X, r.Min.Y),
		BottomLeft:  image.Pt(r.Min.X, r.Max.Y),
		BottomRight: r.Max,
	}
}

// Rect returns the rectangle spanned by the bounds.
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.TopLeft.X, b.TopLeft.Y, b.TopRight.X, b.BottomLeft.Y)
}

// Width returns maxX - minX.
func (b Bounds) Width() int { return b.TopRight.X - b.TopLeft.X }

// Height returns maxY - minY.
func (b Bounds) Height() int { return b.BottomLeft.Y - b.TopLeft.Y }

// Validate rejects bounds with non-positive width or height.
func (b Bounds) Validate() error {
	if b.Width() <= 0 || b.Height() <= 0 {
		return fmt.Errorf("%w: degenerate bounds %v", ErrGeometryNotFound, b.Rect())
	}
	return nil
}

// Bounder finds and rectifies the keyboard. It holds no per-frame state and
// is safe for concurrent use.
type Bounder struct {
	cfg Config
}

// NewBounder creates a Bounder. A negative offset is treated as zero.
func NewBounder(cfg Config) *Bounder {
	if cfg.Offset < 0 {
		cfg.Offset = 0
	}
	if cfg.WhiteUpper == (gocv.Scalar{}) {
		def := DefaultConfig()
		cfg.WhiteLower = def.WhiteLower
		cfg.WhiteUpper = def.WhiteUpper
	}
	return &Bounder{cfg: cfg}
}

// FindRotation returns the median angle, in degrees from horizontal, of the
// long straight edges in frame. Lines steeper than 45 degrees are key
// boundaries rather than keyboard edges and are ignored.
func (b *Bounder) FindRotation(frame gocv.Mat) (float64, error) {
	if frame.Empty() {
		return 0, fmt.Errorf("%w: empty frame", ErrGeometryNotFound)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 100, 200)

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(edges, &lines, 1, math.Pi/180, 150, 100, 50)

	var angles []float64
	for _, seg := range imgproc.ReadLines(lines) {
		if angle, ok := lineAngle(seg[0], seg[1]); ok {
			angles = append(angles, angle)
		}
	}

	median, ok := imgproc.Median(angles)
	if !ok {
		return 0, fmt.Errorf("%w: no edge lines", ErrGeometryNotFound)
	}
	return median, nil
}

// lineAngle returns the angle of the segment p1-p2 from horizontal in
// degrees. ok is false for segments steeper than 45 degrees.
func lineAngle(p1, p2 image.Point) (float64, bool) {
	dx := float64(p2.X - p1.X)
	dy := float64(p2.Y - p1.Y)
	if dx == 0 || math.Abs(dy) > math.Abs(dx) {
		return 0, false
	}
	return math.Atan(dy/dx) * 180 / math.Pi, true
}

// FindBounds returns the bounding rectangle of the largest near-white region
// in frame, which is taken to be the white keys.
func (b *Bounder) FindBounds(frame gocv.Mat) (Bounds, error) {
	if frame.Empty() {
		return Bounds{}, fmt.Errorf("%w: empty frame", ErrGeometryNotFound)
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	white := gocv.NewMat()
	defer white.Close()
	gocv.InRangeWithScalar(hsv, b.cfg.WhiteLower, b.cfg.WhiteUpper, &white)

	kernel := imgproc.EllipseKernel(5)
	defer kernel.Close()
	imgproc.DilateN(&white, kernel, 3)
	imgproc.ErodeN(&white, kernel, 5)
	imgproc.DilateN(&white, kernel, 2)

	pv := gocv.FindContours(white, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer pv.Close()

	largest := -1
	largestArea := 0.0
	for i := 0; i < pv.Size(); i++ {
		if area := gocv.ContourArea(pv.At(i)); largest < 0 || area > largestArea {
			largest = i
			largestArea = area
		}
	}
	if largest < 0 {
		return Bounds{}, fmt.Errorf("%w: no bright region", ErrGeometryNotFound)
	}

	bounds := BoundsFromRect(gocv.BoundingRect(pv.At(largest)))
	if err := bounds.Validate(); err != nil {
		return Bounds{}, err
	}
	return bounds, nil
}

// BoundedSection warps the keyboard region of frame onto an upright
// Width x Height image. The caller owns the returned Mat.
func (b *Bounder) BoundedSection(frame gocv.Mat, bounds Bounds) (gocv.Mat, error) {
	if err := bounds.Validate(); err != nil {
		return gocv.NewMat(), err
	}

	minX, minY := float32(bounds.TopLeft.X), float32(bounds.TopLeft.Y)
	maxX, maxY := float32(bounds.TopRight.X), float32(bounds.BottomLeft.Y)
	w, h := bounds.Width(), bounds.Height()

	off := float32(b.cfg.Offset)
	if 2*b.cfg.Offset >= w {
		off = 0
	}

	pre := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: minX + off, Y: minY},
		{X: maxX - off, Y: minY},
		{X: minX, Y: maxY},
		{X: maxX, Y: maxY},
	})
	defer pre.Close()

	post := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: 0, Y: 0},
		{X: float32(w), Y: 0},
		{X: 0, Y: float32(h)},
		{X: float32(w), Y: float32(h)},
	})
	defer post.Close()

	matrix := gocv.GetPerspectiveTransform2f(pre, post)
	defer matrix.Close()

	dst := gocv.NewMat()
	gocv.WarpPerspective(frame, &dst, matrix, image.Pt(w, h))
	return dst, nil
}
