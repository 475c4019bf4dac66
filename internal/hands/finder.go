// Package hands isolates skin-coloured regions in a rectified keyboard frame
// and estimates fingertip positions from the hand outlines.
package hands

import (
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"github.com/alextompkins/piano-vision/internal/imgproc"
)

// Finder defines the interface for hand finding implementations.
type Finder interface {
	// Find analyzes a frame and returns the skin mask, hand contours and
	// fingertips. Finding nothing is not an error.
	Find(frame gocv.Mat) (Hands, error)
}

// Hands is the per-frame result of a Finder. Mask is owned by the caller.
type Hands struct {
	Mask       gocv.Mat
	Contours   [][]image.Point
	Fingertips [][]image.Point
}

// Close releases the mask.
func (h *Hands) Close() error {
	return h.Mask.Close()
}

// AllFingertips flattens the per-hand fingertip lists.
func (h Hands) AllFingertips() []image.Point {
	var out []image.Point
	for _, tips := range h.Fingertips {
		out = append(out, tips...)
	}
	return out
}

// Config holds configuration options for skin-based hand finding.
type Config struct {
	// SkinLower and SkinUpper bound skin pixels in HSV.
	SkinLower gocv.Scalar
	SkinUpper gocv.Scalar

	// MaxHands is the maximum number of hand contours kept (default: 2).
	MaxHands int

	// MinHandArea discards smaller blobs, in square pixels.
	MinHandArea float64

	// ClusterDistance merges hull points closer than this, in pixels.
	ClusterDistance float64

	// MaxFingertipAngle is the largest defect angle, in degrees, that still
	// marks a fingertip.
	MaxFingertipAngle float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		SkinLower:         gocv.NewScalar(0, 48, 80, 0),
		SkinUpper:         gocv.NewScalar(200, 255, 255, 0),
		MaxHands:          2,
		MinHandArea:       1500,
		ClusterDistance:   10,
		MaxFingertipAngle: 90,
	}
}

// SkinFinder finds hands by skin colour.
type SkinFinder struct {
	cfg Config
}

// NewSkinFinder creates a SkinFinder, replacing unset values with defaults.
func NewSkinFinder(cfg Config) *SkinFinder {
	def := DefaultConfig()
	if cfg.SkinUpper == (gocv.Scalar{}) {
		cfg.SkinLower = def.SkinLower
		cfg.SkinUpper = def.SkinUpper
	}
	if cfg.MaxHands <= 0 {
		cfg.MaxHands = def.MaxHands
	}
	if cfg.MinHandArea < 0 {
		cfg.MinHandArea = def.MinHandArea
	}
	if cfg.ClusterDistance <= 0 {
		cfg.ClusterDistance = def.ClusterDistance
	}
	if cfg.MaxFingertipAngle <= 0 {
		cfg.MaxFingertipAngle = def.MaxFingertipAngle
	}
	return &SkinFinder{cfg: cfg}
}

// Find implements Finder.
func (f *SkinFinder) Find(frame gocv.Mat) (Hands, error) {
	mask := f.SkinMask(frame)
	contours := f.HandContours(mask)
	return Hands{
		Mask:       mask,
		Contours:   contours,
		Fingertips: f.Fingertips(contours),
	}, nil
}

// SkinMask thresholds frame to skin colours and opens the result to remove
// speckle. The caller owns the returned Mat.
func (f *SkinFinder) SkinMask(frame gocv.Mat) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsv, f.cfg.SkinLower, f.cfg.SkinUpper, &mask)

	kernel := imgproc.EllipseKernel(5)
	defer kernel.Close()
	imgproc.ErodeN(&mask, kernel, 1)
	imgproc.DilateN(&mask, kernel, 1)
	return mask
}

// HandContours returns up to MaxHands of the largest skin contours with at
// least MinHandArea, largest first.
func (f *SkinFinder) HandContours(mask gocv.Mat) [][]image.Point {
	if mask.Empty() {
		return nil
	}

	closed := gocv.NewMat()
	defer closed.Close()
	kernel := imgproc.EllipseKernel(7)
	defer kernel.Close()
	gocv.MorphologyEx(mask, &closed, gocv.MorphClose, kernel)

	pv := gocv.FindContours(closed, gocv.RetrievalList, gocv.ChainApproxSimple)
	defer pv.Close()

	type candidate struct {
		points []image.Point
		area   float64
	}
	var candidates []candidate
	for i := 0; i < pv.Size(); i++ {
		area := gocv.ContourArea(pv.At(i))
		if area < f.cfg.MinHandArea {
			continue
		}
		candidates = append(candidates, candidate{points: pv.At(i).ToPoints(), area: area})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].area > candidates[j].area
	})
	if len(candidates) > f.cfg.MaxHands {
		candidates = candidates[:f.cfg.MaxHands]
	}

	contours := make([][]image.Point, 0, len(candidates))
	for _, c := range candidates {
		contours = append(contours, c.points)
	}
	return contours
}

// Fingertips returns the fingertip candidates of each contour.
func (f *SkinFinder) Fingertips(contours [][]image.Point) [][]image.Point {
	out := make([][]image.Point, 0, len(contours))
	for _, c := range contours {
		out = append(out, f.fingertips(c))
	}
	return out
}

func (f *SkinFinder) fingertips(contour []image.Point) []image.Point {
	if len(contour) < 5 {
		return nil
	}

	pv := gocv.NewPointVectorFromPoints(contour)
	defer pv.Close()

	hull := gocv.NewMat()
	defer hull.Close()
	gocv.ConvexHull(pv, &hull, false, false)

	hullPoints := make([]image.Point, 0, hull.Rows())
	for i := 0; i < hull.Rows(); i++ {
		idx := int(hull.GetIntAt(i, 0))
		if idx >= 0 && idx < len(contour) {
			hullPoints = append(hullPoints, contour[idx])
		}
	}

	// One representative contour index per cluster of hull points.
	seen := make(map[int]bool)
	var indices []int
	for _, cluster := range imgproc.ClusterPoints(hullPoints, f.cfg.ClusterDistance) {
		idx := imgproc.NearestIndex(contour, imgproc.MeanPoint(cluster))
		if idx >= 0 && !seen[idx] {
			seen[idx] = true
			indices = append(indices, idx)
		}
	}
	if len(indices) < 3 {
		return nil
	}
	sort.Ints(indices)

	reduced := gocv.NewMatWithSize(len(indices), 1, gocv.MatTypeCV32S)
	defer reduced.Close()
	for i, idx := range indices {
		reduced.SetIntAt(i, 0, int32(idx))
	}

	defects := gocv.NewMat()
	defer defects.Close()
	gocv.ConvexityDefects(pv, reduced, &defects)

	var tips []image.Point
	added := make(map[image.Point]bool)
	for i := 0; i < defects.Rows(); i++ {
		d := defects.GetVeciAt(i, 0)
		if len(d) < 3 {
			continue
		}
		start, end, far := contour[d[0]], contour[d[1]], contour[d[2]]
		angle, ok := farAngle(start, end, far)
		if !ok || angle >= f.cfg.MaxFingertipAngle {
			continue
		}
		for _, p := range []image.Point{start, end} {
			if !added[p] {
				added[p] = true
				tips = append(tips, p)
			}
		}
	}
	return tips
}

// farAngle returns the angle in degrees at far in the triangle start-end-far,
// using the law of cosines. ok is false when a side adjacent to far has zero
// length.
func farAngle(start, end, far image.Point) (float64, bool) {
	a := imgproc.Distance(start, end)
	b := imgproc.Distance(start, far)
	c := imgproc.Distance(end, far)
	if b == 0 || c == 0 {
		return 0, false
	}
	cos := (b*b + c*c - a*a) / (2 * b * c)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi, true
}
