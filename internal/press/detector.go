package press

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/alextompkins/piano-vision/internal/imgproc"
	"github.com/alextompkins/piano-vision/internal/keys"
)

var (
	// ErrEmptyReference is returned when the detector is built without a reference image.
	ErrEmptyReference = errors.New("press: empty reference image")

	// ErrSizeMismatch is returned when a frame or mask does not match the reference size.
	ErrSizeMismatch = errors.New("press: frame size does not match reference")
)

// Config holds configuration options for press detection.
type Config struct {
	// MinContourArea discards smaller difference regions, in square pixels (default: 100).
	MinContourArea float64

	// Stickiness is the number of consecutive frames needed to press or
	// release a key (default: 2).
	Stickiness int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinContourArea: 100,
		Stickiness:     2,
	}
}

// KeyTransition records a key entering or leaving the pressed set.
type KeyTransition struct {
	Key     keys.Key
	Pressed bool
}

// Result is the outcome of one Detect call.
type Result struct {
	// Pressed is the debounced pressed set, ordered by x.
	Pressed []keys.Key
	// Active is the raw set of keys nominated this frame.
	Active []keys.Key
	// Centroids are the centres of the difference regions.
	Centroids []image.Point
	// Transitions lists keys pressed or released by this frame.
	Transitions []KeyTransition
}

// Detector compares frames against a fixed reference keyboard image.
// It owns the press state for one layout and is not safe for concurrent use.
type Detector struct {
	cfg       Config
	layout    *keys.Layout
	reference gocv.Mat
	debounce  *Debouncer[image.Rectangle]
}

// NewDetector creates a Detector for the rectified reference image and its
// layout. The reference is copied.
func NewDetector(reference gocv.Mat, layout *keys.Layout, cfg Config) (*Detector, error) {
	if reference.Empty() {
		return nil, ErrEmptyReference
	}
	def := DefaultConfig()
	if cfg.MinContourArea <= 0 {
		cfg.MinContourArea = def.MinContourArea
	}
	if cfg.Stickiness <= 0 {
		cfg.Stickiness = def.Stickiness
	}
	return &Detector{
		cfg:       cfg,
		layout:    layout,
		reference: reference.Clone(),
		debounce:  NewDebouncer[image.Rectangle](cfg.Stickiness),
	}, nil
}

// Detect finds the keys pressed in frame. skinMask may be empty, meaning no
// skin. When fingertips is non-empty, only keys containing a fingertip are
// nominated.
func (d *Detector) Detect(frame, skinMask gocv.Mat, fingertips []image.Point) (Result, error) {
	if frame.Rows() != d.reference.Rows() || frame.Cols() != d.reference.Cols() {
		return Result{}, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrSizeMismatch,
			frame.Cols(), frame.Rows(), d.reference.Cols(), d.reference.Rows())
	}

	var mask gocv.Mat
	if skinMask.Empty() {
		mask = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), frame.Rows(), frame.Cols(), gocv.MatTypeCV8U)
	} else {
		if skinMask.Rows() != frame.Rows() || skinMask.Cols() != frame.Cols() {
			return Result{}, fmt.Errorf("%w: skin mask is %dx%d", ErrSizeMismatch, skinMask.Cols(), skinMask.Rows())
		}
		// Dilate again so no fringe of skin survives into the diff.
		mask = skinMask.Clone()
		kernel := imgproc.EllipseKernel(5)
		imgproc.DilateN(&mask, kernel, 1)
		kernel.Close()
	}
	defer mask.Close()

	current := imgproc.EraseMask(frame, mask)
	defer current.Close()
	reference := imgproc.EraseMask(d.reference, mask)
	defer reference.Close()

	diff := Diff(current, reference)
	defer diff.Close()

	centroids := d.regions(diff)
	active := d.nominate(centroids, fingertips)

	ids := make([]image.Rectangle, len(active))
	for i, k := range active {
		ids[i] = k.ID()
	}

	var transitions []KeyTransition
	for _, t := range d.debounce.Update(ids) {
		if k, ok := d.layout.Lookup(t.Key); ok {
			transitions = append(transitions, KeyTransition{Key: k, Pressed: t.Pressed})
		}
	}

	return Result{
		Pressed:     d.pressed(),
		Active:      active,
		Centroids:   centroids,
		Transitions: transitions,
	}, nil
}

// Diff returns the cleaned binary difference between two same-sized colour
// images. The caller owns the returned Mat.
func Diff(frame, reference gocv.Mat) gocv.Mat {
	absDiff := gocv.NewMat()
	defer absDiff.Close()
	gocv.AbsDiff(frame, reference, &absDiff)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(absDiff, &gray, gocv.ColorBGRToGray)

	out := gocv.NewMat()
	gocv.AdaptiveThreshold(gray, &out, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinaryInv, 11, 10)

	small := imgproc.EllipseKernel(5)
	defer small.Close()
	imgproc.DilateN(&out, small, 2)
	imgproc.ErodeN(&out, small, 2)

	large := imgproc.EllipseKernel(10)
	defer large.Close()
	gocv.MorphologyEx(out, &out, gocv.MorphOpen, large)
	gocv.MorphologyEx(out, &out, gocv.MorphClose, large)
	return out
}

func (d *Detector) regions(diff gocv.Mat) []image.Point {
	pv := gocv.FindContours(diff, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer pv.Close()

	var centroids []image.Point
	for i := 0; i < pv.Size(); i++ {
		if gocv.ContourArea(pv.At(i)) < d.cfg.MinContourArea {
			continue
		}
		if c, ok := imgproc.Centroid(pv.At(i).ToPoints()); ok {
			centroids = append(centroids, c)
		}
	}
	return centroids
}

func (d *Detector) nominate(centroids, fingertips []image.Point) []keys.Key {
	seen := make(map[image.Rectangle]bool)
	var active []keys.Key
	for _, c := range centroids {
		for _, k := range d.layout.Containing(c) {
			if seen[k.ID()] || !touched(k, fingertips) {
				continue
			}
			seen[k.ID()] = true
			active = append(active, k)
		}
	}
	keys.Sort(active)
	return active
}

func touched(k keys.Key, fingertips []image.Point) bool {
	if len(fingertips) == 0 {
		return true
	}
	for _, p := range fingertips {
		if k.Contains(p) {
			return true
		}
	}
	return false
}

func (d *Detector) pressed() []keys.Key {
	var out []keys.Key
	for _, id := range d.debounce.Pressed() {
		if k, ok := d.layout.Lookup(id); ok {
			out = append(out, k)
		}
	}
	keys.Sort(out)
	return out
}

// State returns the debounce state of k.
func (d *Detector) State(k keys.Key) State {
	return d.debounce.State(k.ID())
}

// Reset returns every key to Unpressed.
func (d *Detector) Reset() {
	d.debounce.Reset()
}

// Close releases the reference image.
func (d *Detector) Close() error {
	return d.reference.Close()
}
