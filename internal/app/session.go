package app

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/alextompkins/piano-vision/internal/hands"
	"github.com/alextompkins/piano-vision/internal/imgproc"
	"github.com/alextompkins/piano-vision/internal/keyboard"
	"github.com/alextompkins/piano-vision/internal/keys"
	"github.com/alextompkins/piano-vision/internal/overlay"
	"github.com/alextompkins/piano-vision/internal/press"
)

// ErrNotCalibrated is returned when a frame is processed before any
// reference frame has been calibrated.
var ErrNotCalibrated = errors.New("session is not calibrated")

// Processor turns one frame into the keys pressed at that instant.
type Processor interface {
	Process(frame gocv.Mat) (FrameResult, error)
}

// FrameResult is the outcome of processing one frame.
type FrameResult struct {
	// Index is the 1-based position of the frame in its source.
	Index int
	// Pressed is the debounced pressed set in keyboard order.
	Pressed     []keys.Key
	Active      []keys.Key
	Centroids   []image.Point
	Fingertips  []image.Point
	Transitions []press.KeyTransition
}

// Calibration describes the reference frame a Session is working from.
type Calibration struct {
	Angle  float64
	Bounds keyboard.Bounds
	Layout *keys.Layout
	At     time.Time
}

// Session owns the calibration and press state for one keyboard. All
// methods are safe for concurrent use; Recalibrate swaps the layout and
// resets press state atomically with respect to Process.
type Session struct {
	cfg     Config
	bounder *keyboard.Bounder
	finder  hands.Finder
	logger  *slog.Logger

	mu       sync.Mutex
	cal      *Calibration
	detector *press.Detector
}

// NewSession creates an uncalibrated Session. A nil finder uses skin
// colour detection.
func NewSession(cfg Config, finder hands.Finder) *Session {
	cfg = cfg.withDefaults()
	if finder == nil {
		finder = hands.NewSkinFinder(cfg.Hands)
	}
	return &Session{
		cfg:     cfg,
		bounder: keyboard.NewBounder(cfg.Keyboard),
		finder:  finder,
		logger:  cfg.Logger,
	}
}

// Recalibrate locates the keyboard in frame, segments and labels its keys
// and replaces the current layout. Press state starts over. On error the
// previous calibration stays in place.
func (s *Session) Recalibrate(frame gocv.Mat) (Calibration, error) {
	if frame.Empty() {
		return Calibration{}, fmt.Errorf("recalibrate: empty frame")
	}

	angle, err := s.bounder.FindRotation(frame)
	switch {
	case errors.Is(err, keyboard.ErrGeometryNotFound):
		s.logger.Warn("no keyboard edges found, assuming level", "err", err)
		angle = 0
	case err != nil:
		return Calibration{}, fmt.Errorf("find rotation: %w", err)
	}
	if math.Abs(angle) <= s.cfg.MinTilt {
		angle = 0
	}

	upright := frame
	if angle != 0 {
		upright = imgproc.Rotate(frame, angle)
		defer upright.Close()
	}

	bounds, err := s.bounder.FindBounds(upright)
	if err != nil {
		return Calibration{}, fmt.Errorf("find keyboard: %w", err)
	}

	reference, err := s.bounder.BoundedSection(upright, bounds)
	if err != nil {
		return Calibration{}, fmt.Errorf("rectify keyboard: %w", err)
	}
	defer reference.Close()

	layout, err := keys.NewLayout(reference)
	if err != nil {
		return Calibration{}, fmt.Errorf("build layout: %w", err)
	}

	detector, err := press.NewDetector(reference, layout, s.cfg.Press)
	if err != nil {
		return Calibration{}, fmt.Errorf("build detector: %w", err)
	}

	cal := Calibration{Angle: angle, Bounds: bounds, Layout: layout, At: time.Now()}

	s.mu.Lock()
	previous := s.detector
	s.detector = detector
	s.cal = &cal
	s.mu.Unlock()

	if previous != nil {
		previous.Close()
	}

	s.logger.Info("calibrated",
		"angle", angle,
		"bounds", bounds.Rect(),
		"white", len(layout.White),
		"black", len(layout.Black),
		"labeled", layout.Labeled(),
	)
	if layout.Labeled() == 0 && len(layout.White) > 0 {
		s.logger.Warn("keys could not be labeled, output will use placeholders")
	}

	return cal, nil
}

// Calibration returns the current calibration.
func (s *Session) Calibration() (Calibration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cal == nil {
		return Calibration{}, false
	}
	return *s.cal, true
}

// Calibrated reports whether a reference frame has been calibrated.
func (s *Session) Calibrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cal != nil
}

// Process implements Processor. Index is left for the caller to set.
func (s *Session) Process(frame gocv.Mat) (FrameResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.detector == nil {
		return FrameResult{}, ErrNotCalibrated
	}

	kb, err := s.rectify(frame)
	if err != nil {
		return FrameResult{}, err
	}
	defer kb.Close()

	found, err := s.finder.Find(kb)
	if err != nil {
		return FrameResult{}, fmt.Errorf("find hands: %w", err)
	}
	defer found.Close()

	tips := found.AllFingertips()
	res, err := s.detector.Detect(kb, found.Mask, tips)
	if err != nil {
		return FrameResult{}, err
	}

	return FrameResult{
		Pressed:     res.Pressed,
		Active:      res.Active,
		Centroids:   res.Centroids,
		Fingertips:  tips,
		Transitions: res.Transitions,
	}, nil
}

// Render returns the rectified keyboard of frame with the layout and
// result drawn over it. The caller owns the returned Mat.
func (s *Session) Render(frame gocv.Mat, res FrameResult) (gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cal == nil {
		return gocv.NewMat(), ErrNotCalibrated
	}
	kb, err := s.rectify(frame)
	if err != nil {
		return gocv.NewMat(), err
	}
	overlay.Draw(&kb, s.cal.Layout, overlay.Annotations{
		Pressed:    res.Pressed,
		Centroids:  res.Centroids,
		Fingertips: res.Fingertips,
	})
	return kb, nil
}

// rectify applies the calibrated rotation and perspective crop. Callers
// hold s.mu.
func (s *Session) rectify(frame gocv.Mat) (gocv.Mat, error) {
	upright := frame
	if s.cal.Angle != 0 {
		upright = imgproc.Rotate(frame, s.cal.Angle)
		defer upright.Close()
	}
	return s.bounder.BoundedSection(upright, s.cal.Bounds)
}

// Reset clears press state without changing the calibration.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detector != nil {
		s.detector.Reset()
	}
}

// Close releases the detector's reference image.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detector == nil {
		return nil
	}
	err := s.detector.Close()
	s.detector = nil
	s.cal = nil
	return err
}
