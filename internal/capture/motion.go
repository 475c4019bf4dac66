package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// motionBlur is the Gaussian kernel applied before differencing.
	motionBlur = 21
	// motionPixelDelta is the grey-level change that marks a pixel as moved.
	motionPixelDelta = 25
	// DefaultMotionThreshold is the percentage of moved pixels that counts
	// as motion.
	DefaultMotionThreshold = 0.5
)

// MotionDetector compares each frame against the previous one and reports
// the percentage of pixels that changed.
type MotionDetector struct {
	threshold float64
	previous  gocv.Mat
	primed    bool
	mu        sync.Mutex
}

// NewMotionDetector returns a detector that reports motion once more than
// threshold percent of the pixels change. Non-positive thresholds use
// DefaultMotionThreshold.
func NewMotionDetector(threshold float64) *MotionDetector {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	return &MotionDetector{
		threshold: threshold,
		previous:  gocv.NewMat(),
	}
}

// Detect reports whether frame differs from the previous frame by more than
// the threshold, along with the changed percentage. The first frame after
// construction or Reset only primes the detector.
func (m *MotionDetector) Detect(frame gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame.Empty() {
		return false, 0
	}

	blurred := smoothGray(frame)
	defer blurred.Close()

	if !m.primed || blurred.Rows() != m.previous.Rows() || blurred.Cols() != m.previous.Cols() {
		blurred.CopyTo(&m.previous)
		m.primed = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.previous, &diff)
	gocv.Threshold(diff, &diff, motionPixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	blurred.CopyTo(&m.previous)

	return changed > m.threshold, changed
}

func smoothGray(frame gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if frame.Channels() > 1 {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	gocv.GaussianBlur(gray, &gray, image.Pt(motionBlur, motionBlur), 0, 0, gocv.BorderDefault)
	return gray
}

// Threshold returns the motion threshold in percent.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// Reset forgets the previous frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.previous.Close()
	m.previous = gocv.NewMat()
	m.primed = false
}

// Close releases the stored frame. The detector primes itself again if
// used afterwards.
func (m *MotionDetector) Close() {
	m.Reset()
}

// Settler decides when a stream has settled enough to calibrate on: the
// first frame without motion, or the limit-th frame if the scene never
// stops moving.
type Settler struct {
	motion *MotionDetector
	limit  int
	seen   int
}

// NewSettler returns a Settler that gives up waiting after limit frames.
func NewSettler(motion *MotionDetector, limit int) *Settler {
	if limit < 1 {
		limit = 1
	}
	return &Settler{motion: motion, limit: limit}
}

// Observe feeds one frame and reports whether it is the one to calibrate on.
func (s *Settler) Observe(frame gocv.Mat) bool {
	s.seen++
	moving, _ := s.motion.Detect(frame)
	if s.seen >= s.limit {
		return true
	}
	return s.seen > 1 && !moving
}

// Seen returns the number of frames observed since the last Reset.
func (s *Settler) Seen() int {
	return s.seen
}

// Reset starts a new wait.
func (s *Settler) Reset() {
	s.seen = 0
	s.motion.Reset()
}
