// Package capture provides frame sources (video files, cameras and still
// images) using GoCV (OpenCV), plus helpers for deciding when the scene is
// still enough to calibrate on.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultCameraWidth  = 1280
	DefaultCameraHeight = 720
	DefaultCameraFPS    = 30
)

var (
	// ErrSourceNotOpen is returned when reading from a source that is not open.
	ErrSourceNotOpen = errors.New("source is not open")
	// ErrEndOfStream is returned once a finite source has no more frames.
	ErrEndOfStream = errors.New("end of stream")
)

// Source is a sequential supplier of BGR frames.
type Source interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller owns the returned Mat.
	ReadFrame() (*gocv.Mat, error)
	FPS() float64
	// FrameCount is the total number of frames, or -1 for live sources.
	FrameCount() int
	IsOpen() bool
}

type videoSource struct {
	name    string
	live    bool
	open    func() (*gocv.VideoCapture, error)
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
}

// NewVideoFile returns a Source reading frames from a video file.
func NewVideoFile(path string) Source {
	return &videoSource{
		name: path,
		open: func() (*gocv.VideoCapture, error) {
			return gocv.VideoCaptureFile(path)
		},
	}
}

// NewCamera returns a live Source for the given camera device.
func NewCamera(deviceID int) Source {
	return &videoSource{
		name: fmt.Sprintf("camera %d", deviceID),
		live: true,
		open: func() (*gocv.VideoCapture, error) {
			vc, err := gocv.OpenVideoCapture(deviceID)
			if err != nil {
				return nil, err
			}
			vc.Set(gocv.VideoCaptureFrameWidth, DefaultCameraWidth)
			vc.Set(gocv.VideoCaptureFrameHeight, DefaultCameraHeight)
			vc.Set(gocv.VideoCaptureFPS, DefaultCameraFPS)
			return vc, nil
		},
	}
}

func (s *videoSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	vc, err := s.open()
	if err != nil {
		return fmt.Errorf("open %s: %w", s.name, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("open %s: capture not opened", s.name)
	}

	s.capture = vc
	s.running = true
	return nil
}

func (s *videoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		s.running = false
		return nil
	}

	err := s.capture.Close()
	s.capture = nil
	s.running = false
	return err
}

func (s *videoSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		if s.live {
			return nil, fmt.Errorf("read %s: no frame", s.name)
		}
		return nil, ErrEndOfStream
	}

	return &mat, nil
}

func (s *videoSource) FPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return 0
	}
	return s.capture.Get(gocv.VideoCaptureFPS)
}

func (s *videoSource) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live || s.capture == nil {
		return -1
	}
	n := int(s.capture.Get(gocv.VideoCaptureFrameCount))
	if n <= 0 {
		return -1
	}
	return n
}

func (s *videoSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// LoadImage reads a still image, such as a reference photo of the empty
// keyboard, as a BGR Mat.
func LoadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("load image %s: unreadable or empty", path)
	}
	return img, nil
}
