package hands

import (
	"image"

	"gocv.io/x/gocv"
)

// MockFinder is a test implementation of the Finder interface.
// It returns an empty mask sized to the frame plus preset fingertips.
type MockFinder struct {
	fingertips [][]image.Point
	err        error
}

// NewMockFinder creates a new MockFinder instance.
func NewMockFinder() *MockFinder {
	return &MockFinder{}
}

// SetFingertips sets the fingertips that will be returned by Find.
func (m *MockFinder) SetFingertips(tips ...[]image.Point) {
	m.fingertips = tips
}

// SetError sets the error that will be returned by Find.
func (m *MockFinder) SetError(err error) {
	m.err = err
}

// Find returns the pre-configured fingertips or error.
func (m *MockFinder) Find(frame gocv.Mat) (Hands, error) {
	if m.err != nil {
		return Hands{}, m.err
	}
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), frame.Rows(), frame.Cols(), gocv.MatTypeCV8U)
	return Hands{Mask: mask, Fingertips: m.fingertips}, nil
}
