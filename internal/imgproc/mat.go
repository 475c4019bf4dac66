package imgproc

import (
	"image"

	"gocv.io/x/gocv"
)

// EllipseKernel returns an elliptical structuring element of the given size.
// The caller is responsible for closing the returned Mat.
func EllipseKernel(size int) gocv.Mat {
	return gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(size, size))
}

// DilateN dilates src in place n times with kernel.
func DilateN(src *gocv.Mat, kernel gocv.Mat, n int) {
	for i := 0; i < n; i++ {
		gocv.Dilate(*src, src, kernel)
	}
}

// ErodeN erodes src in place n times with kernel.
func ErodeN(src *gocv.Mat, kernel gocv.Mat, n int) {
	for i := 0; i < n; i++ {
		gocv.Erode(*src, src, kernel)
	}
}

// Rotate rotates img about its centre by angle degrees (counter-clockwise),
// keeping the original size. The caller owns the returned Mat.
func Rotate(img gocv.Mat, angle float64) gocv.Mat {
	center := image.Point{X: img.Cols() / 2, Y: img.Rows() / 2}
	rotMat := gocv.GetRotationMatrix2D(center, angle, 1.0)
	defer rotMat.Close()

	dst := gocv.NewMat()
	gocv.WarpAffine(img, &dst, rotMat, image.Point{X: img.Cols(), Y: img.Rows()})
	return dst
}

// ApplyMask keeps the pixels of src where mask is non-zero and zeroes the rest.
func ApplyMask(src, mask gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.BitwiseAndWithMask(src, src, &dst, mask)
	return dst
}

// EraseMask zeroes the pixels of src where mask is non-zero and keeps the rest.
func EraseMask(src, mask gocv.Mat) gocv.Mat {
	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(mask, &inverted)
	return ApplyMask(src, inverted)
}

// ReadLines returns the segments stored in the output Mat of HoughLinesP
// as (x1, y1) -> (x2, y2) point pairs.
func ReadLines(lines gocv.Mat) [][2]image.Point {
	segments := make([][2]image.Point, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVeciAt(i, 0)
		if len(v) < 4 {
			continue
		}
		segments = append(segments, [2]image.Point{
			image.Pt(int(v[0]), int(v[1])),
			image.Pt(int(v[2]), int(v[3])),
		})
	}
	return segments
}
