package keys

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/alextompkins/piano-vision/internal/imgproc"
)

// findBlackKeys isolates dark blobs in the top three quarters of the
// rectified keyboard and returns their bounding rectangles.
func findBlackKeys(ref gocv.Mat) []Key {
	h, w := ref.Rows(), ref.Cols()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(ref, &gray, gocv.ColorBGRToGray)

	blur := gocv.NewMat()
	defer blur.Close()
	gocv.GaussianBlur(gray, &blur, image.Pt(3, 3), 0, 0, gocv.BorderDefault)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.AdaptiveThreshold(blur, &thresh, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinaryInv, 99, 40)

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), h, w, gocv.MatTypeCV8U)
	defer mask.Close()
	gocv.Rectangle(&mask, image.Rect(0, 0, w, h-int(math.Round(float64(h)/4))), color.RGBA{255, 255, 255, 0}, -1)

	masked := imgproc.ApplyMask(thresh, mask)
	defer masked.Close()

	pv := gocv.FindContours(masked, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer pv.Close()

	areas := make([]float64, pv.Size())
	for i := 0; i < pv.Size(); i++ {
		areas[i] = gocv.ContourArea(pv.At(i))
	}
	mean, std, ok := imgproc.MeanStdDev(areas)
	if !ok {
		return nil
	}

	var keys []Key
	for i := 0; i < pv.Size(); i++ {
		if areas[i] < mean-2*std {
			continue
		}
		rect := gocv.BoundingRect(pv.At(i))
		if rect.Dx() <= 0 || rect.Dy() <= 0 {
			continue
		}
		keys = append(keys, Key{Rect: rect, Black: true})
	}
	return keys
}
