package keys

import (
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"github.com/alextompkins/piano-vision/internal/imgproc"
)

// mergeDistance is the largest gap between two detected boundaries that are
// still treated as the same physical boundary.
const mergeDistance = 5

// findWhiteKeys locates white-key boundaries in a band near the bottom of the
// rectified keyboard, where only the gaps between white keys are visible.
func findWhiteKeys(ref gocv.Mat) []Key {
	h, w := ref.Rows(), ref.Cols()
	top := h - int(math.Round(float64(h)/3.5))
	bottom := h - int(math.Round(float64(h)/16))
	if bottom <= top || w == 0 {
		return whiteKeysFromBoundaries([]int{0, w}, h)
	}

	region := ref.Region(image.Rect(0, top, w, bottom))
	band := region.Clone()
	region.Close()
	defer band.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(band, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 10, 30)

	data := edges.ToBytes()
	for row := 0; row < edges.Rows(); row++ {
		suppressDuplicateEdges(data[row*w : (row+1)*w])
	}
	thinned, err := gocv.NewMatFromBytes(edges.Rows(), w, gocv.MatTypeCV8U, data)
	if err != nil {
		return whiteKeysFromBoundaries([]int{0, w}, h)
	}
	defer thinned.Close()

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(thinned, &lines, 1, math.Pi/180, 2, 5, 5)

	boundaries := []int{0, w}
	for _, seg := range imgproc.ReadLines(lines) {
		dx := seg[1].X - seg[0].X
		dy := seg[1].Y - seg[0].Y
		if abs(dx) > abs(dy) {
			continue
		}
		mid := int(math.Round(float64(seg[0].X+seg[1].X) / 2))
		if mid > 0 && mid < w {
			boundaries = append(boundaries, mid)
		}
	}

	return whiteKeysFromBoundaries(mergeBoundaries(boundaries, w), h)
}

// suppressDuplicateEdges thins one row of an edge image so that each physical
// boundary leaves a single edge pixel. Two edges two pixels apart collapse to
// the pixel between them; adjacent edges keep the right-hand one.
func suppressDuplicateEdges(row []byte) {
	for col := range row {
		v := row[col]
		if v == 0 {
			continue
		}
		if col < len(row)-3 && row[col+2] != 0 {
			row[col+1] = v
			row[col+2] = 0
			row[col] = 0
		}
		if col < len(row)-2 && row[col+1] != 0 {
			row[col] = 0
		}
	}
}

// mergeBoundaries sorts and deduplicates positions, then replaces every run
// of positions closer than mergeDistance with its median. Runs touching the
// image edges snap to 0 and width.
func mergeBoundaries(positions []int, width int) []int {
	if len(positions) == 0 {
		return nil
	}
	sorted := make([]int, len(positions))
	copy(sorted, positions)
	sort.Ints(sorted)

	var merged []int
	cluster := []float64{float64(sorted[0])}
	flush := func() {
		first, last := cluster[0], cluster[len(cluster)-1]
		switch {
		case first == 0:
			merged = append(merged, 0)
		case int(last) == width:
			merged = append(merged, width)
		default:
			m, _ := imgproc.Median(cluster)
			merged = append(merged, int(m))
		}
	}

	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			continue
		}
		if sorted[i]-sorted[i-1] <= mergeDistance {
			cluster = append(cluster, float64(sorted[i]))
			continue
		}
		flush()
		cluster = []float64{float64(sorted[i])}
	}
	flush()
	return merged
}

// whiteKeysFromBoundaries turns consecutive boundary pairs into full-height keys.
func whiteKeysFromBoundaries(boundaries []int, height int) []Key {
	keys := make([]Key, 0, len(boundaries))
	for i := 0; i+1 < len(boundaries); i++ {
		if boundaries[i+1] <= boundaries[i] || height <= 0 {
			continue
		}
		keys = append(keys, Key{Rect: image.Rect(boundaries[i], 0, boundaries[i+1], height)})
	}
	return keys
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
