// Package imgproc provides small, stateless image and geometry helpers shared
// by the keyboard, keys, hands and press packages.
package imgproc

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Distance returns the Euclidean distance between two points.
func Distance(a, b image.Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// ClusterPoints groups points so that every point in a cluster lies within
// maxDist of at least one other point of the same cluster (single-link).
// Clusters are returned in order of their first member.
func ClusterPoints(points []image.Point, maxDist float64) [][]image.Point {
	if len(points) == 0 {
		return nil
	}

	// Union-find over point indices
	parent := make([]int, len(points))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			if Distance(points[i], points[j]) <= maxDist {
				ri, rj := find(i), find(j)
				if ri != rj {
					if ri < rj {
						parent[rj] = ri
					} else {
						parent[ri] = rj
					}
				}
			}
		}
	}

	order := make([]int, 0)
	groups := make(map[int][]image.Point)
	for i, p := range points {
		root := find(i)
		if _, ok := groups[root]; !ok {
			order = append(order, root)
		}
		groups[root] = append(groups[root], p)
	}

	clusters := make([][]image.Point, 0, len(order))
	for _, root := range order {
		clusters = append(clusters, groups[root])
	}
	return clusters
}

// MeanPoint returns the rounded average of the given points.
// The zero point is returned for an empty slice.
func MeanPoint(points []image.Point) image.Point {
	if len(points) == 0 {
		return image.Point{}
	}
	var sx, sy float64
	for _, p := range points {
		sx += float64(p.X)
		sy += float64(p.Y)
	}
	n := float64(len(points))
	return image.Pt(int(math.Round(sx/n)), int(math.Round(sy/n)))
}

// NearestIndex returns the index of the point closest to p, or -1 if points is empty.
func NearestIndex(points []image.Point, p image.Point) int {
	best := -1
	bestDist := math.Inf(1)
	for i, q := range points {
		if d := Distance(p, q); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// MeanStdDev returns the population mean and standard deviation of values.
// ok is false when there are no values.
func MeanStdDev(values []float64) (mean, std float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	mean, std = stat.PopMeanStdDev(values, nil)
	return mean, std, true
}

// Median returns the median of values. For an even count it is the mean of
// the two middle values. ok is false when there are no values.
func Median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	lo := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if len(sorted)%2 == 1 {
		return lo, true
	}
	return (lo + sorted[len(sorted)/2]) / 2, true
}

// Centroid returns the centre of mass of the polygon described by contour,
// computed from its first-order moments. ok is false for regions with zero
// area, where the centroid is undefined.
func Centroid(contour []image.Point) (image.Point, bool) {
	if len(contour) < 3 {
		return image.Point{}, false
	}

	var a, cx, cy float64
	for i := range contour {
		p := contour[i]
		q := contour[(i+1)%len(contour)]
		cross := float64(p.X*q.Y - q.X*p.Y)
		a += cross
		cx += float64(p.X+q.X) * cross
		cy += float64(p.Y+q.Y) * cross
	}
	if math.Abs(a) < 1e-9 {
		return image.Point{}, false
	}

	// a holds twice the signed area
	cx /= 3 * a
	cy /= 3 * a
	return image.Pt(int(cx), int(cy)), true
}
