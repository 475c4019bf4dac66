package imgproc

import (
	"image"
	"math"
	"testing"
)

func TestClusterPoints(t *testing.T) {
	tests := []struct {
		name      string
		points    []image.Point
		maxDist   float64
		wantSizes []int
	}{
		{
			name:      "empty",
			points:    nil,
			maxDist:   5,
			wantSizes: nil,
		},
		{
			name:      "all far apart",
			points:    []image.Point{{0, 0}, {100, 0}, {0, 100}},
			maxDist:   5,
			wantSizes: []int{1, 1, 1},
		},
		{
			name:      "two groups",
			points:    []image.Point{{0, 0}, {3, 0}, {50, 50}, {52, 51}, {1, 2}},
			maxDist:   5,
			wantSizes: []int{3, 2},
		},
		{
			name:      "chained links join",
			points:    []image.Point{{0, 0}, {4, 0}, {8, 0}, {12, 0}},
			maxDist:   4,
			wantSizes: []int{4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clusters := ClusterPoints(tt.points, tt.maxDist)
			if len(clusters) != len(tt.wantSizes) {
				t.Fatalf("got %d clusters, want %d", len(clusters), len(tt.wantSizes))
			}
			for i, c := range clusters {
				if len(c) != tt.wantSizes[i] {
					t.Errorf("cluster %d has %d points, want %d", i, len(c), tt.wantSizes[i])
				}
			}
		})
	}
}

func TestMeanPoint(t *testing.T) {
	got := MeanPoint([]image.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}})
	if got != image.Pt(5, 5) {
		t.Errorf("MeanPoint = %v, want (5,5)", got)
	}

	if got := MeanPoint(nil); got != (image.Point{}) {
		t.Errorf("MeanPoint(nil) = %v, want zero point", got)
	}
}

func TestNearestIndex(t *testing.T) {
	points := []image.Point{{0, 0}, {10, 10}, {20, 0}}

	if got := NearestIndex(points, image.Pt(18, 2)); got != 2 {
		t.Errorf("NearestIndex = %d, want 2", got)
	}
	if got := NearestIndex(nil, image.Pt(1, 1)); got != -1 {
		t.Errorf("NearestIndex(empty) = %d, want -1", got)
	}
}

func TestMeanStdDev(t *testing.T) {
	mean, std, ok := MeanStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if !ok {
		t.Fatal("expected ok for non-empty input")
	}
	if math.Abs(mean-5) > 1e-9 {
		t.Errorf("mean = %f, want 5", mean)
	}
	// Population standard deviation
	if math.Abs(std-2) > 1e-9 {
		t.Errorf("std = %f, want 2", std)
	}

	if _, _, ok := MeanStdDev(nil); ok {
		t.Error("expected ok=false for empty input")
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		values []float64
		want   float64
	}{
		{[]float64{3, 1, 2}, 2},
		{[]float64{5}, 5},
		{[]float64{-10, 0, 10, 20, 30}, 10},
		{[]float64{103, 100}, 101.5},
		{[]float64{20, 24, 28, 32}, 26},
	}
	for _, tt := range tests {
		got, ok := Median(tt.values)
		if !ok {
			t.Fatalf("Median(%v) not ok", tt.values)
		}
		if got != tt.want {
			t.Errorf("Median(%v) = %f, want %f", tt.values, got, tt.want)
		}
	}

	if _, ok := Median(nil); ok {
		t.Error("expected ok=false for empty input")
	}
}

func TestCentroid(t *testing.T) {
	t.Run("square", func(t *testing.T) {
		square := []image.Point{{10, 10}, {30, 10}, {30, 30}, {10, 30}}
		c, ok := Centroid(square)
		if !ok {
			t.Fatal("expected ok for square")
		}
		if c != image.Pt(20, 20) {
			t.Errorf("Centroid = %v, want (20,20)", c)
		}
	})

	t.Run("orientation does not matter", func(t *testing.T) {
		square := []image.Point{{10, 10}, {10, 30}, {30, 30}, {30, 10}}
		c, ok := Centroid(square)
		if !ok || c != image.Pt(20, 20) {
			t.Errorf("Centroid = %v ok=%v, want (20,20)", c, ok)
		}
	})

	t.Run("zero area line", func(t *testing.T) {
		line := []image.Point{{0, 0}, {5, 0}, {10, 0}}
		if _, ok := Centroid(line); ok {
			t.Error("expected ok=false for a degenerate region")
		}
	})

	t.Run("too few points", func(t *testing.T) {
		if _, ok := Centroid([]image.Point{{1, 1}}); ok {
			t.Error("expected ok=false for a single point")
		}
	})
}
