package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/alextompkins/piano-vision/internal/capture"
	"github.com/alextompkins/piano-vision/internal/hands"
	"github.com/alextompkins/piano-vision/internal/transcript"
	"github.com/alextompkins/piano-vision/testdata"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Config{}.withDefaults()
	def := DefaultConfig()

	if cfg.SampleEvery != 1 || cfg.SettleFrames != 30 || cfg.PreviewWidth != 960 {
		t.Errorf("withDefaults() = %+v", cfg)
	}
	if cfg.Keyboard != def.Keyboard {
		t.Errorf("keyboard config = %+v, want defaults", cfg.Keyboard)
	}
	if cfg.Logger == nil {
		t.Error("withDefaults() left the logger nil")
	}
}

func TestApp_Run(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	scene, _ := testdata.Scene()
	defer scene.Close()
	pressed := pressedScene(2)
	defer pressed.Close()

	// Frame 1 primes the motion detector, frame 2 is still and calibrates.
	frames := []*gocv.Mat{&scene, &scene, &pressed, &pressed, &pressed, &scene, &scene, &scene}
	src := capture.NewMockSource(frames, false)

	a := New(testConfig(), src, hands.NewMockFinder())
	defer a.Close()

	var lines []string
	a.OnResult(func(r FrameResult) {
		lines = append(lines, transcript.FormatLine(r.Index, r.Pressed))
	})

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{
		"2: []",
		"3: []",
		"4: [E1]",
		"5: [E1]",
		"6: [E1]",
		"7: []",
		"8: []",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines %q, want %q", len(lines), lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}

	st := a.Status()
	if st.Running || !st.Calibrated || st.Frame != 8 || st.Processed != 7 {
		t.Errorf("Status() = %+v", st)
	}
}

func TestApp_SampleEvery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	scene, _ := testdata.Scene()
	defer scene.Close()

	frames := make([]*gocv.Mat, 9)
	for i := range frames {
		frames[i] = &scene
	}

	cfg := testConfig()
	cfg.SampleEvery = 3
	a := New(cfg, capture.NewMockSource(frames, false), hands.NewMockFinder())
	defer a.Close()

	var indices []int
	a.OnResult(func(r FrameResult) { indices = append(indices, r.Index) })

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []int{4, 7}
	if len(indices) != len(want) || indices[0] != want[0] || indices[1] != want[1] {
		t.Errorf("processed frames %v, want %v", indices, want)
	}
}

func TestApp_CalibratesFromReference(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	scene, _ := testdata.Scene()
	defer scene.Close()

	a := New(testConfig(), capture.NewMockSource([]*gocv.Mat{&scene, &scene}, false), hands.NewMockFinder())
	defer a.Close()

	if _, err := a.Recalibrate(scene); err != nil {
		t.Fatalf("Recalibrate() error = %v", err)
	}

	var indices []int
	a.OnResult(func(r FrameResult) { indices = append(indices, r.Index) })
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// No settling wait once a reference exists.
	if len(indices) != 2 || indices[0] != 1 {
		t.Errorf("processed frames %v, want [1 2]", indices)
	}
}

func TestApp_NoKeyboard(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	blank := testdata.Blank()
	defer blank.Close()

	cfg := testConfig()
	cfg.SettleFrames = 2
	a := New(cfg, capture.NewMockSource([]*gocv.Mat{&blank, &blank, &blank}, false), hands.NewMockFinder())
	defer a.Close()

	called := 0
	a.OnResult(func(FrameResult) { called++ })

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if called != 0 {
		t.Errorf("observers called %d times without a keyboard", called)
	}
	if a.Status().Calibrated {
		t.Error("calibrated on a frame without a keyboard")
	}
}

func TestApp_PauseResume(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	scene, _ := testdata.Scene()
	defer scene.Close()

	src := capture.NewMockSource([]*gocv.Mat{&scene}, true)
	a := New(testConfig(), src, hands.NewMockFinder())
	defer a.Close()

	var mu sync.Mutex
	processed := 0
	a.OnResult(func(FrameResult) {
		mu.Lock()
		processed++
		mu.Unlock()
	})
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return processed
	}

	a.Pause()
	if !a.Paused() {
		t.Fatal("Paused() = false after Pause()")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	if n := count(); n != 0 {
		t.Fatalf("processed %d frames while paused", n)
	}

	a.Resume()
	deadline := time.Now().Add(5 * time.Second)
	for count() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if count() < 3 {
		t.Fatalf("processed %d frames after Resume, want at least 3", count())
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}

func TestApp_SnapshotAndRecalibrationRequest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	scene, _ := testdata.Scene()
	defer scene.Close()

	a := New(testConfig(), capture.NewMockSource([]*gocv.Mat{&scene, &scene, &scene}, false), hands.NewMockFinder())
	defer a.Close()

	dir := t.TempDir()
	if _, err := a.Snapshot(dir); err == nil {
		t.Error("Snapshot() before any frame should fail")
	}

	if err := a.RequestRecalibration(); err != nil {
		t.Fatalf("RequestRecalibration() error = %v", err)
	}

	var first int
	a.OnResult(func(r FrameResult) {
		if first == 0 {
			first = r.Index
		}
	})
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// The pending request calibrates on frame 1 without waiting to settle.
	if first != 1 {
		t.Errorf("first processed frame = %d, want 1", first)
	}

	path, err := a.Snapshot(dir)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("snapshot not written: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("snapshot written to %s, want %s", filepath.Dir(path), dir)
	}

	// With a frame available the request recalibrates immediately.
	if err := a.RequestRecalibration(); err != nil {
		t.Errorf("RequestRecalibration() error = %v", err)
	}
}

func TestApp_Preview(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	scene, _ := testdata.Scene()
	defer scene.Close()

	cfg := testConfig()
	cfg.Preview = true
	a := New(cfg, capture.NewMockSource([]*gocv.Mat{&scene, &scene, &scene}, false), hands.NewMockFinder())
	defer a.Close()

	if data, _ := a.Preview(); data != nil {
		t.Error("Preview() before Run should be empty")
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	data, index := a.Preview()
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("Preview() is not a JPEG")
	}
	if index != 3 {
		t.Errorf("preview frame = %d, want 3", index)
	}
}

func TestApp_OpenError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	a := New(testConfig(), capture.NewVideoFile(filepath.Join(t.TempDir(), "missing.mp4")), hands.NewMockFinder())
	defer a.Close()

	if err := a.Run(context.Background()); err == nil {
		t.Error("Run() on a missing video should fail")
	}
}
