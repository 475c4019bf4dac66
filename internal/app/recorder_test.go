package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"github.com/alextompkins/piano-vision/internal/capture"
	"github.com/alextompkins/piano-vision/internal/hands"
	"github.com/alextompkins/piano-vision/internal/store"
	"github.com/alextompkins/piano-vision/testdata"
)

func TestRecorder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	st, err := store.New(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	scene, _ := testdata.Scene()
	defer scene.Close()
	pressed := pressedScene(2)
	defer pressed.Close()

	frames := []*gocv.Mat{&scene, &scene, &pressed, &pressed}
	a := New(testConfig(), capture.NewMockSource(frames, false), hands.NewMockFinder())
	defer a.Close()

	rec, err := Record(a, st, "synthetic")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	runErr := a.Run(context.Background())
	if runErr != nil {
		t.Fatalf("Run() error = %v", runErr)
	}
	if err := rec.Finish(runErr); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	sess, err := st.Sessions().GetByID(rec.SessionID())
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if sess.Status != store.SessionFinished || sess.Frames != 4 || sess.Source != "synthetic" {
		t.Errorf("session = %+v", sess)
	}

	cals, err := st.Calibrations().ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(cals) != 1 || cals[0].Frame != 2 || cals[0].WhiteKeys != testdata.WhiteKeys {
		t.Errorf("calibrations = %+v", cals)
	}

	lines, err := st.Transcripts().List(sess.ID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("stored %d lines, want 3", len(lines))
	}
	if last := lines[2]; last.Frame != 4 || len(last.Keys) != 1 || last.Keys[0] != "E1" {
		t.Errorf("last line = %+v, want frame 4 with E1", last)
	}
}

func TestRecorder_StoresEarlierCalibration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	st, err := store.New(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	scene, _ := testdata.Scene()
	defer scene.Close()
	pressed := pressedScene(2)
	defer pressed.Close()

	frames := []*gocv.Mat{&pressed, &pressed}
	a := New(testConfig(), capture.NewMockSource(frames, false), hands.NewMockFinder())
	defer a.Close()

	// Calibrated from a reference image before recording starts.
	if _, err := a.Recalibrate(scene); err != nil {
		t.Fatalf("Recalibrate() error = %v", err)
	}

	rec, err := Record(a, st, "synthetic")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := rec.Finish(nil); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	cals, err := st.Calibrations().ListBySession(rec.SessionID())
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(cals) != 1 {
		t.Fatalf("stored %d calibrations, want 1", len(cals))
	}
	if cals[0].Frame != 0 || cals[0].WhiteKeys != testdata.WhiteKeys || cals[0].Labeled == 0 {
		t.Errorf("calibration = %+v, want frame 0 with %d labeled white keys", cals[0], testdata.WhiteKeys)
	}

	n, err := st.Transcripts().Count(rec.SessionID())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("stored %d lines, want 2", n)
	}
}

func TestRecorder_FinishFailed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	st, err := store.New(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	a := New(testConfig(), capture.NewMockSource(nil, false), hands.NewMockFinder())
	defer a.Close()

	rec, err := Record(a, st, "camera:0")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := rec.Finish(errors.New("camera unplugged")); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	sess, err := st.Sessions().GetByID(rec.SessionID())
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if sess.Status != store.SessionFailed {
		t.Errorf("status = %s, want failed", sess.Status)
	}
}
