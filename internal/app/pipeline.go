package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/alextompkins/piano-vision/internal/capture"
	"github.com/alextompkins/piano-vision/internal/overlay"
	"github.com/alextompkins/piano-vision/internal/plugin"
)

const (
	// maxReadFailures stops Run after this many consecutive unreadable frames.
	maxReadFailures = 30
	// readRetryDelay is the pause between retries on a live source.
	readRetryDelay = 50 * time.Millisecond
)

// Run reads frames from the source until it ends or ctx is cancelled.
//
// Pipeline logic:
//  1. Wait while paused
//  2. Read the next frame and keep a copy for snapshots and recalibration
//  3. Calibrate on the first still frame, or on request
//  4. Every SampleEvery frames: rectify, find hands, detect presses
//  5. Dispatch press and release transitions to plugins, then observers
//
// Reaching the end of a finite source returns nil.
func (a *App) Run(ctx context.Context) error {
	if err := a.source.Open(); err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer a.source.Close()

	a.mu.Lock()
	a.running = true
	a.startedAt = time.Now()
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	a.logger.Info("pipeline started", "fps", a.source.FPS(), "frames", a.source.FrameCount(), "sample_every", a.config.SampleEvery)

	failures := 0
	for {
		if err := a.waitWhilePaused(ctx); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := a.source.ReadFrame()
		if errors.Is(err, capture.ErrEndOfStream) {
			a.logger.Info("end of stream", "frames", a.Status().Frame)
			return nil
		}
		if err != nil {
			failures++
			if failures >= maxReadFailures {
				return fmt.Errorf("read frame: %w", err)
			}
			a.logger.Warn("error reading frame", "err", err)
			time.Sleep(readRetryDelay)
			continue
		}
		failures = 0

		a.handleFrame(*frame)
		frame.Close()
	}
}

func (a *App) waitWhilePaused(ctx context.Context) error {
	for a.Paused() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.wake:
		}
	}
	return nil
}

// handleFrame runs one frame through calibration and detection.
func (a *App) handleFrame(frame gocv.Mat) {
	a.mu.Lock()
	a.frame++
	index := a.frame
	frame.CopyTo(&a.last)
	pending := a.pending
	a.pending = false
	a.mu.Unlock()

	switch {
	case pending:
		a.Recalibrate(frame)
	case !a.session.Calibrated():
		if !a.settler.Observe(frame) {
			a.logger.Debug("waiting for a still frame", "frame", index)
			return
		}
		if _, err := a.Recalibrate(frame); err != nil {
			return
		}
	}

	if (index-1)%a.config.SampleEvery != 0 {
		return
	}

	res, err := a.session.Process(frame)
	if errors.Is(err, ErrNotCalibrated) {
		return
	}
	if err != nil {
		a.logger.Warn("frame processing failed", "frame", index, "err", err)
		return
	}
	res.Index = index

	var preview []byte
	if a.config.Preview {
		preview = a.renderPreview(frame, res)
	}

	a.mu.Lock()
	a.lastResult = res
	a.processed++
	if preview != nil {
		a.lastPreview = preview
	}
	observers := append(([]func(FrameResult))(nil), a.observers...)
	a.mu.Unlock()

	a.logger.Debug("frame processed", "frame", index, "keys", len(res.Pressed), "active", len(res.Active))

	a.dispatch(res)
	for _, fn := range observers {
		fn(res)
	}
}

func (a *App) renderPreview(frame gocv.Mat, res FrameResult) []byte {
	img, err := a.session.Render(frame, res)
	if err != nil {
		return nil
	}
	defer img.Close()

	data, err := overlay.EncodeJPEG(img, a.config.PreviewWidth)
	if err != nil {
		a.logger.Debug("preview encoding failed", "frame", res.Index, "err", err)
		return nil
	}
	return data
}

// dispatch queues the frame's transitions for plugins in order.
func (a *App) dispatch(res FrameResult) {
	for _, t := range res.Transitions {
		event := plugin.EventRelease
		if t.Pressed {
			event = plugin.EventPress
		}
		a.logger.Debug("key "+event, "key", t.Key.String(), "frame", res.Index)
		if a.dispatcher != nil {
			a.dispatcher.Send(plugin.Request{Event: event, Key: t.Key.String(), Frame: res.Index})
		}
	}
}
