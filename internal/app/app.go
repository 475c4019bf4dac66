// Package app ties frame capture, keyboard calibration and press detection
// into a single frame-sequential pipeline.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/alextompkins/piano-vision/internal/capture"
	"github.com/alextompkins/piano-vision/internal/hands"
	"github.com/alextompkins/piano-vision/internal/keyboard"
	"github.com/alextompkins/piano-vision/internal/overlay"
	"github.com/alextompkins/piano-vision/internal/plugin"
	"github.com/alextompkins/piano-vision/internal/press"
)

// Config holds configuration options for the application.
type Config struct {
	Keyboard keyboard.Config
	Hands    hands.Config
	Press    press.Config

	// SampleEvery processes one frame in every SampleEvery (default: 1).
	SampleEvery int
	// SettleFrames is the longest wait for a still frame before
	// calibrating on a moving one (default: 30).
	SettleFrames int
	// MinTilt is the smallest rotation, in degrees, that gets corrected
	// (default: 0.5).
	MinTilt float64
	// MotionThreshold is the percentage of changed pixels that counts as
	// motion while waiting to calibrate.
	MotionThreshold float64

	// Preview keeps an annotated JPEG of the latest frame for streaming.
	Preview      bool
	PreviewWidth int

	PluginDir     string
	PluginTimeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Keyboard:        keyboard.DefaultConfig(),
		Hands:           hands.DefaultConfig(),
		Press:           press.DefaultConfig(),
		SampleEvery:     1,
		SettleFrames:    30,
		MinTilt:         0.5,
		MotionThreshold: capture.DefaultMotionThreshold,
		PreviewWidth:    960,
		PluginTimeout:   plugin.DefaultTimeout,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Keyboard.WhiteUpper == (gocv.Scalar{}) {
		c.Keyboard = def.Keyboard
	}
	if c.SampleEvery <= 0 {
		c.SampleEvery = def.SampleEvery
	}
	if c.SettleFrames <= 0 {
		c.SettleFrames = def.SettleFrames
	}
	if c.MinTilt < 0 {
		c.MinTilt = def.MinTilt
	}
	if c.PreviewWidth <= 0 {
		c.PreviewWidth = def.PreviewWidth
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Status is a point-in-time summary of the application.
type Status struct {
	Running    bool      `json:"running"`
	Paused     bool      `json:"paused"`
	Calibrated bool      `json:"calibrated"`
	Frame      int       `json:"frame"`
	Processed  int       `json:"processed"`
	Pressed    []string  `json:"pressed"`
	Angle      float64   `json:"angle"`
	WhiteKeys  int       `json:"white_keys"`
	BlackKeys  int       `json:"black_keys"`
	Labeled    int       `json:"labeled"`
	StartedAt  time.Time `json:"started_at"`
}

// App is the main application that drives a Source through a Session.
type App struct {
	config  Config
	logger  *slog.Logger
	source  capture.Source
	session *Session
	motion  *capture.MotionDetector
	settler *capture.Settler

	pluginMgr  *plugin.Manager
	dispatcher *plugin.Dispatcher

	mu          sync.RWMutex
	paused      bool
	wake        chan struct{}
	running     bool
	startedAt   time.Time
	pending     bool
	observers   []func(FrameResult)
	calibrated  []func(int, Calibration)
	last        gocv.Mat
	lastResult  FrameResult
	lastPreview []byte
	frame       int
	processed   int
}

// New creates an App reading from source. A nil finder uses skin colour
// hand detection.
func New(config Config, source capture.Source, finder hands.Finder) *App {
	config = config.withDefaults()

	motion := capture.NewMotionDetector(config.MotionThreshold)
	a := &App{
		config:    config,
		logger:    config.Logger,
		source:    source,
		session:   NewSession(config, finder),
		motion:    motion,
		settler:   capture.NewSettler(motion, config.SettleFrames),
		pluginMgr: plugin.NewManager(config.PluginDir),
		wake:      make(chan struct{}, 1),
		last:      gocv.NewMat(),
	}

	if err := a.pluginMgr.Discover(); err != nil {
		a.logger.Warn("plugin discovery failed", "dir", config.PluginDir, "err", err)
	}
	if n := len(a.pluginMgr.List()); n > 0 {
		a.dispatcher = plugin.NewDispatcher(a.pluginMgr, plugin.NewExecutor(config.PluginTimeout), a.logger)
		a.logger.Info("plugins loaded", "count", n, "dir", config.PluginDir)
	}

	return a
}

// Session returns the calibration and press-state owner.
func (a *App) Session() *Session {
	return a.session
}

// Plugins returns the plugin manager.
func (a *App) Plugins() *plugin.Manager {
	return a.pluginMgr
}

// Source returns the frame source.
func (a *App) Source() capture.Source {
	return a.source
}

// OnResult registers fn to be called, in registration order, with every
// processed frame's result. Observers run on the pipeline goroutine.
func (a *App) OnResult(fn func(FrameResult)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

// OnCalibrate registers fn to be called with the frame index and the new
// calibration after every successful (re)calibration.
func (a *App) OnCalibrate(fn func(frame int, cal Calibration)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calibrated = append(a.calibrated, fn)
}

// Pause stops reading frames until Resume is called.
func (a *App) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.paused {
		a.paused = true
		a.logger.Info("paused", "frame", a.frame)
	}
}

// Resume continues reading frames after Pause.
func (a *App) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.paused {
		a.paused = false
		a.logger.Info("resumed", "frame", a.frame)
	}
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Paused reports whether the pipeline is paused.
func (a *App) Paused() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.paused
}

// Recalibrate rebuilds the layout from frame and resets press state.
func (a *App) Recalibrate(frame gocv.Mat) (Calibration, error) {
	cal, err := a.session.Recalibrate(frame)
	if err != nil {
		a.logger.Warn("recalibration failed", "err", err)
		return Calibration{}, err
	}

	a.mu.RLock()
	index := a.frame
	observers := append(([]func(int, Calibration))(nil), a.calibrated...)
	a.mu.RUnlock()
	for _, fn := range observers {
		fn(index, cal)
	}
	return cal, nil
}

// RequestRecalibration recalibrates on the most recent frame, or on the
// next frame read if none has been read yet.
func (a *App) RequestRecalibration() error {
	a.mu.Lock()
	if a.last.Empty() {
		a.pending = true
		a.mu.Unlock()
		a.logger.Info("recalibration requested for next frame")
		return nil
	}
	frame := a.last.Clone()
	a.mu.Unlock()
	defer frame.Close()

	_, err := a.Recalibrate(frame)
	return err
}

// Snapshot writes the latest frame, annotated when calibrated, as a PNG in
// dir and returns its path.
func (a *App) Snapshot(dir string) (string, error) {
	a.mu.RLock()
	if a.last.Empty() {
		a.mu.RUnlock()
		return "", fmt.Errorf("snapshot: no frame captured yet")
	}
	frame := a.last.Clone()
	res := a.lastResult
	index := a.frame
	a.mu.RUnlock()
	defer frame.Close()

	img := frame
	if rendered, err := a.session.Render(frame, res); err == nil {
		defer rendered.Close()
		img = rendered
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("snapshot-%06d-%s.png", index, time.Now().Format("20060102-150405")))
	if err := overlay.SaveSnapshot(path, img); err != nil {
		return "", err
	}
	a.logger.Info("snapshot saved", "path", path, "frame", index)
	return path, nil
}

// Preview returns the latest annotated JPEG and the frame it shows.
func (a *App) Preview() ([]byte, int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastPreview, a.lastResult.Index
}

// LastResult returns the most recent frame result.
func (a *App) LastResult() FrameResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastResult
}

// Status returns a summary of the pipeline state.
func (a *App) Status() Status {
	a.mu.RLock()
	st := Status{
		Running:   a.running,
		Paused:    a.paused,
		Frame:     a.frame,
		Processed: a.processed,
		StartedAt: a.startedAt,
		Pressed:   make([]string, 0, len(a.lastResult.Pressed)),
	}
	for _, k := range a.lastResult.Pressed {
		st.Pressed = append(st.Pressed, k.String())
	}
	a.mu.RUnlock()

	if cal, ok := a.session.Calibration(); ok {
		st.Calibrated = true
		st.Angle = cal.Angle
		st.WhiteKeys = len(cal.Layout.White)
		st.BlackKeys = len(cal.Layout.Black)
		st.Labeled = cal.Layout.Labeled()
	}
	return st
}

// Close releases the session, plugin worker and buffered frames.
func (a *App) Close() error {
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	a.motion.Close()

	a.mu.Lock()
	a.last.Close()
	a.last = gocv.NewMat()
	a.mu.Unlock()

	return a.session.Close()
}
