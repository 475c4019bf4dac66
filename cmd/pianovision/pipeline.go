package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alextompkins/piano-vision/internal/app"
	"github.com/alextompkins/piano-vision/internal/capture"
	"github.com/alextompkins/piano-vision/internal/store"
)

// pipelineOptions are the flags shared by transcribe and serve.
type pipelineOptions struct {
	Input          string
	Camera         int
	Reference      string
	WatchReference bool
	SampleEvery    int
	SettleFrames   int
	Stickiness     int
	Offset         int
	MinTilt        float64
	PluginDir      string
	DBPath         string
}

func (o *pipelineOptions) bind(cmd *cobra.Command) {
	def := app.DefaultConfig()
	cmd.Flags().StringVarP(&o.Input, "input", "i", "", "Path to a video file (default: read from the camera)")
	cmd.Flags().IntVar(&o.Camera, "camera", 0, "Camera device ID when no --input is given")
	cmd.Flags().StringVarP(&o.Reference, "reference", "r", "", "Image of the unplayed keyboard to calibrate from")
	cmd.Flags().BoolVar(&o.WatchReference, "watch-reference", false, "Recalibrate whenever the reference image changes")
	cmd.Flags().IntVarP(&o.SampleEvery, "sample-every", "n", def.SampleEvery, "Process one frame in every n")
	cmd.Flags().IntVar(&o.SettleFrames, "settle-frames", def.SettleFrames, "Longest wait for a still frame before calibrating")
	cmd.Flags().IntVar(&o.Stickiness, "stickiness", def.Press.Stickiness, "Consecutive frames needed to press or release a key")
	cmd.Flags().IntVar(&o.Offset, "offset", def.Keyboard.Offset, "Horizontal inset of the keyboard's top corners, in pixels")
	cmd.Flags().Float64Var(&o.MinTilt, "min-tilt", def.MinTilt, "Smallest keyboard rotation, in degrees, that gets corrected")
	cmd.Flags().StringVar(&o.PluginDir, "plugins", "", "Directory of event hook plugins")
	cmd.Flags().StringVar(&o.DBPath, "db", "", "SQLite database to record the session in")
}

func (o *pipelineOptions) config() app.Config {
	cfg := app.DefaultConfig()
	cfg.SampleEvery = o.SampleEvery
	cfg.SettleFrames = o.SettleFrames
	cfg.Press.Stickiness = o.Stickiness
	cfg.Keyboard.Offset = o.Offset
	cfg.MinTilt = o.MinTilt
	cfg.PluginDir = o.PluginDir
	cfg.Logger = logger
	return cfg
}

func (o *pipelineOptions) source() (capture.Source, string) {
	if o.Input != "" {
		return capture.NewVideoFile(o.Input), o.Input
	}
	return capture.NewCamera(o.Camera), "camera:" + strconv.Itoa(o.Camera)
}

// calibrateFromReference recalibrates a from the reference image and, when
// asked, keeps doing so every time the file changes until ctx ends.
func (o *pipelineOptions) calibrateFromReference(ctx context.Context, a *app.App) error {
	if o.Reference == "" {
		if o.WatchReference {
			return fmt.Errorf("--watch-reference needs --reference")
		}
		return nil
	}

	if err := recalibrateFromFile(a, o.Reference); err != nil {
		return fmt.Errorf("calibrate from %s: %w", o.Reference, err)
	}
	if !o.WatchReference {
		return nil
	}

	w, err := capture.NewReferenceWatcher(o.Reference, capture.DefaultSettle, logger)
	if err != nil {
		return err
	}
	go func() {
		defer w.Close()
		err := w.Run(ctx, func(path string) {
			if err := recalibrateFromFile(a, path); err != nil {
				logger.Warn("reference recalibration failed", "path", path, "err", err)
			}
		})
		if err != nil && ctx.Err() == nil {
			logger.Warn("reference watcher stopped", "err", err)
		}
	}()
	return nil
}

func recalibrateFromFile(a *app.App, path string) error {
	img, err := capture.LoadImage(path)
	if err != nil {
		return err
	}
	defer img.Close()

	cal, err := a.Recalibrate(img)
	if err != nil {
		return err
	}
	logger.Info("calibrated from reference", "path", path, "angle", cal.Angle, "keys", len(cal.Layout.White)+len(cal.Layout.Black))
	return nil
}

// openStore opens the database at path, or returns nil when path is empty.
func openStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, nil
	}
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return st, nil
}
