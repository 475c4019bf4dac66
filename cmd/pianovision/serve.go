package main

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/alextompkins/piano-vision/internal/app"
	"github.com/alextompkins/piano-vision/internal/server"
	"github.com/alextompkins/piano-vision/internal/tray"
)

var (
	serveOpts   pipelineOptions
	addr        string
	withTray    bool
	staticDir   string
	snapshotDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Transcribe while serving controls, a preview stream and recorded sessions over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, serveOpts)
	},
}

func init() {
	serveOpts.bind(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().BoolVar(&withTray, "tray", false, "Show a system tray menu")
	serveCmd.Flags().StringVar(&staticDir, "static", "", "Directory of static files to serve at /")
	serveCmd.Flags().StringVar(&snapshotDir, "snapshots", "", "Directory for snapshots (default: ~/.pianovision/snapshots)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, opts pipelineOptions) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if opts.DBPath == "" || snapshotDir == "" {
		dataDir, err := defaultDataDir()
		if err != nil {
			return err
		}
		if opts.DBPath == "" {
			opts.DBPath = filepath.Join(dataDir, "pianovision.db")
		}
		if snapshotDir == "" {
			snapshotDir = filepath.Join(dataDir, "snapshots")
		}
	}

	cfg := opts.config()
	cfg.Preview = true
	src, name := opts.source()
	a := app.New(cfg, src, nil)
	defer a.Close()

	st, err := openStore(opts.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	rec, err := app.Record(a, st, name)
	if err != nil {
		return err
	}

	if err := opts.calibrateFromReference(ctx, a); err != nil {
		rec.Finish(err)
		return err
	}

	srv := server.New(server.Config{
		StaticDir:   staticDir,
		SnapshotDir: snapshotDir,
		Store:       st,
		App:         a,
		Logger:      logger,
	})

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		err := a.Run(ctx)
		if ctx.Err() != nil {
			err = nil
		}
		if ferr := rec.Finish(err); ferr != nil {
			logger.Warn("failed to finish session", "session", rec.SessionID(), "err", ferr)
		}
		if err != nil {
			errCh <- err
		}
		// Keep serving recorded sessions after a video ends.
		logger.Info("pipeline stopped; still serving", "addr", addr)
	}()
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			errCh <- err
			cancel()
		}
	}()

	if withTray {
		t := tray.New()
		t.Connect(a, snapshotDir, cancel, logger)
		a.OnResult(func(res app.FrameResult) {
			names := make([]string, len(res.Pressed))
			for i, k := range res.Pressed {
				names[i] = k.String()
			}
			t.SetPressed(names)
		})
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// systray must own the main goroutine.
		t.Run()
		cancel()
	} else {
		<-ctx.Done()
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}
