package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/alextompkins/piano-vision/internal/app"
	"github.com/alextompkins/piano-vision/internal/transcript"
)

var (
	transcribeOpts pipelineOptions
	outputPath     string
	noProgress     bool
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Write the pressed keys of every sampled frame to a log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTranscribe(cmd, transcribeOpts)
	},
}

func init() {
	transcribeOpts.bind(transcribeCmd)
	transcribeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Transcript log path (default: stdout)")
	transcribeCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Hide the progress bar")
	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, opts pipelineOptions) error {
	ctx := cmd.Context()

	var out io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	log := transcript.NewWriter(out)

	src, name := opts.source()
	a := app.New(opts.config(), src, nil)
	defer a.Close()

	st, err := openStore(opts.DBPath)
	if err != nil {
		return err
	}
	var rec *app.Recorder
	if st != nil {
		defer st.Close()
		if rec, err = app.Record(a, st, name); err != nil {
			return err
		}
	}

	if err := opts.calibrateFromReference(ctx, a); err != nil {
		if rec != nil {
			rec.Finish(err)
		}
		return err
	}

	a.OnResult(func(res app.FrameResult) {
		if err := log.WriteLine(res.Index, res.Pressed); err != nil {
			logger.Warn("failed to write transcript line", "frame", res.Index, "err", err)
		}
	})

	if !noProgress {
		// The total is only known once the source is open.
		var bar *progressbar.ProgressBar
		a.OnResult(func(res app.FrameResult) {
			if bar == nil {
				bar = progressbar.NewOptions(a.Source().FrameCount(),
					progressbar.OptionSetDescription("transcribing"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionThrottle(100*time.Millisecond),
				)
			}
			bar.Set(res.Index)
		})
		defer func() {
			if bar != nil {
				bar.Finish()
				fmt.Fprintln(os.Stderr)
			}
		}()
	}

	runErr := a.Run(ctx)
	if ctx.Err() != nil {
		runErr = nil
	}

	if err := log.Flush(); err != nil && runErr == nil {
		runErr = err
	}
	if rec != nil {
		if err := rec.Finish(runErr); err != nil {
			logger.Warn("failed to finish session", "session", rec.SessionID(), "err", err)
		}
	}

	logger.Info("transcription finished", "frames", a.Status().Frame, "lines", log.Lines())
	return runErr
}
