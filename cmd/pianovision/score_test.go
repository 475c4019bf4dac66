package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestScoreCommand(t *testing.T) {
	dir := t.TempDir()
	truth := filepath.Join(dir, "truth.log")
	output := filepath.Join(dir, "output.log")

	if err := os.WriteFile(truth, []byte("1: [C4]\n2: [C4, E4]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(output, []byte("1: [C4]\n2: [C4]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"score", "--truth", truth, "--output", output, "--log-level", "error"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("score error = %v", err)
	}

	got := buf.String()
	for _, want := range []string{"lines=2", "correct=2", "false_negatives=1", "precision=100.00%"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}

func TestScoreCommand_MissingFile(t *testing.T) {
	rootCmd.SetArgs([]string{"score", "--truth", filepath.Join(t.TempDir(), "missing.log"), "--output", "x.log"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err == nil {
		t.Error("score with a missing truth file should fail")
	}
}

func TestPipelineOptions_Config(t *testing.T) {
	opts := pipelineOptions{SampleEvery: 3, SettleFrames: 10, Stickiness: 4, Offset: 0, MinTilt: 1, PluginDir: "plugins"}
	cfg := opts.config()

	if cfg.SampleEvery != 3 || cfg.SettleFrames != 10 || cfg.Press.Stickiness != 4 || cfg.Keyboard.Offset != 0 || cfg.MinTilt != 1 || cfg.PluginDir != "plugins" {
		t.Errorf("config() = %+v", cfg)
	}

	if _, name := (&pipelineOptions{Input: "take.mp4"}).source(); name != "take.mp4" {
		t.Errorf("source name = %q, want take.mp4", name)
	}
	if _, name := (&pipelineOptions{Camera: 2}).source(); name != "camera:2" {
		t.Errorf("source name = %q, want camera:2", name)
	}
}
