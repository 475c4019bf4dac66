package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// scriptPlugin writes a shell script plugin into a temporary directory.
func scriptPlugin(t *testing.T, name, body string) *Plugin {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, name+".sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return &Plugin{
		Manifest: Manifest{
			Name:       name,
			Version:    "1.0.0",
			Executable: name + ".sh",
			Events:     []string{EventPress, EventRelease},
		},
		Path:       dir,
		Executable: path,
	}
}

func TestExecutor_Execute(t *testing.T) {
	tests := []struct {
		name        string
		script      string
		wantErr     string
		wantSuccess bool
		wantError   string
	}{
		{
			name:        "success",
			script:      "echo '{\"success\":true,\"data\":{\"message\":\"ok\"}}'\n",
			wantSuccess: true,
		},
		{
			name:      "error response",
			script:    "echo '{\"success\":false,\"error\":\"something went wrong\"}'\n",
			wantError: "something went wrong",
		},
		{
			name:    "invalid json",
			script:  "echo 'not valid json'\n",
			wantErr: "failed to parse plugin response",
		},
		{
			name:    "non-zero exit",
			script:  "echo 'broken' >&2\nexit 1\n",
			wantErr: "stderr: broken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := scriptPlugin(t, "test-plugin", tt.script)

			resp, err := NewExecutor(5*time.Second).Execute(context.Background(), p, Request{Event: EventPress, Key: "C4", Frame: 1})
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Execute() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if resp.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", resp.Success, tt.wantSuccess)
			}
			if resp.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", resp.Error, tt.wantError)
			}
		})
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	p := scriptPlugin(t, "echo-plugin", `INPUT=$(cat)
echo "{\"success\":true,\"data\":$INPUT}"
`)
	p.Manifest.Config = json.RawMessage(`{"path":"notes.log"}`)

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), p, Request{Event: EventRelease, Key: "F#2", Frame: 42})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var got Request
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatalf("failed to unmarshal echoed request: %v", err)
	}
	if got.Event != EventRelease || got.Key != "F#2" || got.Frame != 42 {
		t.Errorf("plugin received %+v", got)
	}
	if string(got.Config) != `{"path":"notes.log"}` {
		t.Errorf("manifest config not attached, got %s", got.Config)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	p := scriptPlugin(t, "slow-plugin", "sleep 10\necho '{\"success\":true}'\n")

	_, err := NewExecutor(100*time.Millisecond).Execute(context.Background(), p, Request{Event: EventPress})
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error, got: %v", err)
	}
}

func TestNewExecutor(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{3 * time.Second, 3 * time.Second},
		{0, DefaultTimeout},
		{-time.Second, DefaultTimeout},
	}
	for _, tt := range tests {
		if got := NewExecutor(tt.in).timeout; got != tt.want {
			t.Errorf("NewExecutor(%s).timeout = %s, want %s", tt.in, got, tt.want)
		}
	}
}
