// Package main provides a plugin that appends key press and release events
// to a text file, one line per event.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Request is the event sent by the plugin executor.
type Request struct {
	Event  string          `json:"event"`
	Key    string          `json:"key"`
	Frame  int             `json:"frame"`
	Config json.RawMessage `json:"config"`
}

// Response is written back to the plugin executor.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Config is read from the manifest's config block.
type Config struct {
	Path string `json:"path"`
}

const defaultPath = "notes.log"

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		respond(fmt.Errorf("failed to decode request: %w", err))
		return
	}
	respond(appendEvent(req))
}

func appendEvent(req Request) error {
	switch req.Event {
	case "press", "release":
	default:
		return fmt.Errorf("unknown event: %s", req.Event)
	}
	if req.Key == "" {
		return fmt.Errorf("key is required")
	}

	cfg := Config{Path: defaultPath}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		if cfg.Path == "" {
			cfg.Path = defaultPath
		}
	}

	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%s\t%d\t%s\t%s\n", time.Now().Format(time.RFC3339), req.Frame, req.Event, req.Key)
	return err
}

func respond(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
