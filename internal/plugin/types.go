// Package plugin discovers external hook programs and feeds them key
// press and release events over a JSON stdin/stdout protocol.
package plugin

import "encoding/json"

// Event names sent to plugins.
const (
	EventPress   = "press"
	EventRelease = "release"
)

// Manifest describes a plugin's metadata and the events it wants.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Wants reports whether the plugin subscribed to event. A manifest without
// events receives everything.
func (m Manifest) Wants(event string) bool {
	if len(m.Events) == 0 {
		return true
	}
	for _, e := range m.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Request is written to a plugin's stdin, one per invocation.
type Request struct {
	Event  string          `json:"event"`
	Key    string          `json:"key"`
	Frame  int             `json:"frame"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
