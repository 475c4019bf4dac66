package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, root string, m Manifest) string {
	t.Helper()
	dir := filepath.Join(root, m.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return dir
}

func TestManager_Discover(t *testing.T) {
	root := t.TempDir()
	dir := writeManifest(t, root, Manifest{
		Name:        "note-log",
		Version:     "1.0.0",
		Description: "Appends key events to a file",
		Executable:  "note-log",
		Events:      []string{EventPress},
	})
	writeManifest(t, root, Manifest{Name: "all-events", Executable: "run"})

	// Invalid manifests and stray files are skipped.
	bad := filepath.Join(root, "broken")
	os.MkdirAll(bad, 0755)
	os.WriteFile(filepath.Join(bad, "plugin.json"), []byte("{not json"), 0644)
	os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0644)
	os.MkdirAll(filepath.Join(root, "no-manifest"), 0755)

	m := NewManager(root)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d plugins, want 2", len(list))
	}
	if list[0].Manifest.Name != "all-events" || list[1].Manifest.Name != "note-log" {
		t.Errorf("List() not ordered by name: %s, %s", list[0].Manifest.Name, list[1].Manifest.Name)
	}

	p, err := m.Get("note-log")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Path != dir {
		t.Errorf("Path = %q, want %q", p.Path, dir)
	}
	if p.Executable != filepath.Join(dir, "note-log") {
		t.Errorf("Executable = %q", p.Executable)
	}
	if p.Manifest.Description != "Appends key events to a file" {
		t.Errorf("Description = %q", p.Manifest.Description)
	}
}

func TestManager_Subscribers(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, Manifest{Name: "press-only", Executable: "x", Events: []string{EventPress}})
	writeManifest(t, root, Manifest{Name: "everything", Executable: "x"})

	m := NewManager(root)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	tests := []struct {
		event string
		want  []string
	}{
		{EventPress, []string{"everything", "press-only"}},
		{EventRelease, []string{"everything"}},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			subs := m.Subscribers(tt.event)
			if len(subs) != len(tt.want) {
				t.Fatalf("Subscribers(%q) returned %d plugins, want %d", tt.event, len(subs), len(tt.want))
			}
			for i, p := range subs {
				if p.Manifest.Name != tt.want[i] {
					t.Errorf("subscriber %d = %s, want %s", i, p.Manifest.Name, tt.want[i])
				}
			}
		})
	}
}

func TestManager_Get_NotFound(t *testing.T) {
	m := NewManager(t.TempDir())
	m.Discover()

	if _, err := m.Get("missing"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Get() error = %v, want ErrPluginNotFound", err)
	}
}

func TestManager_Discover_MissingDir(t *testing.T) {
	for _, dir := range []string{"", filepath.Join(t.TempDir(), "nope")} {
		m := NewManager(dir)
		if err := m.Discover(); err != nil {
			t.Errorf("Discover(%q) error = %v, want nil", dir, err)
		}
		if len(m.List()) != 0 {
			t.Errorf("Discover(%q) found plugins", dir)
		}
		if m.PluginDir() != dir {
			t.Errorf("PluginDir() = %q, want %q", m.PluginDir(), dir)
		}
	}
}

func TestManifest_Wants(t *testing.T) {
	tests := []struct {
		events []string
		event  string
		want   bool
	}{
		{nil, EventPress, true},
		{[]string{EventPress}, EventPress, true},
		{[]string{EventPress}, EventRelease, false},
		{[]string{EventRelease, EventPress}, EventRelease, true},
	}
	for _, tt := range tests {
		if got := (Manifest{Events: tt.events}).Wants(tt.event); got != tt.want {
			t.Errorf("Manifest{Events: %v}.Wants(%q) = %v, want %v", tt.events, tt.event, got, tt.want)
		}
	}
}
