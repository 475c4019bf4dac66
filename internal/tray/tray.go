// Package tray provides a system tray menu for controlling a running
// transcription.
package tray

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/getlantern/systray"
)

// maxShownKeys caps how many pressed keys the menu lists.
const maxShownKeys = 8

// Controller is what the tray menu drives.
type Controller interface {
	Pause()
	Resume()
	RequestRecalibration() error
	Snapshot(dir string) (string, error)
}

// Tray represents the system tray application.
type Tray struct {
	onPause       func(paused bool)
	onRecalibrate func()
	onSnapshot    func()
	onQuit        func()
	paused        bool
	mu            sync.RWMutex

	// Menu items stored for later updates
	menuPause   *systray.MenuItem
	menuPressed *systray.MenuItem
	menuStatus  *systray.MenuItem
}

// New creates a new Tray instance in the running state.
func New() *Tray {
	return &Tray{}
}

// Connect wires the menu to ctrl. Snapshots are written to snapshotDir and
// quit is called after the Quit item is chosen.
func (t *Tray) Connect(ctrl Controller, snapshotDir string, quit func(), logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	t.OnPause(func(paused bool) {
		if paused {
			ctrl.Pause()
		} else {
			ctrl.Resume()
		}
	})
	t.OnRecalibrate(func() {
		if err := ctrl.RequestRecalibration(); err != nil {
			logger.Warn("recalibration from tray failed", "err", err)
			t.SetStatus("Recalibration failed")
			return
		}
		t.SetStatus("Recalibrated")
	})
	t.OnSnapshot(func() {
		path, err := ctrl.Snapshot(snapshotDir)
		if err != nil {
			logger.Warn("snapshot from tray failed", "err", err)
			t.SetStatus("Snapshot failed")
			return
		}
		t.SetStatus("Saved " + path)
	})
	t.OnQuit(quit)
}

// OnPause sets the callback called when the pause item is toggled.
func (t *Tray) OnPause(fn func(paused bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPause = fn
}

// OnRecalibrate sets the callback called when Recalibrate is clicked.
func (t *Tray) OnRecalibrate(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecalibrate = fn
}

// OnSnapshot sets the callback called when Snapshot is clicked.
func (t *Tray) OnSnapshot(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSnapshot = fn
}

// OnQuit sets the callback called when Quit is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Piano Vision")
	systray.SetTooltip("Piano Vision transcription")

	t.mu.Lock()
	t.menuPause = systray.AddMenuItem(pauseTitle(t.paused), "Pause or resume transcription")
	systray.AddSeparator()

	t.menuPressed = systray.AddMenuItem(pressedTitle(nil), "Keys pressed in the latest frame")
	t.menuPressed.Disable()
	t.menuStatus = systray.AddMenuItem("Ready", "Last action")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuRecalibrate := systray.AddMenuItem("Recalibrate", "Find the keyboard again on the current frame")
	menuSnapshot := systray.AddMenuItem("Save Snapshot", "Save the annotated frame")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Stop transcribing and quit")

	go func() {
		for {
			select {
			case <-t.menuPause.ClickedCh:
				t.handlePause()
			case <-menuRecalibrate.ClickedCh:
				t.handle(func() func() { return t.onRecalibrate })
			case <-menuSnapshot.ClickedCh:
				t.handle(func() func() { return t.onSnapshot })
			case <-menuQuit.ClickedCh:
				t.handle(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handlePause flips the paused state and notifies the callback.
func (t *Tray) handlePause() {
	t.mu.Lock()
	t.paused = !t.paused
	paused := t.paused
	if t.menuPause != nil {
		t.menuPause.SetTitle(pauseTitle(paused))
	}
	callback := t.onPause
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(paused)
	}
}

// handle reads a callback under the lock and calls it outside.
func (t *Tray) handle(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetPressed updates the pressed-keys display in the menu.
func (t *Tray) SetPressed(keys []string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuPressed != nil {
		t.menuPressed.SetTitle(pressedTitle(keys))
	}
}

// SetStatus updates the last-action line in the menu.
func (t *Tray) SetStatus(text string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(text)
	}
}

// IsPaused returns the current paused state.
func (t *Tray) IsPaused() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.paused
}

func pauseTitle(paused bool) string {
	if paused {
		return "▶ Resume"
	}
	return "❚❚ Pause"
}

func pressedTitle(keys []string) string {
	if len(keys) == 0 {
		return "Pressed: none"
	}
	if len(keys) > maxShownKeys {
		return "Pressed: " + strings.Join(keys[:maxShownKeys], " ") + " …"
	}
	return "Pressed: " + strings.Join(keys, " ")
}
