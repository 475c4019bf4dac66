package api

import (
	"net/http"
	"strings"

	"github.com/alextompkins/piano-vision/internal/app"
)

// Controller is the subset of app.App the control endpoints drive.
type Controller interface {
	Pause()
	Resume()
	RequestRecalibration() error
	Snapshot(dir string) (string, error)
	Status() app.Status
}

// ControlHandler serves /api/status and the POST control actions.
type ControlHandler struct {
	ctrl        Controller
	snapshotDir string
}

// NewControlHandler creates a ControlHandler. Snapshots are written to
// snapshotDir.
func NewControlHandler(ctrl Controller, snapshotDir string) *ControlHandler {
	if snapshotDir == "" {
		snapshotDir = "snapshots"
	}
	return &ControlHandler{ctrl: ctrl, snapshotDir: snapshotDir}
}

// ServeHTTP routes /api/status, /api/pause, /api/resume, /api/recalibrate
// and /api/snapshot.
func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/")

	if action == "status" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.ctrl.Status())
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "pause":
		h.ctrl.Pause()
		writeJSON(w, http.StatusOK, h.ctrl.Status())
	case "resume":
		h.ctrl.Resume()
		writeJSON(w, http.StatusOK, h.ctrl.Status())
	case "recalibrate":
		if err := h.ctrl.RequestRecalibration(); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, h.ctrl.Status())
	case "snapshot":
		path, err := h.ctrl.Snapshot(h.snapshotDir)
		if err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"path": path})
	default:
		http.NotFound(w, r)
	}
}
