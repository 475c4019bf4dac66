package server

import (
	"fmt"
	"net/http"
	"time"
)

// streamInterval paces the MJPEG stream at about 15 FPS.
const streamInterval = 66 * time.Millisecond

// Previewer supplies the latest annotated JPEG and the frame it shows.
type Previewer interface {
	Preview() ([]byte, int)
}

// StreamHandler serves the annotated keyboard preview as MJPEG.
type StreamHandler struct {
	source Previewer
}

// NewStreamHandler creates a new StreamHandler reading from source.
func NewStreamHandler(source Previewer) *StreamHandler {
	return &StreamHandler{source: source}
}

// ServeHTTP streams each new preview frame to the client until it disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	sent := -1
	for {
		if data, index := h.source.Preview(); len(data) > 0 && index != sent {
			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
			if _, err := w.Write(data); err != nil {
				return
			}
			fmt.Fprintf(w, "\r\n")
			sent = index

			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
