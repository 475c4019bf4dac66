package app

import (
	"github.com/alextompkins/piano-vision/internal/store"
)

// Recorder persists an App's calibrations and transcript to a store session.
type Recorder struct {
	store   *store.Store
	session *store.Session
	app     *App
}

// Record creates a running session for source and stores every calibration
// and frame result a produces from now on. A calibration a already holds is
// stored first.
func Record(a *App, st *store.Store, source string) (*Recorder, error) {
	sess := &store.Session{Source: source, SampleEvery: a.config.SampleEvery}
	if err := st.Sessions().Create(sess); err != nil {
		return nil, err
	}

	r := &Recorder{store: st, session: sess, app: a}
	a.OnCalibrate(r.calibrated)
	a.OnResult(r.result)
	if cal, ok := a.Session().Calibration(); ok {
		r.calibrated(a.Status().Frame, cal)
	}

	a.logger.Info("recording session", "session", sess.ID, "db", st.Path())
	return r, nil
}

// SessionID returns the ID of the stored session.
func (r *Recorder) SessionID() string {
	return r.session.ID
}

// Finish marks the session finished, or failed when runErr is non-nil.
func (r *Recorder) Finish(runErr error) error {
	status := store.SessionFinished
	if runErr != nil {
		status = store.SessionFailed
	}
	return r.store.Sessions().Finish(r.session.ID, status, r.app.Status().Frame)
}

func (r *Recorder) calibrated(frame int, cal Calibration) {
	err := r.store.Calibrations().Record(&store.Calibration{
		SessionID: r.session.ID,
		Frame:     frame,
		Angle:     cal.Angle,
		Bounds:    cal.Bounds,
		WhiteKeys: len(cal.Layout.White),
		BlackKeys: len(cal.Layout.Black),
		Labeled:   cal.Layout.Labeled(),
	})
	if err != nil {
		r.app.logger.Warn("failed to store calibration", "session", r.session.ID, "frame", frame, "err", err)
	}
}

func (r *Recorder) result(res FrameResult) {
	keys := make([]string, len(res.Pressed))
	for i, k := range res.Pressed {
		keys[i] = k.String()
	}
	if err := r.store.Transcripts().Append(r.session.ID, res.Index, keys); err != nil {
		r.app.logger.Warn("failed to store transcript line", "session", r.session.ID, "frame", res.Index, "err", err)
	}
}
