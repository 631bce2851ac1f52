package job

import (
	"errors"
	"net/http"
	"time"

	"github.com/edwin001-tech/misused-senders/internal/source"
)

const (
	MsgSuccess     = "Misused sender IDs have been processed and emailed successfully."
	MsgDatabase    = "Database connection issue. Check server logs."
	MsgFailed      = "Failed to process records. Check server logs."
	MsgAlreadyBusy = "A run is already in progress."
)

// Outcome maps a run error to the message and HTTP status reported to
// callers. Details stay in the logs.
func Outcome(err error) (string, int) {
	switch {
	case err == nil:
		return MsgSuccess, http.StatusOK
	case errors.Is(err, ErrAlreadyRunning):
		return MsgAlreadyBusy, http.StatusConflict
	case errors.Is(err, source.ErrDatabase):
		return MsgDatabase, http.StatusInternalServerError
	default:
		return MsgFailed, http.StatusInternalServerError
	}
}

// RunStatus is the live view of this process's runs.
type RunStatus struct {
	Running        bool      `json:"running"`
	LastRunAt      time.Time `json:"last_run_at,omitzero"`
	LastOKAt       time.Time `json:"last_ok_at,omitzero"`
	LastError      string    `json:"last_error"`
	LastMismatches int       `json:"last_mismatches"`
	LastRunID      string    `json:"last_run_id,omitempty"`
}

func (r *Runner) Status() RunStatus {
	st, _ := r.status.Load().(RunStatus)
	return st
}

func (r *Runner) markStarted(at time.Time) {
	st := r.Status()
	st.Running = true
	st.LastRunAt = at.UTC()
	st.LastError = ""
	r.status.Store(st)
}

func (r *Runner) markFinished(res Result, err error) {
	st := r.Status()
	st.Running = false
	st.LastRunID = res.RunID
	st.LastMismatches = res.Mismatches
	if err != nil {
		st.LastError = err.Error()
	} else {
		st.LastError = ""
		st.LastOKAt = r.now().UTC()
	}
	r.status.Store(st)
}
