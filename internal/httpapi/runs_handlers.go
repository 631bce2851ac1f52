package httpapi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/edwin001-tech/misused-senders/internal/job"
)

type RunsHandler struct {
	Runner  RunService
	Ledger  RunLedger
	Log     *zap.Logger
	BaseCtx context.Context
}

func (h RunsHandler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// RunSync runs the audit inside the request and answers with the outcome
// message, the way the daily script's endpoint always has.
func (h RunsHandler) RunSync(w http.ResponseWriter, r *http.Request) {
	_, err := h.Runner.Run(r.Context())
	if err != nil {
		h.log().Error("run failed", zap.String("request_id", RequestIDFrom(r.Context())), zap.Error(err))
	}
	WriteOutcome(w, err)
}

// RunAsync starts a run in the background.
func (h RunsHandler) RunAsync(w http.ResponseWriter, r *http.Request) {
	if h.Runner.Status().Running {
		WriteJSON(w, http.StatusConflict, map[string]any{"ok": false, "msg": "already running"})
		return
	}

	ctx := h.BaseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		if _, err := h.Runner.Run(ctx); err != nil && !errors.Is(err, job.ErrAlreadyRunning) {
			h.log().Error("background run failed", zap.Error(err))
		}
	}()
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (h RunsHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Runner.Status())
}

func (h RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Ledger.ListRuns(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, runs)
}

func (h RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.Ledger.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

func (h RunsHandler) Mismatches(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.Ledger.GetRun(r.Context(), id); err != nil {
		writeLedgerError(w, r, err)
		return
	}
	rows, err := h.Ledger.ListMismatches(r.Context(), id)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, rows)
}
