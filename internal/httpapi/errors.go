package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/edwin001-tech/misused-senders/internal/job"
	"github.com/edwin001-tech/misused-senders/internal/store"
)

// Error codes carried in APIError.
const (
	CodeBadRequest       = "bad_request"
	CodeInvalidConfig    = "invalid_config"
	CodeNotFound         = "not_found"
	CodeLedger           = "ledger_error"
	CodeSecretRejected   = "secret_rejected"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeInternal         = "internal_error"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

// WriteJSON encodes v with status. Encode failures go to the global zap
// logger; the header is already out by then.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Named("http").Warn("encode response", zap.Int("status", status), zap.Error(err))
	}
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// WriteOutcome answers a synchronous run with the flat envelope the audit
// endpoint has always used: {"message": ...} on success, {"error": ...}
// otherwise.
func WriteOutcome(w http.ResponseWriter, runErr error) {
	msg, status := job.Outcome(runErr)
	if runErr != nil {
		WriteJSON(w, status, map[string]string{"error": msg})
		return
	}
	WriteJSON(w, status, map[string]string{"message": msg})
}

// writeLedgerError maps a ledger lookup failure to 404 or 500.
func writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, CodeNotFound, "run not found")
		return
	}
	WriteError(w, r, http.StatusInternalServerError, CodeLedger, err.Error())
}
