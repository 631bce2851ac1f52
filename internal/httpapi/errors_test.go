package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/edwin001-tech/misused-senders/internal/job"
	"github.com/edwin001-tech/misused-senders/internal/store"
)

func TestWriteJSONLogsEncodeFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]float64{"score": math.Inf(1)})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "encode response", logs.All()[0].Message)
}

func TestWriteOutcome(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteOutcome(rec, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"message":%q}`, job.MsgSuccess), rec.Body.String())

	rec = httptest.NewRecorder()
	WriteOutcome(rec, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, job.MsgFailed), rec.Body.String())
}

func TestWriteLedgerError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/runs/x", nil)

	rec := httptest.NewRecorder()
	writeLedgerError(rec, req, fmt.Errorf("get run: %w", store.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var e APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, CodeNotFound, e.Error.Code)

	rec = httptest.NewRecorder()
	writeLedgerError(rec, req, errors.New("disk I/O error"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, CodeLedger, e.Error.Code)
}
