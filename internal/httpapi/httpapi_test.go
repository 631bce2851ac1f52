package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/edwin001-tech/misused-senders/internal/config"
	"github.com/edwin001-tech/misused-senders/internal/domain"
	"github.com/edwin001-tech/misused-senders/internal/events"
	"github.com/edwin001-tech/misused-senders/internal/job"
	"github.com/edwin001-tech/misused-senders/internal/source"
	"github.com/edwin001-tech/misused-senders/internal/store"
)

type fakeRunner struct {
	mu      sync.Mutex
	err     error
	calls   int
	running bool
	done    chan struct{}
}

func (f *fakeRunner) Run(context.Context) (job.Result, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	f.mu.Unlock()
	if f.done != nil {
		defer close(f.done)
	}
	return job.Result{RunID: "r1"}, err
}

func (f *fakeRunner) Status() job.RunStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return job.RunStatus{Running: f.running, LastMismatches: 4}
}

func newTestServer(t *testing.T, runner RunService) (*httptest.Server, *store.DB, *events.Hub) {
	t.Helper()
	ledger, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	var cfgVal atomic.Value
	cfg := config.Default()
	cfg.SMTP.Password = "hunter2"
	cfgVal.Store(cfg)

	hub := events.NewHub()
	srv := httptest.NewServer(Handler(Deps{
		Runner:  runner,
		Ledger:  ledger,
		Hub:     hub,
		Log:     zaptest.NewLogger(t),
		CfgVal:  &cfgVal,
		BaseCtx: context.Background(),
	}))
	t.Cleanup(srv.Close)
	return srv, ledger, hub
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeRunner{})
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, true, body["ok"])
}

func TestRunSyncOutcomes(t *testing.T) {
	cases := []struct {
		err     error
		code    int
		key     string
		message string
	}{
		{nil, http.StatusOK, "message", job.MsgSuccess},
		{fmt.Errorf("%w: ping: refused", source.ErrDatabase), http.StatusInternalServerError, "error", job.MsgDatabase},
		{fmt.Errorf("smtp send: boom"), http.StatusInternalServerError, "error", job.MsgFailed},
		{job.ErrAlreadyRunning, http.StatusConflict, "error", job.MsgAlreadyBusy},
	}
	for _, tc := range cases {
		srv, _, _ := newTestServer(t, &fakeRunner{err: tc.err})
		resp, err := http.Post(srv.URL+"/api/misused-senders", "application/json", nil)
		require.NoError(t, err)
		assert.Equal(t, tc.code, resp.StatusCode)
		var body map[string]string
		decode(t, resp, &body)
		assert.Equal(t, tc.message, body[tc.key])
	}
}

func TestRunSyncMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeRunner{})
	resp, err := http.Get(srv.URL + "/api/misused-senders")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	var body APIError
	decode(t, resp, &body)
	assert.Equal(t, "method_not_allowed", body.Error.Code)
}

func TestRunAsync(t *testing.T) {
	fr := &fakeRunner{done: make(chan struct{})}
	srv, _, _ := newTestServer(t, fr)

	resp, err := http.Post(srv.URL+"/api/runs", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	select {
	case <-fr.done:
	case <-time.After(2 * time.Second):
		t.Fatal("background run never started")
	}

	busy := &fakeRunner{running: true}
	srv2, _, _ := newTestServer(t, busy)
	resp, err = http.Post(srv2.URL+"/api/runs", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
	assert.Zero(t, busy.calls)
}

func TestRunStatus(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeRunner{})
	resp, err := http.Get(srv.URL + "/api/runs/status")
	require.NoError(t, err)
	var st job.RunStatus
	decode(t, resp, &st)
	assert.Equal(t, 4, st.LastMismatches)
}

func TestRunsLedgerRoutes(t *testing.T) {
	srv, ledger, _ := newTestServer(t, &fakeRunner{})
	ctx := context.Background()

	id, err := ledger.StartRun(ctx, time.Now())
	require.NoError(t, err)
	require.NoError(t, ledger.InsertMismatches(ctx, id, []domain.Mismatch{
		{Date: time.Now(), SenderID: "SHOP", Message: "Sale", ClassifiedType: domain.Promotional, ExpectedType: domain.Transactional},
	}))
	require.NoError(t, ledger.FinishRun(ctx, id, store.RunResult{FinishedAt: time.Now(), Processed: 10, Mismatches: 1, Emailed: true}))

	resp, err := http.Get(srv.URL + "/api/runs?limit=5")
	require.NoError(t, err)
	var runs []store.Run
	decode(t, resp, &runs)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, store.StatusOK, runs[0].Status)

	resp, err = http.Get(srv.URL + "/api/runs/" + id)
	require.NoError(t, err)
	var run store.Run
	decode(t, resp, &run)
	assert.Equal(t, 10, run.Processed)

	resp, err = http.Get(srv.URL + "/api/runs/" + id + "/mismatches")
	require.NoError(t, err)
	var rows []domain.Mismatch
	decode(t, resp, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, "SHOP", rows[0].SenderID)

	resp, err = http.Get(srv.URL + "/api/runs/missing/mismatches")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestConfigHidesSecrets(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeRunner{})
	resp, err := http.Get(srv.URL + "/api/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	var raw map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	b, _ := json.Marshal(raw)
	assert.NotContains(t, string(b), "hunter2")
	assert.Contains(t, raw, "smtp")
}

func TestConfigValidatePosted(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeRunner{})
	post := func(contentType, body string) *http.Response {
		t.Helper()
		resp, err := http.Post(srv.URL+"/api/config/validate", contentType, strings.NewReader(body))
		require.NoError(t, err)
		return resp
	}

	// an empty YAML document is just the defaults
	var vr config.Validation
	resp := post("application/yaml", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &vr)
	assert.Empty(t, vr.Errors)

	vr = config.Validation{}
	resp = post("application/yaml", "classifier:\n  provider: bogus\n")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &vr)
	require.Len(t, vr.Errors, 1)
	assert.Contains(t, vr.Errors[0], "classifier.provider")

	vr = config.Validation{}
	resp = post("application/json", `{"smtp":{"port":0}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &vr)
	require.Len(t, vr.Errors, 1)
	assert.Contains(t, vr.Errors[0], "smtp.port")

	resp = post("application/json", `{"smtp":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var apiErr APIError
	decode(t, resp, &apiErr)
	assert.Equal(t, CodeInvalidConfig, apiErr.Error.Code)

	resp, err := http.Get(srv.URL + "/api/config/validate")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}

func TestEventsStream(t *testing.T) {
	srv, _, hub := newTestServer(t, &fakeRunner{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	readData := func() string {
		for sc.Scan() {
			if line := sc.Text(); strings.HasPrefix(line, "data: ") {
				return strings.TrimPrefix(line, "data: ")
			}
		}
		return ""
	}
	assert.Contains(t, readData(), `"type":"ping"`)

	hub.Publish(events.MakeEvent("", events.RunFinished, events.FinishedData{RunID: "r9", OK: true}))
	got := readData()
	assert.Contains(t, got, `"type":"run_finished"`)
	assert.Contains(t, got, `"run_id":"r9"`)
}

func TestShutdownEndsEventStreams(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cfgVal atomic.Value
	cfgVal.Store(config.Default())
	srv := NewServer(Deps{
		Runner:  &fakeRunner{},
		Hub:     events.NewHub(),
		Log:     zaptest.NewLogger(t),
		CfgVal:  &cfgVal,
		BaseCtx: base,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: message\n", line)

	cancel()
	sctx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	require.NoError(t, srv.Shutdown(sctx))
	assert.ErrorIs(t, <-served, http.ErrServerClosed)
}
