package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"
)

// NewMux wires the API routes.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	hh := HealthHandler{}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	// Runs
	rh := RunsHandler{Runner: d.Runner, Ledger: d.Ledger, Log: d.Log, BaseCtx: d.BaseCtx}
	mux.HandleFunc("/api/misused-senders", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: rh.RunSync,
	}))
	mux.HandleFunc("/api/runs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  rh.List,
		http.MethodPost: rh.RunAsync,
	}))
	mux.HandleFunc("/api/runs/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.Status,
	}))
	mux.HandleFunc("/api/runs/{id}", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.Get,
	}))
	mux.HandleFunc("/api/runs/{id}/mismatches", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.Mismatches,
	}))

	// Config (read-only; secrets never serialize)
	ch := ConfigHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/api/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
	}))
	mux.HandleFunc("/api/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ch.Validate,
	}))

	sh := SecretsHandler{}
	mux.HandleFunc("/api/secrets/{name}", methodMux(map[string]http.HandlerFunc{
		http.MethodPut:    sh.Set,
		http.MethodDelete: sh.Delete,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	return mux
}

// Handler is the mux behind the standard middleware chain.
func Handler(d Deps) http.Handler {
	return Chain(NewMux(d), RequestID, Recover(d.Log), AccessLog(d.Log))
}

// NewServer returns the API server. Request contexts derive from
// d.BaseCtx, so cancelling it ends open /events streams and lets Shutdown
// finish.
func NewServer(d Deps) *http.Server {
	srv := &http.Server{
		Handler:           Handler(d),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if d.BaseCtx != nil {
		base := d.BaseCtx
		srv.BaseContext = func(net.Listener) context.Context { return base }
	}
	return srv
}
