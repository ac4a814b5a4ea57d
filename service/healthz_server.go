package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"
)

// Progress is reported by the healthz endpoint while a session runs
type Progress struct {
	RunID       string `json:"runId"`
	Environment string `json:"environment"`
	State       string `json:"state"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"maxAttempts"`
}

// HealthzServer answers liveness checks. With a ProgressFunc set the body is
// the session's progress as JSON instead of a plain OK.
type HealthzServer struct {
	mu       sync.Mutex
	ctx      context.Context
	server   *http.Server
	progress func() Progress
}

// SetProgressFunc sets the source of the progress document
func (h *HealthzServer) SetProgressFunc(fn func() Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.progress = fn
}

func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", h.Handle)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	server := &http.Server{
		Handler: c.Handler(hdlr),
		Addr:    addr,
	}
	h.mu.Lock()
	h.server = server
	h.ctx = ctx
	h.mu.Unlock()
	return server.ListenAndServe()
}

func (h *HealthzServer) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(h.ctx)
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	log.Debug("Received health check request", "path", r.URL.Path)
	h.mu.Lock()
	progress := h.progress
	h.mu.Unlock()

	if progress == nil {
		w.Write([]byte("OK")) //nolint:errcheck
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(progress()); err != nil {
		log.Warn("Failed to encode progress", "error", err)
	}
}
