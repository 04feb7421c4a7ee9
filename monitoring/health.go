package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Health tracks liveness facts the scanner reports.
type Health struct {
	mu        sync.RWMutex
	started   time.Time
	lastScan  time.Time
	paused    bool
	lastError string
}

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	LastScan  time.Time `json:"last_scan"`
	Paused    bool      `json:"trading_paused"`
	Uptime    string    `json:"uptime"`
	LastError string    `json:"last_error,omitempty"`
}

func NewHealth() *Health {
	return &Health{started: time.Now()}
}

// ScanFinished records a completed scan and its error, if any.
func (h *Health) ScanFinished(at time.Time, err error) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastScan = at
	if err != nil {
		h.lastError = err.Error()
	} else {
		h.lastError = ""
	}
}

func (h *Health) SetPaused(paused bool) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = paused
}

// Status returns "healthy", "paused" or "degraded".
func (h *Health) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if h.paused {
		status = "paused"
	}
	if h.lastError != "" {
		status = "degraded"
	}
	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		LastScan:  h.lastScan,
		Paused:    h.paused,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		LastError: h.lastError,
	}
}

func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st := h.Status()
	w.Header().Set("Content-Type", "application/json")
	if st.Status == "degraded" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(st)
}

// Server exposes /metrics and /health.
type Server struct {
	srv *http.Server
}

// NewServer builds the listener for addr using the collectors in g.
func NewServer(addr string, g prometheus.Gatherer, h *Health) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.Handle("/health", h)
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Handler returns the mux, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
