// Package ingest accepts resource lifecycle events over HTTP and feeds them
// to the reconcile manager. It is the event source for inventories that
// push changes instead of being watched.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/pkg/logging"
)

const maxBodyBytes = 1 << 20

// Server is the ingest HTTP server. It implements reconciler.EventSource.
type Server struct {
	mu sync.Mutex

	addr       string
	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates a Server listening on addr once started.
func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context, events chan<- api.ResourceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("ingest listen on %s: %w", s.addr, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           NewHandler(ctx, events),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srv := s.httpServer
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ingest", err, "Ingest server stopped")
		}
	}()

	logging.Info("Ingest", "Ingest endpoint listening on %s", ln.Addr().String())
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

type acceptedResponse struct {
	Accepted int `json:"accepted"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler returns the ingest routes:
//
//	POST /events   one event object or an array of events
//	GET  /healthz
//
// Events are forwarded to events in request order. Forwarding blocks while
// the channel is full and gives up with 503 once ctx is done.
func NewHandler(ctx context.Context, events chan<- api.ResourceEvent) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/events", func(w http.ResponseWriter, r *http.Request) {
		batch, err := decodeEvents(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		for i, ev := range batch {
			select {
			case events <- ev:
			case <-ctx.Done():
				writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: fmt.Sprintf("shutting down after %d of %d events", i, len(batch))})
				return
			case <-r.Context().Done():
				return
			}
		}

		logging.Debug("Ingest", "Accepted %d events from %s", len(batch), r.RemoteAddr)
		writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: len(batch)})
	})

	return r
}

func decodeEvents(body io.Reader) ([]api.ResourceEvent, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty body")
	}

	var batch []api.ResourceEvent
	if data[0] == '[' {
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
	} else {
		var ev api.ResourceEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		batch = append(batch, ev)
	}

	for i, ev := range batch {
		if ev.TenantID == "" || ev.ResourceID == "" {
			return nil, fmt.Errorf("event %d: tenantId and resourceId are required", i)
		}
	}
	return batch, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
