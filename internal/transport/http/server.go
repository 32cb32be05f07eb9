// Package http implements the HTTP+SSE protocol adapter (C6): /mcp (tool
// calls), /health (liveness probe), /ws (best-effort change notifications),
// and static asset serving for the visualization bundle. Grounded on the
// teacher's internal/rpc HTTPServer (mux wiring, health/readiness handlers,
// graceful Shutdown via context) and its http_sse.go (SSE framing,
// Flusher, keepalive ticker), adapted from its Connect-RPC/bd.v1 surface to
// this service's tool-call envelope.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kgraphd/kgraphd/internal/graph"
	"github.com/kgraphd/kgraphd/internal/protocol"
	"github.com/kgraphd/kgraphd/internal/supervisor"
)

// Identity is an alias of supervisor.Identity, the record the /health
// handler reports; this alias is the package's only use of supervisor.
type Identity = supervisor.Identity

// Options configures Server.
type Options struct {
	Graph            *graph.Graph
	Identity         func() Identity
	AllowedOrigins   []string
	RequestTimeout   time.Duration
	EmbeddingTimeout time.Duration
	StaticDir        string
	Logger           *slog.Logger
}

// Server is the HTTP+SSE adapter. One Server fronts one *graph.Graph; the
// stdio adapter may run concurrently against the same Graph in hybrid mode.
type Server struct {
	opts Options
	log  *slog.Logger
	hub  *hub
	mux  *http.ServeMux
}

// New constructs a Server and wires its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.EmbeddingTimeout <= 0 {
		opts.EmbeddingTimeout = 5 * time.Minute
	}
	s := &Server{opts: opts, log: opts.Logger, hub: newHub()}
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/mcp", s.withCORS(s.handleMCP))
	s.mux.HandleFunc("/health", s.withCORS(s.handleHealth))
	s.mux.HandleFunc("/ws", s.withCORS(s.handleWS))
	if s.opts.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.opts.StaticDir)))
	}
}

// Serve runs the HTTP server on ln until ctx is canceled, then drains and
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // /mcp and /ws stream; per-request timeouts are enforced inside the handlers
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.closeAll()
		return srv.Shutdown(shutdownCtx)
	}
}

// withCORS applies a permissive-by-default, restrictable-by-config CORS
// policy, matching spec.md §4.6's "permissive by default for localhost;
// restrictable via configuration."
func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if len(s.opts.AllowedOrigins) == 0 {
		return isLocalOrigin(origin)
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func isLocalOrigin(origin string) bool {
	host, _, err := net.SplitHostPort(origin)
	if err != nil {
		host = origin
	}
	for _, prefix := range []string{"http://localhost", "https://localhost", "http://127.0.0.1", "https://127.0.0.1"} {
		if len(host) >= len(prefix) && host[:len(prefix)] == prefix {
			return true
		}
	}
	return origin == "http://localhost" || origin == "http://127.0.0.1"
}

// handleMCP handles POST /mcp: decode one tool-call envelope, dispatch it,
// frame the response as a single SSE message and close the stream. SSE is
// used instead of a bare JSON body per spec.md §4.6 so a future streaming
// tool result can reuse the same framing without a breaking change.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req protocol.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	timeout := s.opts.RequestTimeout
	if req.Params.Name == "generate_embeddings" {
		timeout = s.opts.EmbeddingTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	resp := s.dispatchWithRetry(ctx, req)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("marshal response", "error", err)
		return
	}
	fmt.Fprintf(w, "event: tool_result\ndata: %s\n\n", data)
	flusher.Flush()

	if resp.Error == nil {
		s.hub.notifyMutation(req.Params.Name, req.Params.Arguments)
	}
}

// dispatchWithRetry runs protocol.Dispatch, retrying once on a Conflict
// response — the single-retry policy spec.md §5/§7 assigns to the adapter
// layer, not the tool layer, so a transient SQLITE_BUSY-class collision
// under contention doesn't need to surface to the caller as a hard failure.
func (s *Server) dispatchWithRetry(ctx context.Context, req protocol.Request) *protocol.Response {
	var resp *protocol.Response
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(25*time.Millisecond), 1)
	_ = backoff.Retry(func() error {
		resp = protocol.Dispatch(ctx, s.opts.Graph, req)
		if resp.Error != nil && protocol.IsConflictCode(resp.Error.Code) {
			return fmt.Errorf("conflict")
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	return resp
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := s.opts.Identity()
	body := map[string]any{
		"status":        "ok",
		"name":          id.Name,
		"version":       id.Version,
		"pid":           id.PID,
		"host":          id.Host,
		"port":          id.Port,
		"in_docker":     id.InDocker,
		"database_path": id.DatabasePath,
		"started_at":    id.StartedAt,
	}
	if id.ContainerName != "" {
		body["container_name"] = id.ContainerName
	}

	if r.URL.Query().Get("verbose") == "1" {
		stats, err := s.opts.Graph.GetStats(r.Context())
		if err != nil {
			body["stats_error"] = err.Error()
		} else {
			body["stats"] = stats
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
