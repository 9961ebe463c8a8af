package screen

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/MrWong99/fluentforge/internal/observe"
)

// Handler upgrades requests to WebSocket sessions.
type Handler struct {
	cfg     SessionConfig
	origins []string

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewHandler returns a Handler. origins lists the host patterns allowed to
// open sessions from a browser besides the server's own host.
func NewHandler(cfg SessionConfig, origins ...string) *Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{cfg: cfg, origins: origins, ctx: ctx, cancel: cancel}
}

// RegisterRoutes registers the session endpoint on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /v1/session", h)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		// Accept has already written the response.
		h.cfg.Logger.WarnContext(r.Context(), "screen: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.ctx, func() {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		cancel()
	})
	defer stop()

	sess := NewSession(h.cfg)
	log := h.cfg.Logger.With("session_id", sess.ID())

	h.cfg.Metrics.ActiveSessions.Add(ctx, 1)
	defer h.cfg.Metrics.ActiveSessions.Add(context.Background(), -1)
	log.InfoContext(ctx, "screen: session started", "remote", r.RemoteAddr)

	if err := sess.Run(ctx, conn); err != nil {
		log.WarnContext(ctx, "screen: session failed", "err", err)
		conn.Close(websocket.StatusInternalError, "session error")
		return
	}
	if h.ctx.Err() == nil {
		conn.Close(websocket.StatusNormalClosure, "")
	}
	log.InfoContext(ctx, "screen: session ended")
}

// Close ends every open session and waits for them to finish.
func (h *Handler) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()
	h.wg.Wait()
	return nil
}
