// Package observer streams episode snapshots to websocket clients.
//
// The server is a game.RenderSink. Every rendered snapshot is encoded once and
// fanned out to connected clients through bounded queues; a client that falls
// behind loses frames instead of stalling the simulation.
package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/flap/game"
)

const (
	writeWait  = time.Second
	pongWait   = 10 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1024
)

// Server publishes snapshots over HTTP and websocket.
type Server struct {
	addr   string
	logger *slog.Logger

	upgrader websocket.Upgrader
	router   *mux.Router
	hub      *hub
	latest   game.LatestSink
}

// NewServer creates a server for addr. Each client queues at most buffer
// frames before new frames are dropped for it.
func NewServer(addr string, buffer int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:   addr,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		hub: newHub(max(buffer, 1)),
	}

	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	r.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router = r
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler { return s.router }

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int { return s.hub.len() }

// Dropped returns the number of frames discarded for slow clients.
func (s *Server) Dropped() uint64 { return s.hub.dropped.Load() }

// Render records s as the latest snapshot and broadcasts it.
func (s *Server) Render(snap game.Snapshot) {
	s.latest.Render(snap)
	if s.hub.len() == 0 {
		return
	}
	b, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error("encoding snapshot", "tick", snap.Tick, "error", err)
		return
	}
	s.hub.broadcast(b)
}

// Serve listens on the configured address until ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("observer listen: %w", err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("observer listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.hub.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("observer shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.latest.Latest()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Warn("writing snapshot", "error", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	var first []byte
	if snap, ok := s.latest.Latest(); ok {
		first, _ = json.Marshal(snap)
	}
	c, ok := s.hub.add(first)
	if !ok {
		return
	}
	defer s.hub.remove(c)
	s.logger.Debug("observer connected", "remote", r.RemoteAddr, "clients", s.hub.len())

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return readLoop(conn) })
	g.Go(func() error {
		// Closing unblocks the reader.
		defer conn.Close()
		return writeLoop(ctx, conn, c)
	})
	if err := g.Wait(); err != nil && !isClosure(err) {
		s.logger.Debug("observer disconnected", "remote", r.RemoteAddr, "error", err)
	}
}

// readLoop discards client messages and keeps the pong deadline fresh. It
// returns when the connection fails or closes.
func readLoop(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return err
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, c *client) error {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return nil
		case b, ok := <-c.out:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"), time.Now().Add(writeWait))
				return errClosed
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return err
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
	}
}

var errClosed = errors.New("observer closed")

func isClosure(err error) bool {
	return errors.Is(err, errClosed) || websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// client is one connection's outbound queue.
type client struct {
	out     chan []byte
	dropped *atomic.Uint64
}

// offer queues b without blocking.
func (c *client) offer(b []byte) {
	select {
	case c.out <- b:
	default:
		c.dropped.Add(1)
	}
}

type hub struct {
	buffer  int
	dropped atomic.Uint64

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func newHub(buffer int) *hub {
	return &hub{buffer: buffer, clients: make(map[*client]struct{})}
}

// add registers a client with first queued, if set. It fails once the hub is
// closed.
func (h *hub) add(first []byte) (*client, bool) {
	c := &client{out: make(chan []byte, h.buffer), dropped: &h.dropped}
	if first != nil {
		c.out <- first
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	h.clients[c] = struct{}{}
	return c, true
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.out)
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) broadcast(b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.offer(b)
	}
}

// closeAll disconnects every client and refuses new ones.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.out)
	}
	h.closed = true
}
