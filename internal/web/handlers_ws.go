package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"lcn-go-panel/internal/panel"
)

const wsSendBuffer = 64

// wsHub tracks live push connections so shutdown can close them.
type wsHub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
	logger  *slog.Logger
}

func newWSHub(logger *slog.Logger) *wsHub {
	return &wsHub{
		clients: make(map[*wsClient]struct{}),
		logger:  logger,
	}
}

// add registers c; it reports false once the hub is closed.
func (h *wsHub) add(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug("ws client connected", "host", c.host, "total", len(h.clients))
	return true
}

func (h *wsHub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()
	c.close()
	h.logger.Debug("ws client disconnected", "total", total)
}

func (h *wsHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// closeAll ends every stream and refuses new ones. Safe to call twice.
func (h *wsHub) closeAll() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// wsClient is one browser stream. push is called straight from the event
// bus and never blocks: a client whose buffer is full is dropped.
type wsClient struct {
	conn   *websocket.Conn
	host   string
	logger *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newWSClient(conn *websocket.Conn, host string, logger *slog.Logger) *wsClient {
	return &wsClient{
		conn:   conn,
		host:   host,
		logger: logger,
		send:   make(chan []byte, wsSendBuffer),
	}
}

func (c *wsClient) push(event panel.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("ws marshal", "type", event.Type, "err", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.closed = true
		close(c.send)
		c.logger.Warn("ws client evicted (too slow)", "host", c.host)
	}
}

// close ends the send queue; the writer then closes the connection.
func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// subscribe attaches c to the bus, scoped to its host when one was asked for.
func (c *wsClient) subscribe(bus *panel.EventBus) func() {
	if c.host == "" {
		return bus.OnAll(c.push)
	}
	return bus.OnHost(c.host, c.push)
}

// handleWS upgrades the request; ?host= narrows the stream to one host.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(s.allowedOrigins) > 0 {
		opts.OriginPatterns = s.allowedOrigins
	}
	// Without allowed origins nhooyr enforces same-origin.

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Error("ws accept", "err", err)
		return
	}
	conn.SetReadLimit(4096)

	client := newWSClient(conn, r.URL.Query().Get("host"), s.logger)
	unsub := client.subscribe(s.panel.Events())
	if !s.wsHub.add(client) {
		unsub()
		conn.Close(websocket.StatusGoingAway, "server shutdown")
		return
	}
	defer func() {
		unsub()
		s.wsHub.remove(client)
	}()

	go s.wsWritePump(client)
	s.wsReadPump(client)
}

func (s *Server) wsWritePump(client *wsClient) {
	for msg := range client.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := client.conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			client.conn.Close(websocket.StatusInternalError, "write failed")
			return
		}
	}
	client.conn.Close(websocket.StatusGoingAway, "")
}

// wsReadPump blocks until the peer or the writer closes the connection.
// The stream is push-only; reads just detect the close.
func (s *Server) wsReadPump(client *wsClient) {
	for {
		if _, _, err := client.conn.Read(context.Background()); err != nil {
			return
		}
	}
}
