// Package hass talks to the Home Assistant WebSocket API.
package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var (
	// ErrAuthInvalid is returned when Home Assistant rejects the access token.
	ErrAuthInvalid = errors.New("hass: authentication rejected")
	// ErrClosed is returned for calls on, or pending during, a closed connection.
	ErrClosed = errors.New("hass: connection closed")
)

// CommandError is the error object of an unsuccessful result message.
type CommandError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("hass: %s: %s", e.Code, e.Message)
}

// Config holds connection settings.
type Config struct {
	URL     string // e.g. ws://homeassistant.local:8123/api/websocket
	Token   string // long-lived access token
	Timeout time.Duration
}

// Client is an authenticated WebSocket connection. Calls may be issued
// concurrently; results are matched to requests by message id.
type Client struct {
	conn      *websocket.Conn
	logger    *slog.Logger
	timeout   time.Duration
	haVersion string

	mu      sync.Mutex
	nextID  int
	pending map[int]chan *resultMessage
	closed  bool
	closing bool
	err     error

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
	HAVersion   string `json:"ha_version,omitempty"`
	Message     string `json:"message,omitempty"`
}

type resultMessage struct {
	ID      int             `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *CommandError   `json:"error,omitempty"`
}

// Dial connects to Home Assistant and performs the auth handshake.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	// Device and entity lists of large installations exceed the 32 KiB default.
	conn.SetReadLimit(16 << 20)

	version, err := authenticate(ctx, conn, cfg.Token)
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "auth failed")
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	clientCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:      conn,
		logger:    logger.With("component", "hass"),
		timeout:   timeout,
		haVersion: version,
		pending:   make(map[int]chan *resultMessage),
		ctx:       clientCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go c.readLoop()
	c.logger.Info("connected to home assistant", "url", cfg.URL, "version", version)
	return c, nil
}

func authenticate(ctx context.Context, conn *websocket.Conn, token string) (string, error) {
	var msg authMessage
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		return "", fmt.Errorf("read auth_required: %w", err)
	}
	if msg.Type != "auth_required" {
		return "", fmt.Errorf("unexpected handshake message %q", msg.Type)
	}
	version := msg.HAVersion

	if err := wsjson.Write(ctx, conn, authMessage{Type: "auth", AccessToken: token}); err != nil {
		return "", fmt.Errorf("send auth: %w", err)
	}
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		return "", fmt.Errorf("read auth result: %w", err)
	}
	switch msg.Type {
	case "auth_ok":
		return version, nil
	case "auth_invalid":
		return "", fmt.Errorf("%w: %s", ErrAuthInvalid, msg.Message)
	default:
		return "", fmt.Errorf("unexpected handshake message %q", msg.Type)
	}
}

// Version returns the Home Assistant version announced during the handshake.
func (c *Client) Version() string {
	return c.haVersion
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection closed, or nil while it is open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close closes the connection and fails all pending calls with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	c.cancel()
	<-c.done
	return err
}

// Call sends a command and decodes its result into out (which may be nil).
// Without a deadline on ctx the client's default timeout applies.
func (c *Client) Call(ctx context.Context, cmdType string, params map[string]any, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ch := make(chan *resultMessage, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", cmdType, ErrClosed)
	}
	c.nextID++
	id := c.nextID
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	msg := make(map[string]any, len(params)+2)
	for k, v := range params {
		msg[k] = v
	}
	msg["id"] = id
	msg["type"] = cmdType

	c.logger.Debug("send command", "id", id, "type", cmdType)
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		return fmt.Errorf("send %s: %w", cmdType, err)
	}

	select {
	case res, ok := <-ch:
		if !ok {
			return fmt.Errorf("%s: %w", cmdType, ErrClosed)
		}
		if !res.Success {
			if res.Error == nil {
				return fmt.Errorf("%s: %w", cmdType, &CommandError{Code: "unknown_error", Message: "command failed"})
			}
			return fmt.Errorf("%s: %w", cmdType, res.Error)
		}
		if out != nil && len(res.Result) > 0 {
			if err := json.Unmarshal(res.Result, out); err != nil {
				return fmt.Errorf("decode %s result: %w", cmdType, err)
			}
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", cmdType, ctx.Err())
	}
}

func (c *Client) readLoop() {
	var loopErr error
	defer func() { c.shutdown(loopErr) }()

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			loopErr = err
			return
		}
		var msg resultMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("discard malformed message", "err", err)
			continue
		}
		if msg.Type != "result" {
			c.logger.Debug("ignore message", "type", msg.Type, "id", msg.ID)
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		if ok {
			delete(c.pending, msg.ID)
		}
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("result for unknown request", "id", msg.ID)
			continue
		}
		ch <- &msg
	}
}

func (c *Client) shutdown(cause error) {
	c.mu.Lock()
	c.closed = true
	if cause == nil || c.closing {
		c.err = ErrClosed
	} else {
		c.err = fmt.Errorf("%w: %w", ErrClosed, cause)
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	c.cancel()
	close(c.done)
	c.logger.Info("home assistant connection closed", "err", c.err)
}
