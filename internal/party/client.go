package party

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Dialer creates client handles. Dial fails synchronously only when the handle
// cannot be constructed; connection failures are reported through Handlers.OnClosed.
// Handlers are never invoked from within Dial.
type Dialer interface {
	Dial(h Handlers) (Conn, error)
}

// Conn is one client handle to the chat service.
type Conn interface {
	// CreateRoom creates a room and returns its ID.
	CreateRoom(ctx context.Context, nickname, icon string) (string, error)

	// JoinRoom joins an existing room. The returned list is nil when the
	// server sends no history.
	JoinRoom(ctx context.Context, nickname, roomID, icon string) (*MessageList, error)

	// Send writes a fire-and-forget frame.
	Send(kind MessageKind, body any) error

	// Close closes the handle without firing OnClosed.
	Close() error
}

// WSDialer dials the chat service over a websocket.
type WSDialer struct {
	cfg    ClientConfig
	logger *slog.Logger
}

// NewDialer creates a websocket Dialer.
func NewDialer(cfg ClientConfig, logger *slog.Logger) *WSDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSDialer{cfg: cfg, logger: logger}
}

// Dial validates the URL, then connects in the background.
func (d *WSDialer) Dial(h Handlers) (Conn, error) {
	u, err := url.Parse(d.cfg.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, d.cfg.URL)
	}

	c := &client{
		cfg:      d.cfg,
		handlers: h,
		logger:   d.logger,
		done:     make(chan struct{}),
		pending:  make(map[string]chan Frame),
	}
	go c.run()
	return c, nil
}

// client implements Conn.
type client struct {
	cfg      ClientConfig
	handlers Handlers
	logger   *slog.Logger

	conn *websocket.Conn
	done chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu         sync.RWMutex
	connected  bool
	closed     bool // closed by owner
	lastPongAt time.Time
	stopOnce   sync.Once

	// Request/reply correlation
	pendingMu sync.Mutex
	pending   map[string]chan Frame
}

// run dials, reports readiness and then reads until the connection ends.
func (c *client) run() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.cfg.HandshakeTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	header := http.Header{}
	header.Set("Accept", "application/json")

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	cancel()
	if err != nil {
		c.stop(err, !c.isClosed())
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.connected = true
	c.lastPongAt = time.Now()
	c.mu.Unlock()

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		c.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	go c.heartbeatLoop()

	c.logger.Debug("websocket connected", "url", c.cfg.URL)
	if c.handlers.OnReady != nil {
		c.handlers.OnReady()
	}

	c.readLoop()
}

// CreateRoom sends createSession and waits for the room ID.
func (c *client) CreateRoom(ctx context.Context, nickname, icon string) (string, error) {
	reply, err := c.request(ctx, KindCreateSession, createSessionData{
		UserSettings: UserSettings{Nickname: nickname, Icon: icon},
	})
	if err != nil {
		return "", err
	}

	var created sessionCreated
	if err := json.Unmarshal(reply.Data, &created); err != nil {
		return "", fmt.Errorf("decode createSession reply: %w", err)
	}
	if created.SessionID == "" {
		return "", &RemoteError{Code: "bad_reply", Message: "createSession reply without sessionId"}
	}
	return created.SessionID, nil
}

// JoinRoom sends joinSession and waits for the room history.
func (c *client) JoinRoom(ctx context.Context, nickname, roomID, icon string) (*MessageList, error) {
	reply, err := c.request(ctx, KindJoinSession, joinSessionData{
		SessionID:    roomID,
		UserSettings: UserSettings{Nickname: nickname, Icon: icon},
	})
	if err != nil {
		return nil, err
	}

	if len(reply.Data) == 0 || string(reply.Data) == "null" {
		return nil, nil
	}
	var list MessageList
	if err := json.Unmarshal(reply.Data, &list); err != nil {
		return nil, fmt.Errorf("decode joinSession reply: %w", err)
	}
	return &list, nil
}

// Send writes a frame without waiting for a reply.
func (c *client) Send(kind MessageKind, body any) error {
	return c.write(outFrame{Type: kind, Data: body})
}

// Close gracefully closes the connection.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
	}

	c.stop(nil, false)
	return nil
}

func (c *client) isConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *client) touch() {
	c.mu.Lock()
	c.lastPongAt = time.Now()
	c.mu.Unlock()
}

// stop tears the connection down once. notify reports the close to the owner
// unless the owner closed the handle first. OnClosed runs after the teardown,
// outside stopOnce, so a concurrent Close never waits on the owner's handler.
func (c *client) stop(cause error, notify bool) {
	first := false
	c.stopOnce.Do(func() {
		first = true

		c.mu.Lock()
		c.connected = false
		conn := c.conn
		c.mu.Unlock()

		close(c.done)
		if conn != nil {
			conn.Close()
		}
	})

	if !first || !notify || c.isClosed() {
		return
	}
	c.logger.Info("connection closed", "url", c.cfg.URL, "error", cause)
	if c.handlers.OnClosed != nil {
		c.handlers.OnClosed()
	}
}

// request sends a frame with a fresh callback ID and waits for the reply.
func (c *client) request(ctx context.Context, kind MessageKind, data any) (Frame, error) {
	if c.isClosed() {
		return Frame{}, ErrAlreadyClosed
	}

	id := uuid.NewString()
	replyCh := make(chan Frame, 1)

	c.pendingMu.Lock()
	c.pending[id] = replyCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.write(outFrame{Type: kind, Data: data, CallbackID: id}); err != nil {
		return Frame{}, err
	}

	var timeout <-chan time.Time
	if c.cfg.RequestTimeout > 0 {
		timer := time.NewTimer(c.cfg.RequestTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-c.done:
		return Frame{}, ErrNotConnected
	case <-timeout:
		return Frame{}, ErrTimeout
	case reply := <-replyCh:
		if reply.Error != nil {
			return reply, reply.Error
		}
		return reply, nil
	}
}

// routeReply hands a reply to the waiting request. Returns false when nobody waits.
func (c *client) routeReply(f Frame) bool {
	c.pendingMu.Lock()
	ch, ok := c.pending[f.CallbackID]
	if ok {
		delete(c.pending, f.CallbackID)
	}
	c.pendingMu.Unlock()

	if ok {
		select {
		case ch <- f:
		default:
		}
	}
	return ok
}

func (c *client) write(v outFrame) error {
	if !c.isConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", v.Type, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads frames and dispatches them in arrival order.
func (c *client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.stop(err, !c.isClosed())
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("dropping malformed frame", "error", err, "size", len(data))
			continue
		}

		if f.CallbackID != "" && c.routeReply(f) {
			continue
		}
		if f.Type == string(KindKeepAlive) {
			continue
		}

		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(f)
		}
	}
}

// heartbeatLoop sends keepAlive frames and pings, and detects a silent peer.
func (c *client) heartbeatLoop() {
	interval := c.cfg.KeepAliveInterval
	if interval <= 0 {
		interval = DefaultClientConfig().KeepAliveInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.Send(KindKeepAlive, nil); err != nil {
				c.logger.Debug("failed to send keepAlive", "error", err)
			}

			deadline := time.Now().Add(time.Second)
			if c.cfg.WriteTimeout > 0 {
				deadline = time.Now().Add(c.cfg.WriteTimeout)
			}
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			if c.cfg.PingTimeout <= 0 {
				continue
			}

			c.mu.RLock()
			lastPong := c.lastPongAt
			c.mu.RUnlock()

			if time.Since(lastPong) > c.cfg.PingTimeout {
				c.logger.Warn("no pong received, connection stale",
					"last_pong", lastPong,
					"timeout", c.cfg.PingTimeout,
				)
				c.stop(ErrStaleConnection, !c.isClosed())
				return
			}
		}
	}
}
