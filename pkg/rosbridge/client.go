package rosbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by operations that need an open connection.
var ErrNotConnected = errors.New("not connected")

// Handler receives the raw "msg" field of each message published on a topic.
type Handler func(msg json.RawMessage)

// Client is a rosbridge v2 client over a single WebSocket connection.
type Client struct {
	cfg    Config
	logger *slog.Logger
	dialer *websocket.Dialer

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool
	subs   map[string]*Subscription

	// gorilla/websocket allows one concurrent writer
	writeMu sync.Mutex

	// Stats
	messagesReceived   atomic.Int64
	messagesDispatched atomic.Int64
	bytesReceived      atomic.Int64
	reconnectCount     atomic.Int64
}

// New creates a new rosbridge client.
// Call Connect() to open the WebSocket.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:    cfg,
		logger: logger.With("component", "rosbridge"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		subs: make(map[string]*Subscription),
	}, nil
}

// Connect opens the WebSocket to rosbridge_server.
// The dial runs without holding the client lock, so Stats and IsConnected
// stay responsive while a handshake hangs.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.RLock()
	closed, connected := c.closed, c.conn != nil
	c.mu.RUnlock()

	if closed {
		return io.ErrClosedPipe
	}
	if connected {
		return nil // Already connected
	}

	c.logger.Info("connecting to rosbridge", "url", c.cfg.URL)

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		conn.Close()
		return io.ErrClosedPipe
	case c.conn != nil:
		// lost a race with another Connect
		conn.Close()
		return nil
	}

	c.conn = conn
	c.logger.Info("connected to rosbridge", "url", c.cfg.URL, "client", c.cfg.ClientName)

	return nil
}

// ConnectWithRetry connects with automatic retry on failure.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, io.ErrClosedPipe) {
			return err
		}

		attempts++
		c.reconnectCount.Add(1)

		if c.cfg.MaxReconnectAttempts > 0 && attempts >= c.cfg.MaxReconnectAttempts {
			return fmt.Errorf("max reconnect attempts (%d) reached: %w", c.cfg.MaxReconnectAttempts, err)
		}

		c.logger.Warn("rosbridge connection failed, retrying",
			"error", err,
			"attempt", attempts,
			"retry_in", c.cfg.ReconnectInterval,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ReconnectInterval):
		}
	}
}

// IsConnected returns true if the client has an open connection.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.closed
}

// Subscribe asks the server to forward messages on topic and registers
// handler for them. msgType may be empty if the topic already exists.
func (c *Client) Subscribe(topic, msgType string, handler Handler) (*Subscription, error) {
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	sub := &Subscription{
		client:  c,
		id:      fmt.Sprintf("%s:%s:%s:%s", OpSubscribe, c.cfg.ClientName, topic, uuid.NewString()),
		topic:   topic,
		msgType: msgType,
		handler: handler,
	}

	c.mu.Lock()
	if c.conn == nil || c.closed {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.subs[sub.id] = sub
	c.mu.Unlock()

	op := subscribeOp{
		Op:           OpSubscribe,
		ID:           sub.id,
		Topic:        topic,
		Type:         msgType,
		QueueLength:  c.cfg.QueueLength,
		ThrottleRate: c.cfg.ThrottleRate,
	}
	if err := c.writeJSON(op); err != nil {
		c.removeSubscription(sub.id)
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	c.logger.Info("subscribed to topic", "topic", topic, "type", msgType, "id", sub.id)

	return sub, nil
}

// Run reads from the connection and dispatches published messages until the
// connection drops or ctx is cancelled. Handlers are called sequentially on
// the calling goroutine. Cancellation and Close return nil.
func (c *Client) Run(ctx context.Context) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// unblock ReadMessage
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.isClosed() {
				return nil
			}
			return fmt.Errorf("rosbridge read: %w", err)
		}

		c.messagesReceived.Add(1)
		c.bytesReceived.Add(int64(len(data)))

		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("malformed rosbridge message", "error", err, "bytes", len(data))
		return
	}

	switch env.Op {
	case OpPublish:
		c.dispatch(env.Topic, env.Msg)

	case OpStatus:
		c.logStatus(env)

	default:
		c.logger.Debug("ignoring rosbridge op", "op", env.Op, "topic", env.Topic)
	}
}

func (c *Client) dispatch(topic string, msg json.RawMessage) {
	c.mu.RLock()
	var handlers []Handler
	for _, sub := range c.subs {
		if sub.topic == topic {
			handlers = append(handlers, sub.handler)
		}
	}
	c.mu.RUnlock()

	if len(handlers) == 0 {
		c.logger.Debug("message for unsubscribed topic", "topic", topic)
		return
	}

	for _, h := range handlers {
		h(msg)
	}
	c.messagesDispatched.Add(1)
}

func (c *Client) logStatus(env envelope) {
	text := statusText(env.Msg)
	attrs := []any{"status_id", env.ID, "message", text}

	switch env.Level {
	case StatusError:
		c.logger.Error("rosbridge status", attrs...)
	case StatusWarning:
		c.logger.Warn("rosbridge status", attrs...)
	default:
		c.logger.Info("rosbridge status", attrs...)
	}
}

func (c *Client) writeJSON(v any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (c *Client) removeSubscription(id string) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Close sends a close frame and drops the connection. rosbridge_server
// forgets a client's subscriptions when its socket goes away.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.subs = make(map[string]*Subscription)

	if c.conn == nil {
		return nil
	}

	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		c.logger.Debug("error sending close frame", "error", err)
	}
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.conn = nil

	c.logger.Info("rosbridge client closed")
	if err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// Stats returns client statistics.
func (c *Client) Stats() ClientStats {
	c.mu.RLock()
	connected := c.conn != nil && !c.closed
	subs := len(c.subs)
	c.mu.RUnlock()

	return ClientStats{
		Connected:          connected,
		Subscriptions:      subs,
		MessagesReceived:   c.messagesReceived.Load(),
		MessagesDispatched: c.messagesDispatched.Load(),
		BytesReceived:      c.bytesReceived.Load(),
		ReconnectCount:     c.reconnectCount.Load(),
	}
}

// ClientStats contains client statistics.
type ClientStats struct {
	Connected          bool  `json:"connected"`
	Subscriptions      int   `json:"subscriptions"`
	MessagesReceived   int64 `json:"messages_received"`
	MessagesDispatched int64 `json:"messages_dispatched"`
	BytesReceived      int64 `json:"bytes_received"`
	ReconnectCount     int64 `json:"reconnect_count"`
}

// Subscription is an active topic subscription.
type Subscription struct {
	client  *Client
	id      string
	topic   string
	msgType string
	handler Handler
	once    sync.Once
}

// ID returns the subscription id sent to the server.
func (s *Subscription) ID() string { return s.id }

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

// Unsubscribe stops delivery to this subscription's handler and tells the
// server. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		s.client.removeSubscription(s.id)
		err = s.client.writeJSON(unsubscribeOp{Op: OpUnsubscribe, ID: s.id, Topic: s.topic})
		if errors.Is(err, ErrNotConnected) {
			err = nil
		}
	})
	return err
}
