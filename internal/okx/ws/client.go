package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const simulatedHeader = "x-simulated-trading"

type counter interface {
	Inc()
}

type noopCounter struct{}

func (noopCounter) Inc() {}

// Options configure one subscription channel. ProxyURL and Simulated map to
// the transport-level knobs OKX expects: an optional HTTP proxy and the
// demo-trading marker header.
type Options struct {
	URL            string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	ProxyURL       string
	Simulated      bool
	Log            *zap.Logger

	// Reconnects, when set, is incremented once per reconnect attempt.
	Reconnects interface{ Inc() }
}

// Client owns the lifecycle of one push-subscription connection: dial,
// subscribe, read, reconnect after a fixed backoff. Subscribe frames are
// replayed verbatim on every reconnect. An optional connect hook runs before
// the replay; authenticated channels use it to log in first.
type Client struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	dialOpts       *websocket.DialOptions
	log            *zap.Logger
	onConnect      func(ctx context.Context, c *Client) error
	onDisconnect   func()

	reconnects counter

	mu   sync.Mutex
	conn *websocket.Conn
	subs []any
}

func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("ws url is required")
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 3 * time.Second
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	dialOpts := &websocket.DialOptions{}
	if opts.Simulated {
		dialOpts.HTTPHeader = http.Header{simulatedHeader: []string{"1"}}
	}
	if opts.ProxyURL != "" {
		proxy, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, err
		}
		dialOpts.HTTPClient = &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxy)},
		}
	}
	var reconnects counter = noopCounter{}
	if opts.Reconnects != nil {
		reconnects = opts.Reconnects
	}
	return &Client{
		url:            opts.URL,
		reconnectDelay: opts.ReconnectDelay,
		pingInterval:   opts.PingInterval,
		dialOpts:       dialOpts,
		log:            log,
		reconnects:     reconnects,
	}, nil
}

// SetConnectHook registers a callback run after each successful dial, before
// any registered subscribe frames are replayed. Must be called before Run.
func (c *Client) SetConnectHook(fn func(ctx context.Context, c *Client) error) {
	c.onConnect = fn
}

// SetDisconnectHook registers a callback run whenever the connection drops,
// before the reconnect backoff. Must be called before Run.
func (c *Client) SetDisconnectHook(fn func()) {
	c.onDisconnect = fn
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := websocket.Dial(ctx, c.url, c.dialOpts)
	if err != nil {
		return err
	}
	conn.SetReadLimit(1 << 20)
	c.conn = conn
	return nil
}

// Subscribe registers a subscribe frame for replay and sends it if the
// connection is already up. Frames registered before Run are sent on the
// first connect.
func (c *Client) Subscribe(ctx context.Context, frame any) error {
	c.mu.Lock()
	c.subs = append(c.subs, frame)
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return writeJSON(ctx, conn, frame)
}

// Send writes one frame without registering it for replay.
func (c *Client) Send(ctx context.Context, frame any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("ws not connected")
	}
	return writeJSON(ctx, conn, frame)
}

// Run drives the connect-subscribe-receive cycle until ctx is cancelled.
// Transport faults of any kind are absorbed: the client waits the reconnect
// delay and starts over. This is the sole failure-recovery path for the
// channel.
func (c *Client) Run(ctx context.Context, handler func(json.RawMessage)) error {
	for {
		if err := c.ensureConnected(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("ws connect failed", zap.String("url", c.url), zap.Error(err))
			c.resetConn()
			if err := c.backoff(ctx); err != nil {
				return err
			}
			continue
		}
		pingCtx, cancel := context.WithCancel(ctx)
		pingDone := make(chan struct{})
		go func() {
			defer close(pingDone)
			c.pingLoop(pingCtx)
		}()
		err := c.readLoop(ctx, handler)
		cancel()
		<-pingDone
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logReadLoopEnd(err)
		c.resetConn()
		if c.onDisconnect != nil {
			c.onDisconnect()
		}
		if err := c.backoff(ctx); err != nil {
			return err
		}
	}
}

func (c *Client) backoff(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
		c.reconnects.Inc()
		return nil
	}
}

func (c *Client) ensureConnected(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	if c.onConnect != nil {
		if err := c.onConnect(ctx, c); err != nil {
			return err
		}
	}
	c.mu.Lock()
	conn := c.conn
	subs := append([]any(nil), c.subs...)
	c.mu.Unlock()
	for _, sub := range subs {
		if err := writeJSON(ctx, conn, sub); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context, handler func(json.RawMessage)) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("ws not connected")
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if string(data) == "pong" {
			continue
		}
		if handler != nil {
			handler(json.RawMessage(data))
		}
	}
}

// pingLoop keeps the OKX connection alive; the server drops idle connections
// after 30 seconds. OKX expects the literal text "ping", not a JSON frame.
func (c *Client) pingLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	interval := c.pingInterval
	c.mu.Unlock()
	if conn == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Write(ctx, websocket.MessageText, []byte("ping")); err != nil {
				return
			}
		}
	}
}

func (c *Client) logReadLoopEnd(err error) {
	if err == nil {
		return
	}
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure {
		c.log.Info("ws closed by peer", zap.String("url", c.url))
		return
	}
	c.log.Warn("ws read loop ended", zap.String("url", c.url), zap.Error(err))
}

func (c *Client) resetConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "reset")
		c.conn = nil
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
