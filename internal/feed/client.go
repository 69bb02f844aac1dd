package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"streamrelay/config"
	"streamrelay/internal/logger"
	"streamrelay/internal/metrics"
)

// socket.io v2 packet prefixes, engine.io type followed by socket.io type
const (
	packetOpen       = "0"
	packetClose      = "1"
	packetPing       = "2"
	packetPong       = "3"
	packetConnect    = "40"
	packetDisconnect = "41"
	packetEvent      = "42"
	packetError      = "44"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultPingInterval = 25 * time.Second
	handshakeTimeout    = 45 * time.Second
	writeTimeout        = 10 * time.Second
)

type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// Client connects to a Streamlabs style socket.io feed and reconnects after a
// fixed delay until Disconnect is called or the token is rejected.
type Client struct {
	url            string
	token          string
	reconnectDelay time.Duration
	handler        Handler
	callbacks      Callbacks
	dialer         *websocket.Dialer
	logger         *logger.Logger
	metrics        *metrics.Metrics

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	connected atomic.Bool
}

// NewClient creates a feed client. Nothing is dialed until Connect.
func NewClient(cfg config.StreamlabsConfig, handler Handler, callbacks Callbacks, log *logger.Logger, m *metrics.Metrics) *Client {
	return &Client{
		url:            cfg.URL,
		token:          cfg.SocketToken,
		reconnectDelay: cfg.ReconnectDelay,
		handler:        handler,
		callbacks:      callbacks,
		dialer:         &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		logger:         log.Named("feed"),
		metrics:        m,
	}
}

// Connect starts the connection loop in the background. The loop runs until
// Disconnect; cancelling ctx after Connect returns does not stop it.
func (c *Client) Connect(ctx context.Context) error {
	if c.token == "" {
		return ErrNoToken
	}
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyConnected
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go c.run(ctx, endpoint, done)
	return nil
}

// Disconnect stops the connection loop and waits for it to exit
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("invalid feed url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/socket.io/"
	}
	q := u.Query()
	q.Set("token", c.token)
	q.Set("EIO", "3")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) run(ctx context.Context, endpoint string, done chan struct{}) {
	defer close(done)

	// a loop that ends by itself must allow a later Connect
	defer func() {
		c.mu.Lock()
		if c.done == done {
			c.cancel, c.done = nil, nil
		}
		c.mu.Unlock()
	}()

	for {
		opened, err := c.session(ctx, endpoint)
		c.setConnected(false)

		if ctx.Err() != nil {
			if opened {
				c.callbacks.close("disconnected")
			}
			return
		}
		if errors.Is(err, ErrInvalidToken) {
			c.logger.Error("feed rejected the socket token")
			c.callbacks.invalidToken()
			return
		}

		reason := "connection lost"
		if err != nil {
			reason = err.Error()
		}
		if opened {
			c.callbacks.close(reason)
		}
		c.logger.Warn("feed connection ended, reconnecting",
			"reason", reason,
			"delay", c.reconnectDelay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
		if c.metrics != nil {
			c.metrics.IncFeedReconnects()
		}
	}
}

// session runs one websocket connection. opened reports whether the
// namespace connect packet was received.
func (c *Client) session(ctx context.Context, endpoint string) (opened bool, err error) {
	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("dial failed: %w", err)
	}

	var writeMu sync.Mutex
	write := func(packet string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteMessage(websocket.TextMessage, []byte(packet))
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(stop)
		conn.Close()
		wg.Wait()
	}()

	// unblock ReadMessage on cancellation
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			writeMu.Lock()
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			writeMu.Unlock()
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return opened, err
		}
		frame := string(data)

		switch {
		case strings.HasPrefix(frame, packetEvent):
			c.dispatch(data[len(packetEvent):])

		case strings.HasPrefix(frame, packetConnect):
			opened = true
			c.setConnected(true)
			c.logger.Info("connected to feed")
			c.callbacks.open()

		case strings.HasPrefix(frame, packetDisconnect):
			return opened, errors.New("server closed the namespace")

		case strings.HasPrefix(frame, packetError):
			c.logger.Error("feed error packet", "payload", frame[len(packetError):])
			return opened, ErrInvalidToken

		case strings.HasPrefix(frame, packetOpen):
			interval := defaultPingInterval
			var open openPacket
			if err := json.Unmarshal(data[len(packetOpen):], &open); err == nil && open.PingInterval > 0 {
				interval = time.Duration(open.PingInterval) * time.Millisecond
			}
			c.logger.Debug("engine.io handshake", "sid", open.SID, "pingInterval", interval)

			wg.Add(1)
			go func() {
				defer wg.Done()
				c.ping(write, interval, stop)
			}()

		case frame == packetPing:
			if err := write(packetPong); err != nil {
				return opened, err
			}

		case frame == packetPong:

		case frame == packetClose:
			return opened, errors.New("server closed the transport")

		default:
			c.logger.Debug("ignoring feed packet", "packet", frame)
		}
	}
}

func (c *Client) ping(write func(string) error, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := write(packetPing); err != nil {
				c.logger.Debug("ping failed", "error", err)
				return
			}
		case <-stop:
			return
		}
	}
}

func (c *Client) dispatch(raw []byte) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return
	}
	if err := c.handler(raw); err != nil {
		c.logger.Warn("event handler failed", "error", err)
	}
}

func (c *Client) setConnected(connected bool) {
	c.connected.Store(connected)
	if c.metrics != nil {
		c.metrics.SetFeedConnectionStatus(connected)
	}
}
