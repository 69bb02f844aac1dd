package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"streamrelay/config"
	"streamrelay/internal/logger"
	"streamrelay/internal/metrics"
)

const flushTimeout = 5 * time.Second

// NATSSource reads raw feed events from a NATS subject. Relays that already
// hold the socket publish the same event arrays there.
type NATSSource struct {
	url       string
	subject   string
	handler   Handler
	callbacks Callbacks
	logger    *logger.Logger
	metrics   *metrics.Metrics

	mu        sync.Mutex
	conn      *nats.Conn
	sub       *nats.Subscription
	connected atomic.Bool
}

func NewNATSSource(cfg config.NATSSourceConfig, handler Handler, callbacks Callbacks, log *logger.Logger, m *metrics.Metrics) *NATSSource {
	return &NATSSource{
		url:       cfg.URL,
		subject:   cfg.Subject,
		handler:   handler,
		callbacks: callbacks,
		logger:    log.Named("nats-source"),
		metrics:   m,
	}
}

// Connect connects and subscribes. The client library handles reconnects.
func (s *NATSSource) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return ErrAlreadyConnected
	}

	opts := []nats.Option{
		nats.Name("streamrelay-source"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(s.handleDisconnect),
		nats.ReconnectHandler(s.handleReconnect),
	}

	s.logger.Info("connecting to NATS server", "url", s.url)
	conn, err := nats.Connect(s.url, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS server: %w", err)
	}

	sub, err := conn.Subscribe(s.subject, func(msg *nats.Msg) {
		if err := s.handler(msg.Data); err != nil {
			s.logger.Warn("event handler failed", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}
	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := conn.FlushWithContext(flushCtx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to confirm subscription: %w", err)
	}

	s.conn = conn
	s.sub = sub
	s.setConnected(true)
	s.logger.Info("subscribed to feed subject", "subject", s.subject)
	s.callbacks.open()
	return nil
}

func (s *NATSSource) Disconnect() {
	s.mu.Lock()
	conn, sub := s.conn, s.sub
	s.conn, s.sub = nil, nil
	s.mu.Unlock()

	if conn == nil {
		return
	}
	if err := sub.Unsubscribe(); err != nil {
		s.logger.Warn("failed to unsubscribe", "error", err)
	}
	s.setConnected(false)
	conn.Close()
	s.callbacks.close("disconnected")
}

func (s *NATSSource) IsConnected() bool {
	return s.connected.Load()
}

func (s *NATSSource) handleDisconnect(_ *nats.Conn, err error) {
	if !s.connected.Load() {
		return
	}
	s.logger.Error("disconnected from NATS server", "error", err)
	s.setConnected(false)
	reason := "connection lost"
	if err != nil {
		reason = err.Error()
	}
	s.callbacks.close(reason)
}

func (s *NATSSource) handleReconnect(conn *nats.Conn) {
	s.logger.Info("reconnected to NATS server", "url", conn.ConnectedUrl())
	s.setConnected(true)
	if s.metrics != nil {
		s.metrics.IncFeedReconnects()
	}
	s.callbacks.open()
}

func (s *NATSSource) setConnected(connected bool) {
	s.connected.Store(connected)
	if s.metrics != nil {
		s.metrics.SetFeedConnectionStatus(connected)
	}
}
