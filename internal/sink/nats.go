package sink

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"streamrelay/config"
	"streamrelay/internal/logger"
	"streamrelay/internal/metrics"
)

// NATSSink publishes broadcasts to <prefix>.broadcast and commands to
// <prefix>.command
type NATSSink struct {
	conn      *nats.Conn
	prefix    string
	logger    *logger.Logger
	metrics   *metrics.Metrics
	connected atomic.Bool
}

// NewNATSSink connects to the configured server
func NewNATSSink(cfg config.NATSSinkConfig, log *logger.Logger, m *metrics.Metrics) (*NATSSink, error) {
	s := &NATSSink{
		prefix:  cfg.SubjectPrefix,
		logger:  log.Named("nats-sink"),
		metrics: m,
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(s.handleDisconnect),
		nats.ReconnectHandler(s.handleReconnect),
		nats.ClosedHandler(s.handleClosed),
	}
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	s.logger.Info("connecting to NATS server", "url", cfg.URL)
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS server: %w", err)
	}
	s.conn = conn
	s.connected.Store(true)
	s.logger.Info("connected to NATS server", "url", conn.ConnectedUrl())

	return s, nil
}

// NewNATSSinkWithConn wraps an established connection
func NewNATSSinkWithConn(conn *nats.Conn, prefix string, log *logger.Logger, m *metrics.Metrics) *NATSSink {
	s := &NATSSink{
		conn:    conn,
		prefix:  prefix,
		logger:  log.Named("nats-sink"),
		metrics: m,
	}
	s.connected.Store(conn.IsConnected())
	return s
}

func (s *NATSSink) Broadcast(message string) error {
	return s.publish("broadcast", message)
}

func (s *NATSSink) Execute(command string) error {
	return s.publish("command", command)
}

func (s *NATSSink) publish(kind, payload string) error {
	if !s.IsConnected() {
		return fmt.Errorf("not connected to NATS server")
	}

	subject := s.Subject(kind)
	if err := s.conn.Publish(subject, []byte(payload)); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	s.logger.Debug("published", "subject", subject, "payloadSize", len(payload))
	return nil
}

// Subject returns the subject used for kind
func (s *NATSSink) Subject(kind string) string {
	if s.prefix == "" {
		return kind
	}
	return s.prefix + "." + kind
}

func (s *NATSSink) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected() && s.connected.Load()
}

func (s *NATSSink) Close() {
	if s.conn == nil {
		return
	}
	s.logger.Info("disconnecting from NATS server")
	if err := s.conn.Flush(); err != nil {
		s.logger.Warn("failed to flush pending messages", "error", err)
	}
	s.conn.Close()
	s.connected.Store(false)
}

func (s *NATSSink) handleDisconnect(_ *nats.Conn, err error) {
	s.logger.Error("disconnected from NATS server", "error", err)
	s.connected.Store(false)
}

func (s *NATSSink) handleReconnect(conn *nats.Conn) {
	s.logger.Info("reconnected to NATS server", "url", conn.ConnectedUrl())
	s.connected.Store(true)
	safeMetricsUpdate(s.metrics, func(m *metrics.Metrics) {
		m.IncDispatchTotal("reconnect")
	})
}

func (s *NATSSink) handleClosed(_ *nats.Conn) {
	s.logger.Warn("NATS connection closed")
	s.connected.Store(false)
}
