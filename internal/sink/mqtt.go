package sink

import (
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"streamrelay/config"
	"streamrelay/internal/logger"
	"streamrelay/internal/metrics"
)

const publishTimeout = 5 * time.Second

// MQTTSink publishes broadcasts to <prefix>/broadcast and commands to
// <prefix>/command
type MQTTSink struct {
	client    mqtt.Client
	prefix    string
	qos       byte
	logger    *logger.Logger
	metrics   *metrics.Metrics
	connected atomic.Bool
}

// NewMQTTSink connects to the configured broker. A client id is generated
// when none is configured.
func NewMQTTSink(cfg config.MQTTSinkConfig, log *logger.Logger, m *metrics.Metrics) (*MQTTSink, error) {
	s := &MQTTSink{
		prefix:  cfg.TopicPrefix,
		qos:     cfg.QoS,
		logger:  log.Named("mqtt-sink"),
		metrics: m,
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "streamrelay-" + uuid.NewString()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Minute)

	if cfg.TLS.Enable {
		tlsConfig, err := newTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.OnConnect = s.handleConnect
	opts.OnConnectionLost = s.handleDisconnect
	opts.OnReconnecting = s.handleReconnecting

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", token.Error())
	}

	return s, nil
}

// NewMQTTSinkWithClient creates a sink around a provided client (for testing)
func NewMQTTSinkWithClient(client mqtt.Client, cfg config.MQTTSinkConfig, log *logger.Logger, m *metrics.Metrics) *MQTTSink {
	s := &MQTTSink{
		client:  client,
		prefix:  cfg.TopicPrefix,
		qos:     cfg.QoS,
		logger:  log.Named("mqtt-sink"),
		metrics: m,
	}
	s.connected.Store(true)
	return s
}

func (s *MQTTSink) Broadcast(message string) error {
	return s.publish("broadcast", message)
}

func (s *MQTTSink) Execute(command string) error {
	return s.publish("command", command)
}

func (s *MQTTSink) publish(kind, payload string) error {
	if !s.connected.Load() {
		return fmt.Errorf("not connected to broker")
	}

	topic := s.Topic(kind)
	token := s.client.Publish(topic, s.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	s.logger.Debug("published", "topic", topic, "payloadSize", len(payload))
	return nil
}

// Topic returns the topic used for kind
func (s *MQTTSink) Topic(kind string) string {
	if s.prefix == "" {
		return kind
	}
	return s.prefix + "/" + kind
}

func (s *MQTTSink) Close() {
	s.logger.Info("disconnecting from mqtt broker")
	s.client.Disconnect(250)
	s.connected.Store(false)
}

func (s *MQTTSink) handleConnect(_ mqtt.Client) {
	s.logger.Info("mqtt client connected")
	s.connected.Store(true)
}

func (s *MQTTSink) handleDisconnect(_ mqtt.Client, err error) {
	s.logger.Error("mqtt connection lost", "error", err)
	s.connected.Store(false)
}

func (s *MQTTSink) handleReconnecting(_ mqtt.Client, opts *mqtt.ClientOptions) {
	s.logger.Info("mqtt client reconnecting", "brokers", opts.Servers)
	safeMetricsUpdate(s.metrics, func(m *metrics.Metrics) {
		m.IncDispatchTotal("reconnect")
	})
}
