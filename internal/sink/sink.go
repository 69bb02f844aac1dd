package sink

import (
	"fmt"

	"streamrelay/config"
	"streamrelay/internal/logger"
	"streamrelay/internal/metrics"
)

// Sink executes resolved output on the host. Implementations must be safe
// for use by several dispatcher workers.
type Sink interface {
	Broadcast(message string) error
	Execute(command string) error
	Close()
}

// New creates the sink selected by cfg.Type
func New(cfg *config.SinkConfig, log *logger.Logger, m *metrics.Metrics) (Sink, error) {
	switch cfg.Type {
	case config.SinkLog, "":
		return NewLogSink(log), nil
	case config.SinkNATS:
		return NewNATSSink(cfg.NATS, log, m)
	case config.SinkMQTT:
		return NewMQTTSink(cfg.MQTT, log, m)
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", cfg.Type)
	}
}

func safeMetricsUpdate(m *metrics.Metrics, fn func(*metrics.Metrics)) {
	if m != nil {
		fn(m)
	}
}
