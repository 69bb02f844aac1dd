package sink

import "streamrelay/internal/logger"

// LogSink writes output to the log instead of a host. Used for dry runs.
type LogSink struct {
	logger *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{logger: log.Named("sink")}
}

func (s *LogSink) Broadcast(message string) error {
	s.logger.Info("broadcast", "message", message)
	return nil
}

func (s *LogSink) Execute(command string) error {
	s.logger.Info("execute", "command", command)
	return nil
}

func (s *LogSink) Close() {}
