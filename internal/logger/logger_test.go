package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"streamrelay/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LogConfig
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: &config.LogConfig{
				Level:      "info",
				OutputPath: "stdout",
				Encoding:   "json",
			},
			wantErr: false,
		},
		{
			name:    "nil config",
			cfg:     nil,
			wantErr: true,
		},
		{
			name: "invalid level",
			cfg: &config.LogConfig{
				Level:      "invalid",
				OutputPath: "stdout",
				Encoding:   "json",
			},
			wantErr: false, // defaults to info level
		},
		{
			name: "console encoding",
			cfg: &config.LogConfig{
				Level:      "debug",
				OutputPath: "stderr",
				Encoding:   "console",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, logger)
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	cfg := &config.LogConfig{
		Level:      "debug",
		OutputPath: "stdout",
		Encoding:   "json",
	}

	logger, err := NewLogger(cfg)
	assert.NoError(t, err)
	assert.NotNil(t, logger)

	// Test each log level
	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")
	logger.Named("child").With("event", "donation").Info("child message")
}

func TestLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "streamrelay.log")
	logger, err := NewLogger(&config.LogConfig{
		Level:      "info",
		OutputPath: path,
		Encoding:   "json",
		MaxSize:    1,
	})
	require.NoError(t, err)

	logger.Info("written to file", "key", "value")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestWrappedZapLogger(t *testing.T) {
	zapLogger, err := zap.NewDevelopment()
	require.NoError(t, err)

	// a bare struct literal still works without the cached sugared logger
	log := &Logger{Logger: zapLogger}
	log.Info("hello", "key", "value")
}
