package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (STREAMRELAY_STREAMLABS_SOCKET_TOKEN, ...)
const EnvPrefix = "STREAMRELAY"

// Sink types
const (
	SinkLog  = "log"
	SinkNATS = "nats"
	SinkMQTT = "mqtt"
)

// Source types
const (
	SourceStreamlabs = "streamlabs"
	SourceNATS       = "nats"
)

type Config struct {
	Streamlabs      StreamlabsConfig `mapstructure:"streamlabs"`
	Source          SourceConfig     `mapstructure:"source"`
	AffectedPlayers []string         `mapstructure:"affected_players"`
	Logging         LogConfig        `mapstructure:"logging"`
	Metrics         MetricsConfig    `mapstructure:"metrics"`
	Admin           AdminConfig      `mapstructure:"admin"`
	Sink            SinkConfig       `mapstructure:"sink"`
	Processing      ProcConfig       `mapstructure:"processing"`

	path string
}

type StreamlabsConfig struct {
	SocketToken    string        `mapstructure:"socket_token"`
	URL            string        `mapstructure:"url"`
	Platform       string        `mapstructure:"platform"` // token assumed when an event carries no "for" field
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

type SourceConfig struct {
	Type string           `mapstructure:"type"` // streamlabs or nats
	NATS NATSSourceConfig `mapstructure:"nats"`
}

type NATSSourceConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	OutputPath string `mapstructure:"output_path"` // file path or "stdout"
	Encoding   string `mapstructure:"encoding"`    // json or console
	MaxSize    int    `mapstructure:"max_size"`    // megabytes before rotation
	MaxAge     int    `mapstructure:"max_age"`     // days
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

type MetricsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Path           string `mapstructure:"path"`
	UpdateInterval string `mapstructure:"update_interval"` // Duration string
}

type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

type SinkConfig struct {
	Type string         `mapstructure:"type"`
	NATS NATSSinkConfig `mapstructure:"nats"`
	MQTT MQTTSinkConfig `mapstructure:"mqtt"`
}

type NATSSinkConfig struct {
	URL           string `mapstructure:"url"`
	Name          string `mapstructure:"name"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
}

type MQTTSinkConfig struct {
	Broker      string    `mapstructure:"broker"`
	ClientID    string    `mapstructure:"client_id"`
	Username    string    `mapstructure:"username"`
	Password    string    `mapstructure:"password"`
	TopicPrefix string    `mapstructure:"topic_prefix"`
	QoS         byte      `mapstructure:"qos"`
	TLS         TLSConfig `mapstructure:"tls"`
}

// TLSConfig enables TLS on the MQTT connection. CertFile and KeyFile are
// only needed when the broker requires client certificates.
type TLSConfig struct {
	Enable   bool   `mapstructure:"enable"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	CAFile   string `mapstructure:"ca_file"`
}

type ProcConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// Path returns the file the configuration was read from, empty when only
// defaults and environment were used.
func (c *Config) Path() string {
	return c.path
}

// Load reads and parses the configuration file. An empty path searches for
// config.yml in ./ and ./configs; a missing file is not an error in that case.
func Load(path string) (*Config, error) {
	// optional .env with secrets such as the socket token
	_ = godotenv.Load()

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.path = v.ConfigFileUsed()

	if config.Processing.Workers <= 0 {
		config.Processing.Workers = 1
	}
	if config.Processing.QueueSize <= 0 {
		config.Processing.QueueSize = 1000
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every key so that AutomaticEnv overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("streamlabs.socket_token", "")
	v.SetDefault("streamlabs.url", "wss://sockets.streamlabs.com")
	v.SetDefault("streamlabs.platform", "streamlabs")
	v.SetDefault("streamlabs.reconnect_delay", 5*time.Second)

	v.SetDefault("source.type", SourceStreamlabs)
	v.SetDefault("source.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("source.nats.subject", "streamlabs.events")

	v.SetDefault("affected_players", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output_path", "stdout")
	v.SetDefault("logging.encoding", "json")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.compress", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.update_interval", "15s")

	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.address", "127.0.0.1:8089")

	v.SetDefault("sink.type", SinkLog)
	v.SetDefault("sink.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("sink.nats.name", "streamrelay")
	v.SetDefault("sink.nats.subject_prefix", "streamrelay")
	v.SetDefault("sink.nats.username", "")
	v.SetDefault("sink.nats.password", "")
	v.SetDefault("sink.mqtt.broker", "")
	v.SetDefault("sink.mqtt.client_id", "")
	v.SetDefault("sink.mqtt.username", "")
	v.SetDefault("sink.mqtt.password", "")
	v.SetDefault("sink.mqtt.topic_prefix", "streamrelay")
	v.SetDefault("sink.mqtt.qos", 0)
	v.SetDefault("sink.mqtt.tls.enable", false)
	v.SetDefault("sink.mqtt.tls.cert_file", "")
	v.SetDefault("sink.mqtt.tls.key_file", "")
	v.SetDefault("sink.mqtt.tls.ca_file", "")

	v.SetDefault("processing.workers", 1)
	v.SetDefault("processing.queue_size", 1000)
}

// validateConfig performs validation of all configuration values
func validateConfig(cfg *Config) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}

	if cfg.Streamlabs.Platform == "" {
		return fmt.Errorf("streamlabs platform cannot be empty")
	}
	if cfg.Streamlabs.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be greater than 0")
	}

	switch cfg.Source.Type {
	case SourceStreamlabs:
	case SourceNATS:
		if cfg.Source.NATS.URL == "" || cfg.Source.NATS.Subject == "" {
			return fmt.Errorf("nats source requires url and subject")
		}
	default:
		return fmt.Errorf("invalid source type: %s", cfg.Source.Type)
	}

	switch cfg.Sink.Type {
	case SinkLog:
	case SinkNATS:
		if cfg.Sink.NATS.URL == "" {
			return fmt.Errorf("nats sink url is required")
		}
	case SinkMQTT:
		if cfg.Sink.MQTT.Broker == "" {
			return fmt.Errorf("mqtt sink broker address is required")
		}
		if cfg.Sink.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt qos must be 0, 1, or 2")
		}
		if tls := cfg.Sink.MQTT.TLS; tls.Enable && (tls.CertFile == "") != (tls.KeyFile == "") {
			return fmt.Errorf("mqtt tls cert_file and key_file must be set together")
		}
	default:
		return fmt.Errorf("invalid sink type: %s", cfg.Sink.Type)
	}

	if cfg.Metrics.Enabled {
		if _, err := time.ParseDuration(cfg.Metrics.UpdateInterval); err != nil {
			return fmt.Errorf("invalid metrics update interval: %w", err)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("metrics path must start with /")
		}
	}

	if (cfg.Admin.Enabled || cfg.Metrics.Enabled) && cfg.Admin.Address == "" {
		return fmt.Errorf("admin address is required when admin or metrics are enabled")
	}

	if cfg.Processing.Workers < 1 {
		return fmt.Errorf("workers must be greater than 0")
	}
	if cfg.Processing.QueueSize < 1 {
		return fmt.Errorf("queue size must be greater than 0")
	}

	return nil
}

// ApplyOverrides applies command line flag overrides to the configuration and
// validates the result.
func (c *Config) ApplyOverrides(adminAddr, logLevel, sinkType string, workers int) error {
	if adminAddr != "" {
		c.Admin.Address = adminAddr
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if sinkType != "" {
		c.Sink.Type = sinkType
	}
	if workers > 0 {
		c.Processing.Workers = workers
	}
	return validateConfig(c)
}

// Watch calls onChange every time the file at path is written. The returned
// viper instance keeps the watch alive.
func Watch(path string, onChange func()) (*viper.Viper, error) {
	if path == "" {
		return nil, fmt.Errorf("no configuration file to watch")
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.OnConfigChange(func(fsnotify.Event) {
		onChange()
	})
	v.WatchConfig()

	return v, nil
}
