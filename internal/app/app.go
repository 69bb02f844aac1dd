package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"streamrelay/config"
	"streamrelay/internal/dispatch"
	"streamrelay/internal/event"
	"streamrelay/internal/feed"
	"streamrelay/internal/logger"
	"streamrelay/internal/metrics"
	"streamrelay/internal/recipient"
	"streamrelay/internal/rule"
	"streamrelay/internal/sink"
	"streamrelay/internal/stats"
)

// Notices broadcast on connection state changes
const (
	NoticeConnected    = "Successfully connected to Streamlabs!"
	NoticeDisconnected = "Connection to Streamlabs lost!"
	NoticeInvalidToken = "The socket token specified is invalid!"
)

var (
	ErrAlreadyConnected = errors.New("already connected to the feed")
	ErrNotConnected     = errors.New("not connected to the feed")
	ErrNoConfigFile     = errors.New("no configuration file to reload from")
)

// SourceFactory builds the inbound feed for an App
type SourceFactory func(cfg *config.Config, handler feed.Handler, callbacks feed.Callbacks, log *logger.Logger, m *metrics.Metrics) feed.Source

// Options holds what an App is built from. Only Config and Logger are
// required.
type Options struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	Stats   *stats.StatsCollector
	Sink    sink.Sink
	Source  SourceFactory
}

// App owns the relay state: rules, recipients, the pipeline, the feed and
// the sink dispatcher.
type App struct {
	configPath string
	cfg        *config.Config
	logger     *logger.Logger
	metrics    *metrics.Metrics
	stats      *stats.StatsCollector

	registry   *event.Registry
	loader     *rule.Loader
	rules      *rule.Store
	recipients *recipient.List
	dispatcher *sink.Dispatcher
	pipeline   *dispatch.Pipeline
	source     feed.Source
	collector  *metrics.MetricsCollector

	// serialises reloads and recipient file writes
	mu sync.Mutex
}

// Status is the state reported by the status operation
type Status struct {
	Connected          bool           `json:"connected"`
	Source             string         `json:"source"`
	Actions            int            `json:"actions"`
	CustomPlaceholders int            `json:"custom_placeholders"`
	Recipients         []string       `json:"recipients"`
	QueueDepth         int            `json:"queue_depth"`
	Stats              stats.Snapshot `json:"stats"`
}

// New builds an App and loads the initial rule set
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	cfg := opts.Config

	a := &App{
		configPath: cfg.Path(),
		cfg:        cfg,
		logger:     opts.Logger.Named("app"),
		metrics:    opts.Metrics,
		stats:      opts.Stats,
		registry:   event.NewRegistry(cfg.Streamlabs.Platform, event.DefaultVariants()...),
		recipients: recipient.NewList(cfg.AffectedPlayers),
	}
	if a.stats == nil {
		a.stats = stats.NewStatsCollector()
	}

	a.loader = rule.NewLoader(opts.Logger.Named("rules"), a.registry)
	rs, err := a.loadRules()
	if err != nil {
		return nil, err
	}
	a.rules = rule.NewStore(rs)
	a.setRulesActive(rs)

	out := opts.Sink
	if out == nil {
		out, err = sink.New(&cfg.Sink, opts.Logger, opts.Metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create sink: %w", err)
		}
	}
	a.dispatcher = sink.NewDispatcher(out, cfg.Processing, opts.Logger, opts.Metrics, a.stats)

	a.pipeline = dispatch.NewPipeline(dispatch.Config{
		Registry:   a.registry,
		Rules:      a.rules,
		Recipients: a.recipients,
		Output:     a.dispatcher,
		Logger:     opts.Logger,
		Metrics:    opts.Metrics,
		Stats:      a.stats,
	})

	factory := opts.Source
	if factory == nil {
		factory = DefaultSource
	}
	a.source = factory(cfg, a.HandleEvent, feed.Callbacks{
		OnOpen:         a.onOpen,
		OnClose:        a.onClose,
		OnInvalidToken: a.onInvalidToken,
	}, opts.Logger, opts.Metrics)

	return a, nil
}

// DefaultSource picks the feed configured in cfg.Source.Type
func DefaultSource(cfg *config.Config, handler feed.Handler, callbacks feed.Callbacks, log *logger.Logger, m *metrics.Metrics) feed.Source {
	if cfg.Source.Type == config.SourceNATS {
		return feed.NewNATSSource(cfg.Source.NATS, handler, callbacks, log, m)
	}
	return feed.NewClient(cfg.Streamlabs, handler, callbacks, log, m)
}

func (a *App) loadRules() (*rule.RuleSet, error) {
	if a.configPath == "" {
		a.logger.Warn("no configuration file, starting without actions")
		return rule.NewRuleSet(nil, nil), nil
	}
	rs, err := a.loader.LoadFile(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	return rs, nil
}

// Start connects the feed and starts background sampling. A missing socket
// token is logged, not fatal, so the admin surface stays usable.
func (a *App) Start(ctx context.Context) error {
	if a.metrics != nil {
		interval, err := time.ParseDuration(a.cfg.Metrics.UpdateInterval)
		if err != nil || interval <= 0 {
			interval = 15 * time.Second
		}
		a.collector = metrics.NewMetricsCollector(a.metrics, interval, func(m *metrics.Metrics) {
			m.SetQueueDepth(float64(a.dispatcher.QueueDepth()))
		})
		a.collector.Start()
	}

	if err := a.source.Connect(ctx); err != nil {
		if errors.Is(err, feed.ErrNoToken) {
			a.logger.Warn("streamlabs socket token not configured, set streamlabs.socket_token to connect")
			return nil
		}
		return fmt.Errorf("failed to connect feed: %w", err)
	}
	a.logger.Info("relay started", "source", a.cfg.Source.Type, "sink", a.cfg.Sink.Type)
	return nil
}

// Stop disconnects the feed and drains pending output
func (a *App) Stop(ctx context.Context) error {
	a.source.Disconnect()
	if a.collector != nil {
		a.collector.Stop()
	}

	done := make(chan struct{})
	go func() {
		a.dispatcher.Close()
		close(done)
	}()
	select {
	case <-done:
		a.logger.Info("relay stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out draining dispatch queue: %w", ctx.Err())
	}
}

// HandleEvent runs one raw feed event through the pipeline
func (a *App) HandleEvent(raw []byte) error {
	_, err := a.pipeline.Process(raw)
	return err
}

// Connect starts the feed when it is not connected
func (a *App) Connect(ctx context.Context) error {
	if a.source.IsConnected() {
		return ErrAlreadyConnected
	}
	err := a.source.Connect(ctx)
	if errors.Is(err, feed.ErrAlreadyConnected) {
		return ErrAlreadyConnected
	}
	return err
}

// Disconnect stops the feed, including a pending reconnect loop
func (a *App) Disconnect() error {
	wasConnected := a.source.IsConnected()
	a.source.Disconnect()
	if !wasConnected {
		return ErrNotConnected
	}
	return nil
}

func (a *App) Status() Status {
	rs := a.rules.Load()
	return Status{
		Connected:          a.source.IsConnected(),
		Source:             a.cfg.Source.Type,
		Actions:            rs.ActionCount(),
		CustomPlaceholders: len(rs.CustomPlaceholders()),
		Recipients:         a.recipients.Snapshot(),
		QueueDepth:         a.dispatcher.QueueDepth(),
		Stats:              a.stats.GetStats(),
	}
}

// Reload re-reads the configuration file and swaps in the new rule set and
// recipient list. Transport settings take effect on restart.
func (a *App) Reload() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.configPath == "" {
		a.reloadResult("error")
		return ErrNoConfigFile
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		a.reloadResult("error")
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	rs, err := a.loader.LoadFile(a.configPath)
	if err != nil {
		a.reloadResult("error")
		return err
	}

	a.rules.Swap(rs)
	a.recipients.Replace(cfg.AffectedPlayers)
	a.setRulesActive(rs)
	a.reloadResult("success")

	a.logger.Info("configuration reloaded",
		"actions", rs.ActionCount(),
		"recipients", a.recipients.Len())
	return nil
}

// Recipients returns the current recipient list
func (a *App) Recipients() []string {
	return a.recipients.Snapshot()
}

// AddRecipient adds a player and persists the list. It reports false when
// the player was already present. When the file cannot be written the list
// is left as it was.
func (a *App) AddRecipient(name string) (bool, error) {
	return a.changeRecipients(func() bool { return a.recipients.Add(name) })
}

// RemoveRecipient removes a player and persists the list. It reports false
// when the player was not present. When the file cannot be written the list
// is left as it was.
func (a *App) RemoveRecipient(name string) (bool, error) {
	return a.changeRecipients(func() bool { return a.recipients.Remove(name) })
}

func (a *App) changeRecipients(change func() bool) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	previous := a.recipients.Snapshot()
	if !change() {
		return false, nil
	}
	if err := a.persistRecipients(); err != nil {
		a.recipients.Replace(previous)
		return false, err
	}
	return true, nil
}

func (a *App) persistRecipients() error {
	if a.configPath == "" {
		return nil
	}
	if err := recipient.SaveToFile(a.configPath, a.recipients.Snapshot()); err != nil {
		return fmt.Errorf("failed to save recipients: %w", err)
	}
	return nil
}

func (a *App) onOpen() {
	a.dispatcher.Broadcast(NoticeConnected)
}

func (a *App) onClose(reason string) {
	a.logger.Warn("feed connection closed", "reason", reason)
	a.dispatcher.Broadcast(NoticeDisconnected)
}

func (a *App) onInvalidToken() {
	a.dispatcher.Broadcast(NoticeInvalidToken)
}

func (a *App) setRulesActive(rs *rule.RuleSet) {
	if a.metrics != nil {
		a.metrics.SetRulesActive(float64(rs.ActionCount()))
	}
}

func (a *App) reloadResult(result string) {
	if a.metrics != nil {
		a.metrics.IncReloads(result)
	}
}
