package dispatch

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"streamrelay/internal/event"
	"streamrelay/internal/logger"
	"streamrelay/internal/metrics"
	"streamrelay/internal/rule"
	"streamrelay/internal/stats"
)

// Output receives resolved broadcasts and commands. Calls must not block the
// event; delivery is best effort.
type Output interface {
	Broadcast(message string)
	Execute(command string)
}

// Recipients supplies the players {player} expands into
type Recipients interface {
	Snapshot() []string
}

// Result describes what one event produced
type Result struct {
	EventID   string
	VariantID string
	Ignored   bool
	Messages  []string
	Commands  []string
	Actions   []string // names of the actions that fired
}

// Pipeline runs inbound events through classification, rule checks and
// placeholder resolution. It is safe for concurrent use.
type Pipeline struct {
	registry   *event.Registry
	rules      *rule.Store
	recipients Recipients
	output     Output
	logger     *logger.Logger
	metrics    *metrics.Metrics
	stats      *stats.StatsCollector
}

// Config holds the collaborators of a Pipeline. Metrics and Stats are
// optional.
type Config struct {
	Registry   *event.Registry
	Rules      *rule.Store
	Recipients Recipients
	Output     Output
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
	Stats      *stats.StatsCollector
}

func NewPipeline(cfg Config) *Pipeline {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{
		registry:   cfg.Registry,
		rules:      cfg.Rules,
		recipients: cfg.Recipients,
		output:     cfg.Output,
		logger:     log.Named("pipeline"),
		metrics:    cfg.Metrics,
		stats:      cfg.Stats,
	}
}

// Process handles one raw feed event. Unknown event types are ignored without
// error. A malformed payload returns an error wrapping
// event.ErrMalformedPayload and dispatches nothing.
func (p *Pipeline) Process(raw []byte) (*Result, error) {
	start := time.Now()
	defer func() {
		p.withMetrics(func(m *metrics.Metrics) { m.ObserveProcessDuration(time.Since(start)) })
	}()

	result := &Result{EventID: uuid.NewString()}
	p.withStats(func(s *stats.StatsCollector) { s.IncReceived() })
	p.withMetrics(func(m *metrics.Metrics) { m.IncEventsTotal("received") })

	env, err := event.DecodeEnvelope(raw)
	if err != nil {
		return nil, p.malformed(result, err)
	}

	variant, ok := p.registry.Classify(env)
	if !ok {
		result.Ignored = true
		p.withStats(func(s *stats.StatsCollector) { s.IncIgnored() })
		p.withMetrics(func(m *metrics.Metrics) { m.IncEventsTotal("ignored") })
		p.logger.Debug("ignoring unsupported event",
			"eventId", result.EventID,
			"type", env.Type,
			"platform", env.Platform)
		return result, nil
	}
	result.VariantID = variant.ID()

	payload, err := variant.BasePayload(env)
	if err != nil {
		return nil, p.malformed(result, err)
	}

	log := p.logger.With("eventId", result.EventID, "event", variant.ID())
	log.Debug("processing event")

	if msg := variant.Message(payload); msg != "" {
		p.broadcast(result, msg)
	}

	// one snapshot of rules and recipients for the whole event
	rules := p.rules.Load()
	players := p.recipientNames()
	for _, action := range rules.ActionsFor(variant.ID()) {
		if !action.Enabled {
			continue
		}
		if !action.Check(variant, payload) {
			log.Debug("conditions not met", "action", action.Name)
			continue
		}

		result.Actions = append(result.Actions, action.Name)
		p.withStats(func(s *stats.StatsCollector) { s.IncTriggered() })
		p.withMetrics(func(m *metrics.Metrics) { m.IncRuleMatches() })
		log.Info("action triggered", "action", action.Name)

		for _, tmpl := range action.Messages {
			p.broadcast(result, resolve(string(tmpl), variant, rules, payload))
		}
		for _, tmpl := range action.Commands {
			for _, cmd := range ExpandRecipients(resolve(tmpl, variant, rules, payload), players) {
				result.Commands = append(result.Commands, cmd)
				p.output.Execute(cmd)
			}
		}
	}

	p.withStats(func(s *stats.StatsCollector) { s.IncProcessed() })
	p.withMetrics(func(m *metrics.Metrics) { m.IncEventsTotal("processed") })
	return result, nil
}

// resolve applies event placeholders, then custom placeholders
func resolve(template string, v event.Variant, rules *rule.RuleSet, p event.Payload) string {
	out := v.Placeholders().ResolveAll(template, p)
	return rules.ResolvePlaceholders(out, v, p)
}

// ExpandRecipients returns one command per recipient when cmd contains
// {player}, in recipient order. With no recipients {player} becomes "".
// Commands without the token are returned unchanged.
func ExpandRecipients(cmd string, recipients []string) []string {
	if !strings.Contains(cmd, rule.PlayerToken) {
		return []string{cmd}
	}
	if len(recipients) == 0 {
		return []string{strings.ReplaceAll(cmd, rule.PlayerToken, "")}
	}
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, strings.ReplaceAll(cmd, rule.PlayerToken, r))
	}
	return out
}

func (p *Pipeline) broadcast(result *Result, msg string) {
	result.Messages = append(result.Messages, msg)
	p.output.Broadcast(msg)
}

func (p *Pipeline) recipientNames() []string {
	if p.recipients == nil {
		return nil
	}
	return p.recipients.Snapshot()
}

func (p *Pipeline) malformed(result *Result, err error) error {
	p.withStats(func(s *stats.StatsCollector) { s.IncMalformed() })
	p.withMetrics(func(m *metrics.Metrics) { m.IncEventsTotal("malformed") })

	var perr *event.PayloadError
	if errors.As(err, &perr) {
		p.logger.Warn("dropping malformed event",
			"eventId", result.EventID,
			"field", perr.Field,
			"reason", perr.Reason)
	} else {
		p.logger.Warn("dropping malformed event", "eventId", result.EventID, "error", err)
	}
	return err
}

func (p *Pipeline) withStats(fn func(*stats.StatsCollector)) {
	if p.stats != nil {
		fn(p.stats)
	}
}

func (p *Pipeline) withMetrics(fn func(*metrics.Metrics)) {
	if p.metrics != nil {
		fn(p.metrics)
	}
}
