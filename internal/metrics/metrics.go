package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "streamrelay"

// Metrics holds the prometheus collectors used across the relay
type Metrics struct {
	eventsTotal     *prometheus.CounterVec
	ruleMatches     prometheus.Counter
	actionsTotal    *prometheus.CounterVec
	dispatchTotal   *prometheus.CounterVec
	feedConnected   prometheus.Gauge
	feedReconnects  prometheus.Counter
	reloadsTotal    *prometheus.CounterVec
	rulesActive     prometheus.Gauge
	queueDepth      prometheus.Gauge
	processDuration prometheus.Histogram
}

// NewMetrics creates and registers all collectors on reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound feed events by processing status",
		}, []string{"status"}),
		ruleMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_matches_total",
			Help:      "Actions whose conditions held for an event",
		}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Sink deliveries by result",
		}, []string{"status"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Resolved outputs handed to the dispatcher by kind",
		}, []string{"kind"}),
		feedConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_connected",
			Help:      "1 while the live feed is connected",
		}),
		feedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_reconnects_total",
			Help:      "Live feed reconnect attempts",
		}),
		reloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Configuration reloads by result",
		}, []string{"result"}),
		rulesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rules_active",
			Help:      "Actions in the active rule set",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_depth",
			Help:      "Jobs waiting for the sink",
		}),
		processDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_process_seconds",
			Help:      "Time spent running one event through the pipeline",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	collectors := []prometheus.Collector{
		m.eventsTotal,
		m.ruleMatches,
		m.actionsTotal,
		m.dispatchTotal,
		m.feedConnected,
		m.feedReconnects,
		m.reloadsTotal,
		m.rulesActive,
		m.queueDepth,
		m.processDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) IncEventsTotal(status string) {
	m.eventsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncRuleMatches() {
	m.ruleMatches.Inc()
}

func (m *Metrics) IncActionsTotal(status string) {
	m.actionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncDispatchTotal(kind string) {
	m.dispatchTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetFeedConnectionStatus(connected bool) {
	if connected {
		m.feedConnected.Set(1)
	} else {
		m.feedConnected.Set(0)
	}
}

func (m *Metrics) IncFeedReconnects() {
	m.feedReconnects.Inc()
}

func (m *Metrics) IncReloads(result string) {
	m.reloadsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetRulesActive(count float64) {
	m.rulesActive.Set(count)
}

func (m *Metrics) SetQueueDepth(depth float64) {
	m.queueDepth.Set(depth)
}

func (m *Metrics) ObserveProcessDuration(d time.Duration) {
	m.processDuration.Observe(d.Seconds())
}

// MetricsCollector periodically samples values that are not event driven
type MetricsCollector struct {
	metrics  *Metrics
	interval time.Duration
	sample   func(*Metrics)
	stop     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewMetricsCollector creates a collector calling sample every interval
func NewMetricsCollector(m *Metrics, interval time.Duration, sample func(*Metrics)) *MetricsCollector {
	return &MetricsCollector{
		metrics:  m,
		interval: interval,
		sample:   sample,
		stop:     make(chan struct{}),
	}
}

// Start begins sampling in the background
func (c *MetricsCollector) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.sample(c.metrics)
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop halts sampling and waits for the loop to exit
func (c *MetricsCollector) Stop() {
	c.once.Do(func() { close(c.stop) })
	c.wg.Wait()
}
