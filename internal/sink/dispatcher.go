package sink

import (
	"sync"

	"streamrelay/config"
	"streamrelay/internal/logger"
	"streamrelay/internal/metrics"
	"streamrelay/internal/stats"
)

// Job kinds
const (
	KindBroadcast = "broadcast"
	KindCommand   = "command"
)

// Job is one resolved output waiting for the sink
type Job struct {
	Kind    string
	Payload string
}

// Dispatcher hands jobs to the sink off the event goroutine. With one worker
// jobs reach the sink in submission order. A full queue drops the job.
type Dispatcher struct {
	sink    Sink
	workers int
	jobChan chan Job
	logger  *logger.Logger
	metrics *metrics.Metrics
	stats   *stats.StatsCollector
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

// NewDispatcher creates a dispatcher and starts its workers
func NewDispatcher(s Sink, cfg config.ProcConfig, log *logger.Logger, m *metrics.Metrics, st *stats.StatsCollector) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}

	d := &Dispatcher{
		sink:    s,
		workers: cfg.Workers,
		jobChan: make(chan Job, cfg.QueueSize),
		logger:  log.Named("dispatcher"),
		metrics: m,
		stats:   st,
	}
	d.startWorkers()
	return d
}

// Broadcast queues a message for every player on the host
func (d *Dispatcher) Broadcast(message string) {
	d.submit(Job{Kind: KindBroadcast, Payload: message})
}

// Execute queues a command for the host
func (d *Dispatcher) Execute(command string) {
	d.submit(Job{Kind: KindCommand, Payload: command})
}

// Submit queues a job. It reports false when the job was dropped.
func (d *Dispatcher) Submit(job Job) bool {
	return d.submit(job)
}

func (d *Dispatcher) submit(job Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("dispatcher closed, dropping job", "kind", job.Kind)
		d.drop()
		return false
	}

	select {
	case d.jobChan <- job:
		safeMetricsUpdate(d.metrics, func(m *metrics.Metrics) {
			m.IncDispatchTotal(job.Kind)
		})
		return true
	default:
		d.logger.Warn("dispatch queue full, dropping job",
			"kind", job.Kind,
			"queueSize", cap(d.jobChan))
		d.drop()
		return false
	}
}

func (d *Dispatcher) drop() {
	safeMetricsUpdate(d.metrics, func(m *metrics.Metrics) {
		m.IncDispatchTotal("dropped")
	})
	if d.stats != nil {
		d.stats.IncErrors()
	}
}

// QueueDepth returns the number of jobs waiting for a worker
func (d *Dispatcher) QueueDepth() int {
	return len(d.jobChan)
}

func (d *Dispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for job := range d.jobChan {
		d.run(job)
	}
}

func (d *Dispatcher) run(job Job) {
	var err error
	switch job.Kind {
	case KindBroadcast:
		err = d.sink.Broadcast(job.Payload)
	case KindCommand:
		err = d.sink.Execute(job.Payload)
	default:
		d.logger.Error("unknown job kind", "kind", job.Kind)
		return
	}

	if err != nil {
		d.logger.Error("sink rejected job",
			"kind", job.Kind,
			"payload", job.Payload,
			"error", err)
		safeMetricsUpdate(d.metrics, func(m *metrics.Metrics) {
			m.IncActionsTotal("error")
		})
		if d.stats != nil {
			d.stats.IncErrors()
		}
		return
	}

	safeMetricsUpdate(d.metrics, func(m *metrics.Metrics) {
		m.IncActionsTotal("success")
	})
	if d.stats != nil {
		if job.Kind == KindBroadcast {
			d.stats.IncBroadcast()
		} else {
			d.stats.IncExecuted()
		}
	}
}

// Close drains queued jobs, stops the workers and closes the sink
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobChan)
	d.mu.Unlock()

	d.wg.Wait()
	d.sink.Close()
}
