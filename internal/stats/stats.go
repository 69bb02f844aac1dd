package stats

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// StatsCollector manages application-wide statistics
type StatsCollector struct {
	StartTime         time.Time
	EventsReceived    uint64
	EventsProcessed   uint64
	EventsIgnored     uint64
	EventsMalformed   uint64
	ActionsTriggered  uint64
	CommandsExecuted  uint64
	MessagesBroadcast uint64
	Errors            uint64
	lastEvent         atomic.Int64
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Uptime            string    `json:"uptime"`
	EventsReceived    uint64    `json:"events_received"`
	EventsProcessed   uint64    `json:"events_processed"`
	EventsIgnored     uint64    `json:"events_ignored"`
	EventsMalformed   uint64    `json:"events_malformed"`
	ActionsTriggered  uint64    `json:"actions_triggered"`
	CommandsExecuted  uint64    `json:"commands_executed"`
	MessagesBroadcast uint64    `json:"messages_broadcast"`
	Errors            uint64    `json:"errors"`
	LastEvent         time.Time `json:"last_event,omitempty"`
	Rate              float64   `json:"events_per_second"`
}

// NewStatsCollector creates a new stats collector
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		StartTime: time.Now(),
	}
}

func (s *StatsCollector) IncReceived() {
	atomic.AddUint64(&s.EventsReceived, 1)
	s.lastEvent.Store(time.Now().UnixNano())
}

func (s *StatsCollector) IncProcessed() { atomic.AddUint64(&s.EventsProcessed, 1) }
func (s *StatsCollector) IncIgnored()   { atomic.AddUint64(&s.EventsIgnored, 1) }
func (s *StatsCollector) IncMalformed() { atomic.AddUint64(&s.EventsMalformed, 1) }
func (s *StatsCollector) IncTriggered() { atomic.AddUint64(&s.ActionsTriggered, 1) }
func (s *StatsCollector) IncExecuted()  { atomic.AddUint64(&s.CommandsExecuted, 1) }
func (s *StatsCollector) IncBroadcast() { atomic.AddUint64(&s.MessagesBroadcast, 1) }
func (s *StatsCollector) IncErrors()    { atomic.AddUint64(&s.Errors, 1) }

// GetStats returns current statistics
func (s *StatsCollector) GetStats() Snapshot {
	snap := Snapshot{
		Uptime:            time.Since(s.StartTime).Round(time.Second).String(),
		EventsReceived:    atomic.LoadUint64(&s.EventsReceived),
		EventsProcessed:   atomic.LoadUint64(&s.EventsProcessed),
		EventsIgnored:     atomic.LoadUint64(&s.EventsIgnored),
		EventsMalformed:   atomic.LoadUint64(&s.EventsMalformed),
		ActionsTriggered:  atomic.LoadUint64(&s.ActionsTriggered),
		CommandsExecuted:  atomic.LoadUint64(&s.CommandsExecuted),
		MessagesBroadcast: atomic.LoadUint64(&s.MessagesBroadcast),
		Errors:            atomic.LoadUint64(&s.Errors),
		Rate:              s.CalculateRate(),
	}
	if ns := s.lastEvent.Load(); ns > 0 {
		snap.LastEvent = time.Unix(0, ns)
	}
	return snap
}

// GetStatsJSON returns stats as JSON
func (s *StatsCollector) GetStatsJSON() ([]byte, error) {
	return json.Marshal(s.GetStats())
}

// CalculateRate calculates the event receive rate
func (s *StatsCollector) CalculateRate() float64 {
	uptime := time.Since(s.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&s.EventsReceived)) / uptime
}
