package stats

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewStatsCollector verifies the initialization of a new StatsCollector
func TestNewStatsCollector(t *testing.T) {
	collector := NewStatsCollector()

	assert.NotNil(t, collector, "StatsCollector should be created")
	assert.WithinDuration(t, time.Now(), collector.StartTime, 100*time.Millisecond, "StartTime should be close to current time")

	assert.Zero(t, collector.EventsReceived, "EventsReceived should be zero")
	assert.Zero(t, collector.EventsProcessed, "EventsProcessed should be zero")
	assert.Zero(t, collector.ActionsTriggered, "ActionsTriggered should be zero")
	assert.Zero(t, collector.CommandsExecuted, "CommandsExecuted should be zero")
	assert.Zero(t, collector.Errors, "Errors should be zero")
	assert.True(t, collector.GetStats().LastEvent.IsZero(), "LastEvent should be unset")
}

// TestIncrements verifies every counter moves independently
func TestIncrements(t *testing.T) {
	collector := NewStatsCollector()

	collector.IncReceived()
	collector.IncReceived()
	collector.IncProcessed()
	collector.IncIgnored()
	collector.IncMalformed()
	collector.IncTriggered()
	collector.IncExecuted()
	collector.IncExecuted()
	collector.IncBroadcast()
	collector.IncErrors()

	stats := collector.GetStats()
	assert.Equal(t, uint64(2), stats.EventsReceived)
	assert.Equal(t, uint64(1), stats.EventsProcessed)
	assert.Equal(t, uint64(1), stats.EventsIgnored)
	assert.Equal(t, uint64(1), stats.EventsMalformed)
	assert.Equal(t, uint64(1), stats.ActionsTriggered)
	assert.Equal(t, uint64(2), stats.CommandsExecuted)
	assert.Equal(t, uint64(1), stats.MessagesBroadcast)
	assert.Equal(t, uint64(1), stats.Errors)
	assert.WithinDuration(t, time.Now(), stats.LastEvent, time.Second)
}

// TestConcurrentIncrements verifies counters are safe across goroutines
func TestConcurrentIncrements(t *testing.T) {
	collector := NewStatsCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				collector.IncReceived()
				collector.IncProcessed()
			}
		}()
	}
	wg.Wait()

	stats := collector.GetStats()
	assert.Equal(t, uint64(5000), stats.EventsReceived)
	assert.Equal(t, uint64(5000), stats.EventsProcessed)
}

// TestGetStatsJSON verifies the JSON snapshot
func TestGetStatsJSON(t *testing.T) {
	collector := NewStatsCollector()
	collector.IncReceived()
	collector.IncTriggered()

	data, err := collector.GetStatsJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(1), decoded["events_received"])
	assert.Equal(t, float64(1), decoded["actions_triggered"])
	assert.Contains(t, decoded, "uptime")
}

// TestCalculateRate verifies the rate stays non-negative
func TestCalculateRate(t *testing.T) {
	collector := NewStatsCollector()
	collector.StartTime = time.Now().Add(-10 * time.Second)
	for i := 0; i < 20; i++ {
		collector.IncReceived()
	}

	rate := collector.CalculateRate()
	assert.InDelta(t, 2.0, rate, 0.1)
}
