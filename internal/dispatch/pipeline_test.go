package dispatch

import (
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamrelay/internal/event"
	"streamrelay/internal/logger"
	"streamrelay/internal/metrics"
	"streamrelay/internal/recipient"
	"streamrelay/internal/rule"
	"streamrelay/internal/stats"
)

type recordingOutput struct {
	mu         sync.Mutex
	broadcasts []string
	commands   []string
}

func (r *recordingOutput) Broadcast(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, message)
}

func (r *recordingOutput) Execute(command string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
}

const rulesDoc = `
actions:
  basic_donation:
    action: streamlabs_donation
    messages:
      - "Thanks {user}! Tier: {tier}"
    donation_conditions:
      - "{amount}>=10"
    commands:
      - "give {player} diamond"
  every_donation:
    action: streamlabs_donation
    commands:
      - "say {user} gave {amount}"
  disabled_follow:
    action: twitch_follow
    enabled: false
    commands:
      - "say never"
  superchat:
    action: youtube_superchat
    commands:
      - "say superchat {formatted_amount}"
custom_placeholders:
  tier:
    default_value: bronze
    gold:
      value: gold
      donation_conditions:
        - "{amount}>=50"
`

type fixture struct {
	pipeline   *Pipeline
	output     *recordingOutput
	store      *rule.Store
	recipients *recipient.List
	stats      *stats.StatsCollector
	metrics    *metrics.Metrics
	loader     *rule.Loader
}

func newFixture(t *testing.T, players ...string) *fixture {
	t.Helper()

	registry := event.NewRegistry("", event.DefaultVariants()...)
	loader := rule.NewLoader(logger.NewNop(), registry)
	rs, err := loader.Load([]byte(rulesDoc))
	require.NoError(t, err)

	m, err := metrics.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	f := &fixture{
		output:     &recordingOutput{},
		store:      rule.NewStore(rs),
		recipients: recipient.NewList(players),
		stats:      stats.NewStatsCollector(),
		metrics:    m,
		loader:     loader,
	}
	f.pipeline = NewPipeline(Config{
		Registry:   registry,
		Rules:      f.store,
		Recipients: f.recipients,
		Output:     f.output,
		Logger:     logger.NewNop(),
		Metrics:    m,
		Stats:      f.stats,
	})
	return f
}

func donation(amount string) []byte {
	return []byte(`["event",{"type":"donation","message":[{"name":"Alice","amount":"` + amount + `","currency":"USD","formatted_amount":"$` + amount + `"}]}]`)
}

func TestBasicDonationThreshold(t *testing.T) {
	tests := []struct {
		name         string
		amount       string
		wantActions  []string
		wantCommands []string
	}{
		{
			name:         "above threshold",
			amount:       "12.50",
			wantActions:  []string{"basic_donation", "every_donation"},
			wantCommands: []string{"give Alice diamond", "give Bob diamond", "say Alice gave 12.5"},
		},
		{
			name:         "below threshold",
			amount:       "5.00",
			wantActions:  []string{"every_donation"},
			wantCommands: []string{"say Alice gave 5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "Alice", "Bob")

			result, err := f.pipeline.Process(donation(tt.amount))
			require.NoError(t, err)
			assert.False(t, result.Ignored)
			assert.NotEmpty(t, result.EventID)
			assert.Equal(t, "streamlabs_donation", result.VariantID)
			assert.Equal(t, tt.wantActions, result.Actions)
			assert.Equal(t, tt.wantCommands, result.Commands)
			assert.Equal(t, tt.wantCommands, f.output.commands)
		})
	}
}

func TestMessagesResolveCustomPlaceholders(t *testing.T) {
	f := newFixture(t)

	result, err := f.pipeline.Process(donation("75"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice donated $75!", "Thanks Alice! Tier: gold"}, result.Messages)
	assert.Equal(t, result.Messages, f.output.broadcasts)

	result, err = f.pipeline.Process(donation("20"))
	require.NoError(t, err)
	assert.Equal(t, "Thanks Alice! Tier: bronze", result.Messages[1])
}

func TestPlayerExpansion(t *testing.T) {
	f := newFixture(t)

	result, err := f.pipeline.Process(donation("10"))
	require.NoError(t, err)
	assert.Equal(t, []string{"give  diamond", "say Alice gave 10"}, result.Commands)

	f.recipients.Add("Carol")
	result, err = f.pipeline.Process(donation("10"))
	require.NoError(t, err)
	assert.Equal(t, []string{"give Carol diamond", "say Alice gave 10"}, result.Commands)
}

func TestExpandRecipients(t *testing.T) {
	tests := []struct {
		name       string
		cmd        string
		recipients []string
		want       []string
	}{
		{"two recipients", "give {player} diamond", []string{"Alice", "Bob"}, []string{"give Alice diamond", "give Bob diamond"}},
		{"no recipients", "give {player} diamond", nil, []string{"give  diamond"}},
		{"no token", "say hi", []string{"Alice", "Bob"}, []string{"say hi"}},
		{"token twice", "tp {player} {player}", []string{"Alice"}, []string{"tp Alice Alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandRecipients(tt.cmd, tt.recipients))
		})
	}
}

func TestUnknownEventIsIgnored(t *testing.T) {
	f := newFixture(t)

	result, err := f.pipeline.Process([]byte(`["event",{"type":"alertPlaying","message":[{}]}]`))
	require.NoError(t, err)
	assert.True(t, result.Ignored)
	assert.Empty(t, f.output.commands)
	assert.Empty(t, f.output.broadcasts)
	assert.Equal(t, uint64(1), f.stats.GetStats().EventsIgnored)
}

func TestClassificationByPlatform(t *testing.T) {
	f := newFixture(t)

	result, err := f.pipeline.Process([]byte(`["event",{"type":"superchat","for":"youtube_account","message":[{"name":"Bob","amount":"5000000","currency":"USD","displayString":"$5.00"}]}]`))
	require.NoError(t, err)
	assert.Equal(t, "youtube_superchat", result.VariantID)
	assert.Equal(t, []string{"say superchat $5.00"}, result.Commands)
}

func TestDisabledActionIsSkipped(t *testing.T) {
	f := newFixture(t)

	result, err := f.pipeline.Process([]byte(`["event",{"type":"follow","for":"twitch_account","message":[{"name":"Dan"}]}]`))
	require.NoError(t, err)
	assert.Equal(t, "twitch_follow", result.VariantID)
	assert.Empty(t, result.Actions)
	assert.Empty(t, result.Commands)
	assert.Equal(t, []string{"Dan is now following!"}, result.Messages)
}

func TestMalformedPayload(t *testing.T) {
	f := newFixture(t, "Alice")

	tests := []struct {
		name string
		raw  string
	}{
		{"empty message array", `["event",{"type":"donation","message":[]}]`},
		{"missing message", `["event",{"type":"donation"}]`},
		{"not an array", `{"type":"donation"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.pipeline.Process([]byte(tt.raw))
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, event.ErrMalformedPayload))
		})
	}

	assert.Empty(t, f.output.commands)
	assert.Equal(t, uint64(3), f.stats.GetStats().EventsMalformed)

	// later events are unaffected
	result, err := f.pipeline.Process(donation("12"))
	require.NoError(t, err)
	assert.Contains(t, result.Commands, "give Alice diamond")
}

func TestReloadAtomicity(t *testing.T) {
	f := newFixture(t)

	first, err := f.loader.Load([]byte(`
actions:
  a1: {action: twitch_follow, commands: ["old one"]}
  a2: {action: twitch_follow, commands: ["old two"]}
`))
	require.NoError(t, err)
	second, err := f.loader.Load([]byte(`
actions:
  b1: {action: twitch_follow, commands: ["new one"]}
  b2: {action: twitch_follow, commands: ["new two"]}
`))
	require.NoError(t, err)
	f.store.Swap(first)

	follow := []byte(`["event",{"type":"follow","for":"twitch","message":[{"name":"Eve"}]}]`)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				result, err := f.pipeline.Process(follow)
				if !assert.NoError(t, err) || !assert.Len(t, result.Commands, 2) {
					return
				}
				assert.Equal(t, result.Commands[0][:3], result.Commands[1][:3])
			}
		}()
	}
	for j := 0; j < 200; j++ {
		if j%2 == 0 {
			f.store.Swap(second)
		} else {
			f.store.Swap(first)
		}
	}
	wg.Wait()
}
