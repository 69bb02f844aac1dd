package recipient

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewListDeduplicates(t *testing.T) {
	l := NewList([]string{"Alice", " Bob ", "", "Alice"})
	assert.Equal(t, []string{"Alice", "Bob"}, l.Snapshot())
	assert.Equal(t, 2, l.Len())
}

func TestAddRemove(t *testing.T) {
	l := NewList(nil)

	assert.True(t, l.Add("Alice"))
	assert.True(t, l.Add("Bob"))
	assert.False(t, l.Add("Alice"))
	assert.False(t, l.Add("  "))
	assert.Equal(t, []string{"Alice", "Bob"}, l.Snapshot())

	assert.True(t, l.Remove("Alice"))
	assert.False(t, l.Remove("Alice"))
	assert.Equal(t, []string{"Bob"}, l.Snapshot())
}

func TestSnapshotIsCopy(t *testing.T) {
	l := NewList([]string{"Alice"})
	snap := l.Snapshot()
	snap[0] = "Mallory"
	assert.Equal(t, []string{"Alice"}, l.Snapshot())
}

func TestConcurrentAccess(t *testing.T) {
	l := NewList(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("player%d", i%10)
			l.Add(name)
			_ = l.Snapshot()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, l.Len())
}

func TestSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	original := `# relay settings
streamlabs:
  socket_token: abc
affected_players:
  - Alice
actions:
  follow:
    action: twitch_follow
`
	require.NoError(t, os.WriteFile(path, []byte(original), 0600))

	require.NoError(t, SaveToFile(path, []string{"Alice", "Bob"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# relay settings")

	var doc struct {
		Streamlabs struct {
			SocketToken string `yaml:"socket_token"`
		} `yaml:"streamlabs"`
		AffectedPlayers []string                  `yaml:"affected_players"`
		Actions         map[string]map[string]any `yaml:"actions"`
	}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "abc", doc.Streamlabs.SocketToken)
	assert.Equal(t, []string{"Alice", "Bob"}, doc.AffectedPlayers)
	assert.Equal(t, "twitch_follow", doc.Actions["follow"]["action"])

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSaveToFileAddsKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0644))

	require.NoError(t, SaveToFile(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Contains(t, doc, Key)
	assert.Contains(t, doc, "logging")
}

func TestSaveToFileErrors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, SaveToFile(filepath.Join(dir, "missing.yml"), []string{"Alice"}))

	path := filepath.Join(dir, "list.yml")
	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0644))
	assert.Error(t, SaveToFile(path, []string{"Alice"}))
}
