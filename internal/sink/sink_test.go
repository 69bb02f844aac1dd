package sink

import (
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamrelay/config"
	"streamrelay/internal/logger"
)

func TestNewSinkTypes(t *testing.T) {
	s, err := New(&config.SinkConfig{Type: config.SinkLog}, logger.NewNop(), nil)
	require.NoError(t, err)
	assert.IsType(t, &LogSink{}, s)
	assert.NoError(t, s.Broadcast("hi"))
	assert.NoError(t, s.Execute("say hi"))
	s.Close()

	_, err = New(&config.SinkConfig{Type: "carrier-pigeon"}, logger.NewNop(), nil)
	assert.Error(t, err)
}

func TestMQTTSinkPublishes(t *testing.T) {
	client := NewMockClient()
	s := NewMQTTSinkWithClient(client, config.MQTTSinkConfig{TopicPrefix: "mc", QoS: 1}, logger.NewNop(), nil)

	require.NoError(t, s.Broadcast("Alice donated $5!"))
	require.NoError(t, s.Execute("give Alice diamond"))

	assert.Equal(t, []published{
		{topic: "mc/broadcast", qos: 1, payload: "Alice donated $5!"},
		{topic: "mc/command", qos: 1, payload: "give Alice diamond"},
	}, client.Published())

	s.Close()
	assert.True(t, client.disconnected)
	assert.Error(t, s.Execute("after close"))
}

func TestMQTTSinkPublishError(t *testing.T) {
	client := NewMockClient()
	client.publishErr = errSinkDown
	s := NewMQTTSinkWithClient(client, config.MQTTSinkConfig{}, logger.NewNop(), nil)

	err := s.Execute("say hi")
	assert.ErrorIs(t, err, errSinkDown)
	assert.Equal(t, "command", s.Topic("command"))
}

func TestNATSSinkPublishes(t *testing.T) {
	srv := natsserver.RunRandClientPortServer()
	defer srv.Shutdown()

	sub, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	commands := make(chan *nats.Msg, 4)
	_, err = sub.ChanSubscribe("relay.>", commands)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	s, err := NewNATSSink(config.NATSSinkConfig{
		URL:           srv.ClientURL(),
		Name:          "test",
		SubjectPrefix: "relay",
	}, logger.NewNop(), nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Broadcast("hello"))
	require.NoError(t, s.Execute("give Alice diamond"))

	for _, want := range []struct{ subject, data string }{
		{"relay.broadcast", "hello"},
		{"relay.command", "give Alice diamond"},
	} {
		select {
		case msg := <-commands:
			assert.Equal(t, want.subject, msg.Subject)
			assert.Equal(t, want.data, string(msg.Data))
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want.subject)
		}
	}
}

func TestNATSSinkClosed(t *testing.T) {
	srv := natsserver.RunRandClientPortServer()
	defer srv.Shutdown()

	conn, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)

	s := NewNATSSinkWithConn(conn, "", logger.NewNop(), nil)
	assert.True(t, s.IsConnected())
	assert.Equal(t, "command", s.Subject("command"))

	s.Close()
	assert.False(t, s.IsConnected())
	assert.Error(t, s.Broadcast("late"))
}
