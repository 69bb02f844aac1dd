package sink

import (
	"errors"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MockToken implements mqtt.Token for testing
type MockToken struct {
	err  error
	done chan struct{}
}

func NewMockToken(err error) *MockToken {
	t := &MockToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *MockToken) Wait() bool                       { return true }
func (t *MockToken) WaitTimeout(d time.Duration) bool { return true }
func (t *MockToken) Error() error                     { return t.err }
func (t *MockToken) Done() <-chan struct{}            { return t.done }

type published struct {
	topic   string
	qos     byte
	payload string
}

// MockClient implements mqtt.Client and records publishes
type MockClient struct {
	mu           sync.Mutex
	published    []published
	publishErr   error
	disconnected bool
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Connect() mqtt.Token { return NewMockToken(nil) }

func (m *MockClient) Disconnect(quiesce uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = true
}

func (m *MockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return NewMockToken(m.publishErr)
	}
	m.published = append(m.published, published{topic: topic, qos: qos, payload: payload.(string)})
	return NewMockToken(nil)
}

func (m *MockClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return NewMockToken(nil)
}

func (m *MockClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return NewMockToken(nil)
}

func (m *MockClient) Unsubscribe(topics ...string) mqtt.Token {
	return NewMockToken(nil)
}

func (m *MockClient) AddRoute(topic string, callback mqtt.MessageHandler) {}

func (m *MockClient) IsConnected() bool {
	return true
}

func (m *MockClient) IsConnectionOpen() bool {
	return true
}

func (m *MockClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

func (m *MockClient) Published() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]published, len(m.published))
	copy(out, m.published)
	return out
}

var errSinkDown = errors.New("sink down")

// recordingSink records everything it receives
type recordingSink struct {
	mu       sync.Mutex
	jobs     []Job
	fail     bool
	closed   bool
	block    chan struct{}
	received chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{received: make(chan struct{}, 100)}
}

func (r *recordingSink) record(kind, payload string) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, Job{Kind: kind, Payload: payload})
	select {
	case r.received <- struct{}{}:
	default:
	}
	if r.fail {
		return errSinkDown
	}
	return nil
}

func (r *recordingSink) Broadcast(message string) error { return r.record(KindBroadcast, message) }
func (r *recordingSink) Execute(command string) error   { return r.record(KindCommand, command) }

func (r *recordingSink) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *recordingSink) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}
