// Package mock provides a configurable in-memory stand-in for the mq
// client interface.
package mock

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"climatebox.dev/climate-hub/pkg/mq"
)

// Call records the payload of one publish attempt.
type Call struct {
	Ctx  context.Context
	Data []byte
}

// MockClient implements mq.ClientInterface without a broker. Behavior is
// configured through the *Func and *Error fields; every call is recorded.
type MockClient struct {
	mu sync.Mutex

	// PushFunc overrides Push when set; otherwise Push returns PushError.
	PushFunc  func(ctx context.Context, data []byte) error
	PushError error
	PushCalls []Call

	// UnsafePushFunc overrides UnsafePush when set; otherwise it returns
	// UnsafePushError.
	UnsafePushFunc  func(ctx context.Context, data []byte) error
	UnsafePushError error
	UnsafePushCalls []Call

	// ConsumeFunc overrides Consume when set; otherwise Consume returns
	// ConsumeChannel and ConsumeError.
	ConsumeFunc    func() (<-chan amqp.Delivery, error)
	ConsumeChannel <-chan amqp.Delivery
	ConsumeError   error
	ConsumeCalls   int

	// CloseFunc overrides Close when set; otherwise Close returns CloseError.
	CloseFunc  func() error
	CloseError error
	CloseCalls int
}

// NewMockClient creates a mock with default behavior (no errors).
func NewMockClient() *MockClient {
	return &MockClient{
		ConsumeChannel: make(chan amqp.Delivery),
	}
}

// Push implements mq.ClientInterface.
func (m *MockClient) Push(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PushCalls = append(m.PushCalls, Call{Ctx: ctx, Data: data})
	if m.PushFunc != nil {
		return m.PushFunc(ctx, data)
	}
	return m.PushError
}

// UnsafePush implements mq.ClientInterface.
func (m *MockClient) UnsafePush(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UnsafePushCalls = append(m.UnsafePushCalls, Call{Ctx: ctx, Data: data})
	if m.UnsafePushFunc != nil {
		return m.UnsafePushFunc(ctx, data)
	}
	return m.UnsafePushError
}

// Consume implements mq.ClientInterface.
func (m *MockClient) Consume() (<-chan amqp.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConsumeCalls++
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc()
	}
	return m.ConsumeChannel, m.ConsumeError
}

// Close implements mq.ClientInterface.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls++
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return m.CloseError
}

// Pushed returns a copy of every payload passed to Push so far.
func (m *MockClient) Pushed() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]byte, 0, len(m.PushCalls))
	for _, c := range m.PushCalls {
		out = append(out, c.Data)
	}
	return out
}

// Reset clears all recorded calls.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PushCalls = nil
	m.UnsafePushCalls = nil
	m.ConsumeCalls = 0
	m.CloseCalls = 0
}

var _ mq.ClientInterface = (*MockClient)(nil)
