package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process Store used in tests and local development.
// PushRemote simulates a change made by another device.
type Memory struct {
	mu     sync.Mutex
	docs   map[string]json.RawMessage
	subs   map[string]map[int]ChangeFunc
	nextID int
	closed bool

	// WriteErr, when set, makes Write fail. Lets tests exercise the
	// fire-and-forget push path.
	WriteErr error
}

// NewMemory creates an empty in-memory mirror.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]json.RawMessage),
		subs: make(map[string]map[int]ChangeFunc),
	}
}

// Write stores value and notifies subscribers, like a remote store
// echoing its own write back.
func (m *Memory) Write(ctx context.Context, collection string, value any) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrUnreachable
	}
	if m.WriteErr != nil {
		err := m.WriteErr
		m.mu.Unlock()
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("marshal %s: %w", collection, err)
	}
	m.docs[collection] = raw
	fns := m.subscribers(collection)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(raw)
	}
	return nil
}

// ReadOnce fetches the current document into out.
func (m *Memory) ReadOnce(ctx context.Context, collection string, out any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.docs[collection]
	m.mu.Unlock()

	if !ok || raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

// Subscribe registers fn and returns its teardown.
func (m *Memory) Subscribe(collection string, fn ChangeFunc) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrUnreachable
	}
	if m.subs[collection] == nil {
		m.subs[collection] = make(map[int]ChangeFunc)
	}
	m.nextID++
	id := m.nextID
	m.subs[collection][id] = fn

	return func() {
		m.mu.Lock()
		delete(m.subs[collection], id)
		m.mu.Unlock()
	}, nil
}

// Close marks the mirror unreachable. Subsequent writes and subscribes
// fail; existing subscriptions stop firing.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.subs = make(map[string]map[int]ChangeFunc)
	m.mu.Unlock()
	return nil
}

// PushRemote simulates another device writing raw to the collection,
// notifying local subscribers without going through Write.
func (m *Memory) PushRemote(collection string, raw json.RawMessage) {
	m.mu.Lock()
	if raw != nil {
		m.docs[collection] = raw
	}
	fns := m.subscribers(collection)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(raw)
	}
}

// SubscriberCount reports live subscriptions for a collection.
func (m *Memory) SubscriberCount(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[collection])
}

func (m *Memory) subscribers(collection string) []ChangeFunc {
	fns := make([]ChangeFunc, 0, len(m.subs[collection]))
	for _, fn := range m.subs[collection] {
		fns = append(fns, fn)
	}
	return fns
}
