package recordstore

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type memorySubscriber struct {
	id     string
	prefix bool
	key    string
	fn     func(Snapshot)
}

// Memory is an in-process Store used in tests and as a dev fallback.
// Fan-out runs on a dedicated goroutine per store so subscriber callbacks
// never run under the lock and delivery order per key is preserved.
type Memory struct {
	mu     sync.Mutex
	values map[string][]byte
	revs   map[string]int64
	subs   map[string]*memorySubscriber

	events chan Snapshot
	done   chan struct{}
}

// NewMemory constructs a started in-memory store.
func NewMemory() *Memory {
	m := &Memory{
		values: make(map[string][]byte),
		revs:   make(map[string]int64),
		subs:   make(map[string]*memorySubscriber),
		events: make(chan Snapshot, 64),
		done:   make(chan struct{}),
	}
	go m.fanout()
	return m
}

// Close stops the fan-out loop. Pending deliveries are dropped.
func (m *Memory) Close() {
	close(m.done)
}

// Get returns the current value for key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

// Set writes value under key and notifies subscribers.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.values[key] = append([]byte(nil), value...)
	m.revs[key]++
	snap := Snapshot{Key: key, Value: append([]byte(nil), value...), Rev: m.revs[key]}
	m.mu.Unlock()

	m.emit(snap)
	return nil
}

// Update applies fn to the current value under the store lock.
func (m *Memory) Update(_ context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	current, ok := m.values[key]
	if !ok {
		m.mu.Unlock()
		return ErrKeyNotFound
	}
	next, err := fn(append([]byte(nil), current...))
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.values[key] = next
	m.revs[key]++
	snap := Snapshot{Key: key, Value: append([]byte(nil), next...), Rev: m.revs[key]}
	m.mu.Unlock()

	m.emit(snap)
	return nil
}

// Push stores value under a generated child key and returns the full key.
func (m *Memory) Push(ctx context.Context, collection string, value []byte) (string, error) {
	key := collection + "/" + uuid.NewString()
	if err := m.Set(ctx, key, value); err != nil {
		return "", err
	}
	return key, nil
}

// Remove deletes key and notifies subscribers with a deletion snapshot.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	if _, ok := m.values[key]; !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.values, key)
	m.revs[key]++
	snap := Snapshot{Key: key, Rev: m.revs[key], Deleted: true}
	m.mu.Unlock()

	m.emit(snap)
	return nil
}

// List returns every value under the collection prefix.
func (m *Memory) List(_ context.Context, collection string) (map[string][]byte, error) {
	prefix := collection + "/"
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte)
	for key, value := range m.values {
		if strings.HasPrefix(key, prefix) {
			out[key] = append([]byte(nil), value...)
		}
	}
	return out, nil
}

// Subscribe registers fn for key or a collection prefix ("coll/"). The
// current value (or values, for a prefix) is replayed before new writes.
func (m *Memory) Subscribe(_ context.Context, key string, fn func(Snapshot)) (Unsubscribe, error) {
	sub := &memorySubscriber{
		id:     uuid.NewString(),
		key:    key,
		prefix: strings.HasSuffix(key, "/"),
		fn:     fn,
	}

	m.mu.Lock()
	replay := make([]Snapshot, 0)
	if sub.prefix {
		for k, v := range m.values {
			if strings.HasPrefix(k, key) {
				replay = append(replay, Snapshot{Key: k, Value: append([]byte(nil), v...), Rev: m.revs[k]})
			}
		}
	} else if v, ok := m.values[key]; ok {
		replay = append(replay, Snapshot{Key: key, Value: append([]byte(nil), v...), Rev: m.revs[key]})
	}
	m.subs[sub.id] = sub
	m.mu.Unlock()

	for _, snap := range replay {
		fn(snap)
	}

	return func() {
		m.mu.Lock()
		delete(m.subs, sub.id)
		m.mu.Unlock()
	}, nil
}

func (m *Memory) emit(snap Snapshot) {
	select {
	case m.events <- snap:
	case <-m.done:
	}
}

func (m *Memory) fanout() {
	for {
		select {
		case <-m.done:
			return
		case snap := <-m.events:
			m.mu.Lock()
			targets := make([]*memorySubscriber, 0, len(m.subs))
			for _, sub := range m.subs {
				if sub.matches(snap.Key) {
					targets = append(targets, sub)
				}
			}
			m.mu.Unlock()
			for _, sub := range targets {
				sub.fn(snap)
			}
		}
	}
}

func (s *memorySubscriber) matches(key string) bool {
	if s.prefix {
		return strings.HasPrefix(key, s.key)
	}
	return s.key == key
}
