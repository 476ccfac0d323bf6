package remote

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/google/uuid"
)

// Memory is an in-process Store. It backs tests and the server's memory
// backend and can simulate an unreachable remote with SetOnline(false).
type Memory struct {
	mu     sync.Mutex
	nodes  map[string]map[string]any
	subs   map[*subscriber]struct{}
	online bool
	closed bool
}

func NewMemory() *Memory {
	return &Memory{
		nodes:  map[string]map[string]any{},
		subs:   map[*subscriber]struct{}{},
		online: true,
	}
}

// SetOnline toggles simulated reachability. While offline every call fails
// with common.ErrUnavailable.
func (m *Memory) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online = online
}

func (m *Memory) check() error {
	if m.closed {
		return ErrClosed
	}
	if !m.online {
		return common.ErrUnavailable
	}
	return nil
}

func (m *Memory) Set(ctx context.Context, path string, value map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := Clean(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	m.putLocked(path, value)
	return nil
}

func (m *Memory) Push(ctx context.Context, path string, value map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := Clean(path); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return "", err
	}
	id := newChildID()
	m.putLocked(path+"/"+id, value)
	return id, nil
}

func (m *Memory) putLocked(path string, value map[string]any) {
	v := maps.Clone(value)
	m.nodes[path] = v
	ev := ChangeEvent{Path: path, Value: maps.Clone(v), Kind: ChangePut}
	for s := range m.subs {
		if Under(path, s.prefix) {
			s.enqueue(ev)
		}
	}
}

// Get returns the node stored at path.
func (m *Memory) Get(path string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.nodes[path]
	return maps.Clone(v), ok
}

// Paths lists the stored paths under prefix in lexical order.
func (m *Memory) Paths(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for p := range m.nodes {
		if Under(p, prefix) {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

func (m *Memory) Subscribe(ctx context.Context, prefix string) (<-chan ChangeEvent, error) {
	m.mu.Lock()
	if err := m.check(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	s := newSubscriber(prefix)
	var paths []string
	for p := range m.nodes {
		if Under(p, prefix) {
			paths = append(paths, p)
		}
	}
	slices.Sort(paths)
	for _, p := range paths {
		s.enqueue(ChangeEvent{Path: p, Value: maps.Clone(m.nodes[p]), Kind: ChangePut})
	}
	m.subs[s] = struct{}{}
	m.mu.Unlock()

	out := make(chan ChangeEvent)
	go func() {
		defer close(out)
		defer func() {
			m.mu.Lock()
			delete(m.subs, s)
			m.mu.Unlock()
		}()
		s.pump(ctx, out)
	}()
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check()
}

// Close ends every subscription.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for s := range m.subs {
		s.stop()
	}
	return nil
}

// newChildID returns a time-ordered id so that pushed children sort in
// insertion order.
func newChildID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// subscriber buffers events for one subscription so that writers never block
// on a slow reader.
type subscriber struct {
	prefix string

	mu      sync.Mutex
	queue   []ChangeEvent
	wake    chan struct{}
	done    chan struct{}
	stopped bool
}

func newSubscriber(prefix string) *subscriber {
	return &subscriber{prefix: prefix, wake: make(chan struct{}, 1), done: make(chan struct{})}
}

func (s *subscriber) enqueue(ev ChangeEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.done)
	}
}

func (s *subscriber) pump(ctx context.Context, out chan<- ChangeEvent) {
	for {
		s.mu.Lock()
		var next *ChangeEvent
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			next = &ev
		}
		s.mu.Unlock()

		if next == nil {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-s.wake:
				continue
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case out <- *next:
		}
	}
}
