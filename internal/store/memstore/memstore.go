package memstore

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"team-chat/internal/store"
)

// Memstore is an in-memory Store backend used by tests and -dev runs. It
// keeps one child map per collection path and fans snapshots out to
// subscribers, coalescing when a subscriber lags behind.
type Memstore struct {
	// Now supplies the store clock; tests may replace it.
	Now func() time.Time

	mu         sync.Mutex
	data       map[string]map[string]json.RawMessage
	subs       map[string][]chan store.Snapshot
	disconnect map[string]map[string]map[string]any
}

// New creates an empty Memstore.
func New() *Memstore {
	return &Memstore{
		Now:        time.Now,
		data:       make(map[string]map[string]json.RawMessage),
		subs:       make(map[string][]chan store.Snapshot),
		disconnect: make(map[string]map[string]map[string]any),
	}
}

func (m *Memstore) Put(ctx context.Context, path string, value map[string]any) error {
	parent, key, err := store.Split(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(store.ResolveTimestamps(value, m.Now().UnixMilli()))
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(parent, key, raw)
	m.notifyLocked(parent)
	return nil
}

func (m *Memstore) Update(ctx context.Context, path string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updateLocked(path, fields); err != nil {
		return err
	}
	parent, _, _ := store.Split(path)
	m.notifyLocked(parent)
	return nil
}

func (m *Memstore) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if parent, key, err := store.Split(path); err == nil {
		if children, ok := m.data[parent]; ok {
			if _, exists := children[key]; exists {
				delete(children, key)
				if len(children) == 0 {
					delete(m.data, parent)
				}
				m.notifyLocked(parent)
			}
		}
	}

	// A path may also name a whole collection (and collections nested
	// beneath it); remove the subtree.
	removed := false
	for collection := range m.data {
		if collection == path || strings.HasPrefix(collection, path+"/") {
			delete(m.data, collection)
			removed = true
		}
	}
	if removed {
		m.notifyLocked(path)
	}
	return nil
}

func (m *Memstore) Push(ctx context.Context, path string, value map[string]any) (string, error) {
	now := m.Now().UnixMilli()
	raw, err := json.Marshal(store.ResolveTimestamps(value, now))
	if err != nil {
		return "", err
	}
	key := store.PushKey(now)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(path, key, raw)
	m.notifyLocked(path)
	return key, nil
}

func (m *Memstore) Children(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyChildren(m.data[path]), nil
}

func (m *Memstore) Subscribe(ctx context.Context, path string) (<-chan store.Snapshot, func(), error) {
	ch := make(chan store.Snapshot, 1)

	m.mu.Lock()
	m.subs[path] = append(m.subs[path], ch)
	ch <- store.Snapshot{Path: path, Children: copyChildren(m.data[path])}
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subs[path]
		for i, sub := range subs {
			if sub == ch {
				m.subs[path] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel, nil
}

func (m *Memstore) OnDisconnect(ctx context.Context, sessionID, path string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disconnect[sessionID] == nil {
		m.disconnect[sessionID] = make(map[string]map[string]any)
	}
	m.disconnect[sessionID][path] = fields
	return nil
}

func (m *Memstore) CancelDisconnect(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.disconnect, sessionID)
	return nil
}

func (m *Memstore) FireDisconnect(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, fields := range m.disconnect[sessionID] {
		if err := m.updateLocked(path, fields); err != nil {
			return err
		}
		parent, _, _ := store.Split(path)
		m.notifyLocked(parent)
	}
	delete(m.disconnect, sessionID)
	return nil
}

func (m *Memstore) ServerNow(ctx context.Context) (int64, error) {
	return m.Now().UnixMilli(), nil
}

func (m *Memstore) Close() error { return nil }

func (m *Memstore) setLocked(parent, key string, raw json.RawMessage) {
	children, ok := m.data[parent]
	if !ok {
		children = make(map[string]json.RawMessage)
		m.data[parent] = children
	}
	children[key] = raw
}

func (m *Memstore) updateLocked(path string, fields map[string]any) error {
	parent, key, err := store.Split(path)
	if err != nil {
		return err
	}
	record := make(map[string]any)
	if raw, ok := m.data[parent][key]; ok {
		if err := json.Unmarshal(raw, &record); err != nil {
			return err
		}
	}
	resolved := store.ResolveTimestamps(fields, m.Now().UnixMilli())
	for field, value := range resolved {
		store.PatchField(record, field, value)
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	m.setLocked(parent, key, raw)
	return nil
}

func (m *Memstore) notifyLocked(path string) {
	snap := store.Snapshot{Path: path, Children: copyChildren(m.data[path])}
	for _, ch := range m.subs[path] {
		select {
		case ch <- snap:
		default:
			// Subscriber lagging: drop the stale snapshot it has not read
			// yet and deliver the latest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func copyChildren(children map[string]json.RawMessage) map[string]json.RawMessage {
	copied := make(map[string]json.RawMessage, len(children))
	for key, raw := range children {
		copied[key] = raw
	}
	return copied
}
