package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// StorageKey is the key under which the filter state is persisted.
const StorageKey = "w3cvalidator-filterstate"

// KeyValue is a durable string key-value store.
// database.DB implements it on SQLite; MemoryKV is the in-memory variant.
type KeyValue interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}

// Deleter is implemented by KeyValue stores that can remove a key.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Store loads and saves the filter State.
type Store struct {
	kv     KeyValue
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used to report discarded state.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store backed by kv.
func NewStore(kv KeyValue, opts ...StoreOption) *Store {
	s := &Store{kv: kv}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Load returns the persisted state.
//
// A missing value, a read failure or a value that does not decode as a State
// all yield NewState(). Such failures are only logged at debug level; they
// are never surfaced to the user.
func (s *Store) Load(ctx context.Context) State {
	raw, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		s.logger.Debug("failed to read filter state, using defaults", "error", err)
		return NewState()
	}
	if !ok || raw == "" {
		return NewState()
	}

	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		s.logger.Debug("discarding malformed filter state", "error", err)
		return NewState()
	}
	return st.normalized()
}

// Save persists st.
func (s *Store) Save(ctx context.Context, st State) error {
	data, err := json.Marshal(st.normalized())
	if err != nil {
		return fmt.Errorf("failed to encode filter state: %w", err)
	}
	if err := s.kv.Set(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("failed to save filter state: %w", err)
	}
	return nil
}

// Clear removes every filter. The stored value is deleted when the backing
// store supports it, so later loads fall back to the defaults.
func (s *Store) Clear(ctx context.Context) error {
	d, ok := s.kv.(Deleter)
	if !ok {
		return s.Save(ctx, NewState())
	}
	if err := d.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("failed to clear filter state: %w", err)
	}
	return nil
}

// MemoryKV is an in-memory KeyValue. It is safe for concurrent use.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

// Get implements KeyValue.
func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements KeyValue.
func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete implements Deleter.
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
