// Package cache provides a time-bounded cache for rarely-changing carrier
// data. Entries expire lazily: an entry older than the TTL is reported as
// absent on read and overwritten on the next Set. Nothing runs in the
// background.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// DefaultTTL is the validity window of an entry.
const DefaultTTL = 5 * time.Minute

// Entry is a stored payload and the time it was written.
type Entry struct {
	Payload  []byte    `json:"payload"`
	StoredAt time.Time `json:"stored_at"`
}

// Store is the backing map. Implementations must be safe for concurrent use.
type Store interface {
	Load(ctx context.Context, key string) (Entry, bool, error)
	Save(ctx context.Context, key string, entry Entry, ttl time.Duration) error
}

// Observer is notified of every lookup.
type Observer interface {
	ObserveLookup(hit bool)
}

// Cache is a TTL cache over a Store.
type Cache struct {
	store    Store
	ttl      time.Duration
	now      func() time.Time
	observer Observer
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithObserver registers a lookup observer.
func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

// New creates an in-memory cache with the given TTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	return NewWithStore(NewMemoryStore(), ttl, opts...)
}

// NewWithStore creates a cache over an explicit store.
func NewWithStore(store Store, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the validity window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the payload for key if present and fresh. Store errors are
// treated as a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, hit := c.Peek(ctx, key)
	if c.observer != nil {
		c.observer.ObserveLookup(hit)
	}
	return payload, hit
}

// Peek is Get without notifying the observer.
func (c *Cache) Peek(ctx context.Context, key string) ([]byte, bool) {
	entry, ok, err := c.store.Load(ctx, key)
	if err != nil || !ok || c.now().Sub(entry.StoredAt) >= c.ttl {
		return nil, false
	}
	return entry.Payload, true
}

// Set stores payload under key, overwriting any previous entry.
func (c *Cache) Set(ctx context.Context, key string, payload []byte) error {
	return c.store.Save(ctx, key, Entry{Payload: payload, StoredAt: c.now()}, c.ttl)
}

// GetJSON decodes a fresh entry into a value of type T.
func GetJSON[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	payload, ok := c.Get(ctx, key)
	return decodeJSON[T](payload, ok)
}

// PeekJSON is GetJSON without notifying the observer.
func PeekJSON[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	payload, ok := c.Peek(ctx, key)
	return decodeJSON[T](payload, ok)
}

func decodeJSON[T any](payload []byte, ok bool) (T, bool) {
	var v T
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, false
	}
	return v, true
}

// SetJSON encodes v and stores it under key.
func SetJSON[T any](ctx context.Context, c *Cache, key string, v T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, payload)
}
