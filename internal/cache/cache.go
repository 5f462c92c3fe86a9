// Package cache provides the process-wide store used to memoize raw
// bibliographic search results.
//
// The store is injected into source clients. Noop disables caching.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the number of distinct keys kept before the oldest is evicted.
const DefaultSize = 100

// Key identifies one memoized search.
type Key struct {
	Query string
	Limit int
}

// String renders the key for logging.
func (k Key) String() string {
	return fmt.Sprintf("%q/%d", k.Query, k.Limit)
}

// Store is a bounded key-value store of search results.
// Implementations must be safe for concurrent use.
type Store[V any] interface {
	// Get returns the cached value for key.
	Get(key Key) (V, bool)
	// Add stores value under key. Adding an existing key leaves the
	// stored value and its eviction position unchanged.
	Add(key Key, value V)
	// Len returns the number of cached keys.
	Len() int
}

// Bounded is a Store that evicts the oldest inserted key once more than
// size keys are cached. Reads never refresh an entry's position, so
// eviction follows insertion order rather than recency.
type Bounded[V any] struct {
	entries *lru.Cache[Key, V]
}

var _ Store[int] = (*Bounded[int])(nil)

// NewBounded creates a Bounded store holding at most size keys.
// A non-positive size uses DefaultSize.
func NewBounded[V any](size int) (*Bounded[V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[Key, V](size)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Bounded[V]{entries: entries}, nil
}

// Get returns the cached value for key without touching its eviction order.
func (b *Bounded[V]) Get(key Key) (V, bool) {
	return b.entries.Peek(key)
}

// Add stores value under key unless the key is already cached.
func (b *Bounded[V]) Add(key Key, value V) {
	b.entries.ContainsOrAdd(key, value)
}

// Len returns the number of cached keys.
func (b *Bounded[V]) Len() int {
	return b.entries.Len()
}

// Noop is a Store that never caches anything.
type Noop[V any] struct{}

var _ Store[int] = Noop[int]{}

// Get always reports a miss.
func (Noop[V]) Get(Key) (V, bool) {
	var zero V
	return zero, false
}

// Add discards the value.
func (Noop[V]) Add(Key, V) {}

// Len is always zero.
func (Noop[V]) Len() int { return 0 }
