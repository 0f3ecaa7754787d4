// Package cache provides the bounded, caller-owned caches that sit in front
// of the codec: tone sequences and rendered buffers keyed by payload.
package cache

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCapacity is the number of payloads kept per cache
const DefaultCapacity = 10

// ErrInvalidCapacity indicates capacity must be at least 1
var ErrInvalidCapacity = errors.New("cache capacity must be at least 1")

// LookupFunc is told whether each Get was served from the cache.
type LookupFunc func(hit bool)

// Loader is a least-recently-used cache that fills itself on a miss.
// Concurrent misses on the same key run the load function once; every
// caller receives that single result.
type Loader[V any] struct {
	entries  *lru.Cache[string, V]
	group    singleflight.Group
	onLookup LookupFunc
}

// NewLoader creates a loader holding at most capacity entries. onLookup may be nil.
func NewLoader[V any](capacity int, onLookup LookupFunc) (*Loader[V], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	entries, err := lru.New[string, V](capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Loader[V]{entries: entries, onLookup: onLookup}, nil
}

// Get returns the cached value for key, calling load on a miss. Values
// are only stored when load succeeds.
func (l *Loader[V]) Get(key string, load func() (V, error)) (V, error) {
	if v, ok := l.entries.Get(key); ok {
		l.record(true)
		return v, nil
	}
	l.record(false)

	v, err, _ := l.group.Do(key, func() (any, error) {
		if v, ok := l.entries.Peek(key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return v, err
		}
		l.entries.Add(key, v)
		return v, nil
	})
	out, _ := v.(V)
	return out, err
}

func (l *Loader[V]) record(hit bool) {
	if l.onLookup != nil {
		l.onLookup(hit)
	}
}

// Len returns the number of cached entries.
func (l *Loader[V]) Len() int {
	return l.entries.Len()
}
