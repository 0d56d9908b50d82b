// Package shardlock provides a fixed set of mutexes selected by key hash.
// Two keys may share a shard; distinct shards never block each other.
package shardlock

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultShards = 64

type Map struct {
	shards []sync.Mutex
}

func New(shards int) *Map {
	if shards <= 0 {
		shards = defaultShards
	}

	return &Map{shards: make([]sync.Mutex, shards)}
}

func (m *Map) shard(key string) *sync.Mutex {
	return &m.shards[xxhash.Sum64String(key)%uint64(len(m.shards))]
}

// Lock locks the shard owning key and returns its unlock func.
func (m *Map) Lock(key string) func() {
	mu := m.shard(key)
	mu.Lock()
	return mu.Unlock
}
