package ws

import (
	"hash/fnv"
	"sync"
)

const lockShards = 32

// keyedMutex serializes mutations per key so two near-simultaneous
// operations on the same room cannot interleave, while unrelated rooms
// never contend on a single global lock.
type keyedMutex struct {
	shards [lockShards]sync.Mutex
}

func (k *keyedMutex) forID(key int) *sync.Mutex {
	m := &k.shards[uint(key)%lockShards]
	m.Lock()
	return m
}

func (k *keyedMutex) forKey(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	m := &k.shards[h.Sum32()%lockShards]
	m.Lock()
	return m
}
