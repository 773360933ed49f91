// Package keylock provides striped per-key mutual exclusion.
//
// A KeyLock hashes keys onto a fixed set of mutexes, so at-most-one-writer
// semantics hold per key while unrelated keys proceed in parallel. Distinct
// keys may occasionally share a stripe; that only costs throughput, never
// correctness.
package keylock

import (
	"hash/fnv"
	"sync"
)

const defaultStripes = 64

// KeyLock is a set of striped mutexes addressed by string key.
// The zero value is not usable; call New.
type KeyLock struct {
	stripes []sync.Mutex
}

// New creates a KeyLock with the default stripe count.
func New() *KeyLock {
	return &KeyLock{stripes: make([]sync.Mutex, defaultStripes)}
}

// Lock acquires the mutex for key and returns the matching unlock function.
//
//	unlock := kl.Lock(sessionID)
//	defer unlock()
func (kl *KeyLock) Lock(key string) (unlock func()) {
	m := &kl.stripes[kl.stripe(key)]
	m.Lock()
	return m.Unlock
}

func (kl *KeyLock) stripe(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % uint32(len(kl.stripes))
}
