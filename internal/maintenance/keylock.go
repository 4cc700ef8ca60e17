package maintenance

import (
	"sync"

	"github.com/dukerupert/gymops/internal/model"
)

type pairKey struct {
	equipmentID int64
	mtype       model.MaintenanceType
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyLock serializes work per (equipment, maintenance type) pair. Entries
// are dropped once nobody holds or waits on them.
type keyLock struct {
	mu    sync.Mutex
	locks map[pairKey]*lockEntry
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[pairKey]*lockEntry)}
}

// Lock blocks until the pair is free and returns the unlock func.
func (k *keyLock) Lock(key pairKey) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// LockAll locks every maintenance type of one piece of equipment in a fixed
// order.
func (k *keyLock) LockAll(equipmentID int64) func() {
	unlocks := make([]func(), 0, len(model.MaintenanceTypes))
	for _, t := range model.MaintenanceTypes {
		unlocks = append(unlocks, k.Lock(pairKey{equipmentID, t}))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (k *keyLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
