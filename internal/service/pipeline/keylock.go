package pipeline

import "sync"

// keyLock serializes turns per conversation. TryAcquire fails instead of
// queueing: a second message while the first is in flight gets a "still
// processing" reply rather than an interleaved session mutation. Entries are
// reference-counted and removed when idle, so the map does not grow with
// every conversation key the process has ever seen.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	turn sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*lockEntry)}
}

func (k *keyLock) TryAcquire(key string) (release func(), ok bool) {
	k.mu.Lock()
	e, exists := k.locks[key]
	if !exists {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	if !e.turn.TryLock() {
		k.unref(key, e)
		return nil, false
	}
	return func() {
		e.turn.Unlock()
		k.unref(key, e)
	}, true
}

func (k *keyLock) unref(key string, e *lockEntry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}
