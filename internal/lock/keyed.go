// Package lock provides a keyed try-lock with a TTL, used to keep reign
// application from re-entering itself when a save and an automated rebuild
// fire close together. Contention is reported, never waited out.
package lock

import (
	"sync"
	"time"
)

type Keyed struct {
	mu   sync.Mutex
	ttl  time.Duration
	held map[string]time.Time
}

func NewKeyed(ttl time.Duration) *Keyed {
	return &Keyed{
		ttl:  ttl,
		held: make(map[string]time.Time),
	}
}

// TryAcquire takes the lock for key if it is free or its previous holder
// expired. The returned release func is safe to call more than once.
func (k *Keyed) TryAcquire(key string) (release func(), ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if expires, exists := k.held[key]; exists && time.Now().Before(expires) {
		return nil, false
	}
	k.held[key] = time.Now().Add(k.ttl)

	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Lock()
			delete(k.held, key)
			k.mu.Unlock()
		})
	}, true
}

// Held reports whether key is currently locked and unexpired.
func (k *Keyed) Held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	expires, exists := k.held[key]
	return exists && time.Now().Before(expires)
}
