package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process Locker. Held leases are extended every ttl/3
// until unlock; a lease whose holder stops renewing expires after ttl.
type LocalLocker struct {
	mu     sync.Mutex
	held   map[string]lease
	nextID uint64
	now    func() time.Time
}

type lease struct {
	id      uint64
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]lease),
		now:  time.Now,
	}
}

func (l *LocalLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, false, nil
	}

	l.nextID++
	id := l.nextID
	l.held[key] = lease{id: id, expires: now.Add(ttl)}

	stopRenewing := keepAlive(ttl, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		cur, ok := l.held[key]
		if !ok || cur.id != id {
			return false
		}
		cur.expires = l.now().Add(ttl)
		l.held[key] = cur
		return true
	})

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			stopRenewing()
			l.mu.Lock()
			defer l.mu.Unlock()
			if cur, ok := l.held[key]; ok && cur.id == id {
				delete(l.held, key)
			}
		})
	}
	return unlock, true, nil
}
