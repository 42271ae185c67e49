package lock

import (
	"sync"
	"time"
)

// keepAlive calls extend every ttl/3 until the returned stop is called or
// extend reports that the lease is gone. stop blocks until the loop exits.
func keepAlive(ttl time.Duration, extend func() bool) (stop func()) {
	if ttl <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if !extend() {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-exited
		})
	}
}
