// Package lock provides the per-platform mutual exclusion used by sync passes.
package lock

import (
	"context"
	"time"
)

// Locker grants at most one holder per key. TryLock never blocks: it reports
// false when the key is already held. The returned unlock releases only the
// caller's own hold, so a lease that expired and was re-acquired elsewhere is
// left alone.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), acquired bool, err error)
}
