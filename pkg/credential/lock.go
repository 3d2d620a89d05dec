package credential

import (
	"context"
	"time"

	"github.com/grayforge/keyward/pkg/cache"
	"github.com/grayforge/keyward/pkg/iamerr"
)

// LockTracker keeps a per-ak mismatch counter that trips a timed lock
// once it reaches the governing cert-conf's sk_lock_err_times: one INCR
// with a cycle TTL, then a lock key with its own duration TTL.
type LockTracker struct {
	cache *cache.Cache
}

// NewLockTracker wraps c for lockout bookkeeping.
func NewLockTracker(c *cache.Cache) *LockTracker {
	return &LockTracker{cache: c}
}

// Locked reports whether ak is currently locked out.
func (l *LockTracker) Locked(ctx context.Context, ak string) (bool, error) {
	_, err := l.cache.Get(ctx, cache.CertLockKey(ak))
	if err == cache.ErrMiss {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecordMismatch increments ak's failure counter within cycleSec, tripping
// a lock of lockDurationSec once the count reaches errTimes.
func (l *LockTracker) RecordMismatch(ctx context.Context, ak string, cycleSec int64, errTimes int, lockDurationSec int64) error {
	key := cache.CertLockCounterKey(ak)
	n, err := l.cache.Incr(ctx, key)
	if err != nil {
		return err
	}
	if n == 1 {
		if err := l.cache.Expire(ctx, key, time.Duration(cycleSec)*time.Second); err != nil {
			return err
		}
	}
	if int(n) >= errTimes {
		if err := l.cache.Set(ctx, cache.CertLockKey(ak), "1", time.Duration(lockDurationSec)*time.Second); err != nil {
			return err
		}
		return iamerr.Unauthorized("credential", "verify", "ak locked after too many mismatches")
	}
	return nil
}

// Reset clears ak's failure counter and any active lock (on successful match).
func (l *LockTracker) Reset(ctx context.Context, ak string) error {
	if err := l.cache.Del(ctx, cache.CertLockCounterKey(ak)); err != nil {
		return err
	}
	return l.cache.Del(ctx, cache.CertLockKey(ak))
}
