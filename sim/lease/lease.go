// Package lease keeps a scenario's simulation loop to one process at a time
// with a Redis lock.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// DefaultTTL is the lease lifetime between refreshes.
const DefaultTTL = 30 * time.Second

// ErrHeld is returned when another process owns the scenario.
var ErrHeld = errors.New("lease: scenario is driven by another process")

// Key returns the lock key of scenario.
func Key(scenario string) string {
	return fmt.Sprintf("lock:scenario:%s", scenario)
}

// Lease is an acquired scenario lock.
type Lease struct {
	Scenario string
	TTL      time.Duration
	lock     *redislock.Lock
}

// Acquire obtains the scenario lock without retrying.
func Acquire(ctx context.Context, locker *redislock.Client, scenario string, ttl time.Duration) (*Lease, error) {
	if locker == nil {
		return nil, errors.New("lease: redis lock not initialized")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	lock, err := locker.Obtain(ctx, Key(scenario), ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrHeld, scenario)
	}
	if err != nil {
		return nil, fmt.Errorf("lease: obtain %s: %w", scenario, err)
	}
	return &Lease{Scenario: scenario, TTL: ttl, lock: lock}, nil
}

// Refresh extends the lease by its TTL.
func (l *Lease) Refresh(ctx context.Context) error {
	if err := l.lock.Refresh(ctx, l.TTL, nil); err != nil {
		return fmt.Errorf("lease: refresh %s: %w", l.Scenario, err)
	}
	return nil
}

// Release gives the scenario up. Releasing an expired lease only logs.
func (l *Lease) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		logrus.Warnf("lease: %s expired before release", l.Scenario)
		return nil
	}
	return err
}

// Keep refreshes the lease every half TTL until ctx ends or a refresh fails.
// It returns the refresh error, or nil when ctx ended.
func (l *Lease) Keep(ctx context.Context) error {
	t := time.NewTicker(l.TTL / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := l.Refresh(ctx); err != nil {
				return err
			}
		}
	}
}
