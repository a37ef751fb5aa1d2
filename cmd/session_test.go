package cmd

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLease records whether Keep had stopped by the time Release ran.
type fakeLease struct {
	mu            sync.Mutex
	keeping       bool
	keepingAtFree bool
	keepErr       error
	releaseErr    error
	released      int
}

func (f *fakeLease) Keep(ctx context.Context) error {
	f.mu.Lock()
	f.keeping = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.keeping = false
		f.mu.Unlock()
	}()
	if f.keepErr != nil {
		return f.keepErr
	}
	<-ctx.Done()
	return nil
}

func (f *fakeLease) Release(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keepingAtFree = f.keeping
	f.released++
	return f.releaseErr
}

func TestHoldLease_StopsRefreshingBeforeRelease(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	defer logrus.SetLevel(logrus.GetLevel())
	logrus.SetLevel(logrus.WarnLevel)
	l := &fakeLease{releaseErr: errors.New("lock not held")}

	// GIVEN a held lease
	release := holdLease(context.Background(), l, "plant-a", func() { t.Error("lease reported lost") })

	// WHEN the run ends
	release()

	// THEN refreshing stopped first and the release error is logged
	assert.False(t, l.keepingAtFree)
	assert.Equal(t, 1, l.released)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, "lock not held")
}

func TestHoldLease_ReportsLostLease(t *testing.T) {
	lost := make(chan struct{})
	l := &fakeLease{keepErr: errors.New("refresh failed")}

	release := holdLease(context.Background(), l, "plant-a", func() { close(lost) })
	<-lost
	release()

	assert.Equal(t, 1, l.released)
}
