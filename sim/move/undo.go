package move

import (
	"errors"
	"fmt"
)

// Mode selects how moved activities are released during a pass.
type Mode int

const (
	// Regular reserves the destination for the moved activities.
	Regular Mode = iota
	// NonLockingMoveRelease releases the moved activities without a reservation.
	NonLockingMoveRelease
)

func (m Mode) String() string {
	switch m {
	case Regular:
		return "regular"
	case NonLockingMoveRelease:
		return "non-locking"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// DefaultMaxReapply bounds the re-apply loop when the caller does not.
const DefaultMaxReapply = 8

// ErrReapplyLimit is returned by NextAttempt once the bound is exceeded.
var ErrReapplyLimit = errors.New("move: re-apply limit exceeded")

// KnownTime pins an activity to a tick.
type KnownTime struct {
	Activity string
	Tick     int64
}

// UndoReceive is the state carried between simulation passes of one move.
// Known times and intersector releases are recorded once and honored exactly
// on every later pass.
type UndoReceive struct {
	Mode       Mode
	Attempts   int
	MaxReapply int

	KnownTimes          []KnownTime
	IntersectorReleases []KnownTime
}

// NewUndoReceive starts in Regular mode. A zero bound uses
// DefaultMaxReapply; a negative bound allows no extra pass at all.
func NewUndoReceive(maxReapply int) *UndoReceive {
	switch {
	case maxReapply == 0:
		maxReapply = DefaultMaxReapply
	case maxReapply < 0:
		maxReapply = 0
	}
	return &UndoReceive{MaxReapply: maxReapply}
}

// KnownTime returns the pinned tick for activity.
func (u *UndoReceive) KnownTime(activity string) (int64, bool) {
	return lookup(u.KnownTimes, activity)
}

// LockIn pins activity at tick unless it is already pinned. It reports
// whether a new pin was recorded.
func (u *UndoReceive) LockIn(activity string, tick int64) bool {
	if _, ok := u.KnownTime(activity); ok {
		return false
	}
	u.KnownTimes = append(u.KnownTimes, KnownTime{Activity: activity, Tick: tick})
	return true
}

// IntersectorRelease returns the recorded release tick of an intersector.
func (u *UndoReceive) IntersectorRelease(activity string) (int64, bool) {
	return lookup(u.IntersectorReleases, activity)
}

// RecordIntersector stores the release tick of an intersector the first time
// it is seen and returns the tick in force.
func (u *UndoReceive) RecordIntersector(activity string, tick int64) int64 {
	if t, ok := u.IntersectorRelease(activity); ok {
		return t
	}
	u.IntersectorReleases = append(u.IntersectorReleases, KnownTime{Activity: activity, Tick: tick})
	return tick
}

// SwitchToNonLocking drops the destination reservation for later passes.
func (u *UndoReceive) SwitchToNonLocking() {
	u.Mode = NonLockingMoveRelease
}

// NextAttempt counts another pass. It fails once more than MaxReapply extra
// passes were requested.
func (u *UndoReceive) NextAttempt() error {
	u.Attempts++
	if u.Attempts > u.MaxReapply {
		return fmt.Errorf("%w: %d passes, limit %d", ErrReapplyLimit, u.Attempts, u.MaxReapply)
	}
	return nil
}

func lookup(list []KnownTime, activity string) (int64, bool) {
	for _, kt := range list {
		if kt.Activity == activity {
			return kt.Tick, true
		}
	}
	return 0, false
}
