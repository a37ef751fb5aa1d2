package sim

import "fmt"

// EventKind is the closed set of simulation events. The integer values are
// stable; they appear in logs and recordings.
type EventKind uint8

const (
	// Release family.
	AnchorRelease EventKind = iota + 1
	ClockRelease
	InProcessRelease
	HeadStartWindowRetry
	JITCompressRelease
	OptimizationRelease
	RightMovingNeighborRelease
	ScheduledDateBeforeMoveRelease
	DelayedReleaseToResource
	ReleaseToResource

	// Resource family.
	ResourceAvailable
	ResourceUnavailable
	ResourceCleanout
	ResourceReservation
	BlockReservation
	ConnectorRelease

	numEventKinds
)

var eventKindNames = [...]string{
	AnchorRelease:                  "AnchorRelease",
	ClockRelease:                   "ClockRelease",
	InProcessRelease:               "InProcessRelease",
	HeadStartWindowRetry:           "HeadStartWindowRetry",
	JITCompressRelease:             "JITCompressRelease",
	OptimizationRelease:            "OptimizationRelease",
	RightMovingNeighborRelease:     "RightMovingNeighborRelease",
	ScheduledDateBeforeMoveRelease: "ScheduledDateBeforeMoveRelease",
	DelayedReleaseToResource:       "DelayedReleaseToResource",
	ReleaseToResource:              "ReleaseToResource",
	ResourceAvailable:              "ResourceAvailable",
	ResourceUnavailable:            "ResourceUnavailable",
	ResourceCleanout:               "ResourceCleanout",
	ResourceReservation:            "ResourceReservation",
	BlockReservation:               "BlockReservation",
	ConnectorRelease:               "ConnectorRelease",
}

func (k EventKind) String() string {
	if k == 0 || k >= numEventKinds {
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
	return eventKindNames[k]
}

// eventKindPriority orders events at the same tick (lower first): resources
// go down before they come up, reservations and connectors settle, pinned
// releases place before free releases, and plain placement attempts run last.
var eventKindPriority = [numEventKinds]int{
	ResourceUnavailable:            0,
	ResourceCleanout:               1,
	ResourceAvailable:              2,
	BlockReservation:               3,
	ConnectorRelease:               4,
	InProcessRelease:               5,
	AnchorRelease:                  6,
	ScheduledDateBeforeMoveRelease: 7,
	ResourceReservation:            8,
	ClockRelease:                   9,
	OptimizationRelease:            10,
	JITCompressRelease:             11,
	HeadStartWindowRetry:           12,
	RightMovingNeighborRelease:     13,
	DelayedReleaseToResource:       14,
	ReleaseToResource:              15,
}

// Priority returns the same-tick ordering rank of the kind.
func (k EventKind) Priority() int {
	if k == 0 || k >= numEventKinds {
		panic(fmt.Sprintf("sim: unknown event kind %d", uint8(k)))
	}
	return eventKindPriority[k]
}

// Event is a scheduled state change. Only the fields the kind needs are set.
type Event struct {
	Kind EventKind
	Time int64
	Seq  uint64 // per-simulator insertion counter

	Activity    *Activity
	Resource    *Resource
	Interval    IntervalHandle
	Reservation *Reservation
	Connector   *Connector
}

func (e *Event) String() string {
	switch {
	case e.Activity != nil && e.Resource != nil:
		return fmt.Sprintf("%s@%d #%d %s -> %s", e.Kind, e.Time, e.Seq, e.Activity.Key, e.Resource.ID)
	case e.Activity != nil:
		return fmt.Sprintf("%s@%d #%d %s", e.Kind, e.Time, e.Seq, e.Activity.Key)
	case e.Resource != nil:
		return fmt.Sprintf("%s@%d #%d %s", e.Kind, e.Time, e.Seq, e.Resource.ID)
	default:
		return fmt.Sprintf("%s@%d #%d", e.Kind, e.Time, e.Seq)
	}
}

// eventLess orders by time, then kind priority, then sequence number.
func eventLess(a, b *Event) bool {
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	if pa, pb := a.Kind.Priority(), b.Kind.Priority(); pa != pb {
		return pa < pb
	}
	return a.Seq < b.Seq
}
