package move

import (
	"fmt"
	"strings"
)

// Failure is a fatal reason the whole move command was rejected.
type Failure uint8

const (
	BlockNotFound Failure = iota
	DestinationNotFound
	MoveBeforeClock
	NoActivitiesToMove
	ReapplyLimitExceeded
	EmptyRequest

	numFailures
)

var failureNames = [...]string{
	BlockNotFound:        "block-not-found",
	DestinationNotFound:  "destination-not-found",
	MoveBeforeClock:      "move-before-clock",
	NoActivitiesToMove:   "no-activities-to-move",
	ReapplyLimitExceeded: "reapply-limit-exceeded",
	EmptyRequest:         "empty-request",
}

func (f Failure) String() string {
	if f >= numFailures {
		return fmt.Sprintf("Failure(%d)", int(f))
	}
	return failureNames[f]
}

// FailureSet is a fixed-size bitset of failures. Bits accumulate and are
// never cleared.
type FailureSet struct {
	bits uint32
}

// Set records f.
func (s *FailureSet) Set(f Failure) {
	if f >= numFailures {
		panic(fmt.Sprintf("move: unknown failure %d", int(f)))
	}
	s.bits |= 1 << f
}

// Has reports whether f was recorded.
func (s FailureSet) Has(f Failure) bool {
	return f < numFailures && s.bits&(1<<f) != 0
}

// Empty reports whether no failure was recorded.
func (s FailureSet) Empty() bool {
	return s.bits == 0
}

// Bits exposes the raw set for checksums.
func (s FailureSet) Bits() uint32 {
	return s.bits
}

// List returns the recorded failures once each, in declaration order.
func (s FailureSet) List() []Failure {
	var out []Failure
	for f := Failure(0); f < numFailures; f++ {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s FailureSet) String() string {
	names := make([]string, 0, numFailures)
	for _, f := range s.List() {
		names = append(names, f.String())
	}
	return "[" + strings.Join(names, " ") + "]"
}
