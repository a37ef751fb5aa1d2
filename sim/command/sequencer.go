package command

import (
	"errors"
	"fmt"
)

// ResendRequest asks the sender to retransmit starting at From. It is
// returned for gaps and for duplicates.
type ResendRequest struct {
	From uint64
	Got  uint64
}

func (r *ResendRequest) Error() string {
	if r.Got < r.From {
		return fmt.Sprintf("duplicate command %d, expecting %d", r.Got, r.From)
	}
	return fmt.Sprintf("gap before command %d, resend from %d", r.Got, r.From)
}

// IsResendRequest reports whether err wraps a ResendRequest.
func IsResendRequest(err error) bool {
	var rr *ResendRequest
	return errors.As(err, &rr)
}

// Sequencer admits commands only in gap-free order starting at 1.
//
// Thread-safety: NOT thread-safe. The engine calls it under its write lock.
type Sequencer struct {
	next uint64
}

// NewSequencer expects sequence number 1 first.
func NewSequencer() *Sequencer {
	return &Sequencer{next: 1}
}

// Next returns the sequence number the sequencer expects.
func (s *Sequencer) Next() uint64 {
	return s.next
}

// Accept admits seq if it is the expected number.
func (s *Sequencer) Accept(seq uint64) error {
	if seq != s.next {
		return &ResendRequest{From: s.next, Got: seq}
	}
	s.next++
	return nil
}
