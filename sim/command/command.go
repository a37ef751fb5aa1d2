// Package command defines the commands that drive a scenario and the
// sequencer that admits them in order.
//
// Every replica applies the same commands in the same order, so a command is
// pure data: a sequence number, a kind and exactly one payload.
package command

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind names a command.
type Kind string

const (
	KindOptimize     Kind = "optimize"
	KindAdvanceClock Kind = "advance-clock"
	KindMove         Kind = "move"
	KindReceiveLot   Kind = "receive-lot"
	KindSetDowntime  Kind = "set-downtime"
	KindLockActivity Kind = "lock-activity"
)

// ActivityRef identifies an activity by its four-part key.
type ActivityRef struct {
	Job       string `yaml:"job"`
	Order     string `yaml:"order"`
	Operation string `yaml:"operation"`
	Activity  string `yaml:"activity"`
}

// AdvanceClock moves the scenario clock forward. Activities that started
// before the new clock become in-process or finished.
type AdvanceClock struct {
	To int64 `yaml:"to"`
}

// Move relocates blocks to a resource at a tick.
type Move struct {
	Blocks     []int64 `yaml:"blocks"`
	Resource   string  `yaml:"resource"`
	Tick       int64   `yaml:"tick"`
	MaxReapply int     `yaml:"max_reapply,omitempty"`
}

// ReceiveLot adds a lot to an item storage.
type ReceiveLot struct {
	Area           string          `yaml:"area"`
	Item           string          `yaml:"item"`
	Lot            string          `yaml:"lot"`
	LotCode        string          `yaml:"lot_code,omitempty"`
	Qty            decimal.Decimal `yaml:"qty"`
	ProductionTick int64           `yaml:"production_tick"`
	ExpirationTick int64           `yaml:"expiration_tick,omitempty"`
	Wear           int64           `yaml:"wear,omitempty"`
}

// SetDowntime takes a resource offline over [Start, End).
type SetDowntime struct {
	Resource string `yaml:"resource"`
	Start    int64  `yaml:"start"`
	End      int64  `yaml:"end"`
}

// LockActivity anchors an activity to its current resource and start, or
// releases the anchor.
type LockActivity struct {
	Activity ActivityRef `yaml:"activity"`
	Locked   bool        `yaml:"locked"`
}

// Command is one entry of the ordered command stream.
type Command struct {
	Seq  uint64 `yaml:"seq"`
	Kind Kind   `yaml:"kind"`

	AdvanceClock *AdvanceClock `yaml:"advance_clock,omitempty"`
	Move         *Move         `yaml:"move,omitempty"`
	ReceiveLot   *ReceiveLot   `yaml:"receive_lot,omitempty"`
	SetDowntime  *SetDowntime  `yaml:"set_downtime,omitempty"`
	LockActivity *LockActivity `yaml:"lock_activity,omitempty"`
}

// Validate checks that the command carries exactly the payload its kind needs.
func (c Command) Validate() error {
	payloads := 0
	for _, set := range []bool{
		c.AdvanceClock != nil, c.Move != nil, c.ReceiveLot != nil,
		c.SetDowntime != nil, c.LockActivity != nil,
	} {
		if set {
			payloads++
		}
	}

	var want bool
	switch c.Kind {
	case KindOptimize:
		want = payloads == 0
	case KindAdvanceClock:
		want = c.AdvanceClock != nil
	case KindMove:
		want = c.Move != nil
	case KindReceiveLot:
		want = c.ReceiveLot != nil
		if want && c.ReceiveLot.Qty.IsNegative() {
			return fmt.Errorf("command %d: negative lot quantity %s", c.Seq, c.ReceiveLot.Qty)
		}
	case KindSetDowntime:
		want = c.SetDowntime != nil
		if want && c.SetDowntime.End <= c.SetDowntime.Start {
			return fmt.Errorf("command %d: downtime [%d, %d) is empty", c.Seq, c.SetDowntime.Start, c.SetDowntime.End)
		}
	case KindLockActivity:
		want = c.LockActivity != nil
	default:
		return fmt.Errorf("command %d: unknown kind %q", c.Seq, c.Kind)
	}
	if !want || payloads > 1 {
		return fmt.Errorf("command %d: kind %q does not match its payload", c.Seq, c.Kind)
	}
	return nil
}

// Optimize re-simulates the schedule from the clock.
func Optimize(seq uint64) Command {
	return Command{Seq: seq, Kind: KindOptimize}
}

// NewAdvanceClock builds an AdvanceClock command.
func NewAdvanceClock(seq uint64, to int64) Command {
	return Command{Seq: seq, Kind: KindAdvanceClock, AdvanceClock: &AdvanceClock{To: to}}
}

// NewMove builds a Move command.
func NewMove(seq uint64, m Move) Command {
	return Command{Seq: seq, Kind: KindMove, Move: &m}
}

// NewReceiveLot builds a ReceiveLot command.
func NewReceiveLot(seq uint64, r ReceiveLot) Command {
	return Command{Seq: seq, Kind: KindReceiveLot, ReceiveLot: &r}
}

// NewSetDowntime builds a SetDowntime command.
func NewSetDowntime(seq uint64, resource string, start, end int64) Command {
	return Command{Seq: seq, Kind: KindSetDowntime, SetDowntime: &SetDowntime{Resource: resource, Start: start, End: end}}
}

// NewLockActivity builds a LockActivity command.
func NewLockActivity(seq uint64, ref ActivityRef, locked bool) Command {
	return Command{Seq: seq, Kind: KindLockActivity, LockActivity: &LockActivity{Activity: ref, Locked: locked}}
}
