package sim

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/schedsim/schedsim/sim/checksum"
	"github.com/schedsim/schedsim/sim/command"
	"github.com/schedsim/schedsim/sim/move"
	"github.com/schedsim/schedsim/sim/notify"
	"github.com/schedsim/schedsim/sim/trace"
)

// Outcome is what one processed command produced.
type Outcome struct {
	Seq         uint64
	Kind        command.Kind
	Move        *move.Result // set for move commands that got past validation
	Fingerprint checksum.Fingerprint
	// Clock and Unscheduled are the scenario state the command left behind.
	Clock       int64
	Unscheduled int
	// Err is set when the scenario rejected the command. The command still
	// used its sequence number.
	Err error
}

// Engine owns a scenario and admits commands to it in sequence order.
// Process takes the write lock; Snapshot and Checksum take the read lock.
// Notifications are published after the lock is released.
type Engine struct {
	mu        sync.RWMutex
	sc        *Scenario
	seq       *command.Sequencer
	publisher notify.Publisher
	cfg       EngineConfig
	trace     *trace.SimulationTrace // nil unless tracing is enabled
}

// NewEngine wraps sc. A nil publisher drops notifications.
func NewEngine(sc *Scenario, cfg EngineConfig, publisher notify.Publisher) *Engine {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if cfg.MaxEvents > 0 {
		sc.MaxEvents = cfg.MaxEvents
	}
	e := &Engine{sc: sc, seq: command.NewSequencer(), publisher: publisher, cfg: cfg}
	if trace.Enabled(cfg.TraceLevel) {
		e.trace = trace.NewSimulationTrace(trace.TraceLevel(cfg.TraceLevel))
	}
	return e
}

// ScenarioID returns the id of the engine's scenario.
func (e *Engine) ScenarioID() string {
	return e.sc.ID
}

// NextSeq returns the sequence number the engine expects next.
func (e *Engine) NextSeq() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seq.Next()
}

// Process applies cmd if it carries the expected sequence number. Gaps and
// duplicates return a *command.ResendRequest and change nothing. A command
// the scenario rejects is reported in Outcome.Err, not as an error.
func (e *Engine) Process(ctx context.Context, cmd command.Command) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := e.process(cmd)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, out)
	return out, nil
}

func (e *Engine) process(cmd command.Command) (*Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.seq.Accept(cmd.Seq); err != nil {
		return nil, err
	}
	out := &Outcome{Seq: cmd.Seq, Kind: cmd.Kind}
	out.Move, out.Err = e.sc.Apply(cmd, e.cfg.MaxReapply)
	if out.Err != nil {
		logrus.Infof("scenario %s: command %d (%s) rejected: %v", e.sc.ID, cmd.Seq, cmd.Kind, out.Err)
	} else {
		logrus.Infof("scenario %s: command %d (%s) applied, clock %d, %d unscheduled",
			e.sc.ID, cmd.Seq, cmd.Kind, e.sc.Clock, len(e.sc.Unscheduled))
	}
	out.Fingerprint = e.sc.Checksum(e.cfg.ChecksumIgnore...)
	out.Clock, out.Unscheduled = e.sc.Clock, len(e.sc.Unscheduled)
	if e.trace != nil {
		e.record(cmd, out)
	}
	return out, nil
}

func (e *Engine) record(cmd command.Command, out *Outcome) {
	rec := trace.CommandRecord{Seq: cmd.Seq, Kind: string(cmd.Kind), Clock: e.sc.Clock}
	if out.Err != nil {
		rec.Rejected, rec.Reason = true, out.Err.Error()
	}
	e.trace.RecordCommand(rec)
	if out.Move == nil {
		return
	}
	mr := trace.MoveRecord{
		Seq:          cmd.Seq,
		Blocks:       append([]int64(nil), cmd.Move.Blocks...),
		Resource:     cmd.Move.Resource,
		Tick:         cmd.Move.Tick,
		State:        out.Move.State.String(),
		Mode:         out.Move.Mode.String(),
		ReapplyCount: out.Move.ReapplyCount,
	}
	for _, p := range out.Move.Problems {
		mr.Problems = append(mr.Problems, p.Kind.String())
	}
	for _, f := range out.Move.Failures.List() {
		mr.Failures = append(mr.Failures, f.String())
	}
	e.trace.RecordMove(mr)
}

// TraceSummary summarises the decisions recorded so far. It is empty when
// tracing is off.
func (e *Engine) TraceSummary() *trace.TraceSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return trace.Summarize(e.trace)
}

func (e *Engine) publish(ctx context.Context, out *Outcome) {
	processed := notify.Notification{
		Kind:        notify.CommandProcessed,
		Scenario:    e.sc.ID,
		Seq:         out.Seq,
		Command:     string(out.Kind),
		Clock:       out.Clock,
		Unscheduled: out.Unscheduled,
	}
	if out.Err != nil {
		processed.Error = out.Err.Error()
	}
	summed := notify.Notification{
		Kind:     notify.ChecksumComputed,
		Scenario: e.sc.ID,
		Seq:      out.Seq,
		Checksum: out.Fingerprint.Sum,
		Clock:    out.Clock,
	}

	for _, n := range []notify.Notification{processed, summed} {
		if err := e.publisher.Publish(ctx, n); err != nil {
			logrus.Warnf("scenario %s: dropping %s notification for command %d: %v", e.sc.ID, n.Kind, n.Seq, err)
		}
	}
}

// Checksum fingerprints the current state.
func (e *Engine) Checksum() checksum.Fingerprint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sc.Checksum(e.cfg.ChecksumIgnore...)
}

// Snapshot returns a deep copy of the current schedule.
func (e *Engine) Snapshot() *ScheduleSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sc.Snapshot()
}
