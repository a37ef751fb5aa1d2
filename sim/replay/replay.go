// Package replay records a command stream with the fingerprint after each
// command and verifies other engines against the recording.
//
// A recording is the reference a replica must reproduce: Verify replays the
// same commands into a fresh engine and reports every step whose fingerprint
// or outcome differs. Nothing here runs in production processing.
package replay

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/schedsim/schedsim/sim"
	"github.com/schedsim/schedsim/sim/checksum"
	"github.com/schedsim/schedsim/sim/command"
)

// Step is one recorded command and the state it left behind.
type Step struct {
	Command     command.Command      `yaml:"command"`
	Fingerprint checksum.Fingerprint `yaml:"fingerprint"`
	// Rejected holds the rejection message when the scenario refused the
	// command.
	Rejected string `yaml:"rejected,omitempty"`
}

// Recording is an ordered command log for one scenario.
type Recording struct {
	ID       string `yaml:"id"`
	Scenario string `yaml:"scenario"`
	Steps    []Step `yaml:"steps"`
}

// DeterminismError reports a step a replica did not reproduce. Cause is a
// *checksum.DivergenceError, a *checksum.LayoutMismatchError, or a plain
// error when only the accept/reject outcome differs.
type DeterminismError struct {
	Seq      uint64
	Kind     command.Kind
	Expected int64
	Got      int64
	Cause    error
}

func (e *DeterminismError) Error() string {
	return fmt.Sprintf("command %d (%s): expected checksum %d, got %d: %v", e.Seq, e.Kind, e.Expected, e.Got, e.Cause)
}

func (e *DeterminismError) Unwrap() error {
	return e.Cause
}

// Record feeds cmds to e in order and captures the fingerprint after each.
// Commands must carry the sequence numbers e expects.
func Record(ctx context.Context, e *sim.Engine, cmds []command.Command) (*Recording, error) {
	rec := &Recording{ID: uuid.NewString(), Scenario: e.ScenarioID()}
	for _, cmd := range cmds {
		out, err := e.Process(ctx, cmd)
		if err != nil {
			return rec, fmt.Errorf("recording command %d: %w", cmd.Seq, err)
		}
		step := Step{Command: cmd, Fingerprint: out.Fingerprint}
		if out.Err != nil {
			step.Rejected = out.Err.Error()
		}
		rec.Steps = append(rec.Steps, step)
	}
	logrus.Infof("recorded %d commands for scenario %s as %s", len(rec.Steps), rec.Scenario, rec.ID)
	return rec, nil
}

// Verify replays rec into e and compares each fingerprint with the recorded
// one. It returns every step that diverged; the error is reserved for
// commands e would not accept at all.
func Verify(ctx context.Context, e *sim.Engine, rec *Recording) ([]*DeterminismError, error) {
	var mismatches []*DeterminismError
	for _, step := range rec.Steps {
		out, err := e.Process(ctx, step.Command)
		if err != nil {
			return mismatches, fmt.Errorf("replaying command %d: %w", step.Command.Seq, err)
		}
		if de := compareStep(step, out); de != nil {
			logrus.Warnf("scenario %s: %v", rec.Scenario, de)
			mismatches = append(mismatches, de)
		}
	}
	return mismatches, nil
}

func compareStep(step Step, out *sim.Outcome) *DeterminismError {
	de := &DeterminismError{
		Seq:      step.Command.Seq,
		Kind:     step.Command.Kind,
		Expected: step.Fingerprint.Sum,
		Got:      out.Fingerprint.Sum,
	}
	if rejected := out.Err != nil; rejected != (step.Rejected != "") {
		de.Cause = fmt.Errorf("recorded rejected=%t, replayed rejected=%t", step.Rejected != "", rejected)
		return de
	}
	if err := checksum.Compare(step.Fingerprint, out.Fingerprint); err != nil {
		de.Cause = err
		return de
	}
	return nil
}

// Save writes rec to path as YAML.
func Save(path string, rec *Recording) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding recording %s: %w", rec.ID, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing recording: %w", err)
	}
	return nil
}

// Load reads a recording written by Save.
func Load(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recording: %w", err)
	}
	var rec Recording
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing recording: %w", err)
	}
	return &rec, nil
}

// Commands returns the recorded commands in order.
func (r *Recording) Commands() []command.Command {
	out := make([]command.Command, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Command
	}
	return out
}
