package replay

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedsim/schedsim/sim"
	"github.com/schedsim/schedsim/sim/checksum"
	"github.com/schedsim/schedsim/sim/command"
)

func plantEngine(t *testing.T, cfg sim.EngineConfig) *sim.Engine {
	t.Helper()
	sc, err := sim.LoadScenarioConfig(filepath.Join("..", "testdata", "plant.yaml"))
	require.NoError(t, err)
	scenario, err := sc.Build()
	require.NoError(t, err)
	return sim.NewEngine(scenario, cfg, nil)
}

func stream() []command.Command {
	return []command.Command{
		command.Optimize(1),
		command.NewAdvanceClock(2, 50),
		command.NewReceiveLot(3, command.ReceiveLot{
			Area: "WH2", Item: "flour", Lot: "F9", Qty: decimal.RequireFromString("12.5"), ProductionTick: 40,
		}),
		command.NewSetDowntime(4, "NOPE", 0, 10),
		command.NewSetDowntime(5, "OVEN", 500, 520),
	}
}

func TestRecordThenVerify_InStep(t *testing.T) {
	// GIVEN a recording of the plant stream saved to disk
	rec, err := Record(context.Background(), plantEngine(t, sim.EngineConfig{}), stream())
	require.NoError(t, err)
	require.Len(t, rec.Steps, 5)
	assert.Equal(t, "plant-a", rec.Scenario)
	assert.NotEmpty(t, rec.ID)
	assert.NotEmpty(t, rec.Steps[3].Rejected)

	path := filepath.Join(t.TempDir(), "rec.yaml")
	require.NoError(t, Save(path, rec))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, rec.Steps[4].Fingerprint, loaded.Steps[4].Fingerprint)
	assert.Equal(t, "12.5", loaded.Steps[2].Command.ReceiveLot.Qty.String())

	// WHEN a fresh engine replays it
	mismatches, err := Verify(context.Background(), plantEngine(t, sim.EngineConfig{}), loaded)

	// THEN every step matches
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}

func TestVerify_ReportsDivergentStep(t *testing.T) {
	rec, err := Record(context.Background(), plantEngine(t, sim.EngineConfig{}), stream())
	require.NoError(t, err)

	// GIVEN a recording whose second fingerprint claims a different clock
	fp := &rec.Steps[1].Fingerprint
	fp.Sum++
	fp.Description = strings.Replace(fp.Description, "clock:50", "clock:51", 1)

	mismatches, err := Verify(context.Background(), plantEngine(t, sim.EngineConfig{}), rec)

	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, uint64(2), mismatches[0].Seq)
	var div *checksum.DivergenceError
	require.True(t, errors.As(mismatches[0], &div))
	assert.Equal(t, "clock", div.Field)
	assert.Equal(t, "51", div.Local)
	assert.Equal(t, "50", div.Remote)
}

func TestVerify_LayoutMismatchWhenIgnoreListsDiffer(t *testing.T) {
	rec, err := Record(context.Background(), plantEngine(t, sim.EngineConfig{}), stream()[:1])
	require.NoError(t, err)

	mismatches, err := Verify(context.Background(),
		plantEngine(t, sim.EngineConfig{ChecksumIgnore: []string{"horizon"}}), rec)

	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.True(t, checksum.IsLayoutMismatch(mismatches[0]))
}

func TestVerify_RejectionMismatch(t *testing.T) {
	rec, err := Record(context.Background(), plantEngine(t, sim.EngineConfig{}), stream())
	require.NoError(t, err)
	rec.Steps[3].Rejected = ""

	mismatches, err := Verify(context.Background(), plantEngine(t, sim.EngineConfig{}), rec)

	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, uint64(4), mismatches[0].Seq)
	assert.Contains(t, mismatches[0].Error(), "rejected")
}

func TestVerify_OutOfOrderRecording(t *testing.T) {
	rec := &Recording{Scenario: "plant-a", Steps: []Step{{Command: command.Optimize(3)}}}

	_, err := Verify(context.Background(), plantEngine(t, sim.EngineConfig{}), rec)

	assert.True(t, command.IsResendRequest(err))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
