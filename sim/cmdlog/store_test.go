package cmdlog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedsim/schedsim/sim"
	"github.com/schedsim/schedsim/sim/checksum"
	"github.com/schedsim/schedsim/sim/command"
	"github.com/schedsim/schedsim/sim/replay"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cmdlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func plantEngine(t *testing.T) *sim.Engine {
	t.Helper()
	cfg, err := sim.LoadScenarioConfig(filepath.Join("..", "testdata", "plant.yaml"))
	require.NoError(t, err)
	sc, err := cfg.Build()
	require.NoError(t, err)
	return sim.NewEngine(sc, sim.EngineConfig{}, nil)
}

func testRecording(id, scenario string, seqs ...uint64) *replay.Recording {
	rec := &replay.Recording{ID: id, Scenario: scenario}
	for _, seq := range seqs {
		rec.Steps = append(rec.Steps, replay.Step{
			Command:     command.Optimize(seq),
			Fingerprint: checksum.Fingerprint{Sum: int64(seq), Description: "clock:0"},
		})
	}
	return rec
}

func TestOpen_ReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmdlog.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Save(context.Background(), testRecording("r1", "plant-a", 1)))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []Summary{{ID: "r1", Scenario: "plant-a", Steps: 1}}, got)
}

func TestSaveLoad_RecordedEngineReplaysCleanly(t *testing.T) {
	// GIVEN a real recording with a decimal payload and a rejected command
	ctx := context.Background()
	rec, err := replay.Record(ctx, plantEngine(t), []command.Command{
		command.Optimize(1),
		command.NewReceiveLot(2, command.ReceiveLot{
			Area: "WH1", Item: "flour", Lot: "F7", Qty: decimal.RequireFromString("3.125"), ProductionTick: 5,
		}),
		command.NewLockActivity(3, command.ActivityRef{Job: "ghost"}, true),
		command.NewAdvanceClock(4, 30),
	})
	require.NoError(t, err)
	s := createTestStore(t)

	// WHEN it goes through the store
	require.NoError(t, s.Save(ctx, rec))
	loaded, err := s.Load(ctx, rec.ID)
	require.NoError(t, err)

	// THEN it is the same recording and a fresh engine reproduces it
	assert.Equal(t, rec.Scenario, loaded.Scenario)
	require.Len(t, loaded.Steps, 4)
	assert.Equal(t, "3.125", loaded.Steps[1].Command.ReceiveLot.Qty.String())
	assert.Equal(t, rec.Steps[2].Rejected, loaded.Steps[2].Rejected)
	for i := range rec.Steps {
		assert.Equal(t, rec.Steps[i].Fingerprint, loaded.Steps[i].Fingerprint)
	}
	mismatches, err := replay.Verify(ctx, plantEngine(t), loaded)
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}

func TestLoad_UnknownID(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSave_DuplicateIDFailsAtomically(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.Save(ctx, testRecording("r1", "plant-a", 1, 2)))

	err := s.Save(ctx, testRecording("r1", "plant-a", 1, 2, 3))

	assert.Error(t, err)
	got, err := s.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, got.Steps, 2)
}

func TestList_FiltersByScenario(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.Save(ctx, testRecording("r1", "plant-a", 1, 2)))
	require.NoError(t, s.Save(ctx, testRecording("r2", "plant-b", 1)))
	require.NoError(t, s.Save(ctx, testRecording("r3", "plant-a")))

	got, err := s.List(ctx, "plant-a")
	require.NoError(t, err)
	assert.Equal(t, []Summary{
		{ID: "r1", Scenario: "plant-a", Steps: 2},
		{ID: "r3", Scenario: "plant-a", Steps: 0},
	}, got)

	none, err := s.List(ctx, "plant-z")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDelete_RemovesSteps(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.Save(ctx, testRecording("r1", "plant-a", 1, 2)))

	require.NoError(t, s.Delete(ctx, "r1"))

	_, err := s.Load(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
	var steps int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM steps`).Scan(&steps))
	assert.Zero(t, steps)
	assert.ErrorIs(t, s.Delete(ctx, "r1"), ErrNotFound)
}
