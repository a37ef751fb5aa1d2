package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedsim/schedsim/sim/material"
)

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenarioConfig_Plant(t *testing.T) {
	cfg, err := LoadScenarioConfig(filepath.Join("testdata", "plant.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "plant-a", cfg.ID)
	require.Len(t, cfg.Resources, 4)
	assert.Equal(t, 2, cfg.Resources[2].BatchCapacity)
	assert.Equal(t, "80.5", cfg.Areas[0].Storages[0].Lots[1].Qty.String())

	sc, err := cfg.Build()
	require.NoError(t, err)
	assert.Len(t, sc.Activities(), 8)
	require.Len(t, sc.Connectors, 1)
	assert.Equal(t, []Interval{
		{Start: 0, End: 300, Kind: Online},
		{Start: 300, End: 360, Kind: Offline},
		{Start: 360, End: 2000, Kind: Online},
	}, sc.Resource("OVEN").Timeline.Intervals())

	mix := sc.Activity(ActivityKey{Job: "cake", Order: "MO-3", Operation: "mix", Activity: "mix"})
	require.NotNil(t, mix)
	require.Len(t, mix.Materials, 1)
	assert.Equal(t, material.UseNewestFirst, mix.Materials[0].Policy)
	assert.True(t, mix.Materials[0].AllowMultiStorageAreaSupply)
	assert.Equal(t, int64(10), mix.Materials[0].Constraints.MinAge)
	assert.Equal(t, int64(400), mix.NeedTick)
}

func TestParseScenarioConfig_NormalizesIdentifiers(t *testing.T) {
	// GIVEN a resource id spelled with a combining accent
	decomposed := "Cafe\u0301"
	cfg, err := ParseScenarioConfig([]byte(`
horizon: 100
resources:
  - id: "` + decomposed + `"
jobs:
  - id: j
    orders:
      - id: o
        operations:
          - id: op
            activities:
              - id: a
                processing_ticks: 5
                resources: ["` + decomposed + `"]
`))
	require.NoError(t, err)

	// THEN every reference uses the composed form
	assert.Equal(t, "Café", cfg.Resources[0].ID)
	assert.Equal(t, "Café", cfg.Jobs[0].Orders[0].Operations[0].Activities[0].Resources[0])

	sc, err := cfg.Build()
	require.NoError(t, err)
	assert.NotEmpty(t, sc.ID, "a missing id gets a generated one")
	assert.NotNil(t, sc.Resource("Café"))
}

func TestScenarioConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"horizon before clock", "clock: 10\nhorizon: 5\n"},
		{"duplicate resource", "horizon: 10\nresources: [{id: R}, {id: R}]\n"},
		{"empty downtime", "horizon: 10\nresources: [{id: R, downtime: [{start: 5, end: 5}]}]\n"},
		{"connector to nowhere", "horizon: 10\nresources: [{id: R}]\nconnectors: [{id: c, from: R, to: X}]\n"},
		{"duplicate lot", "horizon: 10\nareas: [{id: A, storages: [{item: i, lots: [{id: L, qty: '1'}, {id: L, qty: '2'}]}]}]\n"},
		{"negative lot", "horizon: 10\nareas: [{id: A, storages: [{item: i, lots: [{id: L, qty: '-1'}]}]}]\n"},
		{"zero processing", "horizon: 10\njobs: [{id: j, orders: [{id: o, operations: [{id: p, activities: [{id: a, processing_ticks: 0}]}]}]}]\n"},
		{"unknown policy", "horizon: 10\njobs: [{id: j, orders: [{id: o, operations: [{id: p, activities: [{id: a, processing_ticks: 1, materials: [{item: i, qty: '1', policy: lifo}]}]}]}]}]\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenarioConfig([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadEngineConfig(t *testing.T) {
	path := writeTempYAML(t, `
max_reapply: 3
max_events: 5000
checksum_ignore: [stats.events, cancelled]
notify_prefix: plant
trace_level: decisions
`)
	cfg, err := LoadEngineConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxReapply)
	assert.Equal(t, 5000, cfg.MaxEvents)
	assert.Equal(t, []string{"stats.events", "cancelled"}, cfg.ChecksumIgnore)
	assert.Equal(t, "decisions", cfg.TraceLevel)

	_, err = LoadEngineConfig(writeTempYAML(t, "max_events: -1\n"))
	assert.Error(t, err)
	_, err = LoadEngineConfig(writeTempYAML(t, "trace_level: everything\n"))
	assert.Error(t, err)

	_, err = LoadEngineConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
