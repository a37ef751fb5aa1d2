package sim

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/schedsim/schedsim/sim/material"
	"github.com/schedsim/schedsim/sim/trace"
)

// ScenarioConfig is the YAML description of a scenario's starting state.
// Identifiers are NFC-normalised on load so every replica compares the same
// bytes.
type ScenarioConfig struct {
	ID         string            `yaml:"id"` // empty gets a random UUID
	Clock      int64             `yaml:"clock"`
	Horizon    int64             `yaml:"horizon"`
	Resources  []ResourceConfig  `yaml:"resources"`
	Connectors []ConnectorConfig `yaml:"connectors"`
	Areas      []AreaConfig      `yaml:"areas"`
	Jobs       []JobConfig       `yaml:"jobs"`
}

// ResourceConfig describes a resource and its planned downtime.
type ResourceConfig struct {
	ID            string         `yaml:"id"`
	BatchCapacity int            `yaml:"batch_capacity"`
	CleanoutEvery int            `yaml:"cleanout_every"`
	CleanoutTicks int64          `yaml:"cleanout_ticks"`
	Downtime      []WindowConfig `yaml:"downtime"`
}

// WindowConfig is a half-open tick range.
type WindowConfig struct {
	Start int64 `yaml:"start"`
	End   int64 `yaml:"end"`
}

type ConnectorConfig struct {
	ID            string `yaml:"id"`
	From          string `yaml:"from"`
	To            string `yaml:"to"`
	TransferTicks int64  `yaml:"transfer_ticks"`
}

type AreaConfig struct {
	ID       string          `yaml:"id"`
	Storages []StorageConfig `yaml:"storages"`
}

type StorageConfig struct {
	Item     string      `yaml:"item"`
	LeadTime int64       `yaml:"lead_time"`
	Lots     []LotConfig `yaml:"lots"`
}

type LotConfig struct {
	ID             string          `yaml:"id"`
	LotCode        string          `yaml:"lot_code"`
	Qty            decimal.Decimal `yaml:"qty"`
	ProductionTick int64           `yaml:"production_tick"`
	ExpirationTick int64           `yaml:"expiration_tick"`
	Wear           int64           `yaml:"wear"`
}

type JobConfig struct {
	ID     string        `yaml:"id"`
	Orders []OrderConfig `yaml:"orders"`
}

type OrderConfig struct {
	ID          string            `yaml:"id"`
	ReleaseTick int64             `yaml:"release_tick"`
	Operations  []OperationConfig `yaml:"operations"`
}

type OperationConfig struct {
	ID            string           `yaml:"id"`
	TransferTicks int64            `yaml:"transfer_ticks"`
	Activities    []ActivityConfig `yaml:"activities"`
}

// ActivityConfig describes one activity. Anchor, when set, locks the
// activity at a resource and tick.
type ActivityConfig struct {
	ID              string           `yaml:"id"`
	ProcessingTicks int64            `yaml:"processing_ticks"`
	Resources       []string         `yaml:"resources"`
	BatchKey        string           `yaml:"batch_key"`
	NeedTick        int64            `yaml:"need_tick"`
	Materials       []MaterialConfig `yaml:"materials"`
	Anchor          *AnchorConfig    `yaml:"anchor"`
}

type AnchorConfig struct {
	Resource string `yaml:"resource"`
	Tick     int64  `yaml:"tick"`
}

type MaterialConfig struct {
	Item                 string          `yaml:"item"`
	Qty                  decimal.Decimal `yaml:"qty"`
	Policy               string          `yaml:"policy"`
	AllowPartialSupply   bool            `yaml:"allow_partial_supply"`
	AllowMultiAreaSupply bool            `yaml:"allow_multi_area_supply"`

	MinShelfLife           int64    `yaml:"min_shelf_life"`
	ShelfLifeNonConstraint bool     `yaml:"shelf_life_non_constraint"`
	MinAge                 int64    `yaml:"min_age"`
	MaxWear                *int64   `yaml:"max_wear"`
	EligibleLotCodes       []string `yaml:"eligible_lot_codes"`
}

// EngineConfig tunes the engine around a scenario.
type EngineConfig struct {
	// MaxReapply bounds the passes of one move: 0 uses the default, a
	// negative value allows none beyond the first.
	MaxReapply int `yaml:"max_reapply"`
	// MaxEvents caps the event queue of one pass; 0 uses the default.
	MaxEvents int `yaml:"max_events"`
	// ChecksumIgnore names fields left out of fingerprints.
	ChecksumIgnore []string `yaml:"checksum_ignore"`
	// NotifyPrefix is the Redis channel prefix for notifications.
	NotifyPrefix string `yaml:"notify_prefix"`
	// TraceLevel is "none" or "decisions".
	TraceLevel string `yaml:"trace_level"`
}

// LoadScenarioConfig reads, normalises and validates a scenario file.
func LoadScenarioConfig(path string) (*ScenarioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario config: %w", err)
	}
	return ParseScenarioConfig(data)
}

// ParseScenarioConfig parses, normalises and validates scenario YAML.
func ParseScenarioConfig(data []byte) (*ScenarioConfig, error) {
	var cfg ScenarioConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing scenario config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario config: %w", err)
	}
	return &cfg, nil
}

// LoadEngineConfig reads and validates an engine file.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading engine config: %w", err)
	}
	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing engine config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	return &cfg, nil
}

// Validate checks parameter ranges.
func (c *EngineConfig) Validate() error {
	if c.MaxEvents < 0 {
		return fmt.Errorf("max_events must be >= 0, got %d", c.MaxEvents)
	}
	if !trace.IsValidTraceLevel(c.TraceLevel) {
		return fmt.Errorf("unknown trace_level %q", c.TraceLevel)
	}
	return nil
}

func nfc(s string) string {
	return norm.NFC.String(s)
}

func nfcAll(ss []string) {
	for i := range ss {
		ss[i] = nfc(ss[i])
	}
}

func (c *ScenarioConfig) normalize() {
	c.ID = nfc(c.ID)
	for i := range c.Resources {
		c.Resources[i].ID = nfc(c.Resources[i].ID)
	}
	for i := range c.Connectors {
		cc := &c.Connectors[i]
		cc.ID, cc.From, cc.To = nfc(cc.ID), nfc(cc.From), nfc(cc.To)
	}
	for i := range c.Areas {
		area := &c.Areas[i]
		area.ID = nfc(area.ID)
		for j := range area.Storages {
			st := &area.Storages[j]
			st.Item = nfc(st.Item)
			for k := range st.Lots {
				st.Lots[k].ID = nfc(st.Lots[k].ID)
				st.Lots[k].LotCode = nfc(st.Lots[k].LotCode)
			}
		}
	}
	for i := range c.Jobs {
		j := &c.Jobs[i]
		j.ID = nfc(j.ID)
		for oi := range j.Orders {
			o := &j.Orders[oi]
			o.ID = nfc(o.ID)
			for pi := range o.Operations {
				op := &o.Operations[pi]
				op.ID = nfc(op.ID)
				for ai := range op.Activities {
					a := &op.Activities[ai]
					a.ID, a.BatchKey = nfc(a.ID), nfc(a.BatchKey)
					nfcAll(a.Resources)
					if a.Anchor != nil {
						a.Anchor.Resource = nfc(a.Anchor.Resource)
					}
					for mi := range a.Materials {
						a.Materials[mi].Item = nfc(a.Materials[mi].Item)
						nfcAll(a.Materials[mi].EligibleLotCodes)
					}
				}
			}
		}
	}
}

// Validate checks ranges and references that Build would otherwise trip on.
func (c *ScenarioConfig) Validate() error {
	if c.Horizon <= c.Clock {
		return fmt.Errorf("horizon %d must be after clock %d", c.Horizon, c.Clock)
	}
	resources := make(map[string]bool)
	for _, r := range c.Resources {
		if r.ID == "" {
			return fmt.Errorf("resource with empty id")
		}
		if resources[r.ID] {
			return fmt.Errorf("duplicate resource %q", r.ID)
		}
		resources[r.ID] = true
		if r.BatchCapacity < 0 || r.CleanoutEvery < 0 || r.CleanoutTicks < 0 {
			return fmt.Errorf("resource %q: negative batch or cleanout setting", r.ID)
		}
		for _, w := range r.Downtime {
			if w.End <= w.Start {
				return fmt.Errorf("resource %q: empty downtime [%d, %d)", r.ID, w.Start, w.End)
			}
		}
	}
	for _, cc := range c.Connectors {
		if !resources[cc.From] || !resources[cc.To] {
			return fmt.Errorf("connector %q joins unknown resources", cc.ID)
		}
		if cc.TransferTicks < 0 {
			return fmt.Errorf("connector %q: negative transfer ticks", cc.ID)
		}
	}
	lots := make(map[string]bool)
	for _, area := range c.Areas {
		for _, st := range area.Storages {
			for _, l := range st.Lots {
				if lots[l.ID] {
					return fmt.Errorf("duplicate lot %q", l.ID)
				}
				lots[l.ID] = true
				if l.Qty.IsNegative() {
					return fmt.Errorf("lot %q: negative quantity", l.ID)
				}
			}
		}
	}
	for _, j := range c.Jobs {
		for _, o := range j.Orders {
			for _, op := range o.Operations {
				for _, a := range op.Activities {
					if a.ProcessingTicks <= 0 {
						return fmt.Errorf("activity %s/%s/%s/%s: processing_ticks must be > 0", j.ID, o.ID, op.ID, a.ID)
					}
					for _, m := range a.Materials {
						if _, err := material.ParsePolicy(m.Policy); err != nil {
							return fmt.Errorf("activity %s: %w", a.ID, err)
						}
						if !m.Qty.IsPositive() {
							return fmt.Errorf("activity %s: material %q needs a positive qty", a.ID, m.Item)
						}
					}
					if a.Anchor != nil && !resources[a.Anchor.Resource] {
						return fmt.Errorf("activity %s: anchor on unknown resource %q", a.ID, a.Anchor.Resource)
					}
				}
			}
		}
	}
	return nil
}

// Build creates the scenario described by c.
func (c *ScenarioConfig) Build() (*Scenario, error) {
	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	sc := NewScenario(id, c.Clock, c.Horizon)
	for _, rc := range c.Resources {
		var downtime []Interval
		for _, w := range rc.Downtime {
			downtime = append(downtime, Interval{Start: w.Start, End: w.End, Kind: Offline})
		}
		r := &Resource{
			ID:            rc.ID,
			BatchCapacity: rc.BatchCapacity,
			CleanoutEvery: rc.CleanoutEvery,
			CleanoutTicks: rc.CleanoutTicks,
			Timeline:      NewTimeline(c.Horizon, downtime...),
		}
		if err := sc.AddResource(r); err != nil {
			return nil, err
		}
	}
	for _, cc := range c.Connectors {
		if err := sc.AddConnector(&Connector{ID: cc.ID, From: cc.From, To: cc.To, TransferTicks: cc.TransferTicks}); err != nil {
			return nil, err
		}
	}
	for _, ac := range c.Areas {
		area := &material.StorageArea{ID: ac.ID}
		for _, stc := range ac.Storages {
			st := area.EnsureStorage(stc.Item)
			st.LeadTime = stc.LeadTime
			for _, lc := range stc.Lots {
				l := material.NewLot(lc.ID, stc.Item, lc.Qty, lc.ProductionTick)
				l.LotCode, l.ExpirationTick, l.Wear = lc.LotCode, lc.ExpirationTick, lc.Wear
				st.Lots = append(st.Lots, l)
			}
		}
		sc.AddArea(area)
	}
	for _, jc := range c.Jobs {
		job, err := jc.build()
		if err != nil {
			return nil, err
		}
		if err := sc.AddJob(job); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

func (jc JobConfig) build() (*Job, error) {
	job := &Job{ID: jc.ID}
	for _, oc := range jc.Orders {
		mo := &ManufacturingOrder{ID: oc.ID, ReleaseTick: oc.ReleaseTick}
		for _, opc := range oc.Operations {
			op := &Operation{ID: opc.ID, TransferTicks: opc.TransferTicks}
			for _, acfg := range opc.Activities {
				a, err := acfg.build()
				if err != nil {
					return nil, err
				}
				op.Activities = append(op.Activities, a)
			}
			mo.Operations = append(mo.Operations, op)
		}
		job.Orders = append(job.Orders, mo)
	}
	return job, nil
}

func (ac ActivityConfig) build() (*Activity, error) {
	a := &Activity{
		Key:               ActivityKey{Activity: ac.ID},
		ProcessingTicks:   ac.ProcessingTicks,
		EligibleResources: append([]string(nil), ac.Resources...),
		BatchKey:          ac.BatchKey,
		NeedTick:          ac.NeedTick,
	}
	if ac.Anchor != nil {
		a.Locked, a.Anchored = true, true
		a.AnchorResource, a.AnchorTick = ac.Anchor.Resource, ac.Anchor.Tick
	}
	for _, mc := range ac.Materials {
		policy, err := material.ParsePolicy(mc.Policy)
		if err != nil {
			return nil, err
		}
		req := MaterialRequirement{
			Item:                        mc.Item,
			Qty:                         mc.Qty,
			Policy:                      policy,
			AllowPartialSupply:          mc.AllowPartialSupply,
			AllowMultiStorageAreaSupply: mc.AllowMultiAreaSupply,
			Constraints: material.Constraints{
				MinShelfLife:            mc.MinShelfLife,
				ShelfLifeNonConstraint:  mc.ShelfLifeNonConstraint,
				MinAge:                  mc.MinAge,
				RequireEligibleLotCodes: len(mc.EligibleLotCodes) > 0,
				EligibleLotCodes:        mc.EligibleLotCodes,
			},
		}
		if mc.MaxWear != nil {
			req.Constraints.WearLimited, req.Constraints.MaxWear = true, *mc.MaxWear
		}
		a.Materials = append(a.Materials, req)
	}
	return a, nil
}
