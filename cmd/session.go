package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/schedsim/schedsim/sim"
	"github.com/schedsim/schedsim/sim/command"
	"github.com/schedsim/schedsim/sim/notify"
	"github.com/schedsim/schedsim/sim/trace"
)

// redisConn is the optional Redis side of a run. Both fields are nil when
// REDIS_ADDRESS is unset.
type redisConn struct {
	client *redis.Client
	locker *redislock.Client
}

// connectRedis dials REDIS_ADDRESS when it is set.
func connectRedis(ctx context.Context) (*redisConn, error) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		logrus.Debug("REDIS_ADDRESS not set; notifications stay local")
		return &redisConn{}, nil
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("REDIS_DB: %w", err)
		}
		db = n
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	logrus.Infof("connected to redis at %s", addr)
	return &redisConn{client: client, locker: redislock.New(client)}, nil
}

func (c *redisConn) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// publisher logs every notification and also publishes to Redis when
// connected.
func (c *redisConn) publisher(cfg sim.EngineConfig) notify.Publisher {
	pubs := notify.Fanout{notify.LogPublisher{Logger: logrus.StandardLogger()}}
	if c.client != nil {
		pubs = append(pubs, notify.NewRedisPublisher(c.client, cfg.NotifyPrefix))
	}
	return pubs
}

// leaseHolder is the part of *lease.Lease a run needs.
type leaseHolder interface {
	Keep(ctx context.Context) error
	Release(ctx context.Context) error
}

// holdLease keeps l refreshed in the background and calls lost if a refresh
// fails. The returned func stops the refreshes, waits for them to end, then
// releases l.
func holdLease(ctx context.Context, l leaseHolder, scenario string, lost func()) (release func()) {
	keepCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := l.Keep(keepCtx); err != nil && keepCtx.Err() == nil {
			logrus.Errorf("scenario %s: lost lease: %v", scenario, err)
			lost()
		}
	}()
	return func() {
		cancel()
		<-done
		if err := l.Release(context.Background()); err != nil {
			logrus.Warnf("scenario %s: releasing lease: %v", scenario, err)
		}
	}
}

func loadEngineConfig() (sim.EngineConfig, error) {
	if enginePath == "" {
		return sim.EngineConfig{}, nil
	}
	cfg, err := sim.LoadEngineConfig(enginePath)
	if err != nil {
		return sim.EngineConfig{}, err
	}
	return *cfg, nil
}

// newEngine builds a fresh engine from --scenario.
func newEngine(cfg sim.EngineConfig, pub notify.Publisher) (*sim.Engine, error) {
	if scenarioPath == "" {
		return nil, errors.New("--scenario is required")
	}
	sc, err := sim.LoadScenarioConfig(scenarioPath)
	if err != nil {
		return nil, err
	}
	scenario, err := sc.Build()
	if err != nil {
		return nil, fmt.Errorf("building scenario: %w", err)
	}
	return sim.NewEngine(scenario, cfg, pub), nil
}

// loadCommands reads a command stream. Unknown fields are errors so a
// misspelt payload never turns into a silently different command. An empty
// path yields a single optimize.
func loadCommands(path string) ([]command.Command, error) {
	if path == "" {
		return []command.Command{command.Optimize(1)}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading commands: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cmds []command.Command
	if err := dec.Decode(&cmds); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing commands: %w", err)
	}
	return cmds, nil
}

// processAll feeds cmds to e. Rejected commands are logged and kept in the
// outcomes; sequence errors stop the run.
func processAll(ctx context.Context, e *sim.Engine, cmds []command.Command) ([]*sim.Outcome, error) {
	outcomes := make([]*sim.Outcome, 0, len(cmds))
	for _, c := range cmds {
		out, err := e.Process(ctx, c)
		if err != nil {
			return outcomes, fmt.Errorf("command %d: %w", c.Seq, err)
		}
		if out.Err != nil {
			logrus.Warnf("command %d (%s) rejected: %v", out.Seq, out.Kind, out.Err)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func printOutcomes(w io.Writer, outcomes []*sim.Outcome) {
	for _, o := range outcomes {
		line := fmt.Sprintf("%4d %-14s checksum=%d", o.Seq, o.Kind, o.Fingerprint.Sum)
		if o.Move != nil {
			line += fmt.Sprintf(" move=%s reapply=%d", o.Move.State, o.Move.ReapplyCount)
			if !o.Move.Failures.Empty() {
				line += fmt.Sprintf(" failures=%v", o.Move.Failures.List())
			}
		}
		if o.Err != nil {
			line += " rejected: " + o.Err.Error()
		}
		fmt.Fprintln(w, line)
	}
}

func printSummary(w io.Writer, snap *sim.ScheduleSnapshot, sum int64) {
	fmt.Fprintf(w, "=== Schedule %s ===\n", snap.Scenario)
	fmt.Fprintf(w, "clock:       %d\n", snap.Clock)
	fmt.Fprintf(w, "batches:     %d\n", len(snap.Batches))
	fmt.Fprintf(w, "unscheduled: %d\n", len(snap.Unscheduled))
	for _, k := range snap.Unscheduled {
		fmt.Fprintf(w, "  - %s\n", k)
	}
	fmt.Fprintf(w, "checksum:    %d\n", sum)
}

func printTraceSummary(w io.Writer, ts *trace.TraceSummary) {
	fmt.Fprintln(w, "=== Decision Trace ===")
	fmt.Fprintf(w, "commands:    %d (%d rejected)\n", ts.TotalCommands, ts.RejectedCount)
	fmt.Fprintf(w, "moves:       %d\n", ts.TotalMoves)
	if ts.TotalMoves == 0 {
		return
	}
	fmt.Fprintf(w, "reapply:     mean %.2f, max %d\n", ts.MeanReapply, ts.MaxReapply)
	for _, k := range sortedKeys(ts.MoveStates) {
		fmt.Fprintf(w, "  %-20s %d\n", k, ts.MoveStates[k])
	}
	for _, k := range sortedKeys(ts.FailureDistribution) {
		fmt.Fprintf(w, "  failure %-12s %d\n", k, ts.FailureDistribution[k])
	}
	for _, k := range sortedKeys(ts.ProblemDistribution) {
		fmt.Fprintf(w, "  problem %-12s %d\n", k, ts.ProblemDistribution[k])
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
