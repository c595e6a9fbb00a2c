// Package orchestrator implements the Orchestrator (C8): the per-cycle
// pipeline that loads a snapshot, builds the pulse, selects and partitions
// agents, fans out K worker streams, and returns the aggregated result
// buffer for the caller to hand to the Reconciler and Safe-Commit
// protocol.
//
// Grounded on internal/gateway/server.go's top-level wiring (one function
// owns construction of every dependency, passes them down explicitly — no
// package-level singletons) and cmd/gateway_cron.go's
// sched.Schedule(ctx, ...) / <-outCh blocking-drain pattern, generalized
// here from one scheduled job to K concurrent worker streams collected via
// golang.org/x/sync/errgroup.
package orchestrator

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/forgepulse/autonomy-engine/internal/archetype"
	"github.com/forgepulse/autonomy-engine/internal/decision"
	"github.com/forgepulse/autonomy-engine/internal/llm"
	"github.com/forgepulse/autonomy-engine/internal/pulse"
	"github.com/forgepulse/autonomy-engine/internal/state"
	"github.com/forgepulse/autonomy-engine/internal/tracing"
	"github.com/forgepulse/autonomy-engine/internal/worker"
	"github.com/forgepulse/autonomy-engine/pkg/types"
)

// Config bundles the tunables spec §4.8 names.
type Config struct {
	// Streams is K, the number of concurrent worker streams (default 3).
	Streams int

	// AgentsPerCycle is N_cycle, the number of agents selected per cycle.
	AgentsPerCycle int

	RecentWindow     time.Duration
	Thresholds       pulse.MomentumThresholds
	DecisionParams   decision.Params
	MaxContentTokens int
}

// DefaultConfig matches SPEC_FULL.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		Streams:          3,
		AgentsPerCycle:   12,
		RecentWindow:     72 * time.Hour,
		Thresholds:       pulse.DefaultMomentumThresholds(),
		DecisionParams:   decision.DefaultParams(),
		MaxContentTokens: 800,
	}
}

// Orchestrator owns one cycle's dependencies. It is constructed once per
// process and its Run method invoked once per tick by the Continuous
// Runner (C11).
type Orchestrator struct {
	Store      *state.Store
	Chain      *llm.Chain
	Forge      worker.ForgeClient
	Archetypes archetype.Registry
	Config     Config

	// Now is a test seam; defaults to time.Now in normal operation.
	Now func() time.Time
}

// CycleReport summarizes one completed (or partially completed) cycle for
// the caller's logging/metrics, and carries the snapshot and results the
// Reconciler (C9) needs next.
type CycleReport struct {
	Snapshot      state.Snapshot
	Pulse         types.Pulse
	SelectedCount int
	Results       []types.Result
	Cancelled     bool
}

// Run executes one full cycle (spec §4.8 steps 1–5). It does not invoke
// the Reconciler or Safe-Commit protocol — those are separate components
// the caller (the Continuous Runner) wires in sequence after Run returns,
// so a cycle's reconciliation/commit can be retried independently of
// re-running the (expensive, LLM-calling) worker streams.
func (o *Orchestrator) Run(ctx context.Context, seed int64) (CycleReport, error) {
	ctx, span := tracing.StartCycle(ctx, seed)
	defer span.End()

	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	nowT := now()

	snap, err := o.Store.LoadSnapshot()
	if err != nil {
		span.RecordError(err)
		return CycleReport{}, err
	}

	p := pulse.Build(snap, nowT, o.Config.RecentWindow, o.Config.Thresholds)

	agents := selectAgents(snap.Agents.Agents, o.Config.AgentsPerCycle, rand.New(rand.NewSource(seed)))
	streamsOf := partition(agents, o.Config.Streams)

	results, cancelled := o.runStreams(ctx, streamsOf, snap, p, nowT, seed)

	span.SetAttributes(
		attribute.Int("cycle.selected_agents", len(agents)),
		attribute.Int("cycle.results", len(results)),
		attribute.Bool("cycle.cancelled", cancelled),
	)

	return CycleReport{
		Snapshot:      snap,
		Pulse:         p,
		SelectedCount: len(agents),
		Results:       results,
		Cancelled:     cancelled,
	}, nil
}

// runStreams launches one worker.Stream per partition and collects their
// results in partition order (spec §4.8 step 5: "aggregate ... into an
// ordered buffer" — ordered by stream, not globally re-sorted, since the
// Reconciler's merge is commutative across result kinds).
func (o *Orchestrator) runStreams(ctx context.Context, streamsOf [][]types.Agent, snap state.Snapshot, p types.Pulse, now time.Time, seed int64) ([]types.Result, bool) {
	buffers := make([][]types.Result, len(streamsOf))

	g, gctx := errgroup.WithContext(ctx)
	for i, agents := range streamsOf {
		i, agents := i, agents
		g.Go(func() error {
			deps := worker.Deps{
				Chain:            o.Chain,
				Forge:            o.Forge,
				Archetypes:       o.Archetypes,
				Pulse:            p,
				History:          historyProvider(snap, o.Config.DecisionParams),
				Now:              now,
				SeedBase:         seed + int64(i),
				Params:           o.Config.DecisionParams,
				MaxContentTokens: o.Config.MaxContentTokens,
			}
			s := worker.New(i, deps)
			buffers[i] = s.Run(gctx, agents)
			return nil
		})
	}
	// Streams never return an error themselves — task-level failure is
	// captured as a Failed result, not a Go error — so g.Wait only ever
	// reports ctx cancellation propagated through gctx.
	_ = g.Wait()

	total := 0
	for _, b := range buffers {
		total += len(b)
	}
	out := make([]types.Result, 0, total)
	for _, b := range buffers {
		out = append(out, b...)
	}
	return out, ctx.Err() != nil
}

// selectAgents implements spec §4.8 step 3: up to n active agents, weighted
// sampling without replacement biased toward older last-heartbeat (with
// active agents sorted oldest-heartbeat-first, an agent's selection weight
// is len(active) minus its 0-indexed position, so among m active agents
// the oldest is m times as likely to be picked first as the newest).
func selectAgents(all map[string]types.Agent, n int, rng *rand.Rand) []types.Agent {
	active := make([]types.Agent, 0, len(all))
	for _, a := range all {
		if a.Status == types.AgentActive {
			active = append(active, a)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].LastHeartbeat.Equal(active[j].LastHeartbeat) {
			return active[i].LastHeartbeat.Before(active[j].LastHeartbeat)
		}
		return active[i].ID < active[j].ID
	})

	weights := make(map[int]float64, len(active))
	for idx := range active {
		weights[idx] = float64(len(active) - idx)
	}

	if n > len(active) {
		n = len(active)
	}
	selected := make([]types.Agent, 0, n)
	for len(selected) < n && len(weights) > 0 {
		idx, ok := archetype.WeightedPick(rng, weights)
		if !ok {
			break
		}
		selected = append(selected, active[idx])
		delete(weights, idx)
	}
	return selected
}

// partition splits agents into k streams with sizes within ±1 (spec §4.8
// step 4), round-robin so adjacent agents (from selectAgents' age-biased
// order) spread across streams rather than clustering in one.
func partition(agents []types.Agent, k int) [][]types.Agent {
	if k < 1 {
		k = 1
	}
	streams := make([][]types.Agent, k)
	for i, a := range agents {
		s := i % k
		streams[s] = append(streams[s], a)
	}
	return streams
}

// historyProvider closes over snap to build a decision.History per agent
// on demand (spec §4.6 steps 2–3's inputs), reconstructed from
// posted_log.posts (authored titles/post numbers) and changes (per-post
// comment timestamps), since neither is kept as a dedicated per-agent
// index file.
func historyProvider(snap state.Snapshot, params decision.Params) worker.HistoryProvider {
	return func(agentID string) decision.History {
		hist := decision.History{
			LastCommentedAt: map[int]time.Time{},
			AuthoredPosts:   map[int]bool{},
		}

		type titled struct {
			at    time.Time
			title string
		}
		var mine []titled
		for _, post := range snap.PostedLog.Posts {
			if post.AuthorID != agentID {
				continue
			}
			hist.AuthoredPosts[post.Number] = true
			mine = append(mine, titled{at: post.CreatedAt, title: post.Title})
		}
		sort.Slice(mine, func(i, j int) bool { return mine[i].at.Before(mine[j].at) })
		if len(mine) > params.RecentPostWindow {
			mine = mine[len(mine)-params.RecentPostWindow:]
		}
		for _, m := range mine {
			hist.RecentTitles = append(hist.RecentTitles, m.title)
		}

		for _, ch := range snap.Changes.Changes {
			if ch.Kind != types.ChangeComment || ch.AgentID != agentID || ch.PostNumber == 0 {
				continue
			}
			if prev, ok := hist.LastCommentedAt[ch.PostNumber]; !ok || ch.Timestamp.After(prev) {
				hist.LastCommentedAt[ch.PostNumber] = ch.Timestamp
			}
		}

		return hist
	}
}
