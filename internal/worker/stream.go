// Package worker implements the Worker Stream (C7): a single cooperative
// pipeline that consumes a partition of agents, calls the Decision Kernel
// (C6), the LLM Backend Chain (C3), and the Forge Client (C4, which gates
// its own writes through the Mutation Pacer C2), and emits Result records
// (spec §4.7).
//
// Grounded on internal/agent/loop.go's per-run lifecycle: an
// atomic.Int32 run counter and a context-cancellation check between each
// pipeline step, so a cancellation lets the in-flight step finish but
// takes no new one (spec §5 "cooperative cancellation").
package worker

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/forgepulse/autonomy-engine/internal/archetype"
	"github.com/forgepulse/autonomy-engine/internal/decision"
	"github.com/forgepulse/autonomy-engine/internal/forge"
	"github.com/forgepulse/autonomy-engine/internal/llm"
	"github.com/forgepulse/autonomy-engine/pkg/types"
)

// HistoryProvider builds the decision History for one agent, sourced from
// the cycle's Snapshot by the Orchestrator before streams are launched.
type HistoryProvider func(agentID string) decision.History

// ForgeClient is the subset of *forge.Client the Worker Stream writes
// through. Declared here, at the consumer, so tests can substitute a fake
// without touching the forge package (the only dependency that talks to
// the network).
type ForgeClient interface {
	CreateDiscussion(ctx context.Context, authorID, channelSlug, title, body string) (types.PostMirror, error)
	AddComment(ctx context.Context, authorID string, number int, body string) (forge.CommentRef, error)
	AddReaction(ctx context.Context, number int, kind string) error
	EmitIssue(ctx context.Context, actionKind, payload string) (forge.IssueRef, error)
}

// Deps bundles everything a Stream needs to process one agent end to end.
// One Deps is shared read-only by every stream in a cycle — Pulse is
// immutable for the cycle's duration (spec §4.5).
type Deps struct {
	Chain            *llm.Chain
	Forge            ForgeClient
	Archetypes       archetype.Registry
	Pulse            types.Pulse
	History          HistoryProvider
	Now              time.Time
	SeedBase         int64
	Params           decision.Params
	MaxContentTokens int
}

// Stream processes one partition of agents.
type Stream struct {
	id    int
	deps  Deps
	inFlight atomic.Int32
}

// New builds a Stream identified by id (used only for logging/tracing).
func New(id int, deps Deps) *Stream {
	return &Stream{id: id, deps: deps}
}

// Run processes agents in order, calling Decide → generate → mutate for
// each. On ctx cancellation, the in-flight agent's step is allowed to
// finish (cooperative), but no further agent in the partition starts —
// each remaining agent is recorded as Skipped(cancelled) instead (spec
// invariant 13).
func (s *Stream) Run(ctx context.Context, agents []types.Agent) []types.Result {
	results := make([]types.Result, 0, len(agents))

	for _, agent := range agents {
		select {
		case <-ctx.Done():
			results = append(results, types.Skipped{
				Task:   types.CycleTask{AgentID: agent.ID, Action: types.ActionNoop},
				Reason: "cycle cancelled before this agent's turn",
			})
			continue
		default:
		}

		s.inFlight.Add(1)
		results = append(results, s.runOne(ctx, agent))
		s.inFlight.Add(-1)
	}

	return results
}

func (s *Stream) runOne(ctx context.Context, agent types.Agent) types.Result {
	arch, ok := s.deps.Archetypes.Get(agent.Archetype)
	if !ok {
		return types.Skipped{
			Task:   types.CycleTask{AgentID: agent.ID},
			Reason: "unknown archetype " + agent.Archetype,
		}
	}

	rng := rand.New(rand.NewSource(s.deps.SeedBase ^ seedFromAgentID(agent.ID)))
	hist := s.deps.History(agent.ID)
	task := decision.Decide(agent, arch, s.deps.Pulse, hist, s.deps.Now, rng, s.deps.Params)

	switch task.Action {
	case types.ActionNoop:
		return types.Skipped{Task: task, Reason: task.Reason}
	case types.ActionPost:
		return s.executePost(ctx, agent, arch, task, hist)
	case types.ActionComment:
		return s.executeComment(ctx, agent, arch, task)
	case types.ActionVote:
		return s.executeVote(ctx, agent, task)
	case types.ActionPoke:
		return s.executePoke(ctx, agent, task)
	default:
		return types.Skipped{Task: task, Reason: "unsupported action " + string(task.Action)}
	}
}

// seedFromAgentID derives a stable per-agent seed component via FNV-1a,
// so Decide's determinism (invariant 9) holds across runs without
// depending on map/slice ordering of agent IDs.
func seedFromAgentID(id string) int64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(id); i++ {
		h ^= uint64(id[i])
		h *= 1099511628211
	}
	return int64(h)
}
