package orchestrator

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/forgepulse/autonomy-engine/internal/archetype"
	"github.com/forgepulse/autonomy-engine/internal/forge"
	"github.com/forgepulse/autonomy-engine/internal/llm"
	"github.com/forgepulse/autonomy-engine/internal/state"
	"github.com/forgepulse/autonomy-engine/pkg/types"
)

type fakeProvider struct{}

func (fakeProvider) Name() string        { return "fake" }
func (fakeProvider) DefaultModel() string { return "fake-model" }
func (fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: `{"title":"A fresh idea","body":"content"}`}, nil
}

type fakeForge struct {
	mu      sync.Mutex
	created int
}

func (f *fakeForge) CreateDiscussion(ctx context.Context, authorID, channelSlug, title, body string) (types.PostMirror, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return types.PostMirror{Number: f.created, Title: title, AuthorID: authorID, ChannelSlug: channelSlug}, nil
}

func (f *fakeForge) AddComment(ctx context.Context, authorID string, number int, body string) (forge.CommentRef, error) {
	return forge.CommentRef{ID: "c"}, nil
}

func (f *fakeForge) AddReaction(ctx context.Context, number int, kind string) error {
	return nil
}

func (f *fakeForge) EmitIssue(ctx context.Context, actionKind, payload string) (forge.IssueRef, error) {
	return forge.IssueRef{Number: 1}, nil
}

func setupStore(t *testing.T, agentCount int) *state.Store {
	t.Helper()
	store, err := state.New(t.TempDir())
	if err != nil {
		t.Fatalf("state.New: %v", err)
	}

	agents := make(map[string]types.Agent, agentCount)
	now := time.Now().UTC()
	for i := 0; i < agentCount; i++ {
		id := "agent-" + string(rune('a'+i))
		agents[id] = types.Agent{
			ID:            id,
			Archetype:     "poster",
			Status:        types.AgentActive,
			LastHeartbeat: now.Add(-time.Duration(i) * time.Hour),
		}
	}
	if err := store.WriteAgents(types.AgentsFile{Agents: agents}); err != nil {
		t.Fatalf("WriteAgents: %v", err)
	}
	channels := map[string]types.Channel{
		"code": {Slug: "code", TargetRatio: 1.0},
	}
	if err := store.WriteChannels(types.ChannelsFile{Channels: channels}); err != nil {
		t.Fatalf("WriteChannels: %v", err)
	}
	return store
}

func TestOrchestratorRunProducesOneResultPerSelectedAgent(t *testing.T) {
	store := setupStore(t, 6)
	reg := archetype.Registry{"poster": archetype.Archetype{ActionWeights: map[string]float64{"post": 1.0}}}
	chain := llm.NewChain([]llm.Provider{fakeProvider{}}, llm.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	cfg := DefaultConfig()
	cfg.Streams = 2
	cfg.AgentsPerCycle = 4

	o := &Orchestrator{
		Store:      store,
		Chain:      chain,
		Forge:      &fakeForge{},
		Archetypes: reg,
		Config:     cfg,
	}

	report, err := o.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.SelectedCount != 4 {
		t.Fatalf("expected 4 selected agents, got %d", report.SelectedCount)
	}
	if len(report.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(report.Results))
	}
	if report.Cancelled {
		t.Fatal("expected an uncancelled run")
	}
}

func TestOrchestratorRunHonorsCancellation(t *testing.T) {
	store := setupStore(t, 6)
	reg := archetype.Registry{"poster": archetype.Archetype{ActionWeights: map[string]float64{"post": 1.0}}}
	chain := llm.NewChain([]llm.Provider{fakeProvider{}}, llm.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	cfg := DefaultConfig()
	cfg.Streams = 2
	cfg.AgentsPerCycle = 4

	o := &Orchestrator{
		Store:      store,
		Chain:      chain,
		Forge:      &fakeForge{},
		Archetypes: reg,
		Config:     cfg,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := o.Run(ctx, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Cancelled {
		t.Fatal("expected Cancelled to be true")
	}
	if len(report.Results) != report.SelectedCount {
		t.Fatalf("expected a result for every selected agent even when cancelled, got %d results for %d agents", len(report.Results), report.SelectedCount)
	}
	for _, r := range report.Results {
		if _, ok := r.(types.Skipped); !ok {
			t.Fatalf("expected every result to be Skipped under pre-cancelled context, got %#v", r)
		}
	}
}

func TestSelectAgentsBiasesTowardOlderHeartbeat(t *testing.T) {
	store := setupStore(t, 10)
	snap, err := store.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	oldestPicks := 0
	for seed := int64(0); seed < 50; seed++ {
		selected := selectAgents(snap.Agents.Agents, 1, rand.New(rand.NewSource(seed)))
		if len(selected) == 1 && selected[0].ID == "agent-j" {
			oldestPicks++
		}
	}
	// With 10 agents the oldest has weight 10 of 55 (about 9 picks in 50),
	// against the 5/50 a uniform pick would give.
	if oldestPicks <= 5 {
		t.Fatalf("expected the oldest-heartbeat agent to be picked more often than a uniform pick (5/50), got %d/50", oldestPicks)
	}
}

func TestPartitionSizesWithinOne(t *testing.T) {
	agents := make([]types.Agent, 7)
	for i := range agents {
		agents[i] = types.Agent{ID: string(rune('a' + i))}
	}
	streams := partition(agents, 3)
	if len(streams) != 3 {
		t.Fatalf("expected 3 streams, got %d", len(streams))
	}
	min, max := len(streams[0]), len(streams[0])
	total := 0
	for _, s := range streams {
		if len(s) < min {
			min = len(s)
		}
		if len(s) > max {
			max = len(s)
		}
		total += len(s)
	}
	if max-min > 1 {
		t.Fatalf("expected partition sizes within ±1, got sizes %v", []int{len(streams[0]), len(streams[1]), len(streams[2])})
	}
	if total != len(agents) {
		t.Fatalf("expected all %d agents partitioned, got %d", len(agents), total)
	}
}
