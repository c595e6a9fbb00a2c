package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgepulse/autonomy-engine/internal/llm"
	"github.com/forgepulse/autonomy-engine/internal/orchestrator"
	"github.com/forgepulse/autonomy-engine/internal/reconciler"
	"github.com/forgepulse/autonomy-engine/internal/state"
	"github.com/forgepulse/autonomy-engine/pkg/types"
)

func newTestStore(t *testing.T) *state.Store {
	t.Helper()
	store, err := state.New(t.TempDir())
	if err != nil {
		t.Fatalf("state.New: %v", err)
	}
	return store
}

// emptyOrchestrator builds an Orchestrator over a store with zero active
// agents, so Run never reaches Chain/Forge/Archetypes (selectAgents
// returns nothing, so no stream ever calls them).
func emptyOrchestrator(t *testing.T, store *state.Store) *orchestrator.Orchestrator {
	t.Helper()
	if err := store.WriteAgents(types.AgentsFile{Agents: map[string]types.Agent{}}); err != nil {
		t.Fatalf("WriteAgents: %v", err)
	}
	if err := store.WriteChannels(types.ChannelsFile{Channels: map[string]types.Channel{
		"code": {Slug: "code", TargetRatio: 1},
	}}); err != nil {
		t.Fatalf("WriteChannels: %v", err)
	}
	return &orchestrator.Orchestrator{
		Store:  store,
		Chain:  llm.NewChain(nil, llm.DefaultRetryConfig()),
		Config: orchestrator.DefaultConfig(),
	}
}

func TestRunCycleDryRunSkipsReconcileAndCommit(t *testing.T) {
	store := newTestStore(t)
	r := &Runner{
		Store:        store,
		Orchestrator: emptyOrchestrator(t, store),
		Cfg:          Config{DryRun: true},
	}

	if err := r.runCycle(context.Background(), 1, time.Now().UTC()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	// Reconciler and Commit are both nil; a non-panic return proves
	// dry-run never touched either.
}

func TestRunCycleNoPushReconcilesButDoesNotCommit(t *testing.T) {
	store := newTestStore(t)
	rc := &reconciler.Reconciler{Store: store, Config: reconciler.DefaultConfig()}
	r := &Runner{
		Store:        store,
		Orchestrator: emptyOrchestrator(t, store),
		Reconciler:   rc,
		Cfg:          Config{NoPush: true},
	}

	if err := r.runCycle(context.Background(), 1, time.Now().UTC()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	// Commit is nil; reaching here without a panic proves no-push never
	// called it, while Reconcile still ran inside runCycle.
}

func TestCheckResurrectionsPromotesAgentThroughRunner(t *testing.T) {
	store := newTestStore(t)
	rc := &reconciler.Reconciler{Store: store, Config: reconciler.DefaultConfig()}
	now := time.Now().UTC()

	if err := store.WriteAgents(types.AgentsFile{Agents: map[string]types.Agent{
		"ghost": {ID: "ghost", Status: types.AgentDormant},
	}}); err != nil {
		t.Fatalf("WriteAgents: %v", err)
	}
	if err := store.WriteChannels(types.ChannelsFile{Channels: map[string]types.Channel{}}); err != nil {
		t.Fatalf("WriteChannels: %v", err)
	}
	if err := store.WriteSummons(types.SummonsFile{Summons: []types.Summon{
		{Target: "ghost", CreatedAt: now.Add(-time.Hour), Status: types.SummonActive},
	}}); err != nil {
		t.Fatalf("WriteSummons: %v", err)
	}
	if err := store.WritePokes(types.PokesFile{Pokes: []types.PokeEntry{
		{From: "a1", To: "ghost", Timestamp: now.Add(-time.Minute)},
		{From: "a2", To: "ghost", Timestamp: now.Add(-time.Minute)},
		{From: "a3", To: "ghost", Timestamp: now.Add(-time.Minute)},
	}}); err != nil {
		t.Fatalf("WritePokes: %v", err)
	}

	r := &Runner{Store: store, Reconciler: rc, Cfg: Config{ResurrectThreshold: 3}}
	r.checkResurrections(now)

	agents, err := store.ReadAgents()
	if err != nil {
		t.Fatalf("ReadAgents: %v", err)
	}
	if agents.Agents["ghost"].Status != types.AgentActive {
		t.Fatalf("expected ghost active after resurrection check, got %s", agents.Agents["ghost"].Status)
	}
}

func TestRecomputeTrendingWritesTrendingFile(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	if err := store.WriteAgents(types.AgentsFile{Agents: map[string]types.Agent{}}); err != nil {
		t.Fatalf("WriteAgents: %v", err)
	}
	if err := store.WriteChannels(types.ChannelsFile{Channels: map[string]types.Channel{
		"code": {Slug: "code", TargetRatio: 1},
	}}); err != nil {
		t.Fatalf("WriteChannels: %v", err)
	}
	if err := store.WritePostedLog(types.PostedLogFile{Posts: []types.PostMirror{
		{Number: 1, ChannelSlug: "code", CreatedAt: now.Add(-time.Hour)},
		{Number: 2, ChannelSlug: "code", CreatedAt: now.Add(-2 * time.Hour)},
	}}); err != nil {
		t.Fatalf("WritePostedLog: %v", err)
	}

	r := &Runner{
		Store:        store,
		Orchestrator: &orchestrator.Orchestrator{Config: orchestrator.DefaultConfig()},
	}
	r.recomputeTrending(now)

	trending, err := store.ReadTrending()
	if err != nil {
		t.Fatalf("ReadTrending: %v", err)
	}
	if len(trending.Channels) != 1 || trending.Channels[0].ChannelSlug != "code" {
		t.Fatalf("expected one trending entry for 'code', got %+v", trending.Channels)
	}
	if trending.Channels[0].Count72h != 2 {
		t.Fatalf("Count72h = %d, want 2", trending.Channels[0].Count72h)
	}
}

func TestStatePathsJoinsStateDir(t *testing.T) {
	r := &Runner{Cfg: Config{StateDirRelToRepo: "state"}}
	paths := r.statePaths()
	if len(paths) != len(stateFileNames) {
		t.Fatalf("expected %d paths, got %d", len(stateFileNames), len(paths))
	}
	if paths[0] != filepath.Join("state", "agents.json") {
		t.Fatalf("paths[0] = %q, want state/agents.json", paths[0])
	}
}

func TestStopRequestedDetectsFile(t *testing.T) {
	dir := t.TempDir()
	stopPath := filepath.Join(dir, "STOP")
	r := &Runner{Cfg: Config{StopFilePath: stopPath}}

	if r.stopRequested() {
		t.Fatal("expected stopRequested false before the file exists")
	}
	if err := os.WriteFile(stopPath, []byte("stop"), 0o644); err != nil {
		t.Fatalf("write stop file: %v", err)
	}
	if !r.stopRequested() {
		t.Fatal("expected stopRequested true once the file exists")
	}
}

func TestCheckStartupRequiresAProvider(t *testing.T) {
	r := &Runner{}
	err := r.CheckStartup(context.Background(), false, "")
	if err == nil {
		t.Fatal("expected ErrAllProvidersUnavailable")
	}
}

type fakeForgeReader struct {
	err error
}

func (f fakeForgeReader) ListRecentDiscussions(ctx context.Context, channelSlug string, limit int) ([]types.PostMirror, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func TestCheckStartupProbesForgeReachability(t *testing.T) {
	r := &Runner{ForgeReader: fakeForgeReader{err: context.DeadlineExceeded}}
	err := r.CheckStartup(context.Background(), true, "code")
	if err == nil {
		t.Fatal("expected forge unreachable error")
	}

	r2 := &Runner{ForgeReader: fakeForgeReader{}}
	if err := r2.CheckStartup(context.Background(), true, "code"); err != nil {
		t.Fatalf("CheckStartup: %v", err)
	}
}

func TestDryRunForgeFabricatesResponses(t *testing.T) {
	d := DryRunForge{}
	post, err := d.CreateDiscussion(context.Background(), "a1", "code", "title", "body")
	if err != nil {
		t.Fatalf("CreateDiscussion: %v", err)
	}
	if post.Number != -1 || post.AuthorID != "a1" {
		t.Fatalf("unexpected dry-run post: %+v", post)
	}

	if _, err := d.AddComment(context.Background(), "a1", 1, "body"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
}
