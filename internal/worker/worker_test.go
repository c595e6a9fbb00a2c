package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/forgepulse/autonomy-engine/internal/archetype"
	"github.com/forgepulse/autonomy-engine/internal/decision"
	"github.com/forgepulse/autonomy-engine/internal/forge"
	"github.com/forgepulse/autonomy-engine/internal/llm"
	"github.com/forgepulse/autonomy-engine/pkg/types"
)

type fakeProvider struct {
	content string
}

func (f *fakeProvider) Name() string        { return "fake" }
func (f *fakeProvider) DefaultModel() string { return "fake-model" }
func (f *fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: f.content}, nil
}

func fastChain(content string) *llm.Chain {
	return llm.NewChain([]llm.Provider{&fakeProvider{content: content}}, llm.RetryConfig{
		MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond,
	})
}

type fakeForge struct {
	mu             sync.Mutex
	createdTitles  []string
	commentedPosts []int
	reactedPosts   []int
	emittedIssues  []string
}

func (f *fakeForge) CreateDiscussion(ctx context.Context, authorID, channelSlug, title, body string) (types.PostMirror, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdTitles = append(f.createdTitles, title)
	return types.PostMirror{Number: 42, Title: title, AuthorID: authorID, ChannelSlug: channelSlug}, nil
}

func (f *fakeForge) AddComment(ctx context.Context, authorID string, number int, body string) (forge.CommentRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commentedPosts = append(f.commentedPosts, number)
	return forge.CommentRef{ID: "c1"}, nil
}

func (f *fakeForge) AddReaction(ctx context.Context, number int, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactedPosts = append(f.reactedPosts, number)
	return nil
}

func (f *fakeForge) EmitIssue(ctx context.Context, actionKind, payload string) (forge.IssueRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emittedIssues = append(f.emittedIssues, actionKind)
	return forge.IssueRef{Number: 7}, nil
}

func baseDeps(chain *llm.Chain, fc *fakeForge) Deps {
	reg := archetype.Registry{
		"poster": archetype.Archetype{ActionWeights: map[string]float64{"post": 1.0}},
	}
	return Deps{
		Chain:      chain,
		Forge:      fc,
		Archetypes: reg,
		Pulse: types.Pulse{
			Channels: []types.ChannelPulse{{Slug: "code", Deficit: 1}},
		},
		History:          func(string) decision.History { return decision.History{} },
		Now:              time.Now().UTC(),
		SeedBase:         1,
		Params:           decision.DefaultParams(),
		MaxContentTokens: 500,
	}
}

func TestStreamRunCreatesPostOnSuccess(t *testing.T) {
	fc := &fakeForge{}
	deps := baseDeps(fastChain(`{"title":"A new idea","body":"some body"}`), fc)

	s := New(0, deps)
	agent := types.Agent{ID: "a1", Archetype: "poster"}
	results := s.Run(context.Background(), []types.Agent{agent})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	created, ok := results[0].(types.Created)
	if !ok {
		t.Fatalf("expected Created result, got %#v", results[0])
	}
	if created.Entry.Number != 42 {
		t.Fatalf("expected forge-assigned number 42, got %d", created.Entry.Number)
	}
	if len(fc.createdTitles) != 1 {
		t.Fatalf("expected exactly one CreateDiscussion call, got %d", len(fc.createdTitles))
	}
}

func TestStreamRunSkipsDuplicateTitle(t *testing.T) {
	fc := &fakeForge{}
	deps := baseDeps(fastChain(`{"title":"Echoed Title","body":"b"}`), fc)
	deps.History = func(string) decision.History {
		return decision.History{RecentTitles: []string{"Echoed Title"}}
	}

	s := New(0, deps)
	agent := types.Agent{ID: "a1", Archetype: "poster"}
	results := s.Run(context.Background(), []types.Agent{agent})

	skipped, ok := results[0].(types.Skipped)
	if !ok {
		t.Fatalf("expected Skipped result, got %#v", results[0])
	}
	if skipped.Reason == "" {
		t.Fatal("expected a reason for the skip")
	}
	if len(fc.createdTitles) != 0 {
		t.Fatal("expected no CreateDiscussion call for a duplicate title")
	}
}

func TestStreamRunSkipsUnknownArchetype(t *testing.T) {
	fc := &fakeForge{}
	deps := baseDeps(fastChain(`{"title":"x","body":"y"}`), fc)

	s := New(0, deps)
	agent := types.Agent{ID: "a1", Archetype: "nonexistent"}
	results := s.Run(context.Background(), []types.Agent{agent})

	if _, ok := results[0].(types.Skipped); !ok {
		t.Fatalf("expected Skipped for unknown archetype, got %#v", results[0])
	}
}

func TestStreamRunRecordsFailedOnSchemaViolation(t *testing.T) {
	fc := &fakeForge{}
	deps := baseDeps(fastChain(`not json at all`), fc)

	s := New(0, deps)
	agent := types.Agent{ID: "a1", Archetype: "poster"}
	results := s.Run(context.Background(), []types.Agent{agent})

	failed, ok := results[0].(types.Failed)
	if !ok {
		t.Fatalf("expected Failed result, got %#v", results[0])
	}
	if failed.Error != types.ErrSchemaViolation {
		t.Fatalf("expected schema violation, got %q", failed.Error)
	}
}

func TestStreamRunSkipsRemainingAgentsAfterCancellation(t *testing.T) {
	fc := &fakeForge{}
	deps := baseDeps(fastChain(`{"title":"x","body":"y"}`), fc)

	s := New(0, deps)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agents := []types.Agent{
		{ID: "a1", Archetype: "poster"},
		{ID: "a2", Archetype: "poster"},
	}
	results := s.Run(ctx, agents)

	if len(results) != 2 {
		t.Fatalf("expected one result per agent even when cancelled, got %d", len(results))
	}
	for _, r := range results {
		skipped, ok := r.(types.Skipped)
		if !ok {
			t.Fatalf("expected Skipped after cancellation, got %#v", r)
		}
		if skipped.Reason == "" {
			t.Fatal("expected a cancellation reason")
		}
	}
	if len(fc.createdTitles) != 0 {
		t.Fatal("expected no mutations to reach the forge after cancellation")
	}
}

func TestStreamRunCommentTargetsUnderDiscussedPost(t *testing.T) {
	fc := &fakeForge{}
	deps := baseDeps(fastChain(`{"body":"a thoughtful reply"}`), fc)
	deps.Archetypes = archetype.Registry{
		"commenter": archetype.Archetype{ActionWeights: map[string]float64{"comment": 1.0}},
	}
	deps.Pulse = types.Pulse{UnderDiscussed: []types.UnderDiscussedPost{
		{Post: types.PostMirror{Number: 7, Title: "Old thread", AuthorID: "a9"}, ChannelSlug: "code", RatioGap: 2},
	}}

	s := New(0, deps)
	agent := types.Agent{ID: "a1", Archetype: "commenter"}
	results := s.Run(context.Background(), []types.Agent{agent})

	commented, ok := results[0].(types.Commented)
	if !ok {
		t.Fatalf("expected Commented result, got %#v", results[0])
	}
	if commented.PostNumber != 7 {
		t.Fatalf("expected comment on post 7, got %d", commented.PostNumber)
	}
	if commented.ParentAuthorID != "a9" {
		t.Fatalf("expected parent author a9, got %q", commented.ParentAuthorID)
	}
	if len(fc.commentedPosts) != 1 || fc.commentedPosts[0] != 7 {
		t.Fatalf("expected exactly one AddComment call for post 7, got %v", fc.commentedPosts)
	}
}
