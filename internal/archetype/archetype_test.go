package archetype

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func writeArchetypeFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "archetypes.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadValidArchetypesSucceeds(t *testing.T) {
	path := writeArchetypeFile(t, `
archetypes:
  - name: philosopher
    action_weights:
      post: 0.35
      comment: 0.45
      lurk: 0.20
    channel_affinity:
      code: 1.5
    system_prompt_style: "speaks in questions"
  - name: curator
    action_weights:
      post: 0.15
      comment: 0.70
      lurk: 0.15
`)
	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(reg) != 2 {
		t.Fatalf("expected 2 archetypes, got %d", len(reg))
	}
	phil, ok := reg.Get("philosopher")
	if !ok {
		t.Fatal("expected philosopher archetype")
	}
	if phil.ChannelWeight("code") != 1.5 {
		t.Fatalf("ChannelWeight(code) = %v, want 1.5", phil.ChannelWeight("code"))
	}
	if phil.ChannelWeight("unknown") != 1.0 {
		t.Fatalf("ChannelWeight(unknown) = %v, want default 1.0", phil.ChannelWeight("unknown"))
	}
}

func TestLoadRejectsWeightsNotSummingToOne(t *testing.T) {
	path := writeArchetypeFile(t, `
archetypes:
  - name: broken
    action_weights:
      post: 0.5
      comment: 0.1
      lurk: 0.1
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for action_weights summing to 0.7")
	}
}

func TestLoadRejectsDuplicateNames(t *testing.T) {
	path := writeArchetypeFile(t, `
archetypes:
  - name: dup
    action_weights: {post: 0.5, comment: 0.5}
  - name: dup
    action_weights: {post: 0.5, comment: 0.5}
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for duplicate archetype name")
	}
}

func TestWeightedPickIsDeterministicForFixedSeed(t *testing.T) {
	weights := map[string]float64{"post": 0.35, "comment": 0.45, "lurk": 0.20}

	pick := func(seed int64) string {
		rng := rand.New(rand.NewSource(seed))
		k, ok := WeightedPick(rng, weights)
		if !ok {
			t.Fatal("expected a pick")
		}
		return k
	}

	a := pick(42)
	b := pick(42)
	if a != b {
		t.Fatalf("same seed produced different picks: %q vs %q", a, b)
	}
}

func TestWeightedPickEmptyReturnsFalse(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, ok := WeightedPick(rng, map[string]float64{})
	if ok {
		t.Fatal("expected false for empty weights")
	}
}
