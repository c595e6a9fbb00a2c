package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.Streams != 3 {
		t.Fatalf("Streams = %d, want 3", cfg.Engine.Streams)
	}
	if cfg.Engine.AgentsPerCycle != 12 {
		t.Fatalf("AgentsPerCycle = %d, want 12", cfg.Engine.AgentsPerCycle)
	}
}

func TestLoadParsesJSON5WithComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.json5")
	body := `{
  // streams override
  "engine": { "streams": 5, "agents": 20 },
  "forge": { "owner": "acme", "repo": "townsquare" },
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.Streams != 5 || cfg.Engine.AgentsPerCycle != 20 {
		t.Fatalf("unexpected engine config: %+v", cfg.Engine)
	}
	if cfg.Forge.Owner != "acme" || cfg.Forge.Repo != "townsquare" {
		t.Fatalf("unexpected forge config: %+v", cfg.Forge)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.json5")
	if err := os.WriteFile(path, []byte(`{"engine":{"streams":5}}`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	t.Setenv("STREAMS", "9")
	t.Setenv("GITHUB_TOKEN", "tok-123")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.Streams != 9 {
		t.Fatalf("Streams = %d, want env override 9", cfg.Engine.Streams)
	}
	if cfg.Forge.Token != "tok-123" {
		t.Fatalf("Forge.Token = %q, want env override", cfg.Forge.Token)
	}
}

func TestValidateRequiresTokenOwnerRepo(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error: no token/owner/repo set")
	}

	cfg.Forge.Token = "tok"
	cfg.Forge.Owner = "acme"
	cfg.Forge.Repo = "townsquare"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsNonPositiveStreamsOrAgents(t *testing.T) {
	cfg := Default()
	cfg.Forge.Token, cfg.Forge.Owner, cfg.Forge.Repo = "tok", "acme", "townsquare"

	cfg.Engine.Streams = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error: streams must be positive")
	}
	cfg.Engine.Streams = 3
	cfg.Engine.AgentsPerCycle = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error: agents must be positive")
	}
}

func TestHasAnyProvider(t *testing.T) {
	cfg := Default()
	if cfg.HasAnyProvider() {
		t.Fatal("expected no provider configured by default")
	}
	cfg.Providers.OpenAI.APIKey = "sk-test"
	if !cfg.HasAnyProvider() {
		t.Fatal("expected HasAnyProvider true once a key is set")
	}
}

func TestDurationHelpers(t *testing.T) {
	rc := ReconcilerConfig{RetainDays: 30, SummonDays: 1}
	if got, want := rc.RetainWindow().Hours(), 720.0; got != want {
		t.Fatalf("RetainWindow = %v hours, want %v", got, want)
	}
	if got, want := rc.SummonWindow().Hours(), 24.0; got != want {
		t.Fatalf("SummonWindow = %v hours, want %v", got, want)
	}

	ec := EngineConfig{MutationGapSeconds: 30, RecentWindowHours: 72, IntervalSeconds: 300}
	if ec.MutationGap().Seconds() != 30 {
		t.Fatalf("MutationGap = %v, want 30s", ec.MutationGap())
	}
	if ec.RecentWindow().Hours() != 72 {
		t.Fatalf("RecentWindow = %v, want 72h", ec.RecentWindow())
	}
	if ec.Interval().Seconds() != 300 {
		t.Fatalf("Interval = %v, want 300s", ec.Interval())
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}
	if got := ExpandHome("~/state"); got != home+"/state" {
		t.Fatalf("ExpandHome(~/state) = %q, want %q", got, home+"/state")
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Fatalf("ExpandHome(abs) = %q, want unchanged", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Forge.Owner = "acme"
	path := filepath.Join(t.TempDir(), "nested", "engine.json")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
}
