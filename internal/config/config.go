// Package config loads the engine's root Config: state/forge/provider
// wiring plus every tunable spec.md names (T_gap, T_cycle, T_retain,
// T_summon, streams/agents/cycles/interval defaults).
//
// Grounded on the teacher's internal/config/config.go (struct shape,
// `mu sync.RWMutex` guarding concurrent field access, JSON tags
// throughout) and config_load.go (Default / Load / applyEnvOverrides /
// ApplyEnvOverrides split, json5 for the file format, ExpandHome for
// `~`-prefixed paths). ProvidersConfig/ProviderConfig is kept close to
// the teacher's shape — the Decision Kernel's chain (C3) needs exactly
// the same api_key/api_base pair per named provider the teacher already
// modeled for its own multi-provider agent backend.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config is the engine's root configuration.
type Config struct {
	Engine     EngineConfig     `json:"engine"`
	Forge      ForgeConfig      `json:"forge"`
	Providers  ProvidersConfig  `json:"providers"`
	Reconciler ReconcilerConfig `json:"reconciler"`
	SafeCommit SafeCommitConfig `json:"safe_commit"`
	Telemetry  TelemetryConfig  `json:"telemetry,omitempty"`
	Notify     NotifyConfig     `json:"notify,omitempty"`

	mu sync.RWMutex
}

// EngineConfig bundles the orchestrator-runner tunables spec §6 names.
type EngineConfig struct {
	StateDir        string `json:"state_dir"`
	ArchetypeFile   string `json:"archetype_file"`
	Streams         int    `json:"streams"`          // K, default 3
	AgentsPerCycle  int    `json:"agents"`           // N, default 12
	Cycles          int    `json:"cycles"`           // C, 0 = unbounded
	IntervalSeconds int    `json:"interval_seconds"` // S, default 300
	DryRun          bool   `json:"dry_run,omitempty"`
	NoPush          bool   `json:"no_push,omitempty"`
	MaxContentTokens int   `json:"max_content_tokens"`
	GitConcurrency  int    `json:"git_concurrency"`
	StopFile        string `json:"stop_file"`

	// RecentWindowHours backs the Pulse Builder / dedup lookback (spec
	// §4.5/§4.6), independent of the Reconciler's T_retain.
	RecentWindowHours int `json:"recent_window_hours"`

	// MutationGapSeconds is T_gap, the Mutation Pacer's minimum interval
	// between forge-mutating calls (spec §4.2).
	MutationGapSeconds int `json:"mutation_gap_seconds"`
}

// ForgeConfig names the repository the Forge Client targets. Token is
// never read from the config file — GITHUB_TOKEN only (spec §6).
type ForgeConfig struct {
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	CategoryID string `json:"category_id"` // GraphQL node id of a Discussions category; stored only, the forge client resolves each post's category from its channel slug
	Token      string `json:"-"`
}

// ProvidersConfig maps provider name to its credentials, plus the
// failover order the LLM Backend Chain (C3) is built from.
type ProvidersConfig struct {
	ChainOrder []string       `json:"chain_order"`
	Anthropic  ProviderConfig `json:"anthropic"`
	OpenAI     ProviderConfig `json:"openai"`
	OpenRouter ProviderConfig `json:"openrouter"`
	Groq       ProviderConfig `json:"groq"`
	Gemini     ProviderConfig `json:"gemini"`
	DeepSeek   ProviderConfig `json:"deepseek"`
	Mistral    ProviderConfig `json:"mistral"`
	XAI        ProviderConfig `json:"xai"`
}

// ProviderConfig is one LLM backend's credentials. APIKey is only ever
// populated from an environment variable, never persisted to disk.
type ProviderConfig struct {
	APIKey  string `json:"-"`
	APIBase string `json:"api_base,omitempty"`
	Model   string `json:"model,omitempty"`
}

// ReconcilerConfig mirrors internal/reconciler.Config's tunables so the
// file format and the package's own defaults never drift apart.
type ReconcilerConfig struct {
	RetainDays      int `json:"retain_days"`        // T_retain
	SummonDays      int `json:"summon_window_days"` // T_summon
	SummonThreshold int `json:"summon_threshold"`

	// ResurrectThreshold is K_resurrect (SPEC_FULL.md's Open Question
	// resolution #1): the distinct-poker count, accumulated within a
	// summon's window, that the Continuous Runner's periodic
	// resurrection check requires before flipping a dormant agent back
	// to active. Always >= SummonThreshold, since a summon must exist
	// before it can be resolved.
	ResurrectThreshold int `json:"resurrect_threshold"`
}

// SafeCommitConfig mirrors internal/safecommit.Config's tunables.
type SafeCommitConfig struct {
	MaxAttempts   int    `json:"max_attempts"`
	Remote        string `json:"remote"`
	Branch        string `json:"branch"`
	CommitMessage string `json:"commit_message"`
}

// TelemetryConfig configures OTLP span export for traces (ambient,
// opt-in — ungated by any spec.md Non-goal, since observability of the
// engine's own behavior is ambient stack, not a dropped feature).
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	Insecure    bool   `json:"insecure,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
}

// NotifyConfig configures the ops Discord webhook alerter (ambient).
type NotifyConfig struct {
	DiscordWebhookURL string `json:"-"`
}

// Default returns a Config with the baseline values spec §6 documents.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			StateDir:           "./state",
			ArchetypeFile:      "./archetypes.yaml",
			Streams:            3,
			AgentsPerCycle:     12,
			Cycles:             0,
			IntervalSeconds:    300,
			MaxContentTokens:   800,
			GitConcurrency:     2,
			StopFile:           "./state/STOP",
			RecentWindowHours:  72,
			MutationGapSeconds: 30,
		},
		Providers: ProvidersConfig{
			ChainOrder: []string{"anthropic", "openai", "openrouter"},
		},
		Reconciler: ReconcilerConfig{
			RetainDays:         30,
			SummonDays:         1,
			SummonThreshold:    3,
			ResurrectThreshold: 10,
		},
		SafeCommit: SafeCommitConfig{
			MaxAttempts:   5,
			Remote:        "origin",
			Branch:        "main",
			CommitMessage: "state: cycle commit",
		},
	}
}

// HasAnyProvider reports whether at least one configured LLM provider
// carries an API key (spec §4.3 "absence of credentials causes the
// chain to skip that provider at startup").
func (c *Config) HasAnyProvider() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p := c.Providers
	return p.Anthropic.APIKey != "" ||
		p.OpenAI.APIKey != "" ||
		p.OpenRouter.APIKey != "" ||
		p.Groq.APIKey != "" ||
		p.Gemini.APIKey != "" ||
		p.DeepSeek.APIKey != "" ||
		p.Mistral.APIKey != "" ||
		p.XAI.APIKey != ""
}

// Validate checks the config is complete enough to run a cycle,
// returning the first missing requirement it finds (spec §6 exit code 1
// is "configuration error").
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Forge.Token == "" {
		return fmt.Errorf("config: GITHUB_TOKEN is required")
	}
	if c.Forge.Owner == "" || c.Forge.Repo == "" {
		return fmt.Errorf("config: forge.owner and forge.repo are required")
	}
	if c.Engine.StateDir == "" {
		return fmt.Errorf("config: engine.state_dir is required")
	}
	if c.Engine.Streams < 1 {
		return fmt.Errorf("config: engine.streams must be positive")
	}
	if c.Engine.AgentsPerCycle < 1 {
		return fmt.Errorf("config: engine.agents must be positive")
	}
	return nil
}

// RetainWindow converts ReconcilerConfig.RetainDays into a time.Duration
// for internal/reconciler.Config.
func (rc ReconcilerConfig) RetainWindow() time.Duration {
	return time.Duration(rc.RetainDays) * 24 * time.Hour
}

// SummonWindow converts ReconcilerConfig.SummonDays into a
// time.Duration for internal/reconciler.Config.
func (rc ReconcilerConfig) SummonWindow() time.Duration {
	return time.Duration(rc.SummonDays) * 24 * time.Hour
}

// MutationGap converts EngineConfig.MutationGapSeconds into a
// time.Duration for internal/pacer.New.
func (ec EngineConfig) MutationGap() time.Duration {
	return time.Duration(ec.MutationGapSeconds) * time.Second
}

// RecentWindow converts EngineConfig.RecentWindowHours into a
// time.Duration for internal/orchestrator.Config.
func (ec EngineConfig) RecentWindow() time.Duration {
	return time.Duration(ec.RecentWindowHours) * time.Hour
}

// Interval converts EngineConfig.IntervalSeconds into a time.Duration
// for internal/runner's cycle ticker.
func (ec EngineConfig) Interval() time.Duration {
	return time.Duration(ec.IntervalSeconds) * time.Second
}

// Save writes cfg as indented JSON to path, creating parent directories
// as needed. Used by the `onboard` command to persist the wizard's
// answers.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// ExpandHome replaces a leading ~ with the user's home directory,
// matching the teacher's ExpandHome (used here for StateDir/ArchetypeFile
// values an operator may type with a `~` shorthand during onboarding).
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
