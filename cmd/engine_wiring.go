package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/forgepulse/autonomy-engine/internal/archetype"
	"github.com/forgepulse/autonomy-engine/internal/config"
	"github.com/forgepulse/autonomy-engine/internal/forge"
	"github.com/forgepulse/autonomy-engine/internal/llm"
	"github.com/forgepulse/autonomy-engine/internal/notify"
	"github.com/forgepulse/autonomy-engine/internal/orchestrator"
	"github.com/forgepulse/autonomy-engine/internal/pacer"
	"github.com/forgepulse/autonomy-engine/internal/reconciler"
	"github.com/forgepulse/autonomy-engine/internal/runner"
	"github.com/forgepulse/autonomy-engine/internal/safecommit"
	"github.com/forgepulse/autonomy-engine/internal/state"
	"github.com/forgepulse/autonomy-engine/internal/tracing"
	"github.com/forgepulse/autonomy-engine/internal/worker"
)

// providerBaseURLs carries the OpenAI-wire-compatible backends' default
// endpoints. anthropic and openai use their own dedicated Provider types;
// everything else in spec §4.3's chain speaks the Chat Completions
// format, so one OpenAIProvider construction covers all of them.
var providerBaseURLs = map[string]string{
	"openrouter": "https://openrouter.ai/api/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"mistral":    "https://api.mistral.ai/v1",
	"xai":        "https://api.x.ai/v1",
	"gemini":     "https://generativelanguage.googleapis.com/v1beta/openai",
}

// buildProviderChain constructs the ordered Provider list spec §4.3's
// Chain fails over across, skipping any configured name that carries no
// API key (spec §6 "absence of credentials causes the chain to skip that
// provider at startup").
func buildProviderChain(cfg *config.Config) []llm.Provider {
	var chain []llm.Provider
	for _, name := range cfg.Providers.ChainOrder {
		switch name {
		case "anthropic":
			if cfg.Providers.Anthropic.APIKey == "" {
				continue
			}
			var opts []llm.AnthropicOption
			if cfg.Providers.Anthropic.APIBase != "" {
				opts = append(opts, llm.WithAnthropicBaseURL(cfg.Providers.Anthropic.APIBase))
			}
			if cfg.Providers.Anthropic.Model != "" {
				opts = append(opts, llm.WithAnthropicModel(cfg.Providers.Anthropic.Model))
			}
			chain = append(chain, llm.NewAnthropicProvider(cfg.Providers.Anthropic.APIKey, opts...))
		case "openai":
			if cfg.Providers.OpenAI.APIKey == "" {
				continue
			}
			chain = append(chain, newOpenAICompatible(name, cfg.Providers.OpenAI))
		default:
			pc, ok := providerConfigByName(cfg, name)
			if !ok || pc.APIKey == "" {
				continue
			}
			chain = append(chain, newOpenAICompatible(name, pc))
		}
	}
	return chain
}

func newOpenAICompatible(name string, pc config.ProviderConfig) llm.Provider {
	opts := []llm.OpenAIOption{llm.WithOpenAIName(name)}
	base := pc.APIBase
	if base == "" {
		base = providerBaseURLs[name]
	}
	if base != "" {
		opts = append(opts, llm.WithOpenAIBaseURL(base))
	}
	if pc.Model != "" {
		opts = append(opts, llm.WithOpenAIModel(pc.Model))
	}
	return llm.NewOpenAIProvider(pc.APIKey, opts...)
}

func providerConfigByName(cfg *config.Config, name string) (config.ProviderConfig, bool) {
	switch name {
	case "openrouter":
		return cfg.Providers.OpenRouter, true
	case "groq":
		return cfg.Providers.Groq, true
	case "gemini":
		return cfg.Providers.Gemini, true
	case "deepseek":
		return cfg.Providers.DeepSeek, true
	case "mistral":
		return cfg.Providers.Mistral, true
	case "xai":
		return cfg.Providers.XAI, true
	default:
		return config.ProviderConfig{}, false
	}
}

// applyEngineFlagOverrides layers the CLI's --streams/--agents/--cycles/
// --interval/--dry-run/--no-push onto a loaded Config, leaving any flag
// the caller didn't set (sentinel zero/-1) at the config/env value.
func applyEngineFlagOverrides(cfg *config.Config) {
	if engineFlags.streams > 0 {
		cfg.Engine.Streams = engineFlags.streams
	}
	if engineFlags.agents > 0 {
		cfg.Engine.AgentsPerCycle = engineFlags.agents
	}
	if engineFlags.cycles >= 0 {
		cfg.Engine.Cycles = engineFlags.cycles
	}
	if engineFlags.interval > 0 {
		cfg.Engine.IntervalSeconds = engineFlags.interval
	}
	if engineFlags.dryRun {
		cfg.Engine.DryRun = true
	}
	if engineFlags.noPush {
		cfg.Engine.NoPush = true
	}
}

// builtEngine bundles everything runEngineLoop/runOneCycle need, so both
// entry points share one construction path.
type builtEngine struct {
	cfg      *config.Config
	store    *state.Store
	runner   *runner.Runner
	notifier *notify.Notifier
	shutdown tracing.ShutdownFunc
}

func buildEngineOrExit() *builtEngine {
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		exitWithCode(1)
	}
	applyEngineFlagOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		exitWithCode(1)
	}

	notifier, err := notify.New(cfg.Notify.DiscordWebhookURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "notify:", err)
		exitWithCode(1)
	}

	shutdown, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: firstNonEmpty(cfg.Telemetry.ServiceName, "autonomy-engine"),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "tracing:", err)
		exitWithCode(1)
	}

	store, err := state.New(config.ExpandHome(cfg.Engine.StateDir))
	if err != nil {
		fmt.Fprintln(os.Stderr, "state:", err)
		exitWithCode(1)
	}

	reg, err := archetype.Load(config.ExpandHome(cfg.Engine.ArchetypeFile))
	if err != nil {
		fmt.Fprintln(os.Stderr, "archetype:", err)
		exitWithCode(1)
	}

	chain := llm.NewChain(buildProviderChain(cfg), llm.DefaultRetryConfig())

	forgePacer := pacer.New(cfg.Engine.MutationGap())
	forgeClient := forge.New(cfg.Forge.Owner, cfg.Forge.Repo, cfg.Forge.Token, forgePacer)

	var forgeForOrchestrator worker.ForgeClient = forgeClient
	if cfg.Engine.DryRun {
		forgeForOrchestrator = runner.DryRunForge{}
		notifyStartup(notifier, "dry-run mode: no forge writes or safe-commit pushes will occur")
	}

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.Streams = cfg.Engine.Streams
	orchCfg.AgentsPerCycle = cfg.Engine.AgentsPerCycle
	orchCfg.RecentWindow = cfg.Engine.RecentWindow()
	orchCfg.MaxContentTokens = cfg.Engine.MaxContentTokens

	orch := &orchestrator.Orchestrator{
		Store:      store,
		Chain:      chain,
		Forge:      forgeForOrchestrator,
		Archetypes: reg,
		Config:     orchCfg,
	}

	recCfg := reconciler.DefaultConfig()
	recCfg.RetainWindow = cfg.Reconciler.RetainWindow()
	recCfg.SummonWindow = cfg.Reconciler.SummonWindow()
	recCfg.SummonThreshold = cfg.Reconciler.SummonThreshold
	rec := &reconciler.Reconciler{Store: store, Config: recCfg}

	commitCfg := safecommit.DefaultConfig(repoDirFor(cfg))
	commitCfg.MaxAttempts = cfg.SafeCommit.MaxAttempts
	commitCfg.Remote = cfg.SafeCommit.Remote
	commitCfg.Branch = cfg.SafeCommit.Branch
	commitCfg.CommitMessage = cfg.SafeCommit.CommitMessage
	commit := safecommit.New(commitCfg, cfg.Engine.GitConcurrency)

	run := &runner.Runner{
		Store:        store,
		Orchestrator: orch,
		Reconciler:   rec,
		Commit:       commit,
		ForgeReader:  forgeClient,
		Cfg: runner.Config{
			Interval:           cfg.Engine.Interval(),
			Cycles:             cfg.Engine.Cycles,
			DryRun:             cfg.Engine.DryRun,
			NoPush:             cfg.Engine.NoPush,
			StateDirRelToRepo:  stateDirRelToRepo(cfg),
			StopFilePath:       config.ExpandHome(cfg.Engine.StopFile),
			ResurrectThreshold: cfg.Reconciler.ResurrectThreshold,
			ResurrectCron:      "*/15 * * * *",
			TrendingEvery:      2,
			DriftRepairCron:    "0 */6 * * *",
			DriftRepairLimit:   100,
			ArchetypeFile:      config.ExpandHome(cfg.Engine.ArchetypeFile),
		},
	}

	return &builtEngine{cfg: cfg, store: store, runner: run, notifier: notifier, shutdown: shutdown}
}

// repoDirFor resolves the git working tree Safe-Commit operates in: the
// state directory's parent, since spec §3 models state/ as a tracked
// subtree of the forge's own repository checkout.
func repoDirFor(cfg *config.Config) string {
	return filepath.Dir(config.ExpandHome(cfg.Engine.StateDir))
}

func stateDirRelToRepo(cfg *config.Config) string {
	return filepath.Base(config.ExpandHome(cfg.Engine.StateDir))
}

func notifyStartup(n *notify.Notifier, msg string) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.Send(ctx, notify.Alert{Level: notify.LevelInfo, Title: "autonomy-engine starting", Message: msg, Source: "startup"}); err != nil && err != notify.ErrNotConfigured {
		slog.Warn("notify: startup alert failed", "error", err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
