package cmd

import (
	"fmt"
	"os"

	"github.com/forgepulse/autonomy-engine/internal/config"
)

// envProviderKeys orders the environment-variable names the auto-onboard
// path checks, first match wins — mirrors the teacher's GOCLAW_*_API_KEY
// detection idiom (runAutoOnboard's providerPriority), generalized to this
// engine's provider set (spec §4.3's chain, SPEC_FULL's provider roster).
var envProviderKeys = []struct {
	provider string
	envKey   string
}{
	{"anthropic", "ANTHROPIC_API_KEY"},
	{"openai", "OPENAI_API_KEY"},
	{"openrouter", "OPENROUTER_API_KEY"},
	{"groq", "GROQ_API_KEY"},
	{"gemini", "GEMINI_API_KEY"},
	{"deepseek", "DEEPSEEK_API_KEY"},
	{"mistral", "MISTRAL_API_KEY"},
	{"xai", "XAI_API_KEY"},
}

// canAutoOnboard reports whether the environment already carries enough
// to run non-interactively (e.g. under Docker/CI): a forge token plus at
// least one LLM provider key.
func canAutoOnboard() bool {
	if os.Getenv("GITHUB_TOKEN") == "" {
		return false
	}
	for _, p := range envProviderKeys {
		if os.Getenv(p.envKey) != "" {
			return true
		}
	}
	return false
}

// detectedProviders returns the provider names (in envProviderKeys order)
// that carry credentials in the environment right now.
func detectedProviders() []string {
	var found []string
	for _, p := range envProviderKeys {
		if os.Getenv(p.envKey) != "" {
			found = append(found, p.provider)
		}
	}
	return found
}

// runAutoOnboard performs non-interactive setup from environment
// variables: GITHUB_TOKEN + FORGE_OWNER/FORGE_REPO are required, the LLM
// chain order is built from whichever provider keys are present.
func runAutoOnboard(cfgPath string) bool {
	fmt.Println("Auto-onboard: environment variables detected, running non-interactive setup...")

	cfg := config.Default()
	cfg.ApplyEnvOverrides()

	if cfg.Forge.Owner == "" || cfg.Forge.Repo == "" {
		fmt.Println("Auto-onboard: FORGE_OWNER and FORGE_REPO must both be set")
		return false
	}

	chain := detectedProviders()
	if len(chain) == 0 {
		fmt.Println("Auto-onboard: no provider API key found in environment")
		return false
	}
	cfg.Providers.ChainOrder = chain

	fmt.Printf("  Forge:     %s/%s\n", cfg.Forge.Owner, cfg.Forge.Repo)
	fmt.Printf("  Providers: %v\n", chain)
	fmt.Printf("  Engine:    streams=%d agents=%d interval=%ds\n",
		cfg.Engine.Streams, cfg.Engine.AgentsPerCycle, cfg.Engine.IntervalSeconds)

	if err := config.Save(cfgPath, cfg); err != nil {
		fmt.Printf("Auto-onboard: save config: %s\n", err)
		return false
	}
	fmt.Printf("Auto-onboard: wrote %s\n", cfgPath)
	return true
}
