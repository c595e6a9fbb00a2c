package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Load reads a JSON5 config file at path, falling back to Default (plus
// env overrides) when the file does not exist — a missing config file
// is not an error, only a missing required env var is (surfaced by the
// caller's Validate call).
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays environment variables onto the config.
// Env vars always win over whatever the file contained.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	envStr("GITHUB_TOKEN", &c.Forge.Token)
	envStr("FORGE_OWNER", &c.Forge.Owner)
	envStr("FORGE_REPO", &c.Forge.Repo)
	envStr("FORGE_CATEGORY_ID", &c.Forge.CategoryID)

	envStr("STATE_DIR", &c.Engine.StateDir)
	envStr("ARCHETYPE_FILE", &c.Engine.ArchetypeFile)
	envInt("STREAMS", &c.Engine.Streams)
	envInt("AGENTS_PER_CYCLE", &c.Engine.AgentsPerCycle)
	envInt("CYCLES", &c.Engine.Cycles)
	envInt("INTERVAL_SECONDS", &c.Engine.IntervalSeconds)

	envStr("ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey)
	envStr("ANTHROPIC_API_BASE", &c.Providers.Anthropic.APIBase)
	envStr("OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("OPENAI_API_BASE", &c.Providers.OpenAI.APIBase)
	envStr("OPENROUTER_API_KEY", &c.Providers.OpenRouter.APIKey)
	envStr("GROQ_API_KEY", &c.Providers.Groq.APIKey)
	envStr("GEMINI_API_KEY", &c.Providers.Gemini.APIKey)
	envStr("DEEPSEEK_API_KEY", &c.Providers.DeepSeek.APIKey)
	envStr("MISTRAL_API_KEY", &c.Providers.Mistral.APIKey)
	envStr("XAI_API_KEY", &c.Providers.XAI.APIKey)

	envStr("NOTIFY_DISCORD_WEBHOOK_URL", &c.Notify.DiscordWebhookURL)
	envStr("TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	if v := os.Getenv("TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
}

// ApplyEnvOverrides re-applies environment overrides onto an
// already-loaded Config. Call after mutating a Config in memory (e.g.
// a doctor-mode credential probe) to restore runtime secrets Default/
// Load already established.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyEnvOverrides()
}
