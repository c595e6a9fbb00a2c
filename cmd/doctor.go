package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgepulse/autonomy-engine/internal/config"
	"github.com/forgepulse/autonomy-engine/internal/forge"
	"github.com/forgepulse/autonomy-engine/internal/pacer"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, credentials, and forge reachability",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("autonomy-engine doctor")
	fmt.Printf("  Version: %s\n", Version)
	fmt.Printf("  OS:      %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:      %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:  %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (using defaults + env)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  LLM providers:")
	checkProvider("Anthropic", cfg.Providers.Anthropic.APIKey)
	checkProvider("OpenAI", cfg.Providers.OpenAI.APIKey)
	checkProvider("OpenRouter", cfg.Providers.OpenRouter.APIKey)
	checkProvider("Groq", cfg.Providers.Groq.APIKey)
	checkProvider("Gemini", cfg.Providers.Gemini.APIKey)
	checkProvider("DeepSeek", cfg.Providers.DeepSeek.APIKey)
	checkProvider("Mistral", cfg.Providers.Mistral.APIKey)
	checkProvider("XAI", cfg.Providers.XAI.APIKey)
	if !cfg.HasAnyProvider() {
		fmt.Println("    (!) no provider has credentials — startup will fail with exit code 2")
	}

	fmt.Println()
	fmt.Println("  Forge:")
	fmt.Printf("    %-12s %s\n", "Repository:", fmt.Sprintf("%s/%s", cfg.Forge.Owner, cfg.Forge.Repo))
	checkProvider("Token", cfg.Forge.Token)
	if cfg.Forge.Owner == "" || cfg.Forge.Repo == "" || cfg.Forge.Token == "" {
		fmt.Println("    (!) forge.owner/forge.repo/GITHUB_TOKEN incomplete — see config Validate errors")
	} else {
		client := forge.New(cfg.Forge.Owner, cfg.Forge.Repo, cfg.Forge.Token, pacer.NullPacer{})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := client.ListRecentDiscussions(ctx, "", 1); err != nil {
			fmt.Printf("    %-12s UNREACHABLE (%s)\n", "Reachability:", err)
		} else {
			fmt.Printf("    %-12s OK\n", "Reachability:")
		}
	}

	fmt.Println()
	fmt.Println("  State:")
	fmt.Printf("    %-14s %s", "Directory:", cfg.Engine.StateDir)
	if _, err := os.Stat(cfg.Engine.StateDir); err != nil {
		fmt.Println(" (NOT FOUND — will be created on first run)")
	} else {
		fmt.Println(" (OK)")
	}
	fmt.Printf("    %-14s %s", "Archetypes:", cfg.Engine.ArchetypeFile)
	if _, err := os.Stat(cfg.Engine.ArchetypeFile); err != nil {
		fmt.Println(" (NOT FOUND)")
	} else {
		fmt.Println(" (OK)")
	}

	fmt.Println()
	fmt.Println("  Ambient:")
	if cfg.Notify.DiscordWebhookURL == "" {
		fmt.Println("    Ops alerts:    disabled (NOTIFY_DISCORD_WEBHOOK_URL unset)")
	} else {
		fmt.Println("    Ops alerts:    configured")
	}
	if cfg.Telemetry.Enabled {
		fmt.Printf("    Tracing:       enabled (%s)\n", cfg.Telemetry.Endpoint)
	} else {
		fmt.Println("    Tracing:       disabled")
	}

	fmt.Println()
	fmt.Println("  External tools:")
	checkBinary("git")

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkProvider(name, secret string) {
	if secret == "" {
		fmt.Printf("    %-12s (not configured)\n", name+":")
		return
	}
	masked := secret
	if len(secret) > 8 {
		masked = secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
	} else {
		masked = strings.Repeat("*", len(secret))
	}
	fmt.Printf("    %-12s %s\n", name+":", masked)
}

func checkBinary(name string) {
	path, err := exec.LookPath(name)
	if err != nil {
		fmt.Printf("    %-12s NOT FOUND\n", name+":")
	} else {
		fmt.Printf("    %-12s %s\n", name+":", path)
	}
}
