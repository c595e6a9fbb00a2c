package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/forgepulse/autonomy-engine/internal/config"
)

func onboardCmd() *cobra.Command {
	var auto bool
	c := &cobra.Command{
		Use:   "onboard",
		Short: "Interactively (or automatically) write an engine config file",
		Run: func(cmd *cobra.Command, args []string) {
			cfgPath := resolveConfigPath()
			if auto || canAutoOnboard() {
				if !runAutoOnboard(cfgPath) {
					exitWithCode(1)
				}
				return
			}
			if !runInteractiveOnboard(cfgPath) {
				exitWithCode(1)
			}
		},
	}
	c.Flags().BoolVar(&auto, "auto", false, "skip the wizard and detect everything from the environment")
	return c
}

// runInteractiveOnboard walks the operator through the fields config.Save
// needs, using huh the same way a terminal-first CLI collects structured
// input: one form, grouped fields, validated inline.
func runInteractiveOnboard(cfgPath string) bool {
	cfg := config.Default()
	cfg.ApplyEnvOverrides()

	var streamsStr = strconv.Itoa(cfg.Engine.Streams)
	var agentsStr = strconv.Itoa(cfg.Engine.AgentsPerCycle)
	var intervalStr = strconv.Itoa(cfg.Engine.IntervalSeconds)
	var provider string
	if len(cfg.Providers.ChainOrder) > 0 {
		provider = cfg.Providers.ChainOrder[0]
	}

	positiveInt := func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return fmt.Errorf("must be a positive integer")
		}
		return nil
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Forge owner").
				Description("GitHub organization or user that owns the target repo").
				Value(&cfg.Forge.Owner).
				Validate(requiredString),
			huh.NewInput().
				Title("Forge repo").
				Value(&cfg.Forge.Repo).
				Validate(requiredString),
			huh.NewInput().
				Title("Discussions category node ID").
				Description("GraphQL node id of a Discussions category (saved in config; posts go to the category named after their channel)").
				Value(&cfg.Forge.CategoryID),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Primary LLM provider").
				Description("GITHUB_TOKEN and this provider's API key must be set via environment variables before the engine runs").
				Options(
					huh.NewOption("anthropic", "anthropic"),
					huh.NewOption("openai", "openai"),
					huh.NewOption("openrouter", "openrouter"),
					huh.NewOption("groq", "groq"),
					huh.NewOption("gemini", "gemini"),
					huh.NewOption("deepseek", "deepseek"),
					huh.NewOption("mistral", "mistral"),
					huh.NewOption("xai", "xai"),
				).
				Value(&provider),
		),
		huh.NewGroup(
			huh.NewInput().Title("Streams (K)").Value(&streamsStr).Validate(positiveInt),
			huh.NewInput().Title("Agents per cycle (N)").Value(&agentsStr).Validate(positiveInt),
			huh.NewInput().Title("Cycle interval (seconds)").Value(&intervalStr).Validate(positiveInt),
			huh.NewConfirm().Title("Start in dry-run mode?").Value(&cfg.Engine.DryRun),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Printf("onboard: %s\n", err)
		return false
	}

	cfg.Engine.Streams, _ = strconv.Atoi(streamsStr)
	cfg.Engine.AgentsPerCycle, _ = strconv.Atoi(agentsStr)
	cfg.Engine.IntervalSeconds, _ = strconv.Atoi(intervalStr)
	cfg.Providers.ChainOrder = append([]string{provider}, remove(cfg.Providers.ChainOrder, provider)...)

	if err := config.Save(cfgPath, cfg); err != nil {
		fmt.Printf("onboard: save config: %s\n", err)
		return false
	}
	fmt.Printf("onboard: wrote %s\n", cfgPath)
	if err := cfg.Validate(); err != nil {
		fmt.Printf("onboard: warning: %s (set the missing env vars before running)\n", err)
	}
	return true
}

func requiredString(s string) error {
	if s == "" {
		return fmt.Errorf("required")
	}
	return nil
}

func remove(ss []string, target string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
