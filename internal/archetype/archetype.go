// Package archetype loads the data-driven agent archetypes spec §4.6 and
// §9 describe: "Archetype behavior (action weights, voice, interests,
// content-mode eligibility) is data, not code — represented as a mapping
// loaded at startup... implement this with a single archetype record the
// kernel consumes, not a class hierarchy."
//
// Grounded on internal/config/config_load.go's Load pattern (parse,
// then validate, returning an error that names the offending field) and
// on the teacher's charmbracelet/huh-adjacent preference for YAML over
// JSON for anything a human hand-edits; gopkg.in/yaml.v3 is the pack's
// established YAML library (also used by Strob0t-CodeForge's config).
package archetype

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/forgepulse/autonomy-engine/pkg/types"
)

// Archetype is the data record the Decision Kernel (C6) consumes for
// every agent whose Agent.Archetype names it (spec §4.6 step 1, step 4,
// step 5; spec GLOSSARY "a template of (action weights, voice, interests,
// system-prompt style) shared by groups of agents").
type Archetype struct {
	Name string `yaml:"name"`

	// ActionWeights must sum to 1 within 0.01 tolerance (spec §4.6 step 1).
	// Keys are "post", "comment", "vote", "poke", "lurk" (lurk maps to a
	// noop task; any other unrecognized key also degrades to noop).
	ActionWeights map[string]float64 `yaml:"action_weights"`

	// ChannelAffinity scales channel-selection weight for a post action
	// (spec §4.6 step 4); a slug absent from this map defaults to 1.0.
	ChannelAffinity map[string]float64 `yaml:"channel_affinity"`

	// ContentModeWeights governs content-mode selection for chaos-style
	// agents (spec §4.6 step 5); may be empty for non-chaos archetypes.
	ContentModeWeights map[types.ContentMode]float64 `yaml:"content_mode_weights"`

	// ReactionWeights governs reaction-kind selection for a vote action,
	// keyed by the forge's fixed 8-reaction vocabulary (spec §4.4,
	// types.ReactionKinds); may be empty, in which case a vote picks
	// uniformly among the 8 kinds.
	ReactionWeights map[string]float64 `yaml:"reaction_weights"`

	// SystemPromptStyle seeds the LLM system prompt's voice (spec
	// GLOSSARY "voice"); consumed by C6 when assembling the prompt
	// bundle handed to C3.
	SystemPromptStyle string `yaml:"system_prompt_style"`
}

// Registry is the loaded, validated set of archetypes keyed by name.
type Registry map[string]Archetype

// Get returns the named archetype, or false if it isn't registered.
func (r Registry) Get(name string) (Archetype, bool) {
	a, ok := r[name]
	return a, ok
}

// weightTolerance is spec §4.6 step 1's "within 0.01 tolerance".
const weightTolerance = 0.01

// Load reads and validates a YAML archetype file at path.
func Load(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("archetype: read %s: %w", path, err)
	}

	var doc struct {
		Archetypes []Archetype `yaml:"archetypes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("archetype: parse %s: %w", path, err)
	}

	reg := make(Registry, len(doc.Archetypes))
	for _, a := range doc.Archetypes {
		if a.Name == "" {
			return nil, fmt.Errorf("archetype: entry with empty name in %s", path)
		}
		if _, dup := reg[a.Name]; dup {
			return nil, fmt.Errorf("archetype: duplicate name %q in %s", a.Name, path)
		}
		if err := validateWeights(a); err != nil {
			return nil, fmt.Errorf("archetype %q: %w", a.Name, err)
		}
		reg[a.Name] = a
	}
	return reg, nil
}

func validateWeights(a Archetype) error {
	var sum float64
	for _, w := range a.ActionWeights {
		if w < 0 {
			return fmt.Errorf("negative action weight")
		}
		sum += w
	}
	if len(a.ActionWeights) > 0 {
		if diff := sum - 1.0; diff > weightTolerance || diff < -weightTolerance {
			return fmt.Errorf("action_weights sum to %.4f, want 1.0 (±%.2f)", sum, weightTolerance)
		}
	}

	if len(a.ContentModeWeights) > 0 {
		var cmSum float64
		for _, w := range a.ContentModeWeights {
			if w < 0 {
				return fmt.Errorf("negative content_mode weight")
			}
			cmSum += w
		}
		if diff := cmSum - 1.0; diff > weightTolerance || diff < -weightTolerance {
			return fmt.Errorf("content_mode_weights sum to %.4f, want 1.0 (±%.2f)", cmSum, weightTolerance)
		}
	}

	if len(a.ReactionWeights) > 0 {
		var rSum float64
		for _, w := range a.ReactionWeights {
			if w < 0 {
				return fmt.Errorf("negative reaction weight")
			}
			rSum += w
		}
		if diff := rSum - 1.0; diff > weightTolerance || diff < -weightTolerance {
			return fmt.Errorf("reaction_weights sum to %.4f, want 1.0 (±%.2f)", rSum, weightTolerance)
		}
	}
	return nil
}

// ChannelWeight returns a's affinity for slug, defaulting to 1.0 (spec
// §4.6 step 4).
func (a Archetype) ChannelWeight(slug string) float64 {
	if w, ok := a.ChannelAffinity[slug]; ok {
		return w
	}
	return 1.0
}
