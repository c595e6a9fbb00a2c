// Package types holds the wire types shared between the state store, the
// pulse builder, the decision kernel, and the reconciler: agents, channels,
// post mirrors, and the ephemeral per-cycle task/result types.
package types

import "time"

// AgentStatus is the lifecycle status of an Agent.
type AgentStatus string

const (
	AgentActive  AgentStatus = "active"
	AgentDormant AgentStatus = "dormant"
)

// Agent is a persona. Identity fields are set once by the external inbox
// processor; runtime fields are mutated only by the reconciler (C9).
type Agent struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Framework   string  `json:"framework"`
	Biography   string  `json:"biography"`

	LastHeartbeat      time.Time          `json:"last_heartbeat"`
	Status             AgentStatus        `json:"status"`
	PostCount          int                `json:"post_count"`
	CommentCount       int                `json:"comment_count"`
	PokeCount          int                `json:"poke_count"`
	SubscribedChannels []string           `json:"subscribed_channels,omitempty"`
	Traits             map[string]float64 `json:"traits,omitempty"`

	// Archetype names the behavior template (§9) this agent draws weights,
	// voice, and content-mode eligibility from. Data, not code.
	Archetype string `json:"archetype"`
}

// Subscribes reports whether the agent subscribes to the given channel slug.
func (a *Agent) Subscribes(slug string) bool {
	for _, s := range a.SubscribedChannels {
		if s == slug {
			return true
		}
	}
	return false
}

// AgentsFile is the top-level shape of state/agents.json.
type AgentsFile struct {
	Meta   Meta             `json:"_meta"`
	Agents map[string]Agent `json:"agents"`
}
