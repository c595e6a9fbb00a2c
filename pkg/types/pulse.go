package types

import "time"

// ChannelPulse is one channel's per-cycle derived signal (spec §4.5).
type ChannelPulse struct {
	Slug        string         `json:"slug"`
	Count24h    int            `json:"count_24h"`
	Count72h    int            `json:"count_72h"`
	Momentum    MomentumBucket `json:"momentum"`
	TargetRatio float64        `json:"target_ratio"`
	Deficit     float64        `json:"deficit"` // > 0 means running cold relative to target
}

// UnderDiscussedPost is a candidate commenting target: a recent post whose
// actual ratio exceeds its channel's target (spec §4.5).
type UnderDiscussedPost struct {
	Post        PostMirror `json:"post"`
	RatioGap    float64    `json:"ratio_gap"` // actual_ratio - target_ratio
	ChannelSlug string     `json:"channel_slug"`
}

// Pulse is the immutable per-cycle snapshot derived from state (spec §3,
// §4.5). It is built once by the Pulse Builder (C5) and shared read-only
// by every worker stream for the duration of the cycle.
type Pulse struct {
	BuiltAt time.Time `json:"built_at"`

	Channels        []ChannelPulse       `json:"channels"`
	UnderDiscussed  []UnderDiscussedPost `json:"under_discussed"` // sorted: ratio-gap desc, then recency desc
	PredictionsDue  []Prediction         `json:"predictions_due"`
	SummonsNearThreshold []Summon        `json:"summons_near_threshold"`

	// DormantAgents are the ids of agents currently AgentDormant — the
	// poke action's target pool (spec §4.9 "if poke count exceeds the
	// summon threshold... and the target is dormant"). Sorted for
	// determinism (invariant 9).
	DormantAgents []string `json:"dormant_agents"`
}

// ChannelBySlug returns the ChannelPulse for slug, or nil if absent.
func (p *Pulse) ChannelBySlug(slug string) *ChannelPulse {
	for i := range p.Channels {
		if p.Channels[i].Slug == slug {
			return &p.Channels[i]
		}
	}
	return nil
}
