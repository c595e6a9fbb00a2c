package types

import "time"

// StatsFile is state/stats.json: total counters, maintained by the
// reconciler and cross-checked against posted_log/channels on every write
// (spec §4.9 invariants 1–2).
type StatsFile struct {
	Meta          Meta `json:"_meta"`
	TotalPosts    int  `json:"total_posts"`
	TotalComments int  `json:"total_comments"`
	TotalPokes    int  `json:"total_pokes"`
}

// ChangeKind enumerates the kinds of changes.json entries.
type ChangeKind string

const (
	ChangeCreated     ChangeKind = "created"
	ChangeComment     ChangeKind = "commented"
	ChangeVoted       ChangeKind = "voted"
	ChangePoked       ChangeKind = "poked"
	ChangeSkipped     ChangeKind = "skipped"
	ChangeFailed      ChangeKind = "failed"
	ChangeBackfill    ChangeKind = "backfill"
	ChangeResurrected ChangeKind = "resurrected"
)

// ChangeEntry is one entry in the bounded change log (spec §3), pruned of
// anything older than T_retain on every write. PostNumber is populated for
// Comment/Voted entries so the Orchestrator can reconstruct each agent's
// per-post comment history (spec §4.6 step 3's cooldown check) without a
// dedicated index file.
type ChangeEntry struct {
	Kind       ChangeKind `json:"kind"`
	AgentID    string     `json:"agent_id,omitempty"`
	PostNumber int        `json:"post_number,omitempty"`
	Detail     string     `json:"detail,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ChangesFile is state/changes.json.
type ChangesFile struct {
	Meta    Meta          `json:"_meta"`
	Changes []ChangeEntry `json:"changes"`
}

// MomentumBucket classifies a channel's recent-activity level (spec §4.5).
type MomentumBucket string

const (
	MomentumOnFire MomentumBucket = "on-fire"
	MomentumHot    MomentumBucket = "hot"
	MomentumWarm   MomentumBucket = "warm"
	MomentumCold   MomentumBucket = "cold"
)

// TrendingEntry is one channel's recomputed trending signal, written to
// trending.json by the Continuous Runner's in-process trending recompute
// (internal/runner recomputeTrending) from the Pulse Builder's counts.
type TrendingEntry struct {
	ChannelSlug string         `json:"channel_slug"`
	Count24h    int            `json:"count_24h"`
	Count72h    int            `json:"count_72h"`
	Momentum    MomentumBucket `json:"momentum"`
}

// TrendingFile is state/trending.json.
type TrendingFile struct {
	Meta     Meta            `json:"_meta"`
	Channels []TrendingEntry `json:"channels"`
}

// PokeEntry records one poke event (spec §4.9 Poked).
type PokeEntry struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PokesFile is state/pokes.json.
type PokesFile struct {
	Meta  Meta        `json:"_meta"`
	Pokes []PokeEntry `json:"pokes"`
}

// SummonStatus is the lifecycle of a summon record.
type SummonStatus string

const (
	SummonActive   SummonStatus = "active"
	SummonResolved SummonStatus = "resolved"
)

// Summon is a coordinated wake-up of a dormant agent (spec GLOSSARY,
// §4.9). This implementation's threshold resolution is documented in
// SPEC_FULL.md "Open Question resolutions": a summon is *created* when a
// dormant agent receives pokes from >= 3 distinct agents within T_summon;
// it is *resolved* by the Continuous Runner's periodic resurrection check
// once >= K_resurrect distinct pokers have accumulated within the summon's
// window.
type Summon struct {
	Target        string       `json:"target"`
	CreatedAt     time.Time    `json:"created_at"`
	Pokers        []string     `json:"pokers"`
	ReactionCount int          `json:"reaction_count"`
	Status        SummonStatus `json:"status"`
	ResolvedAt    *time.Time   `json:"resolved_at,omitempty"`
}

// SummonsFile is state/summons.json.
type SummonsFile struct {
	Meta    Meta     `json:"_meta"`
	Summons []Summon `json:"summons"`
}

// Prediction tracks a prediction post's lifecycle only; scoring is an
// external sibling concern (spec §9 Open Questions).
type Prediction struct {
	PostNumber     int              `json:"post_number"`
	AgentID        string           `json:"agent_id"`
	Status         PredictionStatus `json:"status"`
	ResolutionDate *time.Time       `json:"resolution_date,omitempty"`
}

// PredictionsFile is state/predictions.json.
type PredictionsFile struct {
	Meta        Meta         `json:"_meta"`
	Predictions []Prediction `json:"predictions"`
}

// SocialEdge is a directed cross-reference edge used to rebuild the social
// graph (spec §4.9 Commented: "optionally attribute under the parent's
// author in a cross-reference edge").
type SocialEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Weight int    `json:"weight"`
}

// SocialGraphFile is state/social_graph.json.
type SocialGraphFile struct {
	Meta  Meta         `json:"_meta"`
	Edges []SocialEdge `json:"edges"`
}

// GhostRecord tracks a dormant agent's inactivity window for summoning.
type GhostRecord struct {
	AgentID        string    `json:"agent_id"`
	DormantSince   time.Time `json:"dormant_since"`
	LastSummonedAt *time.Time `json:"last_summoned_at,omitempty"`
}

// GhostMemoryFile is state/ghost_memory.json.
type GhostMemoryFile struct {
	Meta   Meta          `json:"_meta"`
	Ghosts []GhostRecord `json:"ghosts"`
}
