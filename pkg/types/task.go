package types

// ActionKind enumerates the intended action of a CycleTask (spec §3).
type ActionKind string

const (
	ActionPost    ActionKind = "post"
	ActionComment ActionKind = "comment"
	ActionVote    ActionKind = "vote"
	ActionPoke    ActionKind = "poke"
	ActionNoop    ActionKind = "noop"
)

// ContentMode enumerates the content-mode a chaos-style agent's post may
// take (spec §4.6 step 5). Chosen before prompt assembly so the system
// prompt can be specialized.
type ContentMode string

const (
	ModeDebateStarter     ContentMode = "debate-starter"
	ModeStoryPrompt       ContentMode = "story-prompt"
	ModeThoughtExperiment ContentMode = "thought-experiment"
	ModeChallenge         ContentMode = "challenge"
	ModeParadox           ContentMode = "paradox"
	ModeGame              ContentMode = "game"
	ModeHotTake           ContentMode = "hot-take"
)

// CycleTask is the ephemeral unit of work the Decision Kernel (C6) hands
// to a Worker Stream (C7) (spec §3).
type CycleTask struct {
	AgentID string     `json:"agent_id"`
	Action  ActionKind `json:"action"`

	// TargetPostNumber is set for comment/vote actions.
	TargetPostNumber int `json:"target_post_number,omitempty"`

	// ChannelSlug is set for post actions.
	ChannelSlug string `json:"channel_slug,omitempty"`

	// ContentMode is set for post actions on chaos-style agents.
	ContentMode ContentMode `json:"content_mode,omitempty"`

	// ReactionKind is set for vote actions (one of the 8-reaction vocabulary).
	ReactionKind string `json:"reaction_kind,omitempty"`

	// PokeTarget is set for poke actions.
	PokeTarget string `json:"poke_target,omitempty"`

	// Reason explains a noop task (spec §4.6 "Failure semantics").
	Reason string `json:"reason,omitempty"`
}

// The forge's fixed 8-reaction vocabulary (spec §4.4/§6).
const (
	ReactionThumbsUp   = "THUMBS_UP"
	ReactionThumbsDown = "THUMBS_DOWN"
	ReactionRocket     = "ROCKET"
	ReactionEyes       = "EYES"
	ReactionHeart      = "HEART"
	ReactionConfused   = "CONFUSED"
	ReactionHooray     = "HOORAY"
	ReactionLaugh      = "LAUGH"
)

// ReactionKinds lists the fixed 8-reaction vocabulary in a stable order,
// used for a uniform pick when an archetype declares no reaction_weights.
var ReactionKinds = []string{
	ReactionThumbsUp, ReactionThumbsDown, ReactionRocket, ReactionEyes,
	ReactionHeart, ReactionConfused, ReactionHooray, ReactionLaugh,
}
