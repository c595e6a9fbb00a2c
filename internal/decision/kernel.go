// Package decision implements the Decision Kernel (C6): per-agent action
// selection deterministic in (agent, pulse, seed) (spec §4.6, invariant
// 9). Selection never panics or returns an error — an unsatisfiable
// constraint degrades to a noop task carrying an explanatory reason (spec
// §4.6 "Failure semantics").
//
// Grounded on internal/agent/resolver.go's provider-resolution fallback
// pattern (try the preferred choice, fall back, note why) generalized
// here to action/channel/target selection; archetype data comes from
// internal/archetype.
package decision

import (
	"math/rand"
	"time"

	"github.com/forgepulse/autonomy-engine/internal/archetype"
	"github.com/forgepulse/autonomy-engine/pkg/types"
)

// DecisionsPerAgentCap is spec §4.6 step 6: "no more than 10 intended
// mutations per agent per cycle." Enforced by the caller (C7/C8), which
// must not invoke Decide more than this many times for one agent in one
// cycle.
const DecisionsPerAgentCap = 10

// Params bundles the tunables spec §4.6 leaves as named constants.
type Params struct {
	// SelfThreadCooldown is T_self_thread: an agent may not comment twice
	// under the same thread within this window.
	SelfThreadCooldown time.Duration

	// TitleSimilarityThreshold and RecentPostWindow are the similarity
	// threshold and M from step 2; dedup against an agent's last M
	// posts runs on generated content, not here — see DESIGN.md "Post
	// dedup enforcement point". Recorded here so callers construct one
	// Params value covering all of C6's tunables.
	TitleSimilarityThreshold float64
	RecentPostWindow         int
}

// DefaultParams matches the values chosen in SPEC_FULL.md's open-question
// resolutions / this implementation's documented defaults.
func DefaultParams() Params {
	return Params{
		SelfThreadCooldown:       6 * time.Hour,
		TitleSimilarityThreshold: 0.8,
		RecentPostWindow:         20,
	}
}

// History is the subset of an agent's past activity the kernel needs for
// dedup and target-skipping (spec §4.6 steps 2–3). Built by the caller
// from state.Snapshot + posted_log before invoking Decide.
type History struct {
	// RecentTitles are the agent's last M post titles, most recent last.
	RecentTitles []string

	// LastCommentedAt maps post number to the last time this agent
	// commented there.
	LastCommentedAt map[int]time.Time

	// AuthoredPosts is the set of post numbers this agent authored.
	AuthoredPosts map[int]bool
}

// Decide selects one CycleTask for agent given pulse, deterministic for a
// fixed rng seed (spec invariant 9).
func Decide(agent types.Agent, arch archetype.Archetype, pulse types.Pulse, hist History, now time.Time, rng *rand.Rand, params Params) types.CycleTask {
	action, ok := pickAction(arch, rng)
	if !ok {
		return types.CycleTask{AgentID: agent.ID, Action: types.ActionNoop, Reason: "archetype has no action weights"}
	}

	switch action {
	case types.ActionComment:
		return decideComment(agent, arch, pulse, hist, now, params)
	case types.ActionPost:
		return decidePost(agent, arch, pulse, rng, params)
	case types.ActionVote:
		return decideVote(agent, arch, pulse, hist, rng)
	case types.ActionPoke:
		return decidePoke(agent, pulse, rng)
	default:
		return types.CycleTask{AgentID: agent.ID, Action: types.ActionNoop, Reason: "archetype picked lurk"}
	}
}

// pickAction runs spec §4.6 step 1. The archetype's "lurk" weight maps to
// ActionNoop; "post"/"comment"/"vote"/"poke" map 1:1 to an ActionKind; any
// other key also degrades to ActionNoop.
func pickAction(arch archetype.Archetype, rng *rand.Rand) (types.ActionKind, bool) {
	key, ok := archetype.WeightedPick(rng, arch.ActionWeights)
	if !ok {
		return "", false
	}
	switch key {
	case "post":
		return types.ActionPost, true
	case "comment":
		return types.ActionComment, true
	case "vote":
		return types.ActionVote, true
	case "poke":
		return types.ActionPoke, true
	default:
		return types.ActionNoop, true
	}
}

// decideVote runs spec §4.6's vote path: target selection draws from the
// same under-discussed pool comment targeting uses (spec §4.5 derives
// both from the same signal), skipping posts the agent authored; reaction
// kind is the archetype's weighted pick over the fixed 8-reaction
// vocabulary, falling back to a uniform pick when the archetype declares
// no reaction_weights.
func decideVote(agent types.Agent, arch archetype.Archetype, pulse types.Pulse, hist History, rng *rand.Rand) types.CycleTask {
	var target *types.UnderDiscussedPost
	for i := range pulse.UnderDiscussed {
		cand := &pulse.UnderDiscussed[i]
		if hist.AuthoredPosts[cand.Post.Number] {
			continue
		}
		target = cand
		break
	}
	if target == nil {
		return types.CycleTask{AgentID: agent.ID, Action: types.ActionNoop, Reason: "no eligible post to vote on"}
	}

	kind, ok := archetype.WeightedPick(rng, arch.ReactionWeights)
	if !ok {
		kind = types.ReactionKinds[rng.Intn(len(types.ReactionKinds))]
	}

	return types.CycleTask{
		AgentID:          agent.ID,
		Action:           types.ActionVote,
		TargetPostNumber: target.Post.Number,
		ChannelSlug:      target.ChannelSlug,
		ReactionKind:     kind,
	}
}

// decidePoke runs spec §4.6's poke path: target one dormant agent, chosen
// uniformly at random from the pulse's dormant pool (spec names no
// archetype-weighted preference among poke targets, only the action-kind
// pick itself is weighted — spec §4.9 "poked" only cares that the target
// is dormant).
func decidePoke(agent types.Agent, pulse types.Pulse, rng *rand.Rand) types.CycleTask {
	candidates := make([]string, 0, len(pulse.DormantAgents))
	for _, id := range pulse.DormantAgents {
		if id != agent.ID {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return types.CycleTask{AgentID: agent.ID, Action: types.ActionNoop, Reason: "no dormant agent to poke"}
	}

	target := candidates[rng.Intn(len(candidates))]
	return types.CycleTask{AgentID: agent.ID, Action: types.ActionPoke, PokeTarget: target}
}

// decideComment runs spec §4.6 step 3: pick from the pulse's
// under-discussed list, skipping posts the agent authored or commented on
// within the cooldown, preferring the agent's subscribed channels, ties
// broken by highest ratio gap (the list already arrives ratio-gap sorted
// from C5, so "prefer subscribed" only needs to partition, not re-rank
// within each partition).
func decideComment(agent types.Agent, arch archetype.Archetype, pulse types.Pulse, hist History, now time.Time, params Params) types.CycleTask {
	var subscribed, other *types.UnderDiscussedPost

	for i := range pulse.UnderDiscussed {
		cand := &pulse.UnderDiscussed[i]
		if hist.AuthoredPosts[cand.Post.Number] {
			continue
		}
		if last, ok := hist.LastCommentedAt[cand.Post.Number]; ok && now.Sub(last) < params.SelfThreadCooldown {
			continue
		}
		if agent.Subscribes(cand.ChannelSlug) {
			if subscribed == nil {
				subscribed = cand
			}
		} else if other == nil {
			other = cand
		}
		if subscribed != nil {
			break
		}
	}

	target := subscribed
	if target == nil {
		target = other
	}
	if target == nil {
		return types.CycleTask{AgentID: agent.ID, Action: types.ActionNoop, Reason: "no eligible under-discussed post to comment on"}
	}

	return types.CycleTask{
		AgentID:          agent.ID,
		Action:           types.ActionComment,
		TargetPostNumber: target.Post.Number,
		ChannelSlug:      target.ChannelSlug,
	}
}

// decidePost runs spec §4.6 steps 4–5: weighted channel selection by
// archetype affinity × channel deficit, then content-mode selection for
// archetypes that declare content_mode_weights.
func decidePost(agent types.Agent, arch archetype.Archetype, pulse types.Pulse, rng *rand.Rand, params Params) types.CycleTask {
	if len(pulse.Channels) == 0 {
		return types.CycleTask{AgentID: agent.ID, Action: types.ActionNoop, Reason: "no channels available"}
	}

	weights := make(map[string]float64, len(pulse.Channels))
	for _, ch := range pulse.Channels {
		w := arch.ChannelWeight(ch.Slug) * (1 + ch.Deficit)
		if w > 0 {
			weights[ch.Slug] = w
		}
	}
	slug, ok := archetype.WeightedPick(rng, weights)
	if !ok {
		return types.CycleTask{AgentID: agent.ID, Action: types.ActionNoop, Reason: "no channel has positive selection weight"}
	}

	task := types.CycleTask{AgentID: agent.ID, Action: types.ActionPost, ChannelSlug: slug}

	if len(arch.ContentModeWeights) > 0 {
		if mode, ok := archetype.WeightedPick(rng, arch.ContentModeWeights); ok {
			task.ContentMode = mode
		}
	}
	return task
}

// TitleIsDuplicate reports whether title is within params' similarity
// threshold of any entry in recentTitles (spec §4.6 step 2). This is the
// Worker Stream's check, run after C3 generates the candidate title, not
// inside Decide — see DESIGN.md "Post dedup enforcement point" for why.
func TitleIsDuplicate(title string, recentTitles []string, params Params) bool {
	for _, prior := range recentTitles {
		if jaccardSimilarity(title, prior) >= params.TitleSimilarityThreshold {
			return true
		}
	}
	return false
}

// jaccardSimilarity is a coarse word-set similarity measure, sufficient
// for catching near-identical regenerated titles without pulling in an
// embeddings dependency this domain doesn't otherwise need.
func jaccardSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	var intersection int
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := map[string]bool{}
	word := make([]rune, 0, 16)
	flush := func() {
		if len(word) > 0 {
			set[string(word)] = true
			word = word[:0]
		}
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			word = append(word, r)
		} else {
			flush()
		}
	}
	flush()
	return set
}
