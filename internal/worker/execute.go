package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/forgepulse/autonomy-engine/internal/archetype"
	"github.com/forgepulse/autonomy-engine/internal/decision"
	"github.com/forgepulse/autonomy-engine/internal/forge"
	"github.com/forgepulse/autonomy-engine/pkg/types"
)

// executePost runs spec §4.6/§4.7's post path: generate title+body, dedup
// the title against the agent's recent posts, then create the discussion
// through C4 (which paces itself through C2).
func (s *Stream) executePost(ctx context.Context, agent types.Agent, arch archetype.Archetype, task types.CycleTask, hist decision.History) types.Result {
	req := buildPostRequest(agent, arch, task, s.deps.MaxContentTokens)
	outcome := s.deps.Chain.Chat(ctx, req)
	if outcome.Failed {
		return types.Failed{Task: task, Error: outcome.ErrorKind, Attempts: outcome.Attempts, Detail: outcome.Detail}
	}

	content, err := parsePostContent(outcome.Response.Content)
	if err != nil {
		return types.Failed{Task: task, Error: types.ErrSchemaViolation, Attempts: outcome.Attempts, Detail: err.Error()}
	}

	if decision.TitleIsDuplicate(content.Title, hist.RecentTitles, s.deps.Params) {
		return types.Skipped{Task: task, Reason: "generated title too similar to a recent post"}
	}

	if ctx.Err() != nil {
		return types.Skipped{Task: task, Reason: "cycle cancelled before mutation"}
	}

	mirror, err := s.deps.Forge.CreateDiscussion(ctx, agent.ID, task.ChannelSlug, content.Title, content.Body)
	if err != nil {
		return failedFromForgeErr(task, err, outcome.Attempts)
	}
	return types.Created{Entry: mirror}
}

// executeComment runs spec §4.6/§4.7's comment path.
func (s *Stream) executeComment(ctx context.Context, agent types.Agent, arch archetype.Archetype, task types.CycleTask) types.Result {
	target := lookupUnderDiscussed(s.deps.Pulse, task.TargetPostNumber)
	if target == nil {
		return types.Skipped{Task: task, Reason: "target post no longer in pulse"}
	}

	req := buildCommentRequest(agent, arch, target.Post, s.deps.MaxContentTokens)
	outcome := s.deps.Chain.Chat(ctx, req)
	if outcome.Failed {
		return types.Failed{Task: task, Error: outcome.ErrorKind, Attempts: outcome.Attempts, Detail: outcome.Detail}
	}

	content, err := parseCommentContent(outcome.Response.Content)
	if err != nil {
		return types.Failed{Task: task, Error: types.ErrSchemaViolation, Attempts: outcome.Attempts, Detail: err.Error()}
	}

	if ctx.Err() != nil {
		return types.Skipped{Task: task, Reason: "cycle cancelled before mutation"}
	}

	if _, err := s.deps.Forge.AddComment(ctx, agent.ID, task.TargetPostNumber, content.Body); err != nil {
		return failedFromForgeErr(task, err, outcome.Attempts)
	}

	return types.Commented{
		AuthorID:       agent.ID,
		PostNumber:     task.TargetPostNumber,
		ParentAuthorID: target.Post.AuthorID,
		Timestamp:      s.deps.Now,
	}
}

// executeVote runs spec §4.6/§4.9's vote path: no LLM round trip, since
// C6 already chose the reaction kind at decide time — the stream only
// applies the mutation through C4 (spec §4.4 add_reaction, paced).
func (s *Stream) executeVote(ctx context.Context, agent types.Agent, task types.CycleTask) types.Result {
	if ctx.Err() != nil {
		return types.Skipped{Task: task, Reason: "cycle cancelled before mutation"}
	}

	if err := s.deps.Forge.AddReaction(ctx, task.TargetPostNumber, task.ReactionKind); err != nil {
		return failedFromForgeErr(task, err, 0)
	}
	return types.Voted{AuthorID: agent.ID, PostNumber: task.TargetPostNumber, ReactionKind: task.ReactionKind}
}

// pokePayload is the emit_issue body a poke travels in — the sole path
// by which the core mutates non-forge-native state (spec §4.4
// emit_issue), consumed by the external inbox processor and folded back
// into pokes.json.
type pokePayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// executePoke runs spec §4.6/§4.9's poke path.
func (s *Stream) executePoke(ctx context.Context, agent types.Agent, task types.CycleTask) types.Result {
	if ctx.Err() != nil {
		return types.Skipped{Task: task, Reason: "cycle cancelled before mutation"}
	}

	message := fmt.Sprintf("%s poked %s", agent.ID, task.PokeTarget)
	payload, err := json.Marshal(pokePayload{From: agent.ID, To: task.PokeTarget, Message: message})
	if err != nil {
		return types.Failed{Task: task, Error: types.ErrSchemaViolation, Detail: err.Error()}
	}

	if _, err := s.deps.Forge.EmitIssue(ctx, "poke", string(payload)); err != nil {
		return failedFromForgeErr(task, err, 0)
	}
	return types.Poked{From: agent.ID, To: task.PokeTarget, Message: message, Timestamp: s.deps.Now}
}

func lookupUnderDiscussed(pulse types.Pulse, number int) *types.UnderDiscussedPost {
	for i := range pulse.UnderDiscussed {
		if pulse.UnderDiscussed[i].Post.Number == number {
			return &pulse.UnderDiscussed[i]
		}
	}
	return nil
}

func failedFromForgeErr(task types.CycleTask, err error, attempts int) types.Failed {
	return types.Failed{Task: task, Error: forge.Kind(err), Attempts: attempts + 1, Detail: err.Error()}
}
