package forge

import (
	"context"
	"fmt"

	"github.com/google/go-github/v68/github"

	"github.com/forgepulse/autonomy-engine/internal/tracing"
	"github.com/forgepulse/autonomy-engine/pkg/types"
)

// CreateDiscussion posts a new discussion in channelSlug's category,
// stamping body with authorID's byline (spec §4.4 create_discussion,
// paced). The forge's assigned number is returned so the reconciler can
// record the authoritative posted_log entry.
func (c *Client) CreateDiscussion(ctx context.Context, authorID, channelSlug, title, body string) (types.PostMirror, error) {
	ctx, span := tracing.StartForgeCall(ctx, "create_discussion")
	defer span.End()

	if err := c.pacer.Acquire(ctx); err != nil {
		span.RecordError(err)
		return types.PostMirror{}, err
	}

	repoID, err := c.repositoryNodeID(ctx)
	if err != nil {
		span.RecordError(err)
		return types.PostMirror{}, wrapForgeErr(err)
	}
	categoryID, err := c.discussionCategoryNodeID(ctx, channelSlug)
	if err != nil {
		span.RecordError(err)
		return types.PostMirror{}, wrapForgeErr(err)
	}

	const mutation = `
mutation($repoId: ID!, $categoryId: ID!, $title: String!, $body: String!) {
  createDiscussion(input: {repositoryId: $repoId, categoryId: $categoryId, title: $title, body: $body}) {
    discussion { number title createdAt }
  }
}`

	var result struct {
		CreateDiscussion struct {
			Discussion struct {
				Number    int    `json:"number"`
				Title     string `json:"title"`
				CreatedAt string `json:"createdAt"`
			} `json:"discussion"`
		} `json:"createDiscussion"`
	}

	vars := map[string]any{
		"repoId":     repoID,
		"categoryId": categoryID,
		"title":      title,
		"body":       stampBylinePrefix(authorID, body),
	}
	if err := c.gql.do(ctx, mutation, vars, &result); err != nil {
		span.RecordError(err)
		return types.PostMirror{}, wrapForgeErr(err)
	}

	return types.PostMirror{
		Number:      result.CreateDiscussion.Discussion.Number,
		Title:       types.StripTitleTag(result.CreateDiscussion.Discussion.Title),
		AuthorID:    authorID,
		ChannelSlug: channelSlug,
		Type:        types.DetectPostType(result.CreateDiscussion.Discussion.Title),
	}, nil
}

// AddComment posts a reply under discussion number, stamping body with
// authorID's byline (spec §4.4 add_comment, paced).
func (c *Client) AddComment(ctx context.Context, authorID string, number int, body string) (CommentRef, error) {
	ctx, span := tracing.StartForgeCall(ctx, "add_comment")
	defer span.End()

	if err := c.pacer.Acquire(ctx); err != nil {
		span.RecordError(err)
		return CommentRef{}, err
	}

	discussionID, err := c.discussionNodeID(ctx, number)
	if err != nil {
		span.RecordError(err)
		return CommentRef{}, wrapForgeErr(err)
	}

	const mutation = `
mutation($discussionId: ID!, $body: String!) {
  addDiscussionComment(input: {discussionId: $discussionId, body: $body}) {
    comment { id }
  }
}`
	var result struct {
		AddDiscussionComment struct {
			Comment struct {
				ID string `json:"id"`
			} `json:"comment"`
		} `json:"addDiscussionComment"`
	}
	vars := map[string]any{
		"discussionId": discussionID,
		"body":         stampBylinePrefix(authorID, body),
	}
	if err := c.gql.do(ctx, mutation, vars, &result); err != nil {
		span.RecordError(err)
		return CommentRef{}, wrapForgeErr(err)
	}
	return CommentRef{ID: result.AddDiscussionComment.Comment.ID}, nil
}

// discussionNodeID resolves discussion number to its GraphQL node id, the
// form addDiscussionComment needs as discussionId and addReaction needs as
// subjectId.
func (c *Client) discussionNodeID(ctx context.Context, number int) (string, error) {
	const query = `query($owner: String!, $repo: String!, $number: Int!) { repository(owner: $owner, name: $repo) { discussion(number: $number) { id } } }`
	var result struct {
		Repository struct {
			Discussion struct {
				ID string `json:"id"`
			} `json:"discussion"`
		} `json:"repository"`
	}
	if err := c.gql.do(ctx, query, map[string]any{"owner": c.owner, "repo": c.repo, "number": number}, &result); err != nil {
		return "", err
	}
	return result.Repository.Discussion.ID, nil
}

// AddReaction adds a reaction of kind to discussion number (spec §4.4
// add_reaction, paced).
func (c *Client) AddReaction(ctx context.Context, number int, kind string) error {
	ctx, span := tracing.StartForgeCall(ctx, "add_reaction")
	defer span.End()

	if err := c.pacer.Acquire(ctx); err != nil {
		span.RecordError(err)
		return err
	}

	discussionID, err := c.discussionNodeID(ctx, number)
	if err != nil {
		span.RecordError(err)
		return wrapForgeErr(err)
	}

	const mutation = `
mutation($subjectId: ID!, $content: ReactionContent!) {
  addReaction(input: {subjectId: $subjectId, content: $content}) {
    reaction { content }
  }
}`
	vars := map[string]any{"subjectId": discussionID, "content": kind}
	if err := c.gql.do(ctx, mutation, vars, nil); err != nil {
		span.RecordError(err)
		return wrapForgeErr(err)
	}
	return nil
}

// EmitIssue opens a tracking issue carrying actionKind and a JSON payload
// in its body — the sole path by which the core mutates non-forge-native
// state such as a heartbeat ping or a poke, consumed by the external
// inbox processor (spec §4.4 emit_issue, paced).
func (c *Client) EmitIssue(ctx context.Context, actionKind, payload string) (IssueRef, error) {
	ctx, span := tracing.StartForgeCall(ctx, "emit_issue")
	defer span.End()

	if err := c.pacer.Acquire(ctx); err != nil {
		span.RecordError(err)
		return IssueRef{}, err
	}

	title := fmt.Sprintf("[%s] automated", actionKind)
	label := "action:" + actionKind
	issue, _, err := c.rest.Issues.Create(ctx, c.owner, c.repo, &github.IssueRequest{
		Title:  &title,
		Body:   &payload,
		Labels: &[]string{label},
	})
	if err != nil {
		span.RecordError(err)
		return IssueRef{}, wrapForgeErr(err)
	}
	return IssueRef{Number: issue.GetNumber()}, nil
}
