package forge

import (
	"context"
	"fmt"

	"github.com/forgepulse/autonomy-engine/pkg/types"
)

// categoryName maps a channel slug to the forge's Discussion
// category name. The core stores channels by slug; the forge groups
// discussions by category — this one-line translation is the entire
// coupling between the two naming schemes.
func categoryName(channelSlug string) string { return channelSlug }

type discussionNode struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
	Author    struct {
		Login string `json:"login"`
	} `json:"author"`
	UpvoteCount int `json:"upvoteCount"`
	Comments    struct {
		TotalCount int `json:"totalCount"`
	} `json:"comments"`
}

// ListRecentDiscussions returns up to limit of the most recent discussions
// in channelSlug's category (spec §4.4 list_recent_discussions). Unpaced.
func (c *Client) ListRecentDiscussions(ctx context.Context, channelSlug string, limit int) ([]types.PostMirror, error) {
	const query = `
query($owner: String!, $repo: String!, $limit: Int!, $categoryId: ID) {
  repository(owner: $owner, name: $repo) {
    discussions(first: $limit, categoryId: $categoryId, orderBy: {field: CREATED_AT, direction: DESC}) {
      nodes {
        number
        title
        body
        createdAt
        author { login }
        upvoteCount
        comments { totalCount }
      }
    }
  }
}`

	var result struct {
		Repository struct {
			Discussions struct {
				Nodes []discussionNode `json:"nodes"`
			} `json:"discussions"`
		} `json:"repository"`
	}

	categoryID, err := c.discussionCategoryNodeID(ctx, channelSlug)
	if err != nil {
		return nil, err
	}
	vars := map[string]any{"owner": c.owner, "repo": c.repo, "limit": limit, "categoryId": categoryID}
	if err := c.gql.do(ctx, query, vars, &result); err != nil {
		return nil, err
	}

	mirrors := make([]types.PostMirror, 0, len(result.Repository.Discussions.Nodes))
	for _, n := range result.Repository.Discussions.Nodes {
		agentID, _ := parseByline(n.Body)
		if agentID == "" {
			agentID = n.Author.Login
		}
		mirrors = append(mirrors, types.PostMirror{
			Number:      n.Number,
			Title:       types.StripTitleTag(n.Title),
			AuthorID:    agentID,
			ChannelSlug: channelSlug,
			Type:        types.DetectPostType(n.Title),
			Upvotes:     n.UpvoteCount,
			Comments:    n.Comments.TotalCount,
		})
	}
	return mirrors, nil
}

// ReadDiscussion returns the full body and derived metadata of one
// discussion (spec §4.4 read_discussion).
func (c *Client) ReadDiscussion(ctx context.Context, number int) (PostDetail, error) {
	const query = `
query($owner: String!, $repo: String!, $number: Int!) {
  repository(owner: $owner, name: $repo) {
    discussion(number: $number) {
      number
      title
      body
      createdAt
      author { login }
      upvoteCount
      comments { totalCount }
    }
  }
}`

	var result struct {
		Repository struct {
			Discussion discussionNode `json:"discussion"`
		} `json:"repository"`
	}

	vars := map[string]any{"owner": c.owner, "repo": c.repo, "number": number}
	if err := c.gql.do(ctx, query, vars, &result); err != nil {
		return PostDetail{}, err
	}

	n := result.Repository.Discussion
	agentID, body := parseByline(n.Body)
	if agentID == "" {
		agentID = n.Author.Login
	}

	return PostDetail{
		Mirror: types.PostMirror{
			Number:   n.Number,
			Title:    types.StripTitleTag(n.Title),
			AuthorID: agentID,
			Type:     types.DetectPostType(n.Title),
			Upvotes:  n.UpvoteCount,
			Comments: n.Comments.TotalCount,
		},
		Body: body,
	}, nil
}

type commentNode struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
	Author    struct {
		Login string `json:"login"`
	} `json:"author"`
}

// ReadComments returns the first 100 comments on discussion number (spec
// §4.4 read_comments); later comments are not fetched. Unpaced.
func (c *Client) ReadComments(ctx context.Context, number int) ([]Comment, error) {
	const query = `
query($owner: String!, $repo: String!, $number: Int!) {
  repository(owner: $owner, name: $repo) {
    discussion(number: $number) {
      comments(first: 100) {
        nodes { id body createdAt author { login } }
      }
    }
  }
}`

	var result struct {
		Repository struct {
			Discussion struct {
				Comments struct {
					Nodes []commentNode `json:"nodes"`
				} `json:"comments"`
			} `json:"discussion"`
		} `json:"repository"`
	}

	vars := map[string]any{"owner": c.owner, "repo": c.repo, "number": number}
	if err := c.gql.do(ctx, query, vars, &result); err != nil {
		return nil, err
	}

	out := make([]Comment, 0, len(result.Repository.Discussion.Comments.Nodes))
	for _, n := range result.Repository.Discussion.Comments.Nodes {
		agentID, body := parseByline(n.Body)
		if agentID == "" {
			agentID = n.Author.Login
		}
		out = append(out, Comment{ID: n.ID, AuthorID: agentID, Body: body})
	}
	return out, nil
}

// repositoryNodeID fetches the GraphQL node ID for the configured
// owner/repo (one query per call; the result is not cached);
// create_discussion's mutation needs it as repositoryId.
func (c *Client) repositoryNodeID(ctx context.Context) (string, error) {
	const query = `query($owner: String!, $repo: String!) { repository(owner: $owner, name: $repo) { id } }`
	var result struct {
		Repository struct {
			ID string `json:"id"`
		} `json:"repository"`
	}
	vars := map[string]any{"owner": c.owner, "repo": c.repo}
	if err := c.gql.do(ctx, query, vars, &result); err != nil {
		return "", err
	}
	if result.Repository.ID == "" {
		return "", fmt.Errorf("forge: empty repository node id for %s/%s", c.owner, c.repo)
	}
	return result.Repository.ID, nil
}

// discussionCategoryNodeID fetches the GraphQL node ID for a Discussion
// category by its display name (the core's channel slug, per
// categoryName).
func (c *Client) discussionCategoryNodeID(ctx context.Context, channelSlug string) (string, error) {
	const query = `
query($owner: String!, $repo: String!) {
  repository(owner: $owner, name: $repo) {
    discussionCategories(first: 50) { nodes { id name } }
  }
}`
	var result struct {
		Repository struct {
			DiscussionCategories struct {
				Nodes []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"nodes"`
			} `json:"discussionCategories"`
		} `json:"repository"`
	}
	vars := map[string]any{"owner": c.owner, "repo": c.repo}
	if err := c.gql.do(ctx, query, vars, &result); err != nil {
		return "", err
	}
	want := categoryName(channelSlug)
	for _, n := range result.Repository.DiscussionCategories.Nodes {
		if n.Name == want {
			return n.ID, nil
		}
	}
	return "", fmt.Errorf("forge: no discussion category named %q (channel %q)", want, channelSlug)
}
