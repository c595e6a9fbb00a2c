// Package forge implements the Forge Client (spec §4.4): typed read and
// write operations against a GitHub-Discussions-shaped forge.
// Discussions have no REST surface at all on GitHub, so every read
// (list/read discussion, read comments) and the create-discussion,
// add-comment and add-reaction writes are raw GraphQL calls; only issue
// emission goes through go-github's REST surface.
//
// Grounded on nickmisasi-mattermost-plugin-cursor/server/ghclient/client.go:
// the go-github-wrapped Client interface, and its graphqlMarkReady
// function as the template for every GraphQL call here (marshal query+
// variables, POST to /graphql, decode a top-level `errors` array before
// trusting `data`).
package forge

import (
	"fmt"
	"time"

	"github.com/google/go-github/v68/github"

	"github.com/forgepulse/autonomy-engine/internal/pacer"
	"github.com/forgepulse/autonomy-engine/pkg/types"
)

// Client is the Forge Client surface the Decision Kernel and Worker
// Stream depend on (spec §4.4). Reads are unpaced; every write acquires
// the Pacer before calling the forge.
type Client struct {
	rest  *github.Client
	gql   *graphqlTransport
	pacer pacer.Pacer

	owner string
	repo  string
}

// New builds a Client for owner/repo, authenticated with token, gated on
// writes by p.
func New(owner, repo, token string, p pacer.Pacer) *Client {
	gh := github.NewClient(nil).WithAuthToken(token)
	return &Client{
		rest:  gh,
		gql:   newGraphQLTransport(gh, token),
		pacer: p,
		owner: owner,
		repo:  repo,
	}
}

// PostDetail is the full body of one discussion, returned by
// read_discussion (spec §4.4).
type PostDetail struct {
	Mirror types.PostMirror
	Body   string
}

// Comment is a native forge reply, returned by read_comments (spec §4.4).
type Comment struct {
	ID        string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}

// CommentRef identifies a newly created comment (spec §4.4 add_comment).
type CommentRef struct {
	ID string
}

// IssueRef identifies a newly created issue (spec §4.4 emit_issue).
type IssueRef struct {
	Number int
}

// StripByline removes the byline prefix stampBylinePrefix added, so callers see
// the agent's actual generated content (spec §4.4 "byline discipline").
// The frontend's stripping logic is out of this core's scope; this is the
// backend-side symmetrical read helper used when the core itself needs
// the bare body (e.g. dedup fingerprinting in C6).
func StripByline(body string) string {
	return stripBylinePrefix(body)
}

// ParseByline recovers the authoring agent id from a byline-stamped body
// (spec §4.4: "the core relies on the byline to recover real authorship
// when the forge's reported author is a shared service account").
func ParseByline(body string) (agentID, rest string) {
	return parseByline(body)
}

// wrapForgeErr classifies a go-github error by its HTTP status, mirroring
// llm.classifyStatus so C4 and C3 failures funnel through the same
// ErrorKind vocabulary (spec §7).
func wrapForgeErr(err error) error {
	if err == nil {
		return nil
	}
	if rerr, ok := err.(*github.ErrorResponse); ok && rerr.Response != nil {
		switch rerr.Response.StatusCode {
		case 401, 403:
			return fmt.Errorf("forge: auth: %w", &forgeError{kind: types.ErrAuth, cause: err})
		case 429:
			return fmt.Errorf("forge: rate limited: %w", &forgeError{kind: types.ErrRateLimited, cause: err})
		}
	}
	if _, ok := err.(*github.RateLimitError); ok {
		return fmt.Errorf("forge: rate limited: %w", &forgeError{kind: types.ErrRateLimited, cause: err})
	}
	return fmt.Errorf("forge: %w", &forgeError{kind: types.ErrTransientNetwork, cause: err})
}

type forgeError struct {
	kind  types.ErrorKind
	cause error
}

func (e *forgeError) Error() string { return string(e.kind) + ": " + e.cause.Error() }
func (e *forgeError) Unwrap() error { return e.cause }

// Kind extracts the ErrorKind from a forge error, defaulting to
// ErrUnavailable for anything not wrapped by wrapForgeErr.
func Kind(err error) types.ErrorKind {
	var fe *forgeError
	if ok := asForgeError(err, &fe); ok {
		return fe.kind
	}
	return types.ErrUnavailable
}

func asForgeError(err error, target **forgeError) bool {
	for err != nil {
		if fe, ok := err.(*forgeError); ok {
			*target = fe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
