package types

import (
	"regexp"
	"strings"
	"time"
)

// PostType is the sum type detected by title-prefix regex (spec §3).
type PostType string

const (
	PostDefault       PostType = "default"
	PostSpace         PostType = "space"
	PostPrivateSpace  PostType = "private-space"
	PostDebate        PostType = "debate"
	PostPrediction    PostType = "prediction"
	PostReflection    PostType = "reflection"
	PostTimeCapsule   PostType = "time-capsule"
	PostArchaeology   PostType = "archaeology"
	PostFork          PostType = "fork"
	PostAmendment     PostType = "amendment"
	PostProposal      PostType = "proposal"
	PostSummon        PostType = "summon"
	PostTournament    PostType = "tournament"
	PostCipher        PostType = "cipher"
	PostPublicPlace   PostType = "public-place"
)

// titlePrefixes maps the bracketed tag a generated title may carry
// (e.g. "[DEBATE] Is X better than Y?") to its PostType. Order matters:
// longer, more specific tags are matched before shorter ones.
var titlePrefixes = []struct {
	re ptyperegexp
	pt PostType
}{}

type ptyperegexp = *regexp.Regexp

func init() {
	add := func(tag string, pt PostType) {
		titlePrefixes = append(titlePrefixes, struct {
			re ptyperegexp
			pt PostType
		}{regexp.MustCompile(`(?i)^\s*\[` + tag + `\]`), pt})
	}
	add("PRIVATE-SPACE", PostPrivateSpace)
	add("PRIVATE SPACE", PostPrivateSpace)
	add("SPACE", PostSpace)
	add("DEBATE", PostDebate)
	add("PREDICTION", PostPrediction)
	add("REFLECTION", PostReflection)
	add("TIME-CAPSULE", PostTimeCapsule)
	add("TIME CAPSULE", PostTimeCapsule)
	add("ARCHAEOLOGY", PostArchaeology)
	add("FORK", PostFork)
	add("AMENDMENT", PostAmendment)
	add("PROPOSAL", PostProposal)
	add("SUMMON", PostSummon)
	add("TOURNAMENT", PostTournament)
	add("CIPHER", PostCipher)
	add("PUBLIC-PLACE", PostPublicPlace)
	add("PUBLIC PLACE", PostPublicPlace)
}

// DetectPostType inspects a title's leading bracket tag and returns the
// matching PostType, or PostDefault if no tag matches.
func DetectPostType(title string) PostType {
	for _, p := range titlePrefixes {
		if p.re.MatchString(title) {
			return p.pt
		}
	}
	return PostDefault
}

// StripTitleTag removes a recognized leading bracket tag from a title,
// returning the remainder trimmed of surrounding whitespace.
func StripTitleTag(title string) string {
	for _, p := range titlePrefixes {
		if loc := p.re.FindStringIndex(title); loc != nil {
			return strings.TrimSpace(title[loc[1]:])
		}
	}
	return title
}

// PostMetadata carries the structured subset parsed from a post's title or
// body for variants that need it (spec §3 Post Type). Fields are optional
// and only populated for the relevant PostType.
type PostMetadata struct {
	ShiftKey       int        `json:"shift_key,omitempty"`        // cipher
	ResolutionDate *time.Time `json:"resolution_date,omitempty"`  // prediction
	ForkedFrom     int        `json:"forked_from,omitempty"`      // fork: parent post number
	AmendsPost     int        `json:"amends_post,omitempty"`      // amendment: parent post number
	TournamentRound int       `json:"tournament_round,omitempty"` // tournament
}

// PredictionStatus is the lifecycle status of a prediction post, scored
// exclusively by an external sibling (spec §9 Open Questions).
type PredictionStatus string

const (
	PredictionPending         PredictionStatus = "pending"
	PredictionResolvedCorrect PredictionStatus = "resolved_correct"
	PredictionResolvedWrong   PredictionStatus = "resolved_wrong"
	PredictionExpired         PredictionStatus = "expired"
)

// PostMirror is the canonical mirror record of a forge-hosted discussion
// (spec §3 Post). The forge remains the source of truth; this is a cache.
type PostMirror struct {
	ForgeID     string        `json:"forge_id"`
	Number      int           `json:"number"`
	Title       string        `json:"title"`
	AuthorID    string        `json:"author_id"`
	ChannelSlug string        `json:"channel_slug"`
	CreatedAt   time.Time     `json:"created_at"`
	Type        PostType      `json:"type"`
	Upvotes     int           `json:"upvotes"`
	Downvotes   int           `json:"downvotes"`
	Comments    int           `json:"comments"`
	Metadata    *PostMetadata `json:"metadata,omitempty"`

	PredictionStatus PredictionStatus `json:"prediction_status,omitempty"`
}

// Ratio computes the post's actual upvotes-per-comment ratio, per spec §4.5
// (`actual_ratio = upvotes / max(1, comments)`).
func (p *PostMirror) Ratio() float64 {
	denom := p.Comments
	if denom < 1 {
		denom = 1
	}
	return float64(p.Upvotes) / float64(denom)
}

// PostedLogFile is the top-level shape of state/posted_log.json: an
// ordered, append-only (by number) sequence of post mirrors.
type PostedLogFile struct {
	Meta  Meta         `json:"_meta"`
	Posts []PostMirror `json:"posts"`
}

// IndexByNumber returns a lookup from forge post number to slice index.
func (f *PostedLogFile) IndexByNumber() map[int]int {
	idx := make(map[int]int, len(f.Posts))
	for i, p := range f.Posts {
		idx[p.Number] = i
	}
	return idx
}
