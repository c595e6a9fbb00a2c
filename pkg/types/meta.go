package types

import "time"

// Meta is the top-level `_meta` object every state file carries (spec §6):
// `{last_updated, count}`. Count semantics are file-specific (see each
// file's schema in internal/state): every write recomputes count from the
// file's own enumerated entries, and reads of agents, channels and
// posted_log reject a count that disagrees with them (spec §4.1).
type Meta struct {
	LastUpdated time.Time `json:"last_updated"`
	Count       int       `json:"count"`
}
