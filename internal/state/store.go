// Package state implements the typed readers/writers over the flat JSON
// state files (spec §3, §4.1): atomic temp-file-then-rename writes,
// `_meta.count` cross-checking, and the "never write corrupt output" rule
// (a read of structurally invalid JSON is refused, not repaired).
//
// Grounded on internal/sessions/manager.go's Save/loadAll pair in the
// teacher repo: same-directory temp file, Sync, os.Rename, directory scan
// on load.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forgepulse/autonomy-engine/pkg/types"
)

// ErrNotFound is returned by Read when the requested file does not exist.
var ErrNotFound = errors.New("state: not found")

// ErrCorrupt is returned when a file's contents fail to parse as JSON or
// fail structural validation (spec §4.1 "fail the cycle and refuse to
// write (corrupt input must never become corrupt output)").
var ErrCorrupt = errors.New("state: corrupt")

// ErrMetaCountMismatch is returned by checkCount when `_meta.count` disagrees
// with the number of entries the file actually summarizes.
var ErrMetaCountMismatch = errors.New("state: _meta.count mismatch")

const (
	fileAgents      = "agents.json"
	fileChannels    = "channels.json"
	fileStats       = "stats.json"
	filePostedLog   = "posted_log.json"
	fileChanges     = "changes.json"
	fileTrending    = "trending.json"
	filePokes       = "pokes.json"
	fileSummons     = "summons.json"
	filePredictions = "predictions.json"
	fileSocialGraph = "social_graph.json"
	fileGhostMemory = "ghost_memory.json"

	memoryDir = "memory"
	inboxDir  = "inbox"
)

// Store is the sole writer for every state file except inbox delta files
// (spec §3 "Ownership rules"). A Store is bound to one STATE_DIR and is
// safe for concurrent reads; writes must be serialized by the caller (the
// Reconciler, C9, is the only writer in this engine's design).
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating dir, dir/memory, and
// dir/inbox if they do not already exist.
func New(dir string) (*Store, error) {
	for _, sub := range []string{"", memoryDir, inboxDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("state: mkdir %s: %w", sub, err)
		}
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root state directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

// read loads and JSON-decodes the named file into v. It returns
// ErrNotFound if the file is absent and ErrCorrupt wrapping the decode
// error if the contents don't parse.
func (s *Store) read(name string, v interface{}) error {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("state: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return nil
}

// atomicWrite marshals v and writes it to name via a same-directory temp
// file, fsync, then rename-over-target, guaranteeing any concurrent reader
// sees either the fully previous or fully new contents (spec §4.1).
func (s *Store) atomicWrite(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal %s: %w", name, err)
	}

	target := s.path(name)
	tmp, err := os.CreateTemp(s.dir, ".tmp-"+filepath.Base(name)+"-*")
	if err != nil {
		return fmt.Errorf("state: create temp for %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("state: write temp for %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("state: fsync temp for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: close temp for %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("state: rename into %s: %w", name, err)
	}
	cleanup = false
	return nil
}

// Now is a seam for deterministic tests; production code always calls
// time.Now().UTC().
var Now = func() time.Time { return time.Now().UTC() }

func newMeta(count int) types.Meta {
	return types.Meta{LastUpdated: Now(), Count: count}
}
