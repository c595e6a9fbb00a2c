package state

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// memoryFilenameSafe mirrors the teacher's sessions.Manager.sanitizeFilename:
// an agent ID becomes a filesystem-safe basename by replacing anything
// outside [A-Za-z0-9_-] with "_".
var memoryFilenameUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

func memoryFilenameSafe(agentID string) string {
	return memoryFilenameUnsafe.ReplaceAllString(agentID, "_")
}

// ReadMemory returns an agent's free-form memory markdown (spec §3 "soul
// files"), or "" if the agent has never written one.
func (s *Store) ReadMemory(agentID string) (string, error) {
	path := filepath.Join(s.dir, memoryDir, memoryFilenameSafe(agentID)+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("state: read memory for %s: %w", agentID, err)
	}
	return string(data), nil
}

// AppendMemory appends entry (already formatted by the caller, typically
// a timestamped bullet) to an agent's soul file. Soul files are
// append-only (spec §4.9 invariant 6): this never rewrites prior content,
// only grows the file, via O_APPEND so a crash mid-write can at worst
// leave a truncated final line, never corrupt an earlier one.
func (s *Store) AppendMemory(agentID, entry string) error {
	path := filepath.Join(s.dir, memoryDir, memoryFilenameSafe(agentID)+".md")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("state: open memory for %s: %w", agentID, err)
	}
	defer f.Close()
	if !strings.HasSuffix(entry, "\n") {
		entry += "\n"
	}
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("state: append memory for %s: %w", agentID, err)
	}
	return f.Sync()
}

// InboxMessage is one delta file under state/inbox/, written by a poke and
// consumed (then deleted) by the Reconciler on the poke target's next
// active cycle (spec §4.6 "inbox delta files" ownership rule: any worker
// may create one, only the Reconciler deletes one).
type InboxMessage struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// WriteInbox creates a new inbox delta file for msg.To. The filename is
// spec §6's `<agent-id>-<unix-ts-ms>.json` — two fields, millisecond
// resolution, no sender suffix. Two pokes landing on the same target in
// the same millisecond collide by construction (spec names exactly this
// format; C7's partitioning already guarantees single-writer-per-agent,
// so the only source of a same-millisecond collision is two different
// senders' streams, an accepted rarity at this resolution).
func (s *Store) WriteInbox(msg InboxMessage) error {
	name := fmt.Sprintf("%s-%d.json", memoryFilenameSafe(msg.To), msg.Timestamp.UnixMilli())
	return s.atomicWrite(filepath.Join(inboxDir, name), msg)
}

// DrainInbox returns and deletes every pending inbox message addressed to
// agentID, oldest first. Only the Reconciler calls this (spec ownership
// rule); it is not safe for two goroutines to drain the same agent's
// inbox concurrently.
func (s *Store) DrainInbox(agentID string) ([]InboxMessage, error) {
	dir := filepath.Join(s.dir, inboxDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("state: scan inbox: %w", err)
	}

	prefix := memoryFilenameSafe(agentID) + "-"
	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".json") {
			// The rest must be the bare timestamp, so draining "ana" leaves
			// "ana-b-<ts>.json" (addressed to agent "ana-b") alone.
			if strings.Contains(strings.TrimSuffix(e.Name()[len(prefix):], ".json"), "-") {
				continue
			}
			matches = append(matches, e.Name())
		}
	}
	sort.Strings(matches) // millisecond timestamp suffix sorts chronologically

	var out []InboxMessage
	for _, name := range matches {
		var msg InboxMessage
		if err := s.read(filepath.Join(inboxDir, name), &msg); err != nil {
			return out, fmt.Errorf("state: read inbox entry %s: %w", name, err)
		}
		out = append(out, msg)
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return out, fmt.Errorf("state: remove drained inbox entry %s: %w", name, err)
		}
	}
	return out, nil
}
