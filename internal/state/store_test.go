package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/forgepulse/autonomy-engine/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestWriteReadAgentsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	want := types.AgentsFile{
		Agents: map[string]types.Agent{
			"ana": {ID: "ana", DisplayName: "Ana", Status: types.AgentActive},
		},
	}
	if err := s.WriteAgents(want); err != nil {
		t.Fatalf("WriteAgents: %v", err)
	}

	got, err := s.ReadAgents()
	if err != nil {
		t.Fatalf("ReadAgents: %v", err)
	}
	if len(got.Agents) != 1 || got.Agents["ana"].DisplayName != "Ana" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Meta.Count != 1 {
		t.Fatalf("expected meta.count=1, got %d", got.Meta.Count)
	}
}

func TestReadMissingOptionalFileIsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReadStats()
	if err == nil {
		t.Fatal("expected ErrNotFound for missing stats.json")
	}
	if got := absentIsEmpty(err); got != nil {
		t.Fatalf("absentIsEmpty should treat ErrNotFound as nil, got %v", got)
	}
}

func TestReadMetaCountMismatchIsRejected(t *testing.T) {
	s := newTestStore(t)
	bad := types.AgentsFile{
		Meta:   types.Meta{Count: 5},
		Agents: map[string]types.Agent{"ana": {ID: "ana"}},
	}
	// bypass WriteAgents (which recomputes count) to simulate a tampered file
	if err := s.atomicWrite(fileAgents, bad); err != nil {
		t.Fatalf("atomicWrite: %v", err)
	}

	if _, err := s.ReadAgents(); err == nil {
		t.Fatal("expected meta count mismatch error")
	}
}

func TestAtomicWriteSurvivesConcurrentReaders(t *testing.T) {
	// Not a true concurrency test (that would need fault injection on
	// os.Rename), but exercises that a write never leaves a partial file
	// at the target path: the temp file must not exist after success.
	s := newTestStore(t)
	if err := s.WriteChannels(types.ChannelsFile{Channels: map[string]types.Channel{}}); err != nil {
		t.Fatalf("WriteChannels: %v", err)
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, ".tmp-*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("leftover temp files: %v", matches)
	}
}

func TestAppendMemoryIsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	if err := s.AppendMemory("ana", "first entry"); err != nil {
		t.Fatalf("AppendMemory: %v", err)
	}
	if err := s.AppendMemory("ana", "second entry"); err != nil {
		t.Fatalf("AppendMemory: %v", err)
	}
	got, err := s.ReadMemory("ana")
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	want := "first entry\nsecond entry\n"
	if got != want {
		t.Fatalf("ReadMemory = %q, want %q", got, want)
	}
}

func TestInboxWriteAndDrainIsOrderedAndDeletes(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, from := range []string{"bo", "cy", "dex"} {
		msg := InboxMessage{From: from, To: "ana", Message: "hey", Timestamp: base.Add(time.Duration(i) * time.Second)}
		if err := s.WriteInbox(msg); err != nil {
			t.Fatalf("WriteInbox: %v", err)
		}
	}

	drained, err := s.DrainInbox("ana")
	if err != nil {
		t.Fatalf("DrainInbox: %v", err)
	}
	if len(drained) != 3 {
		t.Fatalf("expected 3 drained messages, got %d", len(drained))
	}
	for i, want := range []string{"bo", "cy", "dex"} {
		if drained[i].From != want {
			t.Fatalf("drained[%d].From = %q, want %q (order not chronological)", i, drained[i].From, want)
		}
	}

	again, err := s.DrainInbox("ana")
	if err != nil {
		t.Fatalf("second DrainInbox: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected inbox drained to empty, got %d leftover", len(again))
	}
}

func TestValidateInvariantsCatchesMismatch(t *testing.T) {
	snap := Snapshot{
		Stats:     types.StatsFile{TotalPosts: 2},
		PostedLog: types.PostedLogFile{Posts: []types.PostMirror{{}}},
	}
	if err := ValidateInvariants(snap); err == nil {
		t.Fatal("expected invariant violation for stats/posted_log mismatch")
	}
}

func TestMonotoneSinceRejectsDecrease(t *testing.T) {
	prev := Snapshot{Stats: types.StatsFile{TotalPosts: 5}}
	next := Snapshot{Stats: types.StatsFile{TotalPosts: 4}}
	if err := MonotoneSince(prev, next); err == nil {
		t.Fatal("expected monotonicity violation")
	}
}
