// Package reconciler implements the Reconciler (C9): the single-threaded
// batch merge of a Worker Stream result buffer into state, counter
// maintenance, changes-log pruning, soul-file appends, and forge-truth
// drift repair (spec §4.9).
//
// Grounded on spec §4.9 directly (no teacher component merges a batch of
// heterogeneous event records into counters this way); the atomic
// persistence idiom is C1's, and the append-only soul-file write mirrors
// the teacher's Session.Messages growth in internal/sessions/manager.go
// (grown only by Append, never rewritten).
package reconciler

import (
	"fmt"
	"time"

	"github.com/forgepulse/autonomy-engine/internal/state"
	"github.com/forgepulse/autonomy-engine/pkg/types"
)

// Config bundles the tunables spec §4.9 names.
type Config struct {
	// RetainWindow is T_retain: changes entries older than this are pruned
	// on every write.
	RetainWindow time.Duration

	// SummonWindow is T_summon: a poke target accumulates distinct pokers
	// within this rolling window toward SummonThreshold.
	SummonWindow time.Duration

	// SummonThreshold is the distinct-poker count that creates a summon
	// (spec §4.9 "default 3 distinct pokers").
	SummonThreshold int
}

// DefaultConfig matches SPEC_FULL.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		RetainWindow:    30 * 24 * time.Hour,
		SummonWindow:    24 * time.Hour,
		SummonThreshold: 3,
	}
}

// Reconciler owns the Store it writes through. It is the sole writer of
// every state file it touches (spec §3 "Ownership rules") and must never
// be invoked concurrently with itself.
type Reconciler struct {
	Store  *state.Store
	Config Config
}

// Reconcile merges results into snap (spec §4.9's per-kind handling),
// enforces the cross-file invariants, persists every touched file through
// the Store, and returns the new snapshot. snap must be the same snapshot
// the cycle's Orchestrator loaded — Reconcile does not re-read from disk,
// so a caller that wants the freshest on-disk view must reload first.
func (r *Reconciler) Reconcile(snap state.Snapshot, results []types.Result, now time.Time) (state.Snapshot, error) {
	prev := snap

	postedIdx := snap.PostedLog.IndexByNumber()

	for _, res := range results {
		switch v := res.(type) {
		case types.Created:
			r.applyCreated(&snap, v, now)
			postedIdx[v.Entry.Number] = len(snap.PostedLog.Posts) - 1

		case types.Commented:
			r.applyCommented(&snap, v, now, postedIdx)

		case types.Voted:
			r.touchHeartbeat(&snap, v.AuthorID, now)
			snap.Changes.Changes = append(snap.Changes.Changes, types.ChangeEntry{
				Kind: types.ChangeVoted, AgentID: v.AuthorID, PostNumber: v.PostNumber,
				Detail: v.ReactionKind, Timestamp: now,
			})

		case types.Poked:
			r.applyPoked(&snap, v, now)

		case types.Skipped:
			snap.Changes.Changes = append(snap.Changes.Changes, types.ChangeEntry{
				Kind: types.ChangeSkipped, AgentID: v.Task.AgentID, Detail: v.Reason, Timestamp: now,
			})

		case types.Failed:
			snap.Changes.Changes = append(snap.Changes.Changes, types.ChangeEntry{
				Kind: types.ChangeFailed, AgentID: v.Task.AgentID,
				Detail: fmt.Sprintf("%s: %s", v.Error, v.Detail), Timestamp: now,
			})
		}
	}

	snap.Changes.Changes = pruneChanges(snap.Changes.Changes, now, r.Config.RetainWindow)

	if err := state.ValidateInvariants(snap); err != nil {
		return snap, fmt.Errorf("reconciler: %w", err)
	}
	if err := state.MonotoneSince(prev, snap); err != nil {
		return snap, fmt.Errorf("reconciler: %w", err)
	}

	if err := r.persist(snap); err != nil {
		return snap, err
	}
	return snap, nil
}

func (r *Reconciler) applyCreated(snap *state.Snapshot, c types.Created, now time.Time) {
	snap.PostedLog.Posts = append(snap.PostedLog.Posts, c.Entry)
	snap.Stats.TotalPosts++

	if ch, ok := snap.Channels.Channels[c.Entry.ChannelSlug]; ok {
		ch.PostCount++
		snap.Channels.Channels[c.Entry.ChannelSlug] = ch
	}
	if a, ok := snap.Agents.Agents[c.Entry.AuthorID]; ok {
		a.PostCount++
		a.LastHeartbeat = now
		snap.Agents.Agents[c.Entry.AuthorID] = a
	}

	snap.Changes.Changes = append(snap.Changes.Changes, types.ChangeEntry{
		Kind: types.ChangeCreated, AgentID: c.Entry.AuthorID, PostNumber: c.Entry.Number,
		Detail: c.Entry.Title, Timestamp: now,
	})

	r.appendSoulLine(c.Entry.AuthorID, now, fmt.Sprintf("Posted %q in #%s (post #%d).", c.Entry.Title, c.Entry.ChannelSlug, c.Entry.Number))
}

func (r *Reconciler) applyCommented(snap *state.Snapshot, c types.Commented, now time.Time, postedIdx map[int]int) {
	snap.Stats.TotalComments++
	if a, ok := snap.Agents.Agents[c.AuthorID]; ok {
		a.CommentCount++
		a.LastHeartbeat = now
		snap.Agents.Agents[c.AuthorID] = a
	}

	if c.ParentAuthorID != "" && c.ParentAuthorID != c.AuthorID {
		snap.SocialGraph.Edges = addOrBumpEdge(snap.SocialGraph.Edges, c.AuthorID, c.ParentAuthorID)
	}

	if idx, ok := postedIdx[c.PostNumber]; ok {
		snap.PostedLog.Posts[idx].Comments++
	}

	snap.Changes.Changes = append(snap.Changes.Changes, types.ChangeEntry{
		Kind: types.ChangeComment, AgentID: c.AuthorID, PostNumber: c.PostNumber, Timestamp: now,
	})

	r.appendSoulLine(c.AuthorID, now, fmt.Sprintf("Commented on post #%d.", c.PostNumber))
}

func (r *Reconciler) applyPoked(snap *state.Snapshot, p types.Poked, now time.Time) {
	snap.Pokes.Pokes = append(snap.Pokes.Pokes, types.PokeEntry{
		From: p.From, To: p.To, Message: p.Message, Timestamp: p.Timestamp,
	})
	if a, ok := snap.Agents.Agents[p.From]; ok {
		a.PokeCount++
		a.LastHeartbeat = now
		snap.Agents.Agents[p.From] = a
	}

	snap.Changes.Changes = append(snap.Changes.Changes, types.ChangeEntry{
		Kind: types.ChangePoked, AgentID: p.From, Detail: p.To, Timestamp: now,
	})

	target, ok := snap.Agents.Agents[p.To]
	if !ok || target.Status != types.AgentDormant {
		return
	}

	pokers := distinctPokersWithin(snap.Pokes.Pokes, p.To, now, r.Config.SummonWindow)
	if len(pokers) < r.Config.SummonThreshold {
		return
	}
	if summonAlreadyActive(snap.Summons.Summons, p.To) {
		return
	}
	snap.Summons.Summons = append(snap.Summons.Summons, types.Summon{
		Target: p.To, CreatedAt: now, Pokers: pokers, ReactionCount: 0, Status: types.SummonActive,
	})
}

// touchHeartbeat advances agentID's last-heartbeat to now. Every result
// kind that reflects an agent actually acting this cycle calls this, so
// the Orchestrator's age-biased selection (spec §4.8 step 3) keeps
// rotating which agents are due rather than re-selecting the same
// stalest-heartbeat agents forever (spec §3 "mutated by the reconciler
// (heartbeat, counters, traits)").
func (r *Reconciler) touchHeartbeat(snap *state.Snapshot, agentID string, now time.Time) {
	if a, ok := snap.Agents.Agents[agentID]; ok {
		a.LastHeartbeat = now
		snap.Agents.Agents[agentID] = a
	}
}

func (r *Reconciler) appendSoulLine(agentID string, at time.Time, line string) {
	if agentID == "" {
		return
	}
	_ = r.Store.AppendMemory(agentID, fmt.Sprintf("- %s: %s", at.Format(time.RFC3339), line))
}

// ReconcileWithRemote implements spec §4.9's drift-repair seam: it never
// deletes a posted_log entry, only backfills ones forgeTruth has that the
// local mirror lacks, then recomputes stats/channel counters from the
// (now-backfilled) posted_log — a full recompute, not an increment, so it
// also corrects any prior drift in the counters themselves.
func (r *Reconciler) ReconcileWithRemote(snap state.Snapshot, forgeTruth []types.PostMirror, now time.Time) (state.Snapshot, error) {
	existing := snap.PostedLog.IndexByNumber()
	backfilled := 0
	for _, p := range forgeTruth {
		if _, ok := existing[p.Number]; ok {
			continue
		}
		snap.PostedLog.Posts = append(snap.PostedLog.Posts, p)
		existing[p.Number] = len(snap.PostedLog.Posts) - 1
		backfilled++
	}
	if backfilled > 0 {
		snap.Changes.Changes = append(snap.Changes.Changes, types.ChangeEntry{
			Kind: types.ChangeBackfill, Detail: fmt.Sprintf("%d posts backfilled from forge truth", backfilled), Timestamp: now,
		})
	}

	snap.Stats.TotalPosts = len(snap.PostedLog.Posts)
	counts := map[string]int{}
	for _, p := range snap.PostedLog.Posts {
		counts[p.ChannelSlug]++
	}
	for slug, ch := range snap.Channels.Channels {
		ch.PostCount = counts[slug]
		snap.Channels.Channels[slug] = ch
	}

	if err := state.ValidateInvariants(snap); err != nil {
		return snap, fmt.Errorf("reconciler: drift repair: %w", err)
	}
	if err := r.persist(snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// CheckResurrections re-scans every active summon and flips its target
// agent back to active once the summon's distinct-poker count (computed
// over the same SummonWindow used to create it) reaches threshold
// (K_resurrect, SPEC_FULL.md Open Question resolution #1). Intended to
// be invoked periodically by the Continuous Runner (C11), not on every
// cycle (spec §4.9 "invoked periodically"). Returns the ids of every
// agent resurrected this call.
func (r *Reconciler) CheckResurrections(snap state.Snapshot, threshold int, now time.Time) (state.Snapshot, []string, error) {
	prev := snap
	var resurrected []string

	for i := range snap.Summons.Summons {
		s := &snap.Summons.Summons[i]
		if s.Status != types.SummonActive {
			continue
		}
		pokers := distinctPokersWithin(snap.Pokes.Pokes, s.Target, now, r.Config.SummonWindow)
		s.ReactionCount = len(pokers)
		if len(pokers) < threshold {
			continue
		}

		s.Status = types.SummonResolved
		resolvedAt := now
		s.ResolvedAt = &resolvedAt

		if a, ok := snap.Agents.Agents[s.Target]; ok {
			a.Status = types.AgentActive
			a.LastHeartbeat = now
			snap.Agents.Agents[s.Target] = a
		}

		snap.Changes.Changes = append(snap.Changes.Changes, types.ChangeEntry{
			Kind: types.ChangeResurrected, AgentID: s.Target, Timestamp: now,
		})
		resurrected = append(resurrected, s.Target)
	}

	if len(resurrected) == 0 {
		return snap, nil, nil
	}

	snap.Changes.Changes = pruneChanges(snap.Changes.Changes, now, r.Config.RetainWindow)

	if err := state.ValidateInvariants(snap); err != nil {
		return snap, nil, fmt.Errorf("reconciler: resurrection: %w", err)
	}
	if err := state.MonotoneSince(prev, snap); err != nil {
		return snap, nil, fmt.Errorf("reconciler: resurrection: %w", err)
	}
	if err := r.persist(snap); err != nil {
		return snap, nil, err
	}
	return snap, resurrected, nil
}

func (r *Reconciler) persist(snap state.Snapshot) error {
	writers := []func() error{
		func() error { return r.Store.WritePostedLog(snap.PostedLog) },
		func() error { return r.Store.WriteStats(snap.Stats) },
		func() error { return r.Store.WriteChannels(snap.Channels) },
		func() error { return r.Store.WriteAgents(snap.Agents) },
		func() error { return r.Store.WriteChanges(snap.Changes) },
		func() error { return r.Store.WritePokes(snap.Pokes) },
		func() error { return r.Store.WriteSummons(snap.Summons) },
		func() error { return r.Store.WriteSocialGraph(snap.SocialGraph) },
	}
	for _, w := range writers {
		if err := w(); err != nil {
			return fmt.Errorf("reconciler: persist: %w", err)
		}
	}
	return nil
}

func pruneChanges(changes []types.ChangeEntry, now time.Time, retain time.Duration) []types.ChangeEntry {
	cutoff := now.Add(-retain)
	kept := changes[:0:0]
	for _, c := range changes {
		if c.Timestamp.After(cutoff) {
			kept = append(kept, c)
		}
	}
	return kept
}

func addOrBumpEdge(edges []types.SocialEdge, from, to string) []types.SocialEdge {
	for i := range edges {
		if edges[i].From == from && edges[i].To == to {
			edges[i].Weight++
			return edges
		}
	}
	return append(edges, types.SocialEdge{From: from, To: to, Weight: 1})
}

func distinctPokersWithin(pokes []types.PokeEntry, target string, now time.Time, window time.Duration) []string {
	cutoff := now.Add(-window)
	seen := map[string]bool{}
	var out []string
	for _, p := range pokes {
		if p.To != target || p.Timestamp.Before(cutoff) {
			continue
		}
		if !seen[p.From] {
			seen[p.From] = true
			out = append(out, p.From)
		}
	}
	return out
}

func summonAlreadyActive(summons []types.Summon, target string) bool {
	for _, s := range summons {
		if s.Target == target && s.Status == types.SummonActive {
			return true
		}
	}
	return false
}
