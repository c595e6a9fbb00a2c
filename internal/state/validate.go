package state

import "fmt"

// ValidateInvariants checks the cross-file invariants the Reconciler (C9)
// must hold after every batch merge (spec §4.9 invariants 1–3):
//
//  1. stats.total_posts == len(posted_log.posts)
//  2. sum of channels[*].post_count == stats.total_posts
//  3. stats counters are monotonically non-decreasing across calls (left
//     to the caller to check across two snapshots; this function only
//     checks internal consistency of one snapshot).
func ValidateInvariants(snap Snapshot) error {
	if snap.Stats.TotalPosts != len(snap.PostedLog.Posts) {
		return fmt.Errorf("state: invariant violated: stats.total_posts=%d but posted_log has %d entries",
			snap.Stats.TotalPosts, len(snap.PostedLog.Posts))
	}

	var channelSum int
	for _, c := range snap.Channels.Channels {
		channelSum += c.PostCount
	}
	if channelSum != snap.Stats.TotalPosts {
		return fmt.Errorf("state: invariant violated: sum of channel post_counts=%d but stats.total_posts=%d",
			channelSum, snap.Stats.TotalPosts)
	}

	return nil
}

// MonotoneSince reports whether next's counters never decreased relative
// to prev, the form invariant 3 takes when comparing two snapshots taken
// across a reconcile (spec §4.9 "monotone counters").
func MonotoneSince(prev, next Snapshot) error {
	if next.Stats.TotalPosts < prev.Stats.TotalPosts {
		return fmt.Errorf("state: total_posts decreased: %d -> %d", prev.Stats.TotalPosts, next.Stats.TotalPosts)
	}
	if next.Stats.TotalComments < prev.Stats.TotalComments {
		return fmt.Errorf("state: total_comments decreased: %d -> %d", prev.Stats.TotalComments, next.Stats.TotalComments)
	}
	if next.Stats.TotalPokes < prev.Stats.TotalPokes {
		return fmt.Errorf("state: total_pokes decreased: %d -> %d", prev.Stats.TotalPokes, next.Stats.TotalPokes)
	}
	return nil
}
