package pulse

import (
	"testing"
	"time"

	"github.com/forgepulse/autonomy-engine/internal/state"
	"github.com/forgepulse/autonomy-engine/pkg/types"
)

func TestBuildComputesMomentumBuckets(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	mkPost := func(channel string, age time.Duration) types.PostMirror {
		return types.PostMirror{ChannelSlug: channel, CreatedAt: now.Add(-age), Upvotes: 1, Comments: 1}
	}

	snap := state.Snapshot{
		Channels: types.ChannelsFile{Channels: map[string]types.Channel{
			"code": {Slug: "code", TargetRatio: 1.0},
			"art":  {Slug: "art", TargetRatio: 1.0},
		}},
		PostedLog: types.PostedLogFile{Posts: []types.PostMirror{
			mkPost("code", time.Hour),
			mkPost("code", 2 * time.Hour),
			mkPost("code", 3 * time.Hour),
			mkPost("code", 4 * time.Hour),
			mkPost("code", 5 * time.Hour),
			mkPost("art", 48 * time.Hour),
		}},
	}

	p := Build(snap, now, 72*time.Hour, DefaultMomentumThresholds())

	code := p.ChannelBySlug("code")
	if code == nil || code.Momentum != types.MomentumOnFire {
		t.Fatalf("expected code to be on-fire, got %+v", code)
	}
	art := p.ChannelBySlug("art")
	if art == nil || art.Momentum != types.MomentumWarm {
		t.Fatalf("expected art to be warm, got %+v", art)
	}
}

func TestBuildOrdersUnderDiscussedByRatioGapDescending(t *testing.T) {
	now := time.Now().UTC()
	snap := state.Snapshot{
		Channels: types.ChannelsFile{Channels: map[string]types.Channel{
			"code": {Slug: "code", TargetRatio: 1.0},
		}},
		PostedLog: types.PostedLogFile{Posts: []types.PostMirror{
			{ChannelSlug: "code", CreatedAt: now.Add(-time.Hour), Upvotes: 2, Comments: 1},  // ratio 2, gap 1
			{ChannelSlug: "code", CreatedAt: now.Add(-time.Hour), Upvotes: 5, Comments: 1},  // ratio 5, gap 4
		}},
	}

	p := Build(snap, now, 72*time.Hour, DefaultMomentumThresholds())
	if len(p.UnderDiscussed) != 2 {
		t.Fatalf("expected 2 under-discussed posts, got %d", len(p.UnderDiscussed))
	}
	if p.UnderDiscussed[0].RatioGap < p.UnderDiscussed[1].RatioGap {
		t.Fatalf("expected descending ratio-gap order, got %+v", p.UnderDiscussed)
	}
}

func TestBuildExcludesPostsOutsideWindow(t *testing.T) {
	now := time.Now().UTC()
	snap := state.Snapshot{
		Channels: types.ChannelsFile{Channels: map[string]types.Channel{
			"code": {Slug: "code", TargetRatio: 1.0},
		}},
		PostedLog: types.PostedLogFile{Posts: []types.PostMirror{
			{ChannelSlug: "code", CreatedAt: now.Add(-200 * time.Hour), Upvotes: 10, Comments: 1},
		}},
	}

	p := Build(snap, now, 72*time.Hour, DefaultMomentumThresholds())
	code := p.ChannelBySlug("code")
	if code.Count72h != 0 {
		t.Fatalf("expected stale post excluded from 72h window, got count=%d", code.Count72h)
	}
	if len(p.UnderDiscussed) != 0 {
		t.Fatalf("expected stale post excluded from under-discussed, got %+v", p.UnderDiscussed)
	}
}

func TestBuildIsPureNoMutation(t *testing.T) {
	now := time.Now().UTC()
	snap := state.Snapshot{
		Channels:  types.ChannelsFile{Channels: map[string]types.Channel{"code": {Slug: "code", TargetRatio: 1.0}}},
		PostedLog: types.PostedLogFile{Posts: []types.PostMirror{{ChannelSlug: "code", CreatedAt: now, Upvotes: 1, Comments: 1}}},
	}
	before := len(snap.PostedLog.Posts)
	_ = Build(snap, now, 72*time.Hour, DefaultMomentumThresholds())
	_ = Build(snap, now, 72*time.Hour, DefaultMomentumThresholds())
	if len(snap.PostedLog.Posts) != before {
		t.Fatal("Build must not mutate its input snapshot")
	}
}
