// Package pulse implements the Pulse Builder (spec §4.5): a pure function
// from a state snapshot to the per-cycle derived signal every worker
// stream reads from but none may mutate.
//
// Grounded on spec §4.5 directly — no teacher analog computes engagement
// ratios — written in the teacher's plain-function, no-side-effects style
// seen in internal/config/config_load.go's derivation helpers (a function
// that takes inputs, returns a value, touches no package state).
package pulse

import (
	"sort"
	"time"

	"github.com/forgepulse/autonomy-engine/internal/state"
	"github.com/forgepulse/autonomy-engine/pkg/types"
)

// MomentumThresholds configures the on-fire/hot/warm/cold bucketing (spec
// §4.5 "momentum bucket... by thresholds"). Defaults are this
// implementation's choice, documented in DESIGN.md since the spec leaves
// the exact numbers unspecified.
type MomentumThresholds struct {
	OnFireCount24h int // >= this many posts in 24h is on-fire
	HotCount24h    int // >= this many posts in 24h (below OnFire) is hot
	WarmCount72h   int // >= this many posts in 72h (below Hot) is warm; else cold
}

// DefaultMomentumThresholds matches the values documented in DESIGN.md.
func DefaultMomentumThresholds() MomentumThresholds {
	return MomentumThresholds{OnFireCount24h: 5, HotCount24h: 2, WarmCount72h: 1}
}

func (m MomentumThresholds) bucket(count24h, count72h int) types.MomentumBucket {
	switch {
	case count24h >= m.OnFireCount24h:
		return types.MomentumOnFire
	case count24h >= m.HotCount24h:
		return types.MomentumHot
	case count72h >= m.WarmCount72h:
		return types.MomentumWarm
	default:
		return types.MomentumCold
	}
}

// Build computes a Pulse from snap as of now, with recentWindow bounding
// which posted_log entries count toward the 72h activity window (spec
// §4.5 build_pulse(state_snapshot, recent_window)). It performs no I/O
// and mutates nothing in snap.
func Build(snap state.Snapshot, now time.Time, recentWindow time.Duration, thresholds MomentumThresholds) types.Pulse {
	window24h := now.Add(-24 * time.Hour)
	window72h := now.Add(-recentWindow)

	counts24h := map[string]int{}
	counts72h := map[string]int{}
	for _, p := range snap.PostedLog.Posts {
		if p.CreatedAt.After(window72h) {
			counts72h[p.ChannelSlug]++
			if p.CreatedAt.After(window24h) {
				counts24h[p.ChannelSlug]++
			}
		}
	}

	channels := make([]types.ChannelPulse, 0, len(snap.Channels.Channels))
	for slug, ch := range snap.Channels.Channels {
		c24, c72 := counts24h[slug], counts72h[slug]
		channels = append(channels, types.ChannelPulse{
			Slug:        slug,
			Count24h:    c24,
			Count72h:    c72,
			Momentum:    thresholds.bucket(c24, c72),
			TargetRatio: ch.TargetRatio,
			Deficit:     deficit(ch.TargetRatio, c72),
		})
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Slug < channels[j].Slug })

	var underDiscussed []types.UnderDiscussedPost
	for _, p := range snap.PostedLog.Posts {
		if !p.CreatedAt.After(window72h) {
			continue
		}
		ch, ok := snap.Channels.Channels[p.ChannelSlug]
		if !ok {
			continue
		}
		actual := p.Ratio()
		if actual <= ch.TargetRatio {
			continue
		}
		underDiscussed = append(underDiscussed, types.UnderDiscussedPost{
			Post:        p,
			RatioGap:    actual - ch.TargetRatio,
			ChannelSlug: p.ChannelSlug,
		})
	}
	sort.Slice(underDiscussed, func(i, j int) bool {
		if underDiscussed[i].RatioGap != underDiscussed[j].RatioGap {
			return underDiscussed[i].RatioGap > underDiscussed[j].RatioGap
		}
		return underDiscussed[i].Post.CreatedAt.After(underDiscussed[j].Post.CreatedAt)
	})

	return types.Pulse{
		BuiltAt:              now,
		Channels:             channels,
		UnderDiscussed:       underDiscussed,
		PredictionsDue:       predictionsDue(snap, now),
		SummonsNearThreshold: summonsNearThreshold(snap),
		DormantAgents:        dormantAgents(snap),
	}
}

// dormantAgents returns the ids of every AgentDormant agent, sorted so
// the poke target pool is deterministic given the same snapshot.
func dormantAgents(snap state.Snapshot) []string {
	var ids []string
	for id, a := range snap.Agents.Agents {
		if a.Status == types.AgentDormant {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// deficit is positive when a channel is running cold relative to its
// target ratio (spec §4.5's Channel Selection in C6 reads this as a
// boost signal): a channel with zero recent activity and a positive
// target ratio has maximal deficit equal to the target itself.
func deficit(targetRatio float64, count72h int) float64 {
	if count72h > 0 {
		return 0
	}
	return targetRatio
}

// predictionsDue returns pending predictions whose resolution date has
// passed as of now (spec §4.9 "prediction resolutions due").
func predictionsDue(snap state.Snapshot, now time.Time) []types.Prediction {
	var due []types.Prediction
	for _, pred := range snap.Predictions.Predictions {
		if pred.Status != types.PredictionPending {
			continue
		}
		if pred.ResolutionDate != nil && !pred.ResolutionDate.After(now) {
			due = append(due, pred)
		}
	}
	return due
}

// summonsNearThreshold returns every active summon, so the pulse can
// surface them for agents who might poke one more time and tip a
// resurrection (spec §4.5 "summons near threshold"). It does not filter by
// how close a summon's poker count is to K_resurrect.
func summonsNearThreshold(snap state.Snapshot) []types.Summon {
	var near []types.Summon
	for _, s := range snap.Summons.Summons {
		if s.Status == types.SummonActive {
			near = append(near, s)
		}
	}
	return near
}
