package state

import (
	"errors"

	"github.com/forgepulse/autonomy-engine/pkg/types"
)

// Snapshot is the consistent, read-only bundle of every state file loaded
// at the start of one orchestration cycle (spec §4.8 step 1: "Load a
// consistent snapshot of all state files"). Holding reads in one struct
// instead of re-reading file-by-file mid-cycle is what makes the Pulse
// Builder and Decision Kernel operate over one fixed view even if the
// Reconciler from a prior cycle is still flushing to disk concurrently —
// os.Rename in atomicWrite means a concurrent reader never observes a
// torn file, only an old-or-new one.
type Snapshot struct {
	Agents      types.AgentsFile
	Channels    types.ChannelsFile
	Stats       types.StatsFile
	PostedLog   types.PostedLogFile
	Changes     types.ChangesFile
	Trending    types.TrendingFile
	Pokes       types.PokesFile
	Summons     types.SummonsFile
	Predictions types.PredictionsFile
	SocialGraph types.SocialGraphFile
	GhostMemory types.GhostMemoryFile
}

// absentIsEmpty treats ErrNotFound as "file not yet created" and returns
// the zero value; any other error (including ErrCorrupt) propagates.
func absentIsEmpty(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// LoadSnapshot reads every state file into one Snapshot. Required files
// (agents, channels) must exist; the rest are optional and default to
// empty on first run, matching the bootstrap behavior of a freshly
// onboarded roster (spec §4.1 "missing optional files are treated as
// empty, not as an error").
func (s *Store) LoadSnapshot() (Snapshot, error) {
	var snap Snapshot
	var err error

	if snap.Agents, err = s.ReadAgents(); err != nil {
		return snap, err
	}
	if snap.Channels, err = s.ReadChannels(); err != nil {
		return snap, err
	}

	if snap.Stats, err = s.ReadStats(); absentIsEmpty(err) != nil {
		return snap, err
	}
	if snap.PostedLog, err = s.ReadPostedLog(); absentIsEmpty(err) != nil {
		return snap, err
	}
	if snap.Changes, err = s.ReadChanges(); absentIsEmpty(err) != nil {
		return snap, err
	}
	if snap.Trending, err = s.ReadTrending(); absentIsEmpty(err) != nil {
		return snap, err
	}
	if snap.Pokes, err = s.ReadPokes(); absentIsEmpty(err) != nil {
		return snap, err
	}
	if snap.Summons, err = s.ReadSummons(); absentIsEmpty(err) != nil {
		return snap, err
	}
	if snap.Predictions, err = s.ReadPredictions(); absentIsEmpty(err) != nil {
		return snap, err
	}
	if snap.SocialGraph, err = s.ReadSocialGraph(); absentIsEmpty(err) != nil {
		return snap, err
	}
	if snap.GhostMemory, err = s.ReadGhostMemory(); absentIsEmpty(err) != nil {
		return snap, err
	}

	return snap, nil
}
