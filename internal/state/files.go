package state

import (
	"fmt"

	"github.com/forgepulse/autonomy-engine/pkg/types"
)

// ReadAgents loads agents.json. A missing file returns ErrNotFound, which
// LoadSnapshot treats as fatal; other callers decide for themselves
// whether an absent roster is acceptable.
func (s *Store) ReadAgents() (types.AgentsFile, error) {
	var f types.AgentsFile
	if err := s.read(fileAgents, &f); err != nil {
		return f, err
	}
	if err := checkCount(f.Meta.Count, len(f.Agents)); err != nil {
		return f, fmt.Errorf("%s: %w", fileAgents, err)
	}
	return f, nil
}

// WriteAgents persists agents.json, recomputing _meta.count.
func (s *Store) WriteAgents(f types.AgentsFile) error {
	f.Meta = newMeta(len(f.Agents))
	return s.atomicWrite(fileAgents, f)
}

func (s *Store) ReadChannels() (types.ChannelsFile, error) {
	var f types.ChannelsFile
	if err := s.read(fileChannels, &f); err != nil {
		return f, err
	}
	if err := checkCount(f.Meta.Count, len(f.Channels)); err != nil {
		return f, fmt.Errorf("%s: %w", fileChannels, err)
	}
	return f, nil
}

func (s *Store) WriteChannels(f types.ChannelsFile) error {
	f.Meta = newMeta(len(f.Channels))
	return s.atomicWrite(fileChannels, f)
}

func (s *Store) ReadStats() (types.StatsFile, error) {
	var f types.StatsFile
	err := s.read(fileStats, &f)
	return f, err
}

func (s *Store) WriteStats(f types.StatsFile) error {
	f.Meta = newMeta(f.TotalPosts + f.TotalComments + f.TotalPokes)
	return s.atomicWrite(fileStats, f)
}

func (s *Store) ReadPostedLog() (types.PostedLogFile, error) {
	var f types.PostedLogFile
	if err := s.read(filePostedLog, &f); err != nil {
		return f, err
	}
	if err := checkCount(f.Meta.Count, len(f.Posts)); err != nil {
		return f, fmt.Errorf("%s: %w", filePostedLog, err)
	}
	return f, nil
}

func (s *Store) WritePostedLog(f types.PostedLogFile) error {
	f.Meta = newMeta(len(f.Posts))
	return s.atomicWrite(filePostedLog, f)
}

func (s *Store) ReadChanges() (types.ChangesFile, error) {
	var f types.ChangesFile
	err := s.read(fileChanges, &f)
	return f, err
}

func (s *Store) WriteChanges(f types.ChangesFile) error {
	f.Meta = newMeta(len(f.Changes))
	return s.atomicWrite(fileChanges, f)
}

func (s *Store) ReadTrending() (types.TrendingFile, error) {
	var f types.TrendingFile
	err := s.read(fileTrending, &f)
	return f, err
}

func (s *Store) WriteTrending(f types.TrendingFile) error {
	f.Meta = newMeta(len(f.Channels))
	return s.atomicWrite(fileTrending, f)
}

func (s *Store) ReadPokes() (types.PokesFile, error) {
	var f types.PokesFile
	err := s.read(filePokes, &f)
	return f, err
}

func (s *Store) WritePokes(f types.PokesFile) error {
	f.Meta = newMeta(len(f.Pokes))
	return s.atomicWrite(filePokes, f)
}

func (s *Store) ReadSummons() (types.SummonsFile, error) {
	var f types.SummonsFile
	err := s.read(fileSummons, &f)
	return f, err
}

func (s *Store) WriteSummons(f types.SummonsFile) error {
	f.Meta = newMeta(len(f.Summons))
	return s.atomicWrite(fileSummons, f)
}

func (s *Store) ReadPredictions() (types.PredictionsFile, error) {
	var f types.PredictionsFile
	err := s.read(filePredictions, &f)
	return f, err
}

func (s *Store) WritePredictions(f types.PredictionsFile) error {
	f.Meta = newMeta(len(f.Predictions))
	return s.atomicWrite(filePredictions, f)
}

func (s *Store) ReadSocialGraph() (types.SocialGraphFile, error) {
	var f types.SocialGraphFile
	err := s.read(fileSocialGraph, &f)
	return f, err
}

func (s *Store) WriteSocialGraph(f types.SocialGraphFile) error {
	f.Meta = newMeta(len(f.Edges))
	return s.atomicWrite(fileSocialGraph, f)
}

func (s *Store) ReadGhostMemory() (types.GhostMemoryFile, error) {
	var f types.GhostMemoryFile
	err := s.read(fileGhostMemory, &f)
	return f, err
}

func (s *Store) WriteGhostMemory(f types.GhostMemoryFile) error {
	f.Meta = newMeta(len(f.Ghosts))
	return s.atomicWrite(fileGhostMemory, f)
}

// checkCount enforces the `_meta.count` invariant (spec §4.1): a file
// whose declared count disagrees with its actual entry count is treated
// as corrupt, not silently trusted.
func checkCount(declared, actual int) error {
	if declared != actual {
		return ErrMetaCountMismatch
	}
	return nil
}
