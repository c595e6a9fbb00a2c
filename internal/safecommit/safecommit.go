// Package safecommit implements the Safe-Commit Protocol (C10, spec
// §4.10): stage/commit/push a file set with rebase-or-reset-reapply
// recovery when the push is rejected by a concurrent sibling writer, and
// JSON re-validation after every rebase or reapply, before the push that
// follows it, within a bounded number of attempts.
//
// Grounded on Strob0t-CodeForge/internal/adapter/gitlocal/provider.go's
// runGit (exec.CommandContext, combined stdout/stderr capture, trimmed
// stderr surfaced in the error) and internal/git/pool.go's weighted
// semaphore (serializes concurrent git CLI invocations across whatever
// else in this process shells out to git).
package safecommit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/forgepulse/autonomy-engine/internal/state"
)

// ErrAttemptsExhausted is returned when a commit could not be landed
// within Config.MaxAttempts (spec §4.10 step 7).
var ErrAttemptsExhausted = errors.New("safecommit: exhausted attempts without a successful push")

// Config bundles the tunables spec §4.10 names.
type Config struct {
	// MaxAttempts is A_max, default 5.
	MaxAttempts int

	// RepoDir is the working tree the git CLI operates in.
	RepoDir string

	// CommitMessage is used verbatim for every commit this protocol makes.
	CommitMessage string

	// Remote and Branch identify the push target.
	Remote string
	Branch string
}

// DefaultConfig matches SPEC_FULL.md's documented defaults.
func DefaultConfig(repoDir string) Config {
	return Config{
		MaxAttempts:   5,
		RepoDir:       repoDir,
		CommitMessage: "state: cycle commit",
		Remote:        "origin",
		Branch:        "main",
	}
}

// Reapplier re-derives the file set F from the in-memory state object a
// caller already produced, so step 6's "re-stage from the in-memory state
// object we just produced" never has to merge text — it just rewrites the
// same files a second time onto a freshly-pulled tree (spec §4.10's "key
// insight").
type Reapplier interface {
	// Reapply writes every file in F to disk (via the same Store used to
	// build the original commit), returning the list of paths it touched
	// relative to Config.RepoDir.
	Reapply() ([]string, error)
}

// Protocol runs the commit/push/recover cycle over one concurrency pool,
// shared with anything else in the process that shells out to git.
type Protocol struct {
	Config Config
	sem    *semaphore.Weighted
}

// New builds a Protocol whose git invocations are serialized through a
// semaphore allowing at most gitConcurrency simultaneous CLI calls.
func New(cfg Config, gitConcurrency int) *Protocol {
	if gitConcurrency < 1 {
		gitConcurrency = 1
	}
	return &Protocol{Config: cfg, sem: semaphore.NewWeighted(int64(gitConcurrency))}
}

// Commit runs spec §4.10's protocol over paths (relative to RepoDir),
// re-applying r whenever a hard reset discards the local working tree.
func (p *Protocol) Commit(ctx context.Context, paths []string, r Reapplier) error {
	if err := p.run(ctx, "add", append([]string{"--"}, paths...)...); err != nil {
		return fmt.Errorf("safecommit: stage: %w", err)
	}

	staged, err := p.run(ctx, "diff", "--cached", "--name-only")
	if err != nil {
		return fmt.Errorf("safecommit: check staged: %w", err)
	}
	if strings.TrimSpace(staged) == "" {
		return nil
	}

	if _, err := p.run(ctx, "commit", "-m", p.Config.CommitMessage); err != nil {
		return fmt.Errorf("safecommit: commit: %w", err)
	}

	for attempt := 1; attempt <= p.Config.MaxAttempts; attempt++ {
		_, pushErr := p.run(ctx, "push", p.Config.Remote, "HEAD:"+p.Config.Branch)
		if pushErr == nil {
			return nil
		}

		if _, err := p.run(ctx, "fetch", p.Config.Remote); err != nil {
			return fmt.Errorf("safecommit: fetch on attempt %d: %w", attempt, err)
		}

		if _, rebaseErr := p.run(ctx, "rebase", p.Config.Remote+"/"+p.Config.Branch); rebaseErr == nil {
			if err := p.revalidate(paths); err == nil {
				continue // retry push with the cleanly rebased commit
			}
			_, _ = p.run(ctx, "rebase", "--abort")
		}

		// Rebase conflicted or post-rebase validation failed: abort,
		// hard-reset to remote, and re-apply from the in-memory state
		// object rather than attempting a textual merge (spec §4.10 step
		// 6's "key insight").
		_, _ = p.run(ctx, "rebase", "--abort")
		if _, err := p.run(ctx, "reset", "--hard", p.Config.Remote+"/"+p.Config.Branch); err != nil {
			return fmt.Errorf("safecommit: hard reset on attempt %d: %w", attempt, err)
		}
		if _, err := r.Reapply(); err != nil {
			return fmt.Errorf("safecommit: reapply on attempt %d: %w", attempt, err)
		}
		if err := p.revalidate(paths); err != nil {
			return fmt.Errorf("safecommit: revalidate after reapply on attempt %d: %w", attempt, err)
		}
		if _, err := p.run(ctx, "add", append([]string{"--"}, paths...)...); err != nil {
			return fmt.Errorf("safecommit: re-stage on attempt %d: %w", attempt, err)
		}
		if _, err := p.run(ctx, "commit", "-m", p.Config.CommitMessage); err != nil {
			return fmt.Errorf("safecommit: re-commit on attempt %d: %w", attempt, err)
		}
	}

	return ErrAttemptsExhausted
}

// revalidate re-parses the state directory holding paths (under RepoDir)
// before trusting a rebase or reapply (spec §4.10 step 5: "must parse,
// must satisfy `_meta.count`"). It delegates the actual parse/count check
// to state.Store.LoadSnapshot by pointing a throwaway Store at that
// directory — the validation rules live in exactly one place (C1), not
// duplicated here. LoadSnapshot parses every state file there but checks
// `_meta.count` only for agents, channels and posted_log.
func (p *Protocol) revalidate(paths []string) error {
	dir := p.Config.RepoDir
	if len(paths) > 0 {
		dir = filepath.Join(dir, filepath.Dir(paths[0]))
	}
	store, err := state.New(dir)
	if err != nil {
		return fmt.Errorf("safecommit: open store for revalidation: %w", err)
	}
	if _, err := store.LoadSnapshot(); err != nil {
		return fmt.Errorf("safecommit: revalidate: %w", err)
	}
	return nil
}

func (p *Protocol) run(ctx context.Context, args ...string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = p.Config.RepoDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}
