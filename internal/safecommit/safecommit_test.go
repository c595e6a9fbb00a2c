package safecommit

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// nullReapplier satisfies Reapplier for tests that never reach the
// rebase-conflict / hard-reset path.
type nullReapplier struct{}

func (nullReapplier) Reapply() ([]string, error) { return nil, nil }

func runGitT(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.CommandContext(context.Background(), "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return string(out)
}

// setupRemoteAndClone creates a bare "remote" repo plus one local clone with
// a valid state.Store fixture already committed, so tests never touch the
// network. The clone's working tree is both the bare repo's only client and
// the directory safecommit.Protocol operates on.
func setupRemoteAndClone(t *testing.T) (cloneDir string) {
	t.Helper()
	root := t.TempDir()
	remote := filepath.Join(root, "remote.git")
	clone := filepath.Join(root, "clone")

	runGitT(t, root, "init", "--bare", remote)
	runGitT(t, root, "clone", remote, clone)
	runGitT(t, clone, "config", "user.email", "test@example.com")
	runGitT(t, clone, "config", "user.name", "test")

	if err := os.WriteFile(filepath.Join(clone, "agents.json"), []byte(`{"_meta":{"last_updated":"2020-01-01T00:00:00Z","count":0},"agents":{}}`), 0o644); err != nil {
		t.Fatalf("seed agents.json: %v", err)
	}
	if err := os.WriteFile(filepath.Join(clone, "channels.json"), []byte(`{"_meta":{"last_updated":"2020-01-01T00:00:00Z","count":0},"channels":{}}`), 0o644); err != nil {
		t.Fatalf("seed channels.json: %v", err)
	}
	runGitT(t, clone, "add", ".")
	runGitT(t, clone, "commit", "-m", "seed")
	runGitT(t, clone, "push", "origin", "HEAD:main")

	return clone
}

func TestCommitPushesCleanlyWhenRemoteUnchanged(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	clone := setupRemoteAndClone(t)

	if err := os.WriteFile(filepath.Join(clone, "agents.json"), []byte(`{"_meta":{"last_updated":"2020-01-01T00:00:00Z","count":1},"agents":{"a1":{"id":"a1"}}}`), 0o644); err != nil {
		t.Fatalf("update agents.json: %v", err)
	}

	cfg := DefaultConfig(clone)
	p := New(cfg, 2)

	if err := p.Commit(context.Background(), []string{"agents.json"}, nullReapplier{}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	log := runGitT(t, clone, "log", "--oneline", "-1")
	if log == "" {
		t.Fatal("expected a new commit to exist")
	}
}

func TestCommitNoopsWhenNothingStaged(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	clone := setupRemoteAndClone(t)

	cfg := DefaultConfig(clone)
	p := New(cfg, 2)

	beforeLog := runGitT(t, clone, "rev-parse", "HEAD")
	if err := p.Commit(context.Background(), []string{"agents.json"}, nullReapplier{}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	afterLog := runGitT(t, clone, "rev-parse", "HEAD")
	if beforeLog != afterLog {
		t.Fatal("expected no new commit when no files changed")
	}
}
