// Package snapshot materializes the upstream repository snapshot the
// reconciliation engine plans against. The engine itself never talks
// to the network; it consumes a local directory, and this package is
// the collaborator that produces one. Transport failures and retry
// policy live here, outside the engine.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Provider materializes a snapshot of the upstream repository.
type Provider interface {
	// Fetch clones or updates the snapshot at destDir to the tip of
	// branch and returns the commit hash it left checked out.
	Fetch(ctx context.Context, branch, destDir string) (string, error)

	// Branches lists the branch names available upstream.
	Branches(ctx context.Context) ([]string, error)
}

// GitProvider implements Provider by shelling out to the git command.
type GitProvider struct {
	url string
}

// NewGitProvider creates a provider for the given repository URL.
func NewGitProvider(url string) *GitProvider {
	return &GitProvider{url: url}
}

// IsGitAvailable reports whether a git binary is on PATH. The CLI
// checks this up front so the user gets an actionable message instead
// of a buried exec error.
func IsGitAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// Fetch clones the repository if destDir is not yet a clone, fetches
// otherwise, then force-checks-out the branch tip so the working tree
// matches upstream exactly.
func (p *GitProvider) Fetch(ctx context.Context, branch, destDir string) (string, error) {
	gitDir := filepath.Join(destDir, ".git")
	exists := false
	if _, err := os.Stat(gitDir); err == nil {
		exists = true
	}

	if !exists {
		if err := os.MkdirAll(filepath.Dir(destDir), 0o755); err != nil {
			return "", fmt.Errorf("failed to create snapshot parent directory: %w", err)
		}
		cmd := exec.CommandContext(ctx, "git", "clone", "--branch", branch, "--single-branch", p.url, destDir)
		if err := runCommand(cmd); err != nil {
			return "", fmt.Errorf("git clone failed: %w", err)
		}
	} else {
		cmd := exec.CommandContext(ctx, "git", "-C", destDir, "fetch", "origin", branch)
		if err := runCommand(cmd); err != nil {
			return "", fmt.Errorf("git fetch failed: %w", err)
		}
		cmd = exec.CommandContext(ctx, "git", "-C", destDir, "checkout", "-f", branch)
		if err := runCommand(cmd); err != nil {
			return "", fmt.Errorf("git checkout failed for branch %q: %w", branch, err)
		}
		// The local branch may be stale after fetch; hard reset to the
		// remote tip so the working tree is exactly upstream.
		cmd = exec.CommandContext(ctx, "git", "-C", destDir, "reset", "--hard", "origin/"+branch)
		if err := runCommand(cmd); err != nil {
			return "", fmt.Errorf("git reset failed: %w", err)
		}
	}

	out, err := exec.CommandContext(ctx, "git", "-C", destDir, "rev-parse", "HEAD").Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Branches lists remote branch names, sorted.
func (p *GitProvider) Branches(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, "git", "ls-remote", "--heads", p.url).Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-remote failed: %w", err)
	}
	return ParseBranches(string(out)), nil
}

// ParseBranches extracts sorted branch names from `git ls-remote
// --heads` output.
func ParseBranches(out string) []string {
	var branches []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		ref := fields[1]
		if name, ok := strings.CutPrefix(ref, "refs/heads/"); ok {
			branches = append(branches, name)
		}
	}
	sort.Strings(branches)
	return branches
}

// Changelog returns the changelog shipped in the snapshot working
// tree, or an empty string when the pack ships none.
func Changelog(snapshotDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(snapshotDir, "CHANGELOG.md"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read changelog: %w", err)
	}
	return string(data), nil
}

// runCommand executes a command and returns an error carrying stderr
// on failure.
func runCommand(cmd *exec.Cmd) error {
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
