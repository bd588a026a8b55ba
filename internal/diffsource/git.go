package diffsource

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/opencodereview/internal/review"
)

// gitOutput runs git against the repository and returns stdout. Failures are
// wrapped as DiffUnavailableError carrying the command's stderr.
func gitOutput(ctx context.Context, repo string, args ...string) (string, error) {
	full := append([]string{"-C", repo}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	out, err := cmd.Output()
	if err != nil {
		derr := &DiffUnavailableError{Cmd: "git " + strings.Join(args, " "), Err: err}
		if exitErr, ok := err.(*exec.ExitError); ok {
			derr.Stderr = string(exitErr.Stderr)
		}
		return string(out), derr
	}
	return string(out), nil
}

// ghOutput runs the GitHub CLI in the repository directory.
func ghOutput(ctx context.Context, repo string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Dir = repo
	out, err := cmd.Output()
	if err != nil {
		derr := &DiffUnavailableError{Cmd: "gh " + strings.Join(args, " "), Err: err}
		if exitErr, ok := err.(*exec.ExitError); ok {
			derr.Stderr = string(exitErr.Stderr)
		}
		return string(out), derr
	}
	return string(out), nil
}

// RepoRoot resolves the repository's top-level directory.
func RepoRoot(ctx context.Context, dir string) (string, error) {
	out, err := gitOutput(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Identity resolves the local git user as a human author. Missing config
// degrades to "Anonymous" rather than failing; sessions must work in repos
// without user.name set.
func Identity(ctx context.Context, repo string) review.Author {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	name, _ := gitOutput(ctx, repo, "config", "user.name")
	email, _ := gitOutput(ctx, repo, "config", "user.email")
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Anonymous"
	}
	return review.HumanAuthor(name, strings.TrimSpace(email))
}
