// Package diffsource fetches the changes under review from git or the
// GitHub CLI and parses them into the diff model. Every source shells out
// rather than linking a git implementation; the tool reviews whatever the
// user's own git sees, quirks included.
package diffsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/opencodereview/internal/review"
	"github.com/opencodereview/pkg/models"
)

// Source produces the diff under review.
type Source interface {
	// Fetch runs the underlying tool and parses its output.
	Fetch(ctx context.Context) (*models.DiffSet, error)
	// Describe renders a short human-readable description.
	Describe() string
	// Type returns the source type identifier.
	Type() string
	// Subject returns the reviewed artifact's identity for session naming.
	Subject() review.Subject
}

// Selector picks a diff source. Zero value selects uncommitted changes.
type Selector struct {
	Repo   string
	Staged bool
	Branch string
	Commit string
	PR     int
}

// New builds the diff source for the selector.
//
// Priority when several are set: PR, then commit, then branch, then staged,
// then uncommitted.
func New(sel Selector) Source {
	switch {
	case sel.PR > 0:
		return &prSource{repo: sel.Repo, number: sel.PR}
	case sel.Commit != "":
		return &commitSource{repo: sel.Repo, commit: sel.Commit}
	case sel.Branch != "":
		return &branchSource{repo: sel.Repo, base: sel.Branch}
	case sel.Staged:
		return &stagedSource{repo: sel.Repo}
	default:
		return &uncommittedSource{repo: sel.Repo}
	}
}

// uncommittedSource diffs the working tree against HEAD, with untracked
// files synthesized as new-file hunks.
type uncommittedSource struct {
	repo string
}

func (s *uncommittedSource) Fetch(ctx context.Context) (*models.DiffSet, error) {
	diff, err := gitOutput(ctx, s.repo, "diff", "HEAD")
	if err != nil {
		return nil, err
	}
	untracked, err := gitOutput(ctx, s.repo, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}

	var synthesized []string
	for _, path := range strings.Split(strings.TrimSpace(untracked), "\n") {
		if path == "" {
			continue
		}
		section, ok := newFileDiff(s.repo, path)
		if !ok {
			continue
		}
		diff += section
		synthesized = append(synthesized, path)
	}

	set, err := parseDiff(diff, s.Describe(), "", "")
	if err != nil {
		return nil, err
	}
	markUntracked(set, synthesized)
	return set, nil
}

func (s *uncommittedSource) Describe() string { return "uncommitted changes" }
func (s *uncommittedSource) Type() string     { return "uncommitted" }
func (s *uncommittedSource) Subject() review.Subject {
	return review.Subject{Kind: review.KindPatch, Provider: review.ProviderGitUncommitted, Repo: s.repo}
}

// newFileDiff renders an untracked file as a new-file unified diff section.
// Binary and unreadable files are skipped.
func newFileDiff(repo, path string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(repo, path))
	if err != nil {
		return "", false
	}
	if !utf8.Valid(data) || strings.ContainsRune(string(data), 0) {
		return "", false
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\ndiff --git a/%s b/%s\n", path, path)
	b.WriteString("new file mode 100644\n")
	b.WriteString("--- /dev/null\n")
	fmt.Fprintf(&b, "+++ b/%s\n", path)
	fmt.Fprintf(&b, "@@ -0,0 +1,%d @@\n", len(lines))
	for _, line := range lines {
		b.WriteString("+")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String(), true
}

func markUntracked(set *models.DiffSet, paths []string) {
	if len(paths) == 0 {
		return
	}
	synth := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		synth[p] = struct{}{}
	}
	for i := range set.Files {
		if _, ok := synth[set.Files[i].Path]; ok {
			set.Files[i].Status = models.StatusUntracked
		}
	}
}

// stagedSource diffs the index against HEAD.
type stagedSource struct {
	repo string
}

func (s *stagedSource) Fetch(ctx context.Context) (*models.DiffSet, error) {
	diff, err := gitOutput(ctx, s.repo, "diff", "--staged")
	if err != nil {
		return nil, err
	}
	return parseDiff(diff, s.Describe(), "", "")
}

func (s *stagedSource) Describe() string { return "staged changes" }
func (s *stagedSource) Type() string     { return "staged" }
func (s *stagedSource) Subject() review.Subject {
	return review.Subject{Kind: review.KindPatch, Provider: review.ProviderGitStaged, Repo: s.repo}
}

// branchSource diffs HEAD against the merge base with another branch.
type branchSource struct {
	repo string
	base string
}

func (s *branchSource) Fetch(ctx context.Context) (*models.DiffSet, error) {
	diff, err := gitOutput(ctx, s.repo, "diff", s.base+"...HEAD")
	if err != nil {
		return nil, err
	}
	return parseDiff(diff, s.Describe(), s.base, "HEAD")
}

func (s *branchSource) Describe() string { return s.base + "...HEAD" }
func (s *branchSource) Type() string     { return "branch" }
func (s *branchSource) Subject() review.Subject {
	return review.Subject{Kind: review.KindPatch, Provider: review.ProviderGitBranch, Ref: s.base, Repo: s.repo}
}

// commitSource shows the changes introduced by one commit.
type commitSource struct {
	repo   string
	commit string
}

func (s *commitSource) Fetch(ctx context.Context) (*models.DiffSet, error) {
	diff, err := gitOutput(ctx, s.repo, "show", s.commit, "--format=")
	if err != nil {
		return nil, err
	}
	return parseDiff(diff, s.Describe(), "", s.commit)
}

func (s *commitSource) Describe() string {
	ref := s.commit
	if len(ref) > 7 {
		ref = ref[:7]
	}
	return "commit " + ref
}
func (s *commitSource) Type() string { return "commit" }
func (s *commitSource) Subject() review.Subject {
	return review.Subject{Kind: review.KindCommit, Provider: review.ProviderGit, Ref: s.commit, Repo: s.repo}
}

// prSource fetches a GitHub pull request diff through the gh CLI.
type prSource struct {
	repo   string
	number int
}

func (s *prSource) Fetch(ctx context.Context) (*models.DiffSet, error) {
	diff, err := ghOutput(ctx, s.repo, "pr", "diff", fmt.Sprintf("%d", s.number))
	if err != nil {
		return nil, err
	}
	return parseDiff(diff, s.Describe(), "", "")
}

func (s *prSource) Describe() string { return fmt.Sprintf("PR #%d", s.number) }
func (s *prSource) Type() string     { return "pr" }
func (s *prSource) Subject() review.Subject {
	return review.Subject{
		Kind:     review.KindPatch,
		Provider: review.ProviderGitHubPR,
		Ref:      fmt.Sprintf("%d", s.number),
		Repo:     s.repo,
	}
}
