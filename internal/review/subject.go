package review

import "fmt"

// SubjectKind is the broad class of artifact under review.
type SubjectKind string

const (
	KindPatch  SubjectKind = "patch"
	KindCommit SubjectKind = "commit"
)

// Provider tags identifying where a subject's diff comes from.
const (
	ProviderGitUncommitted = "git-uncommitted"
	ProviderGitStaged      = "git-staged"
	ProviderGitBranch      = "git-branch"
	ProviderGit            = "git"
	ProviderGitHubPR       = "github-pr"
)

// Subject identifies what is being reviewed: a kind, the provider tag, an
// optional provider-specific reference (branch name, commit SHA, PR number),
// and the repository root path.
type Subject struct {
	Kind     SubjectKind
	Provider string
	Ref      string
	Repo     string
}

// SourceType maps the provider tag back to the diff-source selector name
// (uncommitted, staged, branch, commit, pr). Unknown providers report
// uncommitted, matching how sessions written by older builds are opened.
func (s Subject) SourceType() string {
	switch s.Provider {
	case ProviderGitStaged:
		return "staged"
	case ProviderGitBranch:
		return "branch"
	case ProviderGit:
		return "commit"
	case ProviderGitHubPR:
		return "pr"
	default:
		return "uncommitted"
	}
}

// ShortRef compacts the reference for display and file naming: commit SHAs
// truncate to 7 characters, everything else passes through.
func (s Subject) ShortRef() string {
	if s.Provider == ProviderGit && len(s.Ref) > 7 {
		return s.Ref[:7]
	}
	return s.Ref
}

// Describe renders a human-readable description of the subject.
func (s Subject) Describe() string {
	switch s.SourceType() {
	case "staged":
		return "staged changes"
	case "branch":
		return fmt.Sprintf("%s...HEAD", s.Ref)
	case "commit":
		return fmt.Sprintf("commit %s", s.ShortRef())
	case "pr":
		return fmt.Sprintf("PR #%s", s.Ref)
	default:
		return "uncommitted changes"
	}
}
