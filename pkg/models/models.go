package models

import "fmt"

// FileStatus classifies how a file changed within a diff
type FileStatus string

const (
	StatusAdded     FileStatus = "added"
	StatusModified  FileStatus = "modified"
	StatusDeleted   FileStatus = "deleted"
	StatusRenamed   FileStatus = "renamed"
	StatusUntracked FileStatus = "untracked"
)

// LineKind tags a single diff line as added, removed, or unchanged context
type LineKind string

const (
	LineAdded   LineKind = "add"
	LineRemoved LineKind = "remove"
	LineContext LineKind = "context"
)

// Prefix returns the unified-diff marker for the line kind
func (k LineKind) Prefix() string {
	switch k {
	case LineAdded:
		return "+"
	case LineRemoved:
		return "-"
	default:
		return " "
	}
}

// HunkLine is one line of a diff hunk
type HunkLine struct {
	Kind    LineKind
	Content string
}

// DiffHunk represents a single chunk of changes in a diff
type DiffHunk struct {
	OldStartLine int
	OldLineCount int
	NewStartLine int
	NewLineCount int
	Section      string // trailing context from the @@ header, e.g. a function name
	Lines        []HunkLine
}

// Header renders the canonical @@ header for the hunk
func (h DiffHunk) Header() string {
	header := fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStartLine, h.OldLineCount, h.NewStartLine, h.NewLineCount)
	if h.Section != "" {
		header += " " + h.Section
	}
	return header
}

// NewRange returns the inclusive line span the hunk covers in the new file.
// A hunk with NewLineCount 0 (pure deletion) collapses to its anchor line.
func (h DiffHunk) NewRange() (start, end int) {
	start = h.NewStartLine
	end = h.NewStartLine + h.NewLineCount - 1
	if end < start {
		end = start
	}
	return start, end
}

// AddedLineCount counts lines tagged as additions
func (h DiffHunk) AddedLineCount() int {
	n := 0
	for _, line := range h.Lines {
		if line.Kind == LineAdded {
			n++
		}
	}
	return n
}

// RemovedLineCount counts lines tagged as removals
func (h DiffHunk) RemovedLineCount() int {
	n := 0
	for _, line := range h.Lines {
		if line.Kind == LineRemoved {
			n++
		}
	}
	return n
}

// ChangedFile represents one file's changes within a diff
type ChangedFile struct {
	Path    string
	OldPath string // only set when Status is renamed
	Status  FileStatus
	Hunks   []DiffHunk
}

// AddedLines sums additions across all hunks
func (f ChangedFile) AddedLines() int {
	n := 0
	for _, h := range f.Hunks {
		n += h.AddedLineCount()
	}
	return n
}

// RemovedLines sums removals across all hunks
func (f ChangedFile) RemovedLines() int {
	n := 0
	for _, h := range f.Hunks {
		n += h.RemovedLineCount()
	}
	return n
}

// ContainsNewLine reports whether the given new-file line number falls inside
// any of the file's hunks.
func (f ChangedFile) ContainsNewLine(line int) bool {
	for _, h := range f.Hunks {
		start, end := h.NewRange()
		if line >= start && line <= end {
			return true
		}
	}
	return false
}

// DiffSet is an ordered collection of changed files from one diff source
type DiffSet struct {
	Description string // human-readable source description, e.g. "staged changes"
	BaseRef     string
	HeadRef     string
	Files       []ChangedFile
}

// FilePaths returns the changed file paths in diff order
func (d DiffSet) FilePaths() []string {
	paths := make([]string, 0, len(d.Files))
	for _, f := range d.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// File looks up a changed file by path
func (d DiffSet) File(path string) (ChangedFile, bool) {
	for _, f := range d.Files {
		if f.Path == path {
			return f, true
		}
	}
	return ChangedFile{}, false
}
