package diffsource

import (
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/opencodereview/pkg/models"
)

// parseDiff converts raw unified diff text into the diff model. Binary files
// carry no hunks but still appear in the set so they can be marked reviewed.
func parseDiff(text, description, baseRef, headRef string) (*models.DiffSet, error) {
	set := &models.DiffSet{Description: description, BaseRef: baseRef, HeadRef: headRef}
	if strings.TrimSpace(text) == "" {
		return set, nil
	}

	files, _, err := gitdiff.Parse(strings.NewReader(text))
	if err != nil {
		return nil, &DiffUnavailableError{Cmd: "parse diff", Err: err}
	}

	for _, f := range files {
		set.Files = append(set.Files, changedFileFrom(f))
	}
	return set, nil
}

func changedFileFrom(f *gitdiff.File) models.ChangedFile {
	cf := models.ChangedFile{
		Path:   f.NewName,
		Status: models.StatusModified,
	}
	switch {
	case f.IsNew:
		cf.Status = models.StatusAdded
	case f.IsDelete:
		cf.Status = models.StatusDeleted
		cf.Path = f.OldName
	case f.IsRename:
		cf.Status = models.StatusRenamed
		cf.OldPath = f.OldName
	}
	if cf.Path == "" {
		cf.Path = f.OldName
	}

	for _, frag := range f.TextFragments {
		hunk := models.DiffHunk{
			OldStartLine: int(frag.OldPosition),
			OldLineCount: int(frag.OldLines),
			NewStartLine: int(frag.NewPosition),
			NewLineCount: int(frag.NewLines),
			Section:      strings.TrimSpace(frag.Comment),
		}
		for _, line := range frag.Lines {
			hunk.Lines = append(hunk.Lines, models.HunkLine{
				Kind:    lineKindFrom(line.Op),
				Content: strings.TrimSuffix(line.Line, "\n"),
			})
		}
		cf.Hunks = append(cf.Hunks, hunk)
	}
	return cf
}

func lineKindFrom(op gitdiff.LineOp) models.LineKind {
	switch op {
	case gitdiff.OpAdd:
		return models.LineAdded
	case gitdiff.OpDelete:
		return models.LineRemoved
	default:
		return models.LineContext
	}
}
