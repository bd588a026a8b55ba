package review

import "sort"

// CommentThread groups a visible root comment with its visible replies.
// Nesting is a display-time grouping only; replies are stored flat in the
// log with an addresses back-reference to the parent.
type CommentThread struct {
	Comment Activity
	Replies []Activity
}

// HunkMark is one resolved line range within a file, derived from a visible
// range-scoped review mark.
type HunkMark struct {
	ID      string
	File    string
	Range   LineRange
	Content string
}

// Views derives read-only queryable shapes from the visible subset of a log.
// Results are pure functions of the log; the cached fold is keyed by log
// length and rebuilt after any append. Views shares the session's
// single-goroutine ownership and is not internally synchronized.
type Views struct {
	log     *Log
	foldLen int
	fold    *visibilityFold
}

type visibilityFold struct {
	all     []Activity
	ex      exclusions
	visible []Activity
}

// NewViews binds projections to a log.
func NewViews(log *Log) *Views {
	return &Views{log: log, foldLen: -1}
}

func (v *Views) refresh() *visibilityFold {
	if v.fold != nil && v.foldLen == v.log.Len() {
		return v.fold
	}
	all := v.log.All()
	ex := collectExclusions(all)
	visible := make([]Activity, 0, len(all))
	for _, a := range all {
		switch a.Type {
		case TypeComment, TypeReviewMark:
			if !ex.hidden(a.ID) {
				visible = append(visible, a)
			}
		}
	}
	v.fold = &visibilityFold{all: all, ex: ex, visible: visible}
	v.foldLen = len(all)
	return v.fold
}

// Visible returns the currently visible activities in log order.
func (v *Views) Visible() []Activity {
	fold := v.refresh()
	out := make([]Activity, len(fold.visible))
	copy(out, fold.visible)
	return out
}

func (fold *visibilityFold) repliesFor(parentID string) []Activity {
	var replies []Activity
	for _, a := range fold.visible {
		if !a.IsReply() {
			continue
		}
		for _, target := range a.Addresses {
			if target == parentID {
				replies = append(replies, a)
				break
			}
		}
	}
	return replies
}

func sortThreads(threads []CommentThread) {
	sort.SliceStable(threads, func(i, j int) bool {
		a, b := threads[i].Comment, threads[j].Comment
		af, bf := "", ""
		if a.Location != nil {
			af = a.Location.File
		}
		if b.Location != nil {
			bf = b.Location.File
		}
		if af != bf {
			return af < bf
		}
		// File-level (no range) sorts before any numbered line.
		al, bl := 0, 0
		if a.Location != nil {
			al = a.Location.StartLine()
		}
		if b.Location != nil {
			bl = b.Location.StartLine()
		}
		return al < bl
	})
}

// CommentsForFile returns the visible comment threads anchored to the given
// file, file-level comments first, then ascending by line-range start.
// Replies follow their parent in log order regardless of their own location.
func (v *Views) CommentsForFile(path string) []CommentThread {
	fold := v.refresh()
	var threads []CommentThread
	for _, a := range fold.visible {
		if a.Type != TypeComment || a.IsReply() {
			continue
		}
		if a.Location == nil || a.Location.File != path {
			continue
		}
		threads = append(threads, CommentThread{Comment: a, Replies: fold.repliesFor(a.ID)})
	}
	sortThreads(threads)
	return threads
}

// CommentThreads returns every visible comment thread, ordered by file path
// then line-range start.
func (v *Views) CommentThreads() []CommentThread {
	fold := v.refresh()
	var threads []CommentThread
	for _, a := range fold.visible {
		if a.Type != TypeComment || a.IsReply() {
			continue
		}
		threads = append(threads, CommentThread{Comment: a, Replies: fold.repliesFor(a.ID)})
	}
	sortThreads(threads)
	return threads
}

// IsFileReviewed reports whether a visible file-level reviewed mark exists
// for the path. Retracting the mark is the only way to clear it.
func (v *Views) IsFileReviewed(path string) bool {
	_, ok := v.fileReviewMarkID(path)
	return ok
}

func (v *Views) fileReviewMarkID(path string) (string, bool) {
	fold := v.refresh()
	for _, a := range fold.visible {
		if a.Type != TypeReviewMark || a.Category != CategoryReviewed {
			continue
		}
		if a.Location != nil && a.Location.File == path && a.Location.IsFileLevel() {
			return a.ID, true
		}
	}
	return "", false
}

// ResolvedHunksForFile returns the visible range-scoped reviewed marks for
// the path, one entry per marked range, in log order.
func (v *Views) ResolvedHunksForFile(path string) []HunkMark {
	fold := v.refresh()
	var marks []HunkMark
	for _, a := range fold.visible {
		if a.Type != TypeReviewMark || a.Category != CategoryReviewed {
			continue
		}
		if a.Location == nil || a.Location.File != path || a.Location.IsFileLevel() {
			continue
		}
		for _, rng := range a.Location.Lines {
			marks = append(marks, HunkMark{
				ID:      a.ID,
				File:    path,
				Range:   rng.Normalize(),
				Content: a.Content,
			})
		}
	}
	return marks
}

func (v *Views) hunkReviewMarkID(path string, rng LineRange) (string, bool) {
	want := rng.Normalize()
	for _, mark := range v.ResolvedHunksForFile(path) {
		if mark.Range == want {
			return mark.ID, true
		}
	}
	return "", false
}

// IsResolved reports whether any resolution that is itself still effective
// (not retracted or superseded) addresses the given activity.
func (v *Views) IsResolved(activityID string) bool {
	fold := v.refresh()
	for _, a := range fold.all {
		if a.Type != TypeResolution || fold.ex.hidden(a.ID) {
			continue
		}
		for _, target := range a.Addresses {
			if target == activityID {
				return true
			}
		}
	}
	return false
}

// TotalCommentCount counts visible comments, replies included.
func (v *Views) TotalCommentCount() int {
	fold := v.refresh()
	n := 0
	for _, a := range fold.visible {
		if a.Type == TypeComment {
			n++
		}
	}
	return n
}

// visibleComment resolves an identifier to a currently visible comment.
func (v *Views) visibleComment(id string) (Activity, bool) {
	fold := v.refresh()
	for _, a := range fold.visible {
		if a.Type == TypeComment && a.ID == id {
			return a, true
		}
	}
	return Activity{}, false
}
