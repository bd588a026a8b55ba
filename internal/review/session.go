package review

import (
	"sort"
	"time"
)

// Session is the aggregate root: the one mutation surface over an activity
// log plus the session-identifying metadata. Every mutator appends exactly
// one new activity and returns it; existing activities are never touched.
// A session is owned by a single goroutine and is not internally
// synchronized.
type Session struct {
	subject      Subject
	instructions string
	log          *Log
	views        *Views
	author       Author
	tracked      map[string]struct{}
	now          func() time.Time
}

// NewSession creates an empty session for the subject. The author is the
// identity stamped on mutations that carry no explicit author; it is
// resolved once by the caller (typically from git config) and threaded
// through rather than looked up globally.
func NewSession(subject Subject, author Author) *Session {
	log := NewLog()
	return &Session{
		subject: subject,
		log:     log,
		views:   NewViews(log),
		author:  author,
		tracked: make(map[string]struct{}),
		now:     time.Now,
	}
}

// NewLoadedSession reconstructs a session from decoded parts. Activities are
// appended in document order; entries whose identifier duplicates an earlier
// one are dropped, matching the merge protocol's id-set semantics.
func NewLoadedSession(subject Subject, instructions string, activities []Activity, author Author) *Session {
	s := NewSession(subject, author)
	s.instructions = instructions
	for _, a := range activities {
		if s.log.Has(a.ID) {
			continue
		}
		_ = s.log.Append(a)
	}
	return s
}

// Subject returns the reviewed artifact's identity.
func (s *Session) Subject() Subject { return s.subject }

// Author returns the session's default (human) identity.
func (s *Session) Author() Author { return s.author }

// Instructions returns the agent-facing editing contract text.
func (s *Session) Instructions() string { return s.instructions }

// SetInstructions replaces the instructions text. Instructions are session
// metadata, not log content; the persistence layer refreshes them on save.
func (s *Session) SetInstructions(text string) { s.instructions = text }

// Views returns the projection views over this session's log.
func (s *Session) Views() *Views { return s.views }

// Activities returns the full log in append order.
func (s *Session) Activities() []Activity { return s.log.All() }

// LogLen returns the current log length.
func (s *Session) LogLen() int { return s.log.Len() }

// TrackFiles adds diff file paths to the session's tracked set, seeding the
// per-file projections before any activity mentions them.
func (s *Session) TrackFiles(paths []string) {
	for _, p := range paths {
		if p != "" {
			s.tracked[p] = struct{}{}
		}
	}
}

// Files returns the union of tracked paths and paths referenced by activity
// locations, sorted.
func (s *Session) Files() []string {
	set := make(map[string]struct{}, len(s.tracked))
	for p := range s.tracked {
		set[p] = struct{}{}
	}
	for _, a := range s.log.All() {
		if a.Location != nil && a.Location.File != "" {
			set[a.Location.File] = struct{}{}
		}
	}
	files := make([]string, 0, len(set))
	for p := range set {
		files = append(files, p)
	}
	sort.Strings(files)
	return files
}

// ReviewedFileCount counts tracked files with a visible file-level reviewed
// mark.
func (s *Session) ReviewedFileCount() int {
	n := 0
	for _, p := range s.Files() {
		if s.views.IsFileReviewed(p) {
			n++
		}
	}
	return n
}

// CreatedAt returns the earliest activity timestamp, or the current time for
// an empty session.
func (s *Session) CreatedAt() time.Time {
	var earliest time.Time
	for _, a := range s.log.All() {
		if a.Created.IsZero() {
			continue
		}
		if earliest.IsZero() || a.Created.Before(earliest) {
			earliest = a.Created
		}
	}
	if earliest.IsZero() {
		return s.now().UTC()
	}
	return earliest
}

// UpdatedAt returns the latest activity timestamp, or the current time for
// an empty session.
func (s *Session) UpdatedAt() time.Time {
	var latest time.Time
	for _, a := range s.log.All() {
		if a.Created.After(latest) {
			latest = a.Created
		}
	}
	if latest.IsZero() {
		return s.now().UTC()
	}
	return latest
}

func (s *Session) freshID() string {
	for {
		id := NewID()
		if !s.log.Has(id) {
			return id
		}
	}
}

func (s *Session) stamp(a Activity) Activity {
	a.ID = s.freshID()
	a.Created = s.now().UTC()
	return a
}

func validateLocation(loc *Location) error {
	if loc == nil {
		return nil
	}
	if loc.File == "" {
		return validationf("location without a file path")
	}
	for _, r := range loc.Lines {
		if r.Normalize().Start < 1 {
			return validationf("line range %s starts below 1", r)
		}
	}
	return nil
}

// AddComment appends a new comment. An empty category defaults to note; an
// unknown category is rejected so the persisted vocabulary stays closed on
// the write path.
func (s *Session) AddComment(content string, loc *Location, category Category, author Author) (Activity, error) {
	if content == "" {
		return Activity{}, validationf("comment content is required")
	}
	if category == "" {
		category = CategoryNote
	}
	if !IsCommentCategory(category) {
		return Activity{}, validationf("unknown comment category %q", category)
	}
	if err := validateLocation(loc); err != nil {
		return Activity{}, err
	}
	if loc != nil {
		normalized := *loc
		normalized.Lines = append([]LineRange(nil), loc.Lines...)
		for i, r := range normalized.Lines {
			normalized.Lines[i] = r.Normalize()
		}
		loc = &normalized
	}
	a := s.stamp(NewComment(content, loc, category, author))
	if err := s.log.Append(a); err != nil {
		return Activity{}, err
	}
	return a, nil
}

// AddReply appends a comment addressing parentID. The parent must resolve to
// a currently visible comment.
func (s *Session) AddReply(parentID, content string, author Author) (Activity, error) {
	if content == "" {
		return Activity{}, validationf("reply content is required")
	}
	if _, ok := s.views.visibleComment(parentID); !ok {
		return Activity{}, &NotFoundError{ID: parentID}
	}
	a := s.stamp(NewReply(parentID, content, author))
	if err := s.log.Append(a); err != nil {
		return Activity{}, err
	}
	return a, nil
}

// EditComment appends a superseding comment carrying the original's
// location, category, and author with the new content. The original must be
// currently visible; this is the only way content ever changes.
func (s *Session) EditComment(commentID, newContent string) (Activity, error) {
	if newContent == "" {
		return Activity{}, validationf("comment content is required")
	}
	orig, ok := s.views.visibleComment(commentID)
	if !ok {
		return Activity{}, &NotFoundError{ID: commentID}
	}
	a := Activity{
		Type:       TypeComment,
		Category:   orig.Category,
		Content:    newContent,
		Author:     orig.Author,
		Supersedes: []string{commentID},
		Addresses:  append([]string(nil), orig.Addresses...),
	}
	if orig.Location != nil {
		loc := *orig.Location
		loc.Lines = append([]LineRange(nil), orig.Location.Lines...)
		a.Location = &loc
	}
	a = s.stamp(a)
	if err := s.log.Append(a); err != nil {
		return Activity{}, err
	}
	return a, nil
}

// DeleteComment appends a retraction withdrawing the comment from
// visibility. The target must be currently visible.
func (s *Session) DeleteComment(commentID string) (Activity, error) {
	if _, ok := s.views.visibleComment(commentID); !ok {
		return Activity{}, &NotFoundError{ID: commentID}
	}
	a := s.stamp(NewRetraction([]string{commentID}, s.author))
	if err := s.log.Append(a); err != nil {
		return Activity{}, err
	}
	return a, nil
}

// ResolveComment appends a resolution marking the comment as addressed. The
// comment stays visible; resolution is an annotation, not a removal.
func (s *Session) ResolveComment(commentID string) (Activity, error) {
	if _, ok := s.views.visibleComment(commentID); !ok {
		return Activity{}, &NotFoundError{ID: commentID}
	}
	a := s.stamp(NewResolution([]string{commentID}, s.author))
	if err := s.log.Append(a); err != nil {
		return Activity{}, err
	}
	return a, nil
}

// ToggleReviewed flips the file-level reviewed state: retracts the existing
// visible mark and returns false, or appends a new mark and returns true.
func (s *Session) ToggleReviewed(filePath string) (bool, error) {
	if filePath == "" {
		return false, validationf("file path is required")
	}
	if markID, ok := s.views.fileReviewMarkID(filePath); ok {
		a := s.stamp(NewRetraction([]string{markID}, s.author))
		if err := s.log.Append(a); err != nil {
			return false, err
		}
		return false, nil
	}
	a := s.stamp(NewReviewMark(FileLocation(filePath), s.author))
	if err := s.log.Append(a); err != nil {
		return false, err
	}
	s.tracked[filePath] = struct{}{}
	return true, nil
}

// ResolveHunk appends a range-scoped reviewed mark for the file.
func (s *Session) ResolveHunk(filePath string, rng LineRange) (Activity, error) {
	if filePath == "" {
		return Activity{}, validationf("file path is required")
	}
	rng = rng.Normalize()
	if rng.Start < 1 {
		return Activity{}, validationf("line range %s starts below 1", rng)
	}
	a := s.stamp(NewReviewMark(Location{File: filePath, Lines: []LineRange{rng}}, s.author))
	if err := s.log.Append(a); err != nil {
		return Activity{}, err
	}
	s.tracked[filePath] = struct{}{}
	return a, nil
}

// UnresolveHunk retracts the reviewed mark matching the range, reporting
// whether one was found.
func (s *Session) UnresolveHunk(filePath string, rng LineRange) (bool, error) {
	markID, ok := s.views.hunkReviewMarkID(filePath, rng)
	if !ok {
		return false, nil
	}
	a := s.stamp(NewRetraction([]string{markID}, s.author))
	if err := s.log.Append(a); err != nil {
		return false, err
	}
	return true, nil
}
