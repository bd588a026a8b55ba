// Package review implements the append-only review session model: a log of
// immutable, identifier-addressed activities (comments, resolutions,
// retractions, review marks), the visibility fold over that log, derived
// projection views, and the id-set merge protocol used to reconcile
// concurrent edits of the backing session file.
package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActivityType discriminates the closed set of log entry variants.
type ActivityType string

const (
	TypeComment    ActivityType = "comment"
	TypeResolution ActivityType = "resolution"
	TypeRetraction ActivityType = "retraction"
	TypeReviewMark ActivityType = "review_mark"
)

// KnownType reports whether t is one of the defined activity types.
func KnownType(t ActivityType) bool {
	switch t {
	case TypeComment, TypeResolution, TypeRetraction, TypeReviewMark:
		return true
	}
	return false
}

// Category is the closed comment vocabulary plus the fixed categories used
// by the non-comment variants. Unknown values round-trip through the codec
// untouched and degrade to CategoryNote for display purposes.
type Category string

const (
	CategoryNote       Category = "note"
	CategorySuggestion Category = "suggestion"
	CategoryIssue      Category = "issue"
	CategoryPraise     Category = "praise"
	CategoryQuestion   Category = "question"
	CategoryTask       Category = "task"
	CategorySecurity   Category = "security"

	// Fixed categories of the non-comment variants.
	CategoryResolved Category = "resolved"
	CategoryRetract  Category = "retract"
	CategoryReviewed Category = "reviewed"
)

// CommentCategories lists the categories valid for comments, in legend order.
func CommentCategories() []Category {
	return []Category{
		CategoryNote, CategorySuggestion, CategoryIssue, CategoryPraise,
		CategoryQuestion, CategoryTask, CategorySecurity,
	}
}

// IsCommentCategory reports whether c belongs to the comment vocabulary.
func IsCommentCategory(c Category) bool {
	for _, known := range CommentCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// Label returns the display label for the category.
func (c Category) Label() string { return strings.ToUpper(string(c)) }

// Description returns the one-line meaning used in legends and the
// instructions preamble.
func (c Category) Description() string {
	switch c {
	case CategoryNote:
		return "General observation or context"
	case CategorySuggestion:
		return "Improvement that could be made"
	case CategoryIssue:
		return "Problem that should be fixed"
	case CategoryPraise:
		return "Positive feedback on good code"
	case CategoryQuestion:
		return "Asking for clarification"
	case CategoryTask:
		return "Action item to be done"
	case CategorySecurity:
		return "Security-related concern"
	default:
		return ""
	}
}

// DisplayCategory folds unknown comment categories to note without touching
// the stored value.
func DisplayCategory(c Category) Category {
	if IsCommentCategory(c) {
		return c
	}
	return CategoryNote
}

// AuthorType distinguishes humans from agents.
type AuthorType string

const (
	AuthorHuman AuthorType = "human"
	AuthorAgent AuthorType = "agent"
)

// Author identifies who appended an activity: a human (name, optional email)
// or an agent (name plus model identifier).
type Author struct {
	Type  AuthorType
	Name  string
	Email string // humans only
	Model string // agents only
}

// HumanAuthor builds a human author.
func HumanAuthor(name, email string) Author {
	return Author{Type: AuthorHuman, Name: name, Email: email}
}

// AgentAuthor builds an agent author.
func AgentAuthor(name, model string) Author {
	return Author{Type: AuthorAgent, Name: name, Model: model}
}

// IsAgent reports whether the author is an AI agent.
func (a Author) IsAgent() bool { return a.Type == AuthorAgent }

// String renders the author in display form: "Agent (Name/Model)" for
// agents, "Name <email>" or the bare name for humans.
func (a Author) String() string {
	if a.IsAgent() {
		model := a.Model
		if model == "" {
			model = "unknown"
		}
		if a.Name == "" {
			return fmt.Sprintf("Agent (%s)", model)
		}
		return fmt.Sprintf("Agent (%s/%s)", a.Name, model)
	}
	if a.Name == "" {
		return "human"
	}
	if a.Email != "" {
		return fmt.Sprintf("%s <%s>", a.Name, a.Email)
	}
	return a.Name
}

// LineRange is a 1-indexed inclusive span of lines in the new (post-change)
// file numbering.
type LineRange struct {
	Start int
	End   int
}

// Normalize orders the endpoints so Start <= End.
func (r LineRange) Normalize() LineRange {
	if r.End != 0 && r.End < r.Start {
		return LineRange{Start: r.End, End: r.Start}
	}
	if r.End == 0 {
		r.End = r.Start
	}
	return r
}

// Covers reports whether the range includes the given line.
func (r LineRange) Covers(line int) bool {
	r = r.Normalize()
	return line >= r.Start && line <= r.End
}

// String renders "42" for single lines and "42-45" for spans.
func (r LineRange) String() string {
	r = r.Normalize()
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Location anchors an activity to a file, optionally narrowed to one or more
// disjoint line ranges. No ranges means the whole file.
type Location struct {
	File  string
	Lines []LineRange
}

// FileLocation builds a file-level location.
func FileLocation(file string) Location { return Location{File: file} }

// LineLocation builds a location covering a single range.
func LineLocation(file string, start, end int) Location {
	r := LineRange{Start: start, End: end}.Normalize()
	return Location{File: file, Lines: []LineRange{r}}
}

// IsFileLevel reports whether the location has no line ranges.
func (l Location) IsFileLevel() bool { return len(l.Lines) == 0 }

// StartLine returns the first range's start, or 0 for file-level locations.
// File-level sorts before any numbered line.
func (l Location) StartLine() int {
	if l.IsFileLevel() {
		return 0
	}
	return l.Lines[0].Normalize().Start
}

// Ref renders "path", "path:42", or "path:42-45" for the first range.
func (l Location) Ref() string {
	if l.IsFileLevel() {
		return l.File
	}
	return l.File + ":" + l.Lines[0].String()
}

// ShortRef renders "file", "L42", or "L42-45" for inline display.
func (l Location) ShortRef() string {
	if l.IsFileLevel() {
		return "file"
	}
	return "L" + l.Lines[0].String()
}

// Ptr returns a pointer copy, for APIs taking an optional location.
func (l Location) Ptr() *Location { return &l }

// Activity is one immutable entry in the review log. Editing or deleting
// always means appending a new Activity that references the old one; nothing
// is ever mutated in place.
type Activity struct {
	ID         string
	Type       ActivityType
	Category   Category
	Content    string
	Author     Author
	Location   *Location
	Supersedes []string // comments only; at most one target
	Addresses  []string // reply parent, or resolution/retraction targets
	Created    time.Time
}

// IsReply reports whether the activity is a comment addressing a parent.
func (a Activity) IsReply() bool {
	return a.Type == TypeComment && len(a.Addresses) > 0
}

// NewID produces a fresh 8-character activity identifier.
func NewID() string {
	return uuid.NewString()[:8]
}

// NewComment builds an unappended comment activity. A nil location means the
// comment is not anchored to any file.
func NewComment(content string, loc *Location, category Category, author Author) Activity {
	if category == "" {
		category = CategoryNote
	}
	return Activity{
		ID:       NewID(),
		Type:     TypeComment,
		Category: category,
		Content:  content,
		Author:   author,
		Location: loc,
		Created:  time.Now().UTC(),
	}
}

// NewReply builds a comment addressing a parent comment.
func NewReply(parentID, content string, author Author) Activity {
	return Activity{
		ID:        NewID(),
		Type:      TypeComment,
		Category:  CategoryNote,
		Content:   content,
		Author:    author,
		Addresses: []string{parentID},
		Created:   time.Now().UTC(),
	}
}

// NewResolution builds a resolution annotating the target activities as
// addressed.
func NewResolution(targets []string, author Author) Activity {
	return Activity{
		ID:        NewID(),
		Type:      TypeResolution,
		Category:  CategoryResolved,
		Author:    author,
		Addresses: targets,
		Created:   time.Now().UTC(),
	}
}

// NewRetraction builds a retraction withdrawing the target activities from
// visibility.
func NewRetraction(targets []string, author Author) Activity {
	return Activity{
		ID:        NewID(),
		Type:      TypeRetraction,
		Category:  CategoryRetract,
		Author:    author,
		Addresses: targets,
		Created:   time.Now().UTC(),
	}
}

// NewReviewMark builds a reviewed mark for a whole file or a line range.
func NewReviewMark(loc Location, author Author) Activity {
	return Activity{
		ID:       NewID(),
		Type:     TypeReviewMark,
		Category: CategoryReviewed,
		Author:   author,
		Location: &loc,
		Created:  time.Now().UTC(),
	}
}
