// Package export renders a review session for consumption outside the tool:
// a Markdown digest written for handing to an agent or teammate, and a JSON
// structure for scripts.
package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/opencodereview/internal/review"
)

// Format selects an export rendering.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md", "":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q (want markdown or json)", s)
}

// Render produces the session in the requested format, ending with a
// newline.
func Render(sess *review.Session, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return JSON(sess)
	default:
		return []byte(Markdown(sess) + "\n"), nil
	}
}

// Markdown renders the visible comment threads as a numbered digest:
// opening statement, subject reference, category legend, then one entry per
// root comment with replies indented beneath it.
func Markdown(sess *review.Session) string {
	var lines []string

	lines = append(lines,
		"I reviewed your code and have the following comments. Please address them.", "")

	if ref := subjectLine(sess.Subject()); ref != "" {
		lines = append(lines, ref, "")
	}

	legend := make([]string, 0, len(review.CommentCategories()))
	for _, cat := range review.CommentCategories() {
		legend = append(legend, fmt.Sprintf("%s (%s)", cat.Label(), cat.Description()))
	}
	lines = append(lines, "Comment types: "+strings.Join(legend, ", "), "")

	threads := sess.Views().CommentThreads()
	if len(threads) == 0 {
		lines = append(lines, "No comments.")
		return strings.Join(lines, "\n")
	}

	for i, thread := range threads {
		lines = append(lines, exportLine(i+1, thread.Comment))
		for _, reply := range thread.Replies {
			lines = append(lines, replyLine(reply))
		}
	}

	return strings.Join(lines, "\n")
}

func subjectLine(subject review.Subject) string {
	if subject.Ref == "" {
		return ""
	}
	switch subject.SourceType() {
	case "commit":
		return "Reviewing commit: " + subject.ShortRef()
	case "branch":
		return "Reviewing changes: " + subject.Ref
	case "pr":
		return "Reviewing PR #" + subject.Ref
	}
	return ""
}

// exportLine renders "N. **[CATEGORY]** `location` - content". Continuation
// lines of multi-line content are indented to stay inside the list entry.
func exportLine(number int, comment review.Activity) string {
	label := review.DisplayCategory(comment.Category).Label()
	content := indentContinuations(comment.Content, "   ")
	if comment.Location == nil {
		return fmt.Sprintf("%d. **[%s]** %s", number, label, content)
	}
	return fmt.Sprintf("%d. **[%s]** `%s` - %s", number, label, comment.Location.Ref(), content)
}

func replyLine(reply review.Activity) string {
	content := indentContinuations(reply.Content, "     ")
	return fmt.Sprintf("   - %s: %s", reply.Author.String(), content)
}

func indentContinuations(content, indent string) string {
	return strings.ReplaceAll(content, "\n", "\n"+indent)
}

type jsonComment struct {
	ID       string        `json:"id"`
	Category string        `json:"category"`
	File     string        `json:"file,omitempty"`
	Lines    [][2]int      `json:"lines,omitempty"`
	Content  string        `json:"content"`
	Author   string        `json:"author"`
	Created  string        `json:"created"`
	Resolved bool          `json:"resolved,omitempty"`
	Replies  []jsonComment `json:"replies,omitempty"`
}

type jsonExport struct {
	Subject struct {
		Type     string `json:"type"`
		Provider string `json:"provider"`
		Ref      string `json:"ref,omitempty"`
		Repo     string `json:"repo,omitempty"`
	} `json:"subject"`
	Source struct {
		Type string `json:"type"`
		Ref  string `json:"ref,omitempty"`
	} `json:"diff_source"`
	FilesReviewed int           `json:"files_reviewed"`
	FilesTotal    int           `json:"files_total"`
	Comments      []jsonComment `json:"comments"`
}

// JSON renders the session's visible threads plus summary counts as
// indented JSON, ending with a newline.
func JSON(sess *review.Session) ([]byte, error) {
	subject := sess.Subject()
	views := sess.Views()

	doc := jsonExport{
		FilesReviewed: sess.ReviewedFileCount(),
		FilesTotal:    len(sess.Files()),
		Comments:      []jsonComment{},
	}
	doc.Subject.Type = string(subject.Kind)
	doc.Subject.Provider = subject.Provider
	doc.Subject.Ref = subject.Ref
	doc.Subject.Repo = subject.Repo
	doc.Source.Type = subject.SourceType()
	doc.Source.Ref = subject.Ref

	for _, thread := range views.CommentThreads() {
		root := jsonCommentFrom(thread.Comment)
		root.Resolved = views.IsResolved(thread.Comment.ID)
		for _, reply := range thread.Replies {
			root.Replies = append(root.Replies, jsonCommentFrom(reply))
		}
		doc.Comments = append(doc.Comments, root)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func jsonCommentFrom(a review.Activity) jsonComment {
	c := jsonComment{
		ID:       a.ID,
		Category: string(a.Category),
		Content:  a.Content,
		Author:   a.Author.String(),
		Created:  a.Created.UTC().Format(time.RFC3339),
	}
	if a.Location != nil {
		c.File = a.Location.File
		for _, rng := range a.Location.Lines {
			n := rng.Normalize()
			c.Lines = append(c.Lines, [2]int{n.Start, n.End})
		}
	}
	return c
}
