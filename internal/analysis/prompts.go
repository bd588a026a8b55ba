package analysis

import (
	"fmt"
	"strings"

	"github.com/opencodereview/pkg/models"
)

// Kind selects one of the canned analysis prompts.
type Kind string

const (
	KindReview   Kind = "review"
	KindExplain  Kind = "explain"
	KindSuggest  Kind = "suggest"
	KindSecurity Kind = "security"
)

// Kinds lists the supported prompt kinds in display order.
func Kinds() []Kind {
	return []Kind{KindReview, KindExplain, KindSuggest, KindSecurity}
}

// ParseKind validates a user-supplied kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindReview, KindExplain, KindSuggest, KindSecurity:
		return k, nil
	}
	return "", fmt.Errorf("unknown analysis kind %q (want review, explain, suggest, or security)", s)
}

// Prompt returns the canned prompt text for the kind. Unknown kinds fall
// back to the review prompt.
func (k Kind) Prompt() string {
	switch k {
	case KindExplain:
		return "Please explain what this code change does. " +
			"Be concise and focus on the key functionality."
	case KindSuggest:
		return "Please suggest improvements to this code. " +
			"Focus on code quality, readability, and best practices."
	case KindSecurity:
		return "Please analyze this code for security vulnerabilities. " +
			"Focus on common issues like injection, authentication, data handling."
	default:
		return "Please review this code change. Focus on:\n" +
			"1. Potential bugs or issues\n" +
			"2. Code quality and readability\n" +
			"3. Performance implications\n" +
			"4. Security concerns\n" +
			"Be concise and specific."
	}
}

// BuildContext renders the change a prompt refers to: a file header, the
// hunk bodies with unified-diff prefixes, and any existing review comments.
// When hunk is non-nil only that hunk is included.
func BuildContext(file models.ChangedFile, hunk *models.DiffHunk, comments []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "File: %s\n", file.Path)
	fmt.Fprintf(&b, "Status: %s\n", file.Status)
	fmt.Fprintf(&b, "Changes: +%d -%d\n\n", file.AddedLines(), file.RemovedLines())

	if hunk != nil {
		b.WriteString("=== Hunk ===\n")
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n",
			hunk.OldStartLine, hunk.OldLineCount, hunk.NewStartLine, hunk.NewLineCount)
		if hunk.Section != "" {
			fmt.Fprintf(&b, "Context: %s\n", hunk.Section)
		}
		b.WriteString("\n")
		writeHunkLines(&b, *hunk)
	} else {
		b.WriteString("=== Diff ===\n")
		for _, h := range file.Hunks {
			fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n",
				h.OldStartLine, h.OldLineCount, h.NewStartLine, h.NewLineCount)
			if h.Section != "" {
				fmt.Fprintf(&b, "  %s\n", h.Section)
			}
			writeHunkLines(&b, h)
			b.WriteString("\n")
		}
	}

	if len(comments) > 0 {
		b.WriteString("\n=== Existing Review Comments ===\n")
		for _, c := range comments {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeHunkLines(b *strings.Builder, h models.DiffHunk) {
	for _, line := range h.Lines {
		b.WriteString(line.Kind.Prefix())
		b.WriteString(line.Content)
		b.WriteByte('\n')
	}
}
