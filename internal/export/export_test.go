package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencodereview/internal/review"
)

var carol = review.HumanAuthor("Carol", "carol@example.com")

func commitSession(t *testing.T) *review.Session {
	t.Helper()
	sess := review.NewSession(review.Subject{
		Kind:     review.KindCommit,
		Provider: review.ProviderGit,
		Ref:      "0123456789abcdef",
		Repo:     "/tmp/repo",
	}, carol)

	loc := review.LineLocation("src/app.go", 42, 45)
	issue, err := sess.AddComment("off-by-one in the loop bound", &loc, review.CategoryIssue, carol)
	require.NoError(t, err)
	_, err = sess.AddReply(issue.ID, "fixed in the follow-up", review.AgentAuthor("Claude", "claude-sonnet"))
	require.NoError(t, err)

	fileLoc := review.FileLocation("README.md")
	_, err = sess.AddComment("freshen the install section", &fileLoc, review.CategoryTask, carol)
	require.NoError(t, err)

	return sess
}

func TestMarkdownShape(t *testing.T) {
	got := Markdown(commitSession(t))
	lines := strings.Split(got, "\n")

	require.GreaterOrEqual(t, len(lines), 9)
	assert.Equal(t,
		"I reviewed your code and have the following comments. Please address them.",
		lines[0])
	assert.Equal(t, "", lines[1])
	assert.Equal(t, "Reviewing commit: 0123456", lines[2])
	assert.Equal(t, "", lines[3])

	require.True(t, strings.HasPrefix(lines[4], "Comment types: "), "missing legend: %q", lines[4])
	assert.Contains(t, lines[4], "NOTE (General observation or context)")
	assert.Contains(t, lines[4], "SECURITY (Security-related concern)")
	assert.Equal(t, "", lines[5])

	// Threads sort file-first, so README.md precedes src/app.go.
	assert.Equal(t, "1. **[TASK]** `README.md` - freshen the install section", lines[6])
	assert.Equal(t, "2. **[ISSUE]** `src/app.go:42-45` - off-by-one in the loop bound", lines[7])
	assert.Equal(t, "   - Agent (Claude/claude-sonnet): fixed in the follow-up", lines[8])
}

func TestMarkdownSubjectLines(t *testing.T) {
	cases := []struct {
		subject review.Subject
		want    string
	}{
		{review.Subject{Kind: review.KindPatch, Provider: review.ProviderGitBranch, Ref: "main"},
			"Reviewing changes: main"},
		{review.Subject{Kind: review.KindPatch, Provider: review.ProviderGitHubPR, Ref: "17"},
			"Reviewing PR #17"},
		{review.Subject{Kind: review.KindPatch, Provider: review.ProviderGitUncommitted}, ""},
		{review.Subject{Kind: review.KindPatch, Provider: review.ProviderGitStaged}, ""},
	}

	for _, tc := range cases {
		got := Markdown(review.NewSession(tc.subject, carol))
		if tc.want == "" {
			assert.NotContains(t, got, "Reviewing", "subject %+v", tc.subject)
		} else {
			assert.Contains(t, got, tc.want)
		}
	}
}

func TestMarkdownEmptySession(t *testing.T) {
	sess := review.NewSession(review.Subject{
		Kind:     review.KindPatch,
		Provider: review.ProviderGitUncommitted,
	}, carol)

	got := Markdown(sess)
	assert.True(t, strings.HasSuffix(got, "No comments."), "got:\n%s", got)
}

func TestMarkdownIndentsMultilineContent(t *testing.T) {
	sess := review.NewSession(review.Subject{
		Kind:     review.KindPatch,
		Provider: review.ProviderGitUncommitted,
	}, carol)
	loc := review.LineLocation("a.go", 1, 1)
	_, err := sess.AddComment("first line\nsecond line", &loc, review.CategoryNote, carol)
	require.NoError(t, err)

	got := Markdown(sess)
	assert.Contains(t, got, "1. **[NOTE]** `a.go:1` - first line\n   second line")
}

func TestJSONShape(t *testing.T) {
	sess := commitSession(t)
	_, err := sess.ToggleReviewed("src/app.go")
	require.NoError(t, err)

	threads := sess.Views().CommentThreads()
	_, err = sess.ResolveComment(threads[1].Comment.ID)
	require.NoError(t, err)

	out, err := JSON(sess)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(out), "\n"))

	var doc struct {
		Subject struct {
			Type     string `json:"type"`
			Provider string `json:"provider"`
			Ref      string `json:"ref"`
			Repo     string `json:"repo"`
		} `json:"subject"`
		Source struct {
			Type string `json:"type"`
			Ref  string `json:"ref"`
		} `json:"diff_source"`
		FilesReviewed int `json:"files_reviewed"`
		FilesTotal    int `json:"files_total"`
		Comments      []struct {
			ID       string   `json:"id"`
			Category string   `json:"category"`
			File     string   `json:"file"`
			Lines    [][2]int `json:"lines"`
			Content  string   `json:"content"`
			Author   string   `json:"author"`
			Created  string   `json:"created"`
			Resolved bool     `json:"resolved"`
			Replies  []struct {
				Author  string `json:"author"`
				Content string `json:"content"`
			} `json:"replies"`
		} `json:"comments"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))

	assert.Equal(t, "commit", doc.Source.Type)
	assert.Equal(t, "0123456789abcdef", doc.Source.Ref)
	assert.Equal(t, "git", doc.Subject.Provider)
	assert.Equal(t, 1, doc.FilesReviewed)
	assert.Equal(t, 2, doc.FilesTotal)

	require.Len(t, doc.Comments, 2)
	readme, app := doc.Comments[0], doc.Comments[1]

	assert.Equal(t, "task", readme.Category)
	assert.Equal(t, "README.md", readme.File)
	assert.Empty(t, readme.Lines)
	assert.False(t, readme.Resolved)

	assert.Equal(t, "issue", app.Category)
	assert.Equal(t, [][2]int{{42, 45}}, app.Lines)
	assert.True(t, app.Resolved)
	assert.Equal(t, "Carol <carol@example.com>", app.Author)
	require.Len(t, app.Replies, 1)
	assert.Equal(t, "Agent (Claude/claude-sonnet)", app.Replies[0].Author)

	created, err := time.Parse(time.RFC3339, app.Created)
	require.NoError(t, err)
	assert.False(t, created.IsZero())
}

func TestJSONEmptySessionHasCommentsArray(t *testing.T) {
	sess := review.NewSession(review.Subject{
		Kind:     review.KindPatch,
		Provider: review.ProviderGitUncommitted,
	}, carol)

	out, err := JSON(sess)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"comments": []`)
}

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]Format{
		"markdown": FormatMarkdown,
		"md":       FormatMarkdown,
		"":         FormatMarkdown,
		"JSON":     FormatJSON,
	} {
		got, err := ParseFormat(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestRenderDispatch(t *testing.T) {
	sess := commitSession(t)

	md, err := Render(sess, FormatMarkdown)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "I reviewed your code"))
	assert.True(t, strings.HasSuffix(string(md), "\n"))

	js, err := Render(sess, FormatJSON)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(js), "{"))
}
