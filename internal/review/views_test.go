package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(Subject{Kind: KindPatch, Provider: ProviderGitUncommitted}, HumanAuthor("dev", "dev@example.com"))
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s
}

func TestCommentThreadsGroupReplies(t *testing.T) {
	s := testSession(t)
	root, err := s.AddComment("root issue", FileLocation("a.go").Ptr(), CategoryIssue, s.Author())
	require.NoError(t, err)
	reply1, err := s.AddReply(root.ID, "first reply", s.Author())
	require.NoError(t, err)
	reply2, err := s.AddReply(root.ID, "second reply", s.Author())
	require.NoError(t, err)

	threads := s.Views().CommentThreads()

	require.Len(t, threads, 1)
	require.Equal(t, root.ID, threads[0].Comment.ID)
	require.Len(t, threads[0].Replies, 2)
	require.Equal(t, reply1.ID, threads[0].Replies[0].ID)
	require.Equal(t, reply2.ID, threads[0].Replies[1].ID)
}

func TestRepliesDoNotAppearAsRoots(t *testing.T) {
	s := testSession(t)
	root, err := s.AddComment("root", nil, CategoryNote, s.Author())
	require.NoError(t, err)
	_, err = s.AddReply(root.ID, "reply", s.Author())
	require.NoError(t, err)

	threads := s.Views().CommentThreads()

	require.Len(t, threads, 1)
}

func TestThreadsSortByFileThenLine(t *testing.T) {
	s := testSession(t)
	_, err := s.AddComment("late file", LineLocation("z.go", 5, 5).Ptr(), CategoryNote, s.Author())
	require.NoError(t, err)
	_, err = s.AddComment("line 90", LineLocation("a.go", 90, 92).Ptr(), CategoryNote, s.Author())
	require.NoError(t, err)
	_, err = s.AddComment("file level", FileLocation("a.go").Ptr(), CategoryNote, s.Author())
	require.NoError(t, err)
	_, err = s.AddComment("line 10", LineLocation("a.go", 10, 10).Ptr(), CategoryNote, s.Author())
	require.NoError(t, err)

	threads := s.Views().CommentThreads()

	require.Len(t, threads, 4)
	require.Equal(t, "file level", threads[0].Comment.Content)
	require.Equal(t, "line 10", threads[1].Comment.Content)
	require.Equal(t, "line 90", threads[2].Comment.Content)
	require.Equal(t, "late file", threads[3].Comment.Content)
}

func TestCommentsForFile(t *testing.T) {
	s := testSession(t)
	_, err := s.AddComment("on a", FileLocation("a.go").Ptr(), CategoryNote, s.Author())
	require.NoError(t, err)
	_, err = s.AddComment("on b", FileLocation("b.go").Ptr(), CategoryNote, s.Author())
	require.NoError(t, err)
	_, err = s.AddComment("global", nil, CategoryNote, s.Author())
	require.NoError(t, err)

	onA := s.Views().CommentsForFile("a.go")

	require.Len(t, onA, 1)
	require.Equal(t, "on a", onA[0].Comment.Content)
}

func TestIsFileReviewedFollowsToggle(t *testing.T) {
	s := testSession(t)

	nowReviewed, err := s.ToggleReviewed("a.go")
	require.NoError(t, err)
	require.True(t, nowReviewed)
	require.True(t, s.Views().IsFileReviewed("a.go"))

	nowReviewed, err = s.ToggleReviewed("a.go")
	require.NoError(t, err)
	require.False(t, nowReviewed)
	require.False(t, s.Views().IsFileReviewed("a.go"))

	nowReviewed, err = s.ToggleReviewed("a.go")
	require.NoError(t, err)
	require.True(t, nowReviewed)
	require.True(t, s.Views().IsFileReviewed("a.go"))
}

func TestResolvedHunksForFile(t *testing.T) {
	s := testSession(t)
	_, err := s.ResolveHunk("a.go", LineRange{Start: 10, End: 20})
	require.NoError(t, err)
	_, err = s.ResolveHunk("a.go", LineRange{Start: 40, End: 45})
	require.NoError(t, err)
	_, err = s.ResolveHunk("b.go", LineRange{Start: 1, End: 3})
	require.NoError(t, err)

	hunks := s.Views().ResolvedHunksForFile("a.go")

	require.Len(t, hunks, 2)
	require.Equal(t, LineRange{Start: 10, End: 20}, hunks[0].Range)
	require.Equal(t, LineRange{Start: 40, End: 45}, hunks[1].Range)
}

func TestUnresolveHunkRetractsMatchingMark(t *testing.T) {
	s := testSession(t)
	_, err := s.ResolveHunk("a.go", LineRange{Start: 10, End: 20})
	require.NoError(t, err)

	found, err := s.UnresolveHunk("a.go", LineRange{Start: 10, End: 20})
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, s.Views().ResolvedHunksForFile("a.go"))

	found, err = s.UnresolveHunk("a.go", LineRange{Start: 10, End: 20})
	require.NoError(t, err)
	require.False(t, found)
}

func TestIsResolvedTracksResolutions(t *testing.T) {
	s := testSession(t)
	c, err := s.AddComment("fix this", nil, CategoryIssue, s.Author())
	require.NoError(t, err)
	require.False(t, s.Views().IsResolved(c.ID))

	_, err = s.ResolveComment(c.ID)
	require.NoError(t, err)

	require.True(t, s.Views().IsResolved(c.ID))
	// Resolution annotates; the comment stays visible.
	require.Len(t, s.Views().Visible(), 1)
}

func TestTotalCommentCountIncludesReplies(t *testing.T) {
	s := testSession(t)
	root, err := s.AddComment("root", nil, CategoryNote, s.Author())
	require.NoError(t, err)
	_, err = s.AddReply(root.ID, "reply", s.Author())
	require.NoError(t, err)
	_, err = s.ToggleReviewed("a.go")
	require.NoError(t, err)

	require.Equal(t, 2, s.Views().TotalCommentCount())
}

func TestViewsRefreshAfterAppend(t *testing.T) {
	s := testSession(t)
	v := s.Views()
	require.Empty(t, v.Visible())

	_, err := s.AddComment("new", nil, CategoryNote, s.Author())
	require.NoError(t, err)

	require.Len(t, v.Visible(), 1)
}
