package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/opencodereview/internal/review"
	"github.com/opencodereview/pkg/models"
)

// ReviewCommand returns the review command
func ReviewCommand() *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Start or resume a review of the selected changes",
		Flags: append(selectorFlags(),
			&cli.BoolFlag{
				Name:  "new",
				Usage: "Discard any existing session and start fresh",
			},
		),
		Action: runReview,
	}
}

func runReview(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx := c.Context
	env, err := prepare(ctx, c, cfg)
	if err != nil {
		return err
	}

	diff, err := env.Source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to load diff: %w", err)
	}

	sess, err := env.loadOrCreateSession(c.Bool("new"))
	if err != nil {
		return err
	}
	sess.TrackFiles(diff.FilePaths())

	if _, err := env.Store.Save(sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	printSummary(c, sess, diff, env.Store.Path())
	return nil
}

func printSummary(c *cli.Context, sess *review.Session, diff *models.DiffSet, path string) {
	views := sess.Views()

	fmt.Fprintf(c.App.Writer, "Reviewing %s\n", sess.Subject().Describe())
	fmt.Fprintf(c.App.Writer, "Session: %s\n\n", path)

	for _, file := range diff.Files {
		mark := " "
		if views.IsFileReviewed(file.Path) {
			mark = "x"
		}
		line := fmt.Sprintf("[%s] %-8s %s (+%d -%d)",
			mark, file.Status, file.Path, file.AddedLines(), file.RemovedLines())
		if n := len(views.CommentsForFile(file.Path)); n > 0 {
			line += fmt.Sprintf("  %d comment(s)", n)
		}
		fmt.Fprintln(c.App.Writer, line)
	}

	fmt.Fprintf(c.App.Writer, "\n%d/%d files reviewed, %d comments\n",
		sess.ReviewedFileCount(), len(diff.Files), views.TotalCommentCount())

	threads := views.CommentThreads()
	if len(threads) == 0 {
		return
	}
	fmt.Fprintln(c.App.Writer)
	for _, thread := range threads {
		printThread(c, thread)
	}
}

func printThread(c *cli.Context, thread review.CommentThread) {
	comment := thread.Comment
	loc := ""
	if comment.Location != nil {
		loc = " " + comment.Location.Ref()
	}
	fmt.Fprintf(c.App.Writer, "%s [%s]%s %s\n",
		shortID(comment.ID), review.DisplayCategory(comment.Category).Label(), loc,
		firstLine(comment.Content))
	for _, reply := range thread.Replies {
		fmt.Fprintf(c.App.Writer, "    %s %s: %s\n",
			shortID(reply.ID), reply.Author.String(), firstLine(reply.Content))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
