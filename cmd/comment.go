package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/opencodereview/internal/review"
)

// CommentCommand returns the comment command with its subcommands.
func CommentCommand() *cli.Command {
	return &cli.Command{
		Name:  "comment",
		Usage: "Add and manage review comments",
		Subcommands: []*cli.Command{
			commentAddCommand(),
			commentReplyCommand(),
			commentEditCommand(),
			commentDeleteCommand(),
			commentResolveCommand(),
		},
	}
}

func commentAddCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Add a comment to a file or line range",
		Flags: append(selectorFlags(),
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "File the comment is anchored to",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "line",
				Aliases: []string{"l"},
				Usage:   "Start line (omit for a file-level comment)",
			},
			&cli.IntFlag{
				Name:  "end-line",
				Usage: "End line of the range (defaults to --line)",
			},
			&cli.StringFlag{
				Name:  "category",
				Usage: "Comment category (note, suggestion, issue, praise, question, task, security)",
				Value: string(review.CategoryNote),
			},
			&cli.StringFlag{
				Name:     "message",
				Aliases:  []string{"m"},
				Usage:    "Comment text",
				Required: true,
			},
		),
		Action: runCommentAdd,
	}
}

func runCommentAdd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	env, err := prepare(c.Context, c, cfg)
	if err != nil {
		return err
	}
	sess, err := env.loadOrCreateSession(false)
	if err != nil {
		return err
	}

	var loc *review.Location
	if line := c.Int("line"); line > 0 {
		end := c.Int("end-line")
		if end == 0 {
			end = line
		}
		loc = review.LineLocation(c.String("file"), line, end).Ptr()
	} else {
		loc = review.FileLocation(c.String("file")).Ptr()
	}

	category := review.Category(strings.ToLower(strings.TrimSpace(c.String("category"))))
	added, err := sess.AddComment(c.String("message"), loc, category, env.Author)
	if err != nil {
		return err
	}
	if _, err := env.Store.Save(sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Added comment %s at %s\n", shortID(added.ID), added.Location.Ref())
	return nil
}

func commentReplyCommand() *cli.Command {
	return &cli.Command{
		Name:      "reply",
		Usage:     "Reply to an existing comment",
		ArgsUsage: "COMMENT_ID",
		Flags: append(selectorFlags(),
			&cli.StringFlag{
				Name:     "message",
				Aliases:  []string{"m"},
				Usage:    "Reply text",
				Required: true,
			},
		),
		Action: func(c *cli.Context) error {
			return withComment(c, func(sess *review.Session, id string, author review.Author) (string, error) {
				reply, err := sess.AddReply(id, c.String("message"), author)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Added reply %s to %s", shortID(reply.ID), shortID(id)), nil
			})
		},
	}
}

func commentEditCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Replace a comment's text",
		ArgsUsage: "COMMENT_ID",
		Flags: append(selectorFlags(),
			&cli.StringFlag{
				Name:     "message",
				Aliases:  []string{"m"},
				Usage:    "New comment text",
				Required: true,
			},
		),
		Action: func(c *cli.Context) error {
			return withComment(c, func(sess *review.Session, id string, _ review.Author) (string, error) {
				edited, err := sess.EditComment(id, c.String("message"))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Edited comment %s (now %s)", shortID(id), shortID(edited.ID)), nil
			})
		},
	}
}

func commentDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Retract a comment",
		ArgsUsage: "COMMENT_ID",
		Flags:     selectorFlags(),
		Action: func(c *cli.Context) error {
			return withComment(c, func(sess *review.Session, id string, _ review.Author) (string, error) {
				if _, err := sess.DeleteComment(id); err != nil {
					return "", err
				}
				return "Deleted comment " + shortID(id), nil
			})
		},
	}
}

func commentResolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Mark a comment as resolved",
		ArgsUsage: "COMMENT_ID",
		Flags:     selectorFlags(),
		Action: func(c *cli.Context) error {
			return withComment(c, func(sess *review.Session, id string, _ review.Author) (string, error) {
				if _, err := sess.ResolveComment(id); err != nil {
					return "", err
				}
				return "Resolved comment " + shortID(id), nil
			})
		},
	}
}

// withComment loads the session, expands the ID-prefix argument, applies the
// operation, and saves.
func withComment(c *cli.Context, op func(*review.Session, string, review.Author) (string, error)) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: comment ID")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	env, err := prepare(c.Context, c, cfg)
	if err != nil {
		return err
	}
	sess, err := env.loadExistingSession()
	if err != nil {
		return err
	}

	id, err := resolveCommentID(sess, c.Args().Get(0))
	if err != nil {
		return err
	}
	msg, err := op(sess, id, env.Author)
	if err != nil {
		return err
	}
	if _, err := env.Store.Save(sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Fprintln(c.App.Writer, msg)
	return nil
}
