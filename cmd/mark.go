package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/opencodereview/internal/review"
)

// MarkCommand returns the mark command with its subcommands.
func MarkCommand() *cli.Command {
	return &cli.Command{
		Name:  "mark",
		Usage: "Mark files and hunks as reviewed",
		Subcommands: []*cli.Command{
			{
				Name:      "file",
				Usage:     "Toggle the reviewed mark on a file",
				ArgsUsage: "PATH",
				Flags:     selectorFlags(),
				Action:    runMarkFile,
			},
			{
				Name:      "hunk",
				Usage:     "Mark a line range as handled (collapsible)",
				ArgsUsage: "PATH START:END",
				Flags:     selectorFlags(),
				Action:    runMarkHunk,
			},
			{
				Name:      "clear",
				Usage:     "Retract a reviewed mark from a file or line range",
				ArgsUsage: "PATH [START:END]",
				Flags:     selectorFlags(),
				Action:    runMarkClear,
			},
		},
	}
}

func runMarkFile(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: file path")
	}
	path := c.Args().Get(0)

	return withSession(c, func(sess *review.Session) (string, error) {
		reviewed, err := sess.ToggleReviewed(path)
		if err != nil {
			return "", err
		}
		if reviewed {
			return fmt.Sprintf("Marked %s as reviewed", path), nil
		}
		return fmt.Sprintf("Unmarked %s", path), nil
	})
}

func runMarkHunk(c *cli.Context) error {
	if c.NArg() < 2 {
		return fmt.Errorf("missing required arguments: file path and line range")
	}
	path := c.Args().Get(0)
	rng, err := parseRange(c.Args().Get(1))
	if err != nil {
		return err
	}

	return withSession(c, func(sess *review.Session) (string, error) {
		if _, err := sess.ResolveHunk(path, rng); err != nil {
			return "", err
		}
		return fmt.Sprintf("Marked %s:%s as handled", path, rng), nil
	})
}

func runMarkClear(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: file path")
	}
	path := c.Args().Get(0)

	if c.NArg() >= 2 {
		rng, err := parseRange(c.Args().Get(1))
		if err != nil {
			return err
		}
		return withSession(c, func(sess *review.Session) (string, error) {
			cleared, err := sess.UnresolveHunk(path, rng)
			if err != nil {
				return "", err
			}
			if !cleared {
				return fmt.Sprintf("No handled mark on %s:%s", path, rng), nil
			}
			return fmt.Sprintf("Cleared handled mark on %s:%s", path, rng), nil
		})
	}

	return withSession(c, func(sess *review.Session) (string, error) {
		if !sess.Views().IsFileReviewed(path) {
			return fmt.Sprintf("%s is not marked as reviewed", path), nil
		}
		if _, err := sess.ToggleReviewed(path); err != nil {
			return "", err
		}
		return fmt.Sprintf("Unmarked %s", path), nil
	})
}

// parseRange reads "42" or "42:45" as an inclusive new-file line range.
func parseRange(s string) (review.LineRange, error) {
	start, end, found := strings.Cut(s, ":")
	a, err := strconv.Atoi(strings.TrimSpace(start))
	if err != nil || a < 1 {
		return review.LineRange{}, fmt.Errorf("invalid line range %q (want START:END)", s)
	}
	b := a
	if found {
		b, err = strconv.Atoi(strings.TrimSpace(end))
		if err != nil || b < 1 {
			return review.LineRange{}, fmt.Errorf("invalid line range %q (want START:END)", s)
		}
	}
	return review.LineRange{Start: a, End: b}.Normalize(), nil
}

// withSession loads the existing session, applies the operation, and saves.
func withSession(c *cli.Context, op func(*review.Session) (string, error)) error {
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

	msg, err := op(sess)
	if err != nil {
		return err
	}
	if _, err := env.Store.Save(sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Fprintln(c.App.Writer, msg)
	return nil
}
