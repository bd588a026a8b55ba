package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/opencodereview/internal/diffsource"
	"github.com/opencodereview/internal/review"
	"github.com/opencodereview/internal/sessionfile"
)

// SessionsCommand returns the sessions command with its subcommands.
func SessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List and delete review session files",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the session files in the repository",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "repo",
						Aliases: []string{"r"},
						Usage:   "Repository directory",
						Value:   ".",
					},
				},
				Action: runSessionsList,
			},
			{
				Name:      "delete",
				Usage:     "Delete a session file (the review is gone for good)",
				ArgsUsage: "PATH",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "repo",
						Aliases: []string{"r"},
						Usage:   "Repository directory",
						Value:   ".",
					},
				},
				Action: runSessionsDelete,
			},
		},
	}
}

func runSessionsList(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	root, err := diffsource.RepoRoot(c.Context, c.String("repo"))
	if err != nil {
		return fmt.Errorf("failed to locate repository: %w", err)
	}

	author := review.HumanAuthor(cfg.Author.Name, cfg.Author.Email)
	infos, err := sessionfile.List(root, author)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(infos) == 0 {
		fmt.Fprintln(c.App.Writer, "No session files found")
		return nil
	}

	for _, info := range infos {
		fmt.Fprintf(c.App.Writer, "%s\n    %s, %d comment(s), updated %s\n",
			filepath.Base(info.Path), info.Subject.Describe(), info.Comments,
			info.Updated.Format("2006-01-02 15:04"))
	}
	return nil
}

func runSessionsDelete(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: session file path")
	}
	if _, err := loadConfig(c); err != nil {
		return err
	}

	path := c.Args().Get(0)
	if !filepath.IsAbs(path) {
		root, err := diffsource.RepoRoot(c.Context, c.String("repo"))
		if err != nil {
			return fmt.Errorf("failed to locate repository: %w", err)
		}
		path = filepath.Join(root, filepath.Base(path))
	}
	if !sessionfile.IsSessionFile(path) {
		return fmt.Errorf("%s is not a session file", path)
	}

	if err := sessionfile.Delete(path); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Deleted %s\n", path)
	return nil
}
