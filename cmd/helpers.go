package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/opencodereview/internal/analysis"
	"github.com/opencodereview/internal/config"
	"github.com/opencodereview/internal/diffsource"
	"github.com/opencodereview/internal/logging"
	"github.com/opencodereview/internal/review"
	"github.com/opencodereview/internal/sessionfile"
)

// selectorFlags are shared by every command that needs a diff subject.
func selectorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "repo",
			Aliases: []string{"r"},
			Usage:   "Repository directory",
			Value:   ".",
		},
		&cli.BoolFlag{
			Name:    "staged",
			Aliases: []string{"s"},
			Usage:   "Review staged changes instead of the working tree",
		},
		&cli.StringFlag{
			Name:    "branch",
			Aliases: []string{"b"},
			Usage:   "Review changes against the merge base with `BRANCH`",
		},
		&cli.StringFlag{
			Name:  "commit",
			Usage: "Review the changes introduced by `COMMIT`",
		},
		&cli.IntFlag{
			Name:  "pr",
			Usage: "Review GitHub pull request `NUMBER` (requires gh)",
		},
	}
}

func selectorFromContext(c *cli.Context) diffsource.Selector {
	return diffsource.Selector{
		Repo:   c.String("repo"),
		Staged: c.Bool("staged"),
		Branch: c.String("branch"),
		Commit: c.String("commit"),
		PR:     c.Int("pr"),
	}
}

// loadConfig loads and validates the configuration, then installs the
// global logger from its log section.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := logging.Setup(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// sessionEnv bundles everything a session-touching command needs.
type sessionEnv struct {
	Source  diffsource.Source
	Subject review.Subject
	Author  review.Author
	Store   *sessionfile.Store
}

// prepare resolves the diff source, repo root, author identity, and the
// session store for the selected subject.
func prepare(ctx context.Context, c *cli.Context, cfg *config.Config) (*sessionEnv, error) {
	sel := selectorFromContext(c)
	root, err := diffsource.RepoRoot(ctx, sel.Repo)
	if err != nil {
		return nil, fmt.Errorf("failed to locate repository: %w", err)
	}
	sel.Repo = root

	source := diffsource.New(sel)

	author := review.HumanAuthor(cfg.Author.Name, cfg.Author.Email)
	if author.Name == "" {
		author = diffsource.Identity(ctx, root)
	}

	format, err := sessionfile.ParseFormat(cfg.Session.Format)
	if err != nil {
		return nil, err
	}
	subject := source.Subject()
	return &sessionEnv{
		Source:  source,
		Subject: subject,
		Author:  author,
		Store:   sessionfile.NewStore(root, subject, format, author),
	}, nil
}

// loadOrCreateSession opens the subject's session file, or starts a fresh
// session when none exists or fresh is set.
func (e *sessionEnv) loadOrCreateSession(fresh bool) (*review.Session, error) {
	if !fresh && e.Store.Exists() {
		sess, err := e.Store.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		return sess, nil
	}
	return review.NewSession(e.Subject, e.Author), nil
}

// loadExistingSession opens the subject's session file and errors when it
// does not exist yet.
func (e *sessionEnv) loadExistingSession() (*review.Session, error) {
	if !e.Store.Exists() {
		return nil, fmt.Errorf("no session file at %s (run 'opencodereview review' first)", e.Store.Path())
	}
	sess, err := e.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

// buildBackend constructs the configured analysis backend. The claudecli
// backend is probed so a missing binary fails fast.
func buildBackend(ctx context.Context, cfg *config.Config) (analysis.Backend, error) {
	switch cfg.Analysis.Backend {
	case "claudecli":
		backend := analysis.NewClaudeCLI(analysis.ClaudeCLIConfig{Timeout: cfg.AnalysisTimeout()})
		if err := backend.Probe(ctx); err != nil {
			return nil, err
		}
		return backend, nil
	case "langchain":
		return analysis.NewLangchain(ctx, analysis.LangchainConfig{
			Provider:    analysis.Provider(cfg.Analysis.Provider),
			APIKey:      cfg.Analysis.APIKey,
			BaseURL:     cfg.Analysis.BaseURL,
			Model:       cfg.Analysis.Model,
			MaxTokens:   cfg.Analysis.MaxTokens,
			Temperature: cfg.Analysis.Temperature,
		})
	default:
		return nil, fmt.Errorf("unsupported analysis backend: %s", cfg.Analysis.Backend)
	}
}

// resolveCommentID expands a comment ID prefix against the session's
// visible comments. Replies are matched too so they can be edited and
// deleted by prefix.
func resolveCommentID(sess *review.Session, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", errors.New("missing comment ID")
	}

	var matches []string
	for _, a := range sess.Views().Visible() {
		if a.Type != review.TypeComment {
			continue
		}
		if strings.HasPrefix(a.ID, prefix) {
			matches = append(matches, a.ID)
		}
	}
	sort.Strings(matches)

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no comment matches ID %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("comment ID %q is ambiguous (%d matches, give more characters)", prefix, len(matches))
	}
}
