package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/opencodereview/internal/analysis"
	"github.com/opencodereview/internal/review"
)

// AnalyzeCommand returns the analyze command.
func AnalyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Ask the analysis backend about the selected changes",
		Description: "Runs one analysis request and prints the answer. " +
			"The answer is never written to the session; use 'comment add' " +
			"to turn it into a review comment.",
		Flags: append(selectorFlags(),
			&cli.StringFlag{
				Name:    "kind",
				Aliases: []string{"k"},
				Usage:   "Analysis kind (review, explain, suggest, security)",
				Value:   string(analysis.KindReview),
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Limit the analysis context to one changed file",
			},
			&cli.BoolFlag{
				Name:  "stream",
				Usage: "Print response text as it arrives",
			},
		),
		Action: runAnalyze,
	}
}

func runAnalyze(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	kind, err := analysis.ParseKind(c.String("kind"))
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

	// Existing session comments feed the prompt context when present;
	// analysis works fine without a session.
	var sess *review.Session
	if env.Store.Exists() {
		if sess, err = env.Store.Load(); err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
	}

	var contexts []string
	for _, file := range diff.Files {
		if target := c.String("file"); target != "" && file.Path != target {
			continue
		}
		contexts = append(contexts, analysis.BuildContext(file, nil, commentLines(sess, file.Path)))
	}
	if len(contexts) == 0 {
		if target := c.String("file"); target != "" {
			return fmt.Errorf("file %s is not part of the selected diff", target)
		}
		return fmt.Errorf("the selected diff is empty")
	}

	backend, err := buildBackend(ctx, cfg)
	if err != nil {
		return err
	}

	req := analysis.Request{
		Prompt:  kind.Prompt(),
		Context: strings.Join(contexts, "\n\n"),
	}
	if c.Bool("stream") {
		req.OnChunk = func(text string) { fmt.Fprint(c.App.Writer, text) }
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.AnalysisTimeout())
	defer cancel()

	answer, err := backend.Analyze(runCtx, req)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	if c.Bool("stream") {
		fmt.Fprintln(c.App.Writer)
		return nil
	}
	fmt.Fprintln(c.App.Writer, strings.TrimSpace(answer))
	return nil
}

// commentLines renders the visible comments on a file for prompt context.
func commentLines(sess *review.Session, path string) []string {
	if sess == nil {
		return nil
	}
	var lines []string
	for _, thread := range sess.Views().CommentsForFile(path) {
		comment := thread.Comment
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			review.DisplayCategory(comment.Category).Label(),
			comment.Location.ShortRef(), comment.Content))
	}
	return lines
}
