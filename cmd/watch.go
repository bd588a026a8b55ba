package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/opencodereview/internal/reload"
)

// WatchCommand returns the watch command.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow the session file and fold in external edits",
		Description: "Runs the hot-reload loop until interrupted. Edits made " +
			"to the session file by editors or agents are merged in and a " +
			"state summary is printed after each merge.",
		Flags: append(selectorFlags(),
			&cli.BoolFlag{
				Name:  "new",
				Usage: "Discard any existing session and start fresh",
			},
		),
		Action: runWatch,
	}
}

func runWatch(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	// The initial save materializes the file so external editors have
	// something to edit before the first mutation.
	if _, err := env.Store.Save(sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	coord := reload.New(sess, reload.Config{
		Store:    env.Store,
		Debounce: cfg.Debounce(),
	})
	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}
	defer coord.Stop()

	fmt.Fprintf(c.App.Writer, "Watching %s (Ctrl-C to stop)\n", env.Store.Path())

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.App.Writer, "\nStopped")
			return nil
		case update, ok := <-coord.Updates():
			if !ok {
				return nil
			}
			printUpdate(c, update)
		}
	}
}

func printUpdate(c *cli.Context, update reload.Update) {
	snap := update.Snapshot
	switch update.Reason {
	case reload.UpdateReload:
		fmt.Fprintf(c.App.Writer, "Merged %d external activit%s\n",
			update.Merged, pluralY(update.Merged))
	case reload.UpdateInitial:
		fmt.Fprintf(c.App.Writer, "Session has %d activities\n", snap.Activities)
	}
	fmt.Fprintf(c.App.Writer, "  %d/%d files reviewed, %d comment(s)\n",
		snap.ReviewedFiles, len(snap.Files), snap.TotalComments)
	for _, thread := range snap.Threads {
		printThread(c, thread)
	}
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
