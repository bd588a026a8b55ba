// Package reload runs the session-owning event loop: it serializes
// mutations, folds concurrent edits of the session file back into memory,
// and republishes projection snapshots to consumers. The session itself is
// not synchronized; only the loop goroutine touches it.
package reload

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/opencodereview/internal/analysis"
	"github.com/opencodereview/internal/review"
	"github.com/opencodereview/internal/sessionfile"
	"github.com/opencodereview/internal/watcher"
)

// ErrStopped is returned by calls posted after the coordinator shut down.
var ErrStopped = errors.New("reload: coordinator stopped")

// UpdateReason says what caused a projection republish.
type UpdateReason string

const (
	// UpdateInitial is published once when the loop starts.
	UpdateInitial UpdateReason = "initial"
	// UpdateMutation follows a successful locally issued mutation.
	UpdateMutation UpdateReason = "mutation"
	// UpdateReload follows external session-file changes merged in.
	UpdateReload UpdateReason = "reload"
)

// Snapshot summarizes the projection views at publish time. Activities in
// Threads are immutable and safe to share across goroutines.
type Snapshot struct {
	Subject       review.Subject
	Files         []string
	ReviewedFiles int
	TotalComments int
	Activities    int
	Threads       []review.CommentThread
}

// Update is one republished projection snapshot.
type Update struct {
	Reason   UpdateReason
	Merged   int // activities folded in, set for reload updates
	Snapshot Snapshot
}

// Config wires the coordinator's collaborators.
type Config struct {
	Store *sessionfile.Store

	// Backend enables background analysis runs when set.
	Backend  analysis.Backend
	Analysis analysis.RunnerConfig

	// Debounce overrides the watcher's default window when positive.
	Debounce time.Duration
	// NoWatch skips file watching; reloads then only happen via saves.
	NoWatch bool
}

type command struct {
	fn   func(*review.Session) error
	save bool
	resp chan error
}

// Coordinator owns a review session on a single goroutine. All access goes
// through posted commands; file-change notifications and analysis results
// arrive as events on the same loop.
type Coordinator struct {
	session *review.Session
	store   *sessionfile.Store
	cfg     Config

	watch  *watcher.Watcher
	runner *analysis.Runner

	commands     chan command
	reloads      chan struct{}
	runnerEvents chan analysis.Event

	updates     chan Update
	analysisOut chan analysis.Event
	activeRun   int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a coordinator for an already loaded session. Call Start before
// posting work.
func New(session *review.Session, cfg Config) *Coordinator {
	c := &Coordinator{
		session:      session,
		store:        cfg.Store,
		cfg:          cfg,
		commands:     make(chan command),
		reloads:      make(chan struct{}, 1),
		runnerEvents: make(chan analysis.Event, 16),
		updates:      make(chan Update, 8),
		analysisOut:  make(chan analysis.Event, 16),
		done:         make(chan struct{}),
	}
	if cfg.Backend != nil {
		c.runner = analysis.NewRunner(cfg.Backend, c.runnerEvents, cfg.Analysis)
	}
	return c
}

// Updates delivers projection snapshots. The channel closes on Stop;
// consumers must drain it.
func (c *Coordinator) Updates() <-chan Update { return c.updates }

// AnalysisEvents delivers chunks, answers, and errors from background
// analysis runs, already filtered to the most recently started run. The
// channel closes on Stop.
func (c *Coordinator) AnalysisEvents() <-chan analysis.Event { return c.analysisOut }

// Start launches the loop and, unless disabled, the session-file watcher.
func (c *Coordinator) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	if !c.cfg.NoWatch {
		c.watch = watcher.New(c.store.Path(), c.notifyChange)
		if c.cfg.Debounce > 0 {
			c.watch.SetDebounce(c.cfg.Debounce)
		}
		if err := c.watch.Start(c.ctx); err != nil {
			c.cancel()
			return err
		}
	}

	go c.loop()
	return nil
}

// Stop cancels in-flight work, halts the watcher, and waits for the loop to
// exit. The updates and analysis channels are closed once drained work ends.
func (c *Coordinator) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	if c.runner != nil {
		c.runner.Stop()
	}
	if c.watch != nil {
		c.watch.Stop()
	}
	<-c.done
	c.cancel = nil
}

// Do posts fn to the session goroutine and waits for it. When fn succeeds
// the session is saved (merging any concurrent disk edits) and a mutation
// update is published. A no-op fn forces a save.
func (c *Coordinator) Do(ctx context.Context, fn func(*review.Session) error) error {
	return c.post(ctx, command{fn: fn, save: true, resp: make(chan error, 1)})
}

// Inspect posts a read-only fn to the session goroutine and waits for it.
// Nothing is saved or published.
func (c *Coordinator) Inspect(ctx context.Context, fn func(*review.Session)) error {
	wrapped := func(s *review.Session) error {
		fn(s)
		return nil
	}
	return c.post(ctx, command{fn: wrapped, resp: make(chan error, 1)})
}

// StartAnalysis begins a background analysis run, cancelling any prior one.
// Events surface on AnalysisEvents.
func (c *Coordinator) StartAnalysis(ctx context.Context, run analysis.Run) error {
	if c.runner == nil {
		return errors.New("reload: no analysis backend configured")
	}
	return c.post(ctx, command{
		fn: func(*review.Session) error {
			c.activeRun = c.runner.Start(c.ctx, run)
			return nil
		},
		resp: make(chan error, 1),
	})
}

// CancelAnalysis stops the in-flight analysis run, if any.
func (c *Coordinator) CancelAnalysis() {
	if c.runner != nil {
		c.runner.Cancel()
	}
}

func (c *Coordinator) post(ctx context.Context, cmd command) error {
	select {
	case c.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}

	select {
	case err := <-cmd.resp:
		return err
	case <-c.done:
		// The loop may have answered right as it shut down.
		select {
		case err := <-cmd.resp:
			return err
		default:
			return ErrStopped
		}
	}
}

// notifyChange runs on the watcher goroutine; it coalesces bursts into a
// single pending reload signal.
func (c *Coordinator) notifyChange() {
	select {
	case c.reloads <- struct{}{}:
	default:
	}
}

func (c *Coordinator) loop() {
	defer close(c.done)
	defer close(c.updates)
	defer close(c.analysisOut)

	c.publish(UpdateInitial, 0)

	for {
		select {
		case <-c.ctx.Done():
			return
		case cmd := <-c.commands:
			c.handleCommand(cmd)
		case <-c.reloads:
			c.handleReload()
		case ev := <-c.runnerEvents:
			c.handleAnalysisEvent(ev)
		}
	}
}

func (c *Coordinator) handleCommand(cmd command) {
	err := cmd.fn(c.session)
	if err == nil && cmd.save {
		if err = c.save(); err == nil {
			c.publish(UpdateMutation, 0)
		}
	}
	cmd.resp <- err
}

// handleReload folds external session-file changes into memory. A corrupt
// or missing file keeps the in-memory state untouched; the union is written
// back to disk on the next save.
func (c *Coordinator) handleReload() {
	merged, err := c.store.MergeInto(c.session)
	if err != nil {
		var formatErr *sessionfile.FormatError
		if errors.As(err, &formatErr) {
			log.Warn().Err(err).Str("path", c.store.Path()).
				Msg("External session edit is unreadable, keeping in-memory state")
			return
		}
		log.Warn().Err(err).Str("path", c.store.Path()).Msg("Session reload failed")
		return
	}
	if merged == 0 {
		log.Debug().Str("path", c.store.Path()).Msg("External change carried no new activities")
		return
	}

	log.Info().Int("merged", merged).Str("path", c.store.Path()).
		Msg("Merged external session changes")
	c.publish(UpdateReload, merged)
}

func (c *Coordinator) handleAnalysisEvent(ev analysis.Event) {
	if ev.RunID != c.activeRun {
		return
	}
	select {
	case c.analysisOut <- ev:
	case <-c.ctx.Done():
	}
}

func (c *Coordinator) save() error {
	result, err := c.store.Save(c.session)
	if err != nil {
		return err
	}
	if c.watch != nil {
		c.watch.MarkOwnSave(result.ModTime)
	}
	return nil
}

func (c *Coordinator) publish(reason UpdateReason, merged int) {
	update := Update{Reason: reason, Merged: merged, Snapshot: c.snapshot()}
	select {
	case c.updates <- update:
	case <-c.ctx.Done():
	}
}

func (c *Coordinator) snapshot() Snapshot {
	views := c.session.Views()
	return Snapshot{
		Subject:       c.session.Subject(),
		Files:         c.session.Files(),
		ReviewedFiles: c.session.ReviewedFileCount(),
		TotalComments: views.TotalCommentCount(),
		Activities:    c.session.LogLen(),
		Threads:       views.CommentThreads(),
	}
}
