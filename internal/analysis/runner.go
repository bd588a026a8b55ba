package analysis

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/opencodereview/internal/retry"
)

// EventType tags a runner event.
type EventType string

const (
	EventChunk EventType = "chunk"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event is one message from a background analysis run. Chunk events carry
// incremental text; the done event carries the complete answer.
type Event struct {
	RunID int
	Kind  Kind
	Type  EventType
	Text  string
	Err   error
}

// Run describes one background analysis invocation. An empty Prompt means
// the canned prompt for Kind.
type Run struct {
	Kind    Kind
	Prompt  string
	Context string
	Stream  bool
}

// RunnerConfig configures pacing and retry for background runs.
type RunnerConfig struct {
	// MinInterval spaces out successive backend invocations. Zero
	// disables pacing.
	MinInterval time.Duration
	Retry       retry.Config
}

// Runner executes analysis requests one at a time on a background
// goroutine. Starting a new run cancels the one in flight. Events are
// delivered to the channel given at construction; the owner drains it from
// its event loop and drops events whose RunID is stale.
type Runner struct {
	backend Backend
	events  chan<- Event
	limiter *rate.Limiter
	retry   retry.Config

	mu     sync.Mutex
	nextID int
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner wires a backend to the owner's event channel. A zero-value
// RunnerConfig.Retry falls back to AnalysisConfig.
func NewRunner(backend Backend, events chan<- Event, cfg RunnerConfig) *Runner {
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	if cfg.Retry == (retry.Config{}) {
		cfg.Retry = retry.AnalysisConfig()
	}
	return &Runner{
		backend: backend,
		events:  events,
		limiter: rate.NewLimiter(limit, 1),
		retry:   cfg.Retry,
	}
}

// Start launches the run in the background, cancelling any run already in
// flight, and returns the id its events will carry. The backend is invoked
// strictly one call at a time.
func (r *Runner) Start(ctx context.Context, run Run) int {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	prev := r.done
	done := make(chan struct{})
	r.done = done
	r.nextID++
	id := r.nextID
	r.mu.Unlock()

	log.Debug().
		Int("run_id", id).
		Str("kind", string(run.Kind)).
		Bool("stream", run.Stream).
		Msg("Starting analysis run")

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		r.execute(runCtx, id, run)
	}()
	return id
}

// Cancel stops the in-flight run, if any. The cancelled run ends silently.
func (r *Runner) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the most recently started run has finished.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Stop cancels any in-flight run and waits for its goroutine to exit.
func (r *Runner) Stop() {
	r.Cancel()
	r.Wait()
}

func (r *Runner) execute(ctx context.Context, id int, run Run) {
	if err := r.limiter.Wait(ctx); err != nil {
		return
	}

	prompt := run.Prompt
	if prompt == "" {
		prompt = run.Kind.Prompt()
	}

	// Once a chunk has reached the owner, a retry would replay the
	// stream and duplicate output, so failures after that are final.
	var chunked atomic.Bool
	req := Request{Prompt: prompt, Context: run.Context}
	if run.Stream {
		req.OnChunk = func(text string) {
			chunked.Store(true)
			r.emit(ctx, Event{RunID: id, Kind: run.Kind, Type: EventChunk, Text: text})
		}
	}

	var answer string
	err := retry.Do(ctx, r.retry, "analysis."+r.backend.Name(), func() error {
		out, err := r.backend.Analyze(ctx, req)
		if err != nil {
			if chunked.Load() {
				return retry.Permanent(err)
			}
			return err
		}
		answer = out
		return nil
	})

	if ctx.Err() != nil {
		log.Debug().Int("run_id", id).Msg("Analysis run cancelled")
		return
	}
	if err != nil {
		r.emit(ctx, Event{RunID: id, Kind: run.Kind, Type: EventError, Err: err})
		return
	}
	r.emit(ctx, Event{RunID: id, Kind: run.Kind, Type: EventDone, Text: answer})
}

func (r *Runner) emit(ctx context.Context, ev Event) {
	select {
	case r.events <- ev:
	case <-ctx.Done():
	}
}
