package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencodereview/internal/retry"
)

type scriptedBackend struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, req Request, call int) (string, error)
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Analyze(ctx context.Context, req Request) (string, error) {
	b.mu.Lock()
	b.calls++
	call := b.calls
	b.mu.Unlock()
	return b.fn(ctx, req, call)
}

func (b *scriptedBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func fastRetry() retry.Config {
	return retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for analysis event")
		return Event{}
	}
}

func TestRunnerDeliversAnswer(t *testing.T) {
	var gotPrompt string
	backend := &scriptedBackend{fn: func(_ context.Context, req Request, _ int) (string, error) {
		gotPrompt = req.Prompt
		return "all good", nil
	}}
	events := make(chan Event, 16)
	runner := NewRunner(backend, events, RunnerConfig{Retry: fastRetry()})

	id := runner.Start(context.Background(), Run{Kind: KindReview, Context: "File: a.go"})

	ev := nextEvent(t, events)
	require.Equal(t, EventDone, ev.Type)
	assert.Equal(t, id, ev.RunID)
	assert.Equal(t, KindReview, ev.Kind)
	assert.Equal(t, "all good", ev.Text)
	assert.Contains(t, gotPrompt, "Potential bugs or issues",
		"empty Run.Prompt must fall back to the canned kind prompt")
}

func TestRunnerCustomPromptWins(t *testing.T) {
	var gotPrompt string
	backend := &scriptedBackend{fn: func(_ context.Context, req Request, _ int) (string, error) {
		gotPrompt = req.Prompt
		return "ok", nil
	}}
	events := make(chan Event, 16)
	runner := NewRunner(backend, events, RunnerConfig{Retry: fastRetry()})

	runner.Start(context.Background(), Run{Kind: KindExplain, Prompt: "What changed here?"})
	nextEvent(t, events)

	assert.Equal(t, "What changed here?", gotPrompt)
}

func TestRunnerStreamsChunks(t *testing.T) {
	backend := &scriptedBackend{fn: func(_ context.Context, req Request, _ int) (string, error) {
		req.OnChunk("alpha ")
		req.OnChunk("beta")
		return "alpha beta", nil
	}}
	events := make(chan Event, 16)
	runner := NewRunner(backend, events, RunnerConfig{Retry: fastRetry()})

	id := runner.Start(context.Background(), Run{Kind: KindExplain, Stream: true})

	first := nextEvent(t, events)
	require.Equal(t, EventChunk, first.Type)
	assert.Equal(t, "alpha ", first.Text)
	assert.Equal(t, id, first.RunID)

	second := nextEvent(t, events)
	require.Equal(t, EventChunk, second.Type)
	assert.Equal(t, "beta", second.Text)

	done := nextEvent(t, events)
	require.Equal(t, EventDone, done.Type)
	assert.Equal(t, "alpha beta", done.Text)
}

func TestRunnerRetriesTransientFailures(t *testing.T) {
	backend := &scriptedBackend{fn: func(_ context.Context, _ Request, call int) (string, error) {
		if call == 1 {
			return "", errors.New("503 service unavailable")
		}
		return "recovered", nil
	}}
	events := make(chan Event, 16)
	runner := NewRunner(backend, events, RunnerConfig{Retry: fastRetry()})

	runner.Start(context.Background(), Run{Kind: KindReview})

	ev := nextEvent(t, events)
	require.Equal(t, EventDone, ev.Type)
	assert.Equal(t, "recovered", ev.Text)
	assert.Equal(t, 2, backend.callCount())
}

func TestRunnerNoRetryAfterChunkDelivered(t *testing.T) {
	backend := &scriptedBackend{fn: func(_ context.Context, req Request, _ int) (string, error) {
		req.OnChunk("partial output")
		return "", errors.New("connection reset by peer")
	}}
	events := make(chan Event, 16)
	runner := NewRunner(backend, events, RunnerConfig{Retry: fastRetry()})

	runner.Start(context.Background(), Run{Kind: KindReview, Stream: true})

	chunk := nextEvent(t, events)
	require.Equal(t, EventChunk, chunk.Type)

	errEv := nextEvent(t, events)
	require.Equal(t, EventError, errEv.Type)
	require.Error(t, errEv.Err)
	assert.True(t, strings.Contains(errEv.Err.Error(), "connection reset"))

	runner.Wait()
	assert.Equal(t, 1, backend.callCount(),
		"a failure after streamed chunks must not be retried")
}

func TestRunnerSingleFlight(t *testing.T) {
	firstEntered := make(chan struct{})
	backend := &scriptedBackend{fn: func(ctx context.Context, _ Request, call int) (string, error) {
		if call == 1 {
			close(firstEntered)
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "second answer", nil
	}}
	events := make(chan Event, 16)
	runner := NewRunner(backend, events, RunnerConfig{Retry: fastRetry()})

	first := runner.Start(context.Background(), Run{Kind: KindReview})
	<-firstEntered
	second := runner.Start(context.Background(), Run{Kind: KindReview})
	require.NotEqual(t, first, second)

	ev := nextEvent(t, events)
	require.Equal(t, EventDone, ev.Type)
	assert.Equal(t, second, ev.RunID, "cancelled run must not emit a result")
	assert.Equal(t, "second answer", ev.Text)

	runner.Wait()
	assert.Empty(t, events, "cancelled run must end silently")
}

func TestRunnerCancelEndsSilently(t *testing.T) {
	entered := make(chan struct{})
	backend := &scriptedBackend{fn: func(ctx context.Context, _ Request, _ int) (string, error) {
		close(entered)
		<-ctx.Done()
		return "", ctx.Err()
	}}
	events := make(chan Event, 16)
	runner := NewRunner(backend, events, RunnerConfig{Retry: fastRetry()})

	runner.Start(context.Background(), Run{Kind: KindSecurity})
	<-entered
	runner.Stop()

	assert.Empty(t, events)
	assert.Equal(t, 1, backend.callCount())
}

func TestRunnerPacesInvocations(t *testing.T) {
	backend := &scriptedBackend{fn: func(_ context.Context, _ Request, _ int) (string, error) {
		return "ok", nil
	}}
	events := make(chan Event, 16)
	runner := NewRunner(backend, events, RunnerConfig{
		MinInterval: 100 * time.Millisecond,
		Retry:       fastRetry(),
	})

	runner.Start(context.Background(), Run{Kind: KindReview})
	nextEvent(t, events)

	start := time.Now()
	runner.Start(context.Background(), Run{Kind: KindReview})
	nextEvent(t, events)

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond,
		"second invocation must wait out the pacing interval")
}
