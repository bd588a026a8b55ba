package reload

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencodereview/internal/analysis"
	"github.com/opencodereview/internal/review"
	"github.com/opencodereview/internal/sessionfile"
)

var (
	alice = review.HumanAuthor("Alice", "alice@example.com")
	bob   = review.HumanAuthor("Bob", "bob@example.com")
)

func patchSubject(repo string) review.Subject {
	return review.Subject{
		Kind:     review.KindPatch,
		Provider: review.ProviderGitUncommitted,
		Repo:     repo,
	}
}

// startCoordinator spins up a coordinator over a temp-dir store with a short
// debounce so file-change tests settle quickly.
func startCoordinator(t *testing.T, cfg Config) (*Coordinator, *sessionfile.Store) {
	t.Helper()

	dir := t.TempDir()
	subject := patchSubject(dir)
	store := sessionfile.NewStore(dir, subject, sessionfile.FormatYAML, alice)
	session := review.NewSession(subject, alice)

	cfg.Store = store
	if cfg.Debounce == 0 {
		cfg.Debounce = 50 * time.Millisecond
	}

	c := New(session, cfg)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Stop)

	initial := waitForUpdate(t, c.Updates(), UpdateInitial)
	require.Equal(t, 0, initial.Snapshot.Activities)

	return c, store
}

func waitForUpdate(t *testing.T, updates <-chan Update, reason UpdateReason) Update {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				t.Fatalf("updates channel closed before %q update", reason)
			}
			if u.Reason == reason {
				return u
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q update", reason)
		}
	}
}

// drainQuiet asserts no update with the given reason arrives within the
// window; other updates are ignored.
func drainQuiet(t *testing.T, updates <-chan Update, reason UpdateReason, window time.Duration) {
	t.Helper()
	timer := time.After(window)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Reason == reason {
				t.Fatalf("unexpected %q update: %+v", reason, u)
			}
		case <-timer:
			return
		}
	}
}

func addComment(content, file string) func(*review.Session) error {
	return func(s *review.Session) error {
		loc := review.LineLocation(file, 3, 3)
		_, err := s.AddComment(content, &loc, review.CategoryNote, alice)
		return err
	}
}

func TestMutationSavesAndPublishes(t *testing.T) {
	c, store := startCoordinator(t, Config{})

	require.NoError(t, c.Do(context.Background(), addComment("looks off", "main.go")))

	update := waitForUpdate(t, c.Updates(), UpdateMutation)
	assert.Equal(t, 1, update.Snapshot.TotalComments)
	assert.Equal(t, 1, update.Snapshot.Activities)
	assert.Contains(t, update.Snapshot.Files, "main.go")

	require.True(t, store.Exists(), "mutation must persist the session")
	onDisk, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, onDisk.Views().TotalCommentCount())
}

func TestFailedMutationLeavesNoFile(t *testing.T) {
	c, store := startCoordinator(t, Config{})

	err := c.Do(context.Background(), addComment("", "main.go"))
	var validation *review.ValidationError
	require.ErrorAs(t, err, &validation)

	assert.False(t, store.Exists(), "failed mutation must not save")
}

func TestExternalEditMergesAndRepublishes(t *testing.T) {
	c, store := startCoordinator(t, Config{})

	require.NoError(t, c.Do(context.Background(), addComment("ours", "main.go")))
	waitForUpdate(t, c.Updates(), UpdateMutation)

	// Another process appends to the same file.
	theirStore := sessionfile.OpenStore(store.Path(), bob)
	theirs, err := theirStore.Load()
	require.NoError(t, err)
	loc := review.LineLocation("other.go", 9, 9)
	_, err = theirs.AddComment("theirs", &loc, review.CategoryIssue, bob)
	require.NoError(t, err)
	_, err = theirStore.Save(theirs)
	require.NoError(t, err)

	update := waitForUpdate(t, c.Updates(), UpdateReload)
	assert.Equal(t, 1, update.Merged)
	assert.Equal(t, 2, update.Snapshot.TotalComments)
	assert.Contains(t, update.Snapshot.Files, "other.go")

	var total int
	require.NoError(t, c.Inspect(context.Background(), func(s *review.Session) {
		total = s.Views().TotalCommentCount()
	}))
	assert.Equal(t, 2, total)
}

func TestOwnSaveDoesNotTriggerReload(t *testing.T) {
	c, _ := startCoordinator(t, Config{})

	require.NoError(t, c.Do(context.Background(), addComment("ours", "main.go")))
	waitForUpdate(t, c.Updates(), UpdateMutation)

	drainQuiet(t, c.Updates(), UpdateReload, 300*time.Millisecond)
}

func TestCorruptExternalEditKeepsMemory(t *testing.T) {
	c, store := startCoordinator(t, Config{})

	require.NoError(t, c.Do(context.Background(), addComment("ours", "main.go")))
	waitForUpdate(t, c.Updates(), UpdateMutation)

	require.NoError(t, os.WriteFile(store.Path(), []byte("::: not a session :::"), 0o644))

	drainQuiet(t, c.Updates(), UpdateReload, 300*time.Millisecond)

	var activities int
	require.NoError(t, c.Inspect(context.Background(), func(s *review.Session) {
		activities = s.LogLen()
	}))
	assert.Equal(t, 1, activities, "corrupt external edit must leave memory untouched")

	// The next save overwrites the corrupt file with the good state.
	require.NoError(t, c.Do(context.Background(), func(*review.Session) error { return nil }))
	onDisk, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, onDisk.LogLen())
}

type stubBackend struct {
	answer string
}

func (b stubBackend) Name() string { return "stub" }

func (b stubBackend) Analyze(_ context.Context, req analysis.Request) (string, error) {
	if req.OnChunk != nil {
		req.OnChunk("part one ")
		req.OnChunk("part two")
	}
	return b.answer, nil
}

func TestAnalysisEventsReachConsumer(t *testing.T) {
	c, _ := startCoordinator(t, Config{
		Backend: stubBackend{answer: "part one part two"},
		NoWatch: true,
	})

	require.NoError(t, c.StartAnalysis(context.Background(), analysis.Run{
		Kind:   analysis.KindExplain,
		Stream: true,
	}))

	var texts []string
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-c.AnalysisEvents():
			switch ev.Type {
			case analysis.EventChunk:
				texts = append(texts, ev.Text)
			case analysis.EventDone:
				assert.Equal(t, "part one part two", ev.Text)
				assert.Equal(t, []string{"part one ", "part two"}, texts)
				return
			case analysis.EventError:
				t.Fatalf("unexpected analysis error: %v", ev.Err)
			}
		case <-deadline:
			t.Fatal("timed out waiting for analysis events")
		}
	}
}

func TestStartAnalysisWithoutBackend(t *testing.T) {
	c, _ := startCoordinator(t, Config{NoWatch: true})

	err := c.StartAnalysis(context.Background(), analysis.Run{Kind: analysis.KindReview})
	require.Error(t, err)
}

func TestStopClosesChannelsAndRejectsWork(t *testing.T) {
	c, _ := startCoordinator(t, Config{NoWatch: true})
	c.Stop()

	for range c.Updates() {
		// drain until closed
	}

	err := c.Do(context.Background(), addComment("late", "main.go"))
	assert.True(t, errors.Is(err, ErrStopped))
}
