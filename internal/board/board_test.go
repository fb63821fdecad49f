package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tverenko/flowboard/internal/assistant"
	"github.com/tverenko/flowboard/internal/hook"
	"github.com/tverenko/flowboard/internal/model"
)

// memStore is an in-memory durability sink that records every flush.
type memStore struct {
	mu        sync.Mutex
	saves     int
	tasks     []model.Task
	loadTasks []model.Task
	failSave  error
}

func (s *memStore) Save(_ context.Context, tasks []model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return s.failSave
	}
	s.saves++
	s.tasks = tasks
	return nil
}

func (s *memStore) Load(_ context.Context) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadTasks, nil
}

func instantCoder(_ context.Context, description string) (string, error) {
	return "// snippet for: " + description, nil
}

func newTestBoard(t *testing.T, wip int) *Board {
	t.Helper()
	b, err := New(context.Background(), Config{WIPLimit: wip, Coder: instantCoder})
	require.NoError(t, err)
	return b
}

func TestNew_RejectsNonPositiveWIPLimit(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{WIPLimit: 0})
	require.Error(t, err)
}

func TestCreate(t *testing.T) {
	t.Parallel()

	b := newTestBoard(t, 3)
	task, err := b.Create(context.Background(), "Build parser", "Write the parser", nil)
	require.NoError(t, err)

	assert.Equal(t, model.StageBacklog, task.Stage)
	require.Len(t, task.History, 1)
	assert.Nil(t, task.History[0].From)
	assert.Equal(t, model.StageBacklog, task.History[0].To)
	assert.Equal(t, "created", task.History[0].Note)

	got, err := b.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
}

func TestCreate_UnknownDependencyFails(t *testing.T) {
	t.Parallel()

	b := newTestBoard(t, 3)
	_, err := b.Create(context.Background(), "t", "d", []string{"nope1234"})
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
	assert.Contains(t, err.Error(), "nope1234")
	assert.Empty(t, b.List())
}

func TestStart_GeneratesSnippetOutsideLock(t *testing.T) {
	t.Parallel()

	b := newTestBoard(t, 3)
	task, err := b.Create(context.Background(), "t", "write a fizzbuzz", nil)
	require.NoError(t, err)

	started, err := b.Start(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageInProgress, started.Stage)
	assert.Equal(t, "// snippet for: write a fizzbuzz", started.CodeSnippet)
	require.Len(t, started.History, 2)
	require.NotNil(t, started.History[1].From)
	assert.Equal(t, model.StageBacklog, *started.History[1].From)
	assert.Equal(t, model.StageInProgress, started.History[1].To)
}

func TestStart_TwiceFailsWithoutAuditEntry(t *testing.T) {
	t.Parallel()

	b := newTestBoard(t, 3)
	task, err := b.Create(context.Background(), "t", "d", nil)
	require.NoError(t, err)
	_, err = b.Start(context.Background(), task.ID)
	require.NoError(t, err)

	_, err = b.Start(context.Background(), task.ID)
	require.Error(t, err)
	assert.True(t, model.IsInvalidTransition(err))

	var itErr *model.InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, model.StageInProgress, itErr.Current)
	assert.Equal(t, model.StageBacklog, itErr.Expected)

	got, err := b.Get(task.ID)
	require.NoError(t, err)
	assert.Len(t, got.History, 2, "failed call must not append history")
}

func TestStart_WIPLimit(t *testing.T) {
	t.Parallel()

	b := newTestBoard(t, 1)
	first, err := b.Create(context.Background(), "a", "d", nil)
	require.NoError(t, err)
	second, err := b.Create(context.Background(), "b", "d", nil)
	require.NoError(t, err)

	_, err = b.Start(context.Background(), first.ID)
	require.NoError(t, err)

	_, err = b.Start(context.Background(), second.ID)
	require.Error(t, err)
	assert.True(t, model.IsWIPLimit(err))

	var wipErr *model.WIPLimitError
	require.ErrorAs(t, err, &wipErr)
	assert.Equal(t, 1, wipErr.Current)
	assert.Equal(t, 1, wipErr.Limit)
}

func TestStart_DependencyGate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := newTestBoard(t, 3)

	a, err := b.Create(ctx, "a", "d", nil)
	require.NoError(t, err)
	bTask, err := b.Create(ctx, "b", "d", []string{a.ID})
	require.NoError(t, err)

	_, err = b.Start(ctx, bTask.ID)
	require.Error(t, err)
	assert.True(t, model.IsDependencyBlocked(err))
	var depErr *model.DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, []string{a.ID}, depErr.Blocking)

	// Walk the dependency to done, then admission succeeds.
	_, err = b.Start(ctx, a.ID)
	require.NoError(t, err)
	_, err = b.Review(ctx, a.ID)
	require.NoError(t, err)
	_, err = b.Approve(ctx, a.ID)
	require.NoError(t, err)

	started, err := b.Start(ctx, bTask.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageInProgress, started.Stage)
}

func TestStart_ReportsEveryBlockingDependency(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := newTestBoard(t, 3)

	a, err := b.Create(ctx, "a", "d", nil)
	require.NoError(t, err)
	c, err := b.Create(ctx, "c", "d", nil)
	require.NoError(t, err)
	blocked, err := b.Create(ctx, "blocked", "d", []string{a.ID, c.ID})
	require.NoError(t, err)

	_, err = b.Start(ctx, blocked.ID)
	var depErr *model.DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.ElementsMatch(t, []string{a.ID, c.ID}, depErr.Blocking)
}

func TestStart_CoderFailureLeavesTaskInProgress(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	failing := func(context.Context, string) (string, error) {
		return "", errors.New("model unavailable")
	}
	b, err := New(ctx, Config{WIPLimit: 3, Coder: assistant.Coder(failing)})
	require.NoError(t, err)

	task, err := b.Create(ctx, "t", "d", nil)
	require.NoError(t, err)

	_, err = b.Start(ctx, task.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")

	got, err := b.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageInProgress, got.Stage, "stage commit survives coder failure")
	assert.Empty(t, got.CodeSnippet)
}

func TestReject_RetryCycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := newTestBoard(t, 3)
	task, err := b.Create(ctx, "t", "d", nil)
	require.NoError(t, err)

	for round := 1; round <= 2; round++ {
		_, err = b.Start(ctx, task.ID)
		require.NoError(t, err)
		_, err = b.Review(ctx, task.ID)
		require.NoError(t, err)

		reason := fmt.Sprintf("missing tests round %d", round)
		rejected, err := b.Reject(ctx, task.ID, reason)
		require.NoError(t, err)
		assert.Equal(t, model.StageBacklog, rejected.Stage)
		assert.Equal(t, round, rejected.RetryCount)
		last := rejected.History[len(rejected.History)-1]
		assert.Equal(t, reason, last.Note)
		assert.Equal(t, model.StageBacklog, last.To)
	}
}

func TestReject_RequiresReviewStage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := newTestBoard(t, 3)
	task, err := b.Create(ctx, "t", "d", nil)
	require.NoError(t, err)

	_, err = b.Reject(ctx, task.ID, "too early")
	require.Error(t, err)
	assert.True(t, model.IsInvalidTransition(err))

	got, err := b.Get(task.ID)
	require.NoError(t, err)
	assert.Zero(t, got.RetryCount)
}

func TestReviewer_StoresNotes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reviewer := func(_ context.Context, _, snippet string) (string, error) {
		return "looked at: " + snippet, nil
	}
	b, err := New(ctx, Config{WIPLimit: 3, Coder: instantCoder, Reviewer: reviewer})
	require.NoError(t, err)

	task, err := b.Create(ctx, "t", "d", nil)
	require.NoError(t, err)
	_, err = b.Start(ctx, task.ID)
	require.NoError(t, err)

	reviewed, err := b.Review(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageReview, reviewed.Stage)
	assert.Equal(t, "looked at: // snippet for: d", reviewed.ReviewNotes)
}

func TestHooks_FiredPerOperation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hooks := hook.NewRegistry()
	counts := make(map[hook.Event]int)
	var mu sync.Mutex
	for _, ev := range []hook.Event{hook.EventTransition, hook.EventDone, hook.EventRejected} {
		ev := ev
		require.NoError(t, hooks.Register(ev, func(context.Context, model.Task) error {
			mu.Lock()
			counts[ev]++
			mu.Unlock()
			return nil
		}))
	}

	b, err := New(ctx, Config{WIPLimit: 3, Coder: instantCoder, Hooks: hooks})
	require.NoError(t, err)

	task, err := b.Create(ctx, "t", "d", nil)
	require.NoError(t, err)
	_, err = b.Start(ctx, task.ID)
	require.NoError(t, err)
	_, err = b.Review(ctx, task.ID)
	require.NoError(t, err)
	_, err = b.Reject(ctx, task.ID, "redo")
	require.NoError(t, err)
	_, err = b.Start(ctx, task.ID)
	require.NoError(t, err)
	_, err = b.Review(ctx, task.ID)
	require.NoError(t, err)
	_, err = b.Approve(ctx, task.ID)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	// create + 2 starts + 2 reviews + approve
	assert.Equal(t, 6, counts[hook.EventTransition])
	assert.Equal(t, 1, counts[hook.EventDone])
	assert.Equal(t, 1, counts[hook.EventRejected])
}

func TestConcurrentAdmissions_RespectWIPLimit(t *testing.T) {
	t.Parallel()

	const wip = 2
	const attempts = 6

	ctx := context.Background()
	b := newTestBoard(t, wip)

	ids := make([]string, attempts)
	for i := range ids {
		task, err := b.Create(ctx, fmt.Sprintf("t%d", i), "d", nil)
		require.NoError(t, err)
		ids[i] = task.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = b.Start(ctx, ids[i])
		}(i)
	}
	wg.Wait()

	var ok, limited int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case model.IsWIPLimit(err):
			limited++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, wip, ok)
	assert.Equal(t, attempts-wip, limited)
	assert.Len(t, b.ByStage(model.StageInProgress), wip)
}

func TestFindStale(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	from := model.StageBacklog
	old := model.Task{
		ID: "old12345", Title: "old", Description: "d",
		Stage:     model.StageInProgress,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
		History: []model.AuditEntry{
			{To: model.StageBacklog, Timestamp: time.Now().UTC().Add(-time.Hour), Note: "created"},
			{From: &from, To: model.StageInProgress, Timestamp: time.Now().UTC().Add(-10 * time.Minute)},
		},
	}
	fresh := model.Task{
		ID: "fresh123", Title: "fresh", Description: "d",
		Stage:     model.StageInProgress,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
		History: []model.AuditEntry{
			{To: model.StageBacklog, Timestamp: time.Now().UTC().Add(-time.Hour), Note: "created"},
			{From: &from, To: model.StageInProgress, Timestamp: time.Now().UTC().Add(-time.Minute)},
		},
	}
	idle := model.Task{
		ID: "idle1234", Title: "idle", Description: "d",
		Stage:     model.StageBacklog,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
		History: []model.AuditEntry{
			{To: model.StageBacklog, Timestamp: time.Now().UTC().Add(-time.Hour), Note: "created"},
		},
	}

	sink := &memStore{loadTasks: []model.Task{old, fresh, idle}}
	b, err := New(ctx, Config{WIPLimit: 3, Coder: instantCoder, Store: sink})
	require.NoError(t, err)

	stale := b.FindStale(5 * time.Minute)
	require.Len(t, stale, 1)
	assert.Equal(t, "old12345", stale[0].ID)

	// Moving the task out of in_progress removes it from later scans even
	// though the old audit entry stays in history.
	_, err = b.Review(ctx, "old12345")
	require.NoError(t, err)
	assert.Empty(t, b.FindStale(5*time.Minute))
}

func TestPersist_FlushedPerMutation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := &memStore{}
	reviewer := func(context.Context, string, string) (string, error) { return "ok", nil }
	b, err := New(ctx, Config{WIPLimit: 3, Coder: instantCoder, Reviewer: reviewer, Store: sink})
	require.NoError(t, err)

	task, err := b.Create(ctx, "t", "d", nil)
	require.NoError(t, err)
	_, err = b.Start(ctx, task.ID) // stage commit + snippet commit
	require.NoError(t, err)
	_, err = b.Review(ctx, task.ID) // stage commit + notes commit
	require.NoError(t, err)
	_, err = b.Approve(ctx, task.ID)
	require.NoError(t, err)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 6, sink.saves)
	require.Len(t, sink.tasks, 1)
	assert.Equal(t, model.StageDone, sink.tasks[0].Stage)
}

func TestPersist_FailurePropagates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := &memStore{failSave: errors.New("disk full")}
	b, err := New(ctx, Config{WIPLimit: 3, Coder: instantCoder, Store: sink})
	require.NoError(t, err)

	_, err = b.Create(ctx, "t", "d", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestView_GroupsByStage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := newTestBoard(t, 3)
	a, err := b.Create(ctx, "a", "d", nil)
	require.NoError(t, err)
	_, err = b.Create(ctx, "b", "d", nil)
	require.NoError(t, err)
	_, err = b.Start(ctx, a.ID)
	require.NoError(t, err)

	snap := b.View()
	assert.Len(t, snap.Backlog, 1)
	assert.Len(t, snap.InProgress, 1)
	assert.Empty(t, snap.Review)
	assert.Empty(t, snap.Done)
	assert.Equal(t, a.ID, snap.InProgress[0].ID)
}

func TestGet_ReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := newTestBoard(t, 3)
	task, err := b.Create(ctx, "t", "d", nil)
	require.NoError(t, err)

	got, err := b.Get(task.ID)
	require.NoError(t, err)
	got.Title = "mutated"
	got.History[0].Note = "mutated"

	again, err := b.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "t", again.Title)
	assert.Equal(t, "created", again.History[0].Note)
}
