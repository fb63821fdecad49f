// Package board implements the transition engine: a four-stage pipeline
// (backlog → in_progress → review → done) with admission control, dependency
// gating, retry tracking, and an append-only audit trail.
//
// The board is the only place that mutates task state. Every read-modify-write
// runs under a single mutex; assistant calls run strictly outside it, and
// hooks fire after the lock is released.
package board

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tverenko/flowboard/internal/assistant"
	"github.com/tverenko/flowboard/internal/hook"
	"github.com/tverenko/flowboard/internal/model"
	"github.com/tverenko/flowboard/internal/store"
)

// Config wires a board's collaborators.
type Config struct {
	// WIPLimit caps the number of tasks simultaneously in progress.
	WIPLimit int
	// Coder generates a snippet when a task is admitted. Defaults to the
	// mock assistant.
	Coder assistant.Coder
	// Reviewer, when set, writes review notes as a task enters review.
	Reviewer assistant.Reviewer
	// Store, when set, is flushed synchronously on every mutation.
	Store store.Store
	// Hooks receives board events. Defaults to an empty registry.
	Hooks *hook.Registry
}

// Board owns the task collection and all mutation logic.
type Board struct {
	mu       sync.Mutex
	tasks    map[string]*model.Task
	wipLimit int
	coder    assistant.Coder
	reviewer assistant.Reviewer
	store    store.Store
	hooks    *hook.Registry
}

// New creates a board, restoring any persisted collection from cfg.Store.
func New(ctx context.Context, cfg Config) (*Board, error) {
	if cfg.WIPLimit <= 0 {
		return nil, fmt.Errorf("wip limit must be > 0, got %d", cfg.WIPLimit)
	}
	if cfg.Coder == nil {
		cfg.Coder = assistant.MockCoder
	}
	if cfg.Hooks == nil {
		cfg.Hooks = hook.NewRegistry()
	}

	b := &Board{
		tasks:    make(map[string]*model.Task),
		wipLimit: cfg.WIPLimit,
		coder:    cfg.Coder,
		reviewer: cfg.Reviewer,
		store:    cfg.Store,
		hooks:    cfg.Hooks,
	}
	if cfg.Store != nil {
		tasks, err := cfg.Store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load board: %w", err)
		}
		for i := range tasks {
			t := tasks[i].Clone()
			b.tasks[t.ID] = &t
		}
		if len(tasks) > 0 {
			log.Info().Int("tasks", len(tasks)).Msg("board restored from store")
		}
	}
	return b, nil
}

// Create adds a new backlog task. Every id in dependsOn must already exist.
func (b *Board) Create(ctx context.Context, title, description string, dependsOn []string) (model.Task, error) {
	b.mu.Lock()
	for _, dep := range dependsOn {
		if _, ok := b.tasks[dep]; !ok {
			b.mu.Unlock()
			return model.Task{}, &model.NotFoundError{TaskID: dep}
		}
	}
	task := model.NewTask(title, description, dependsOn)
	record(task, nil, model.StageBacklog, "created")
	b.tasks[task.ID] = task
	persistErr := b.persist(ctx)
	snap := task.Clone()
	b.mu.Unlock()

	if persistErr != nil {
		return snap, persistErr
	}
	log.Info().Str("task", snap.ID).Str("title", title).Strs("deps", snap.DependsOn).Msg("task created")
	b.hooks.Fire(ctx, hook.EventTransition, snap)
	return snap, nil
}

// Start admits a backlog task into in_progress, then runs the coder.
//
// The stage is committed before the lock is released so that concurrently
// racing admissions observe the updated WIP count; the coder then runs
// outside the lock, and a second critical section stores the snippet. A
// coder failure leaves the task in progress without a snippet and surfaces
// as the returned error.
func (b *Board) Start(ctx context.Context, id string) (model.Task, error) {
	b.mu.Lock()
	task, err := b.get(id)
	if err == nil {
		err = assertStage(task, model.StageBacklog)
	}
	if err == nil {
		err = b.checkDependencies(task)
	}
	var wip int
	if err == nil {
		wip = b.countStage(model.StageInProgress)
		if wip >= b.wipLimit {
			err = &model.WIPLimitError{Current: wip, Limit: b.wipLimit}
		}
	}
	if err != nil {
		b.mu.Unlock()
		return model.Task{}, err
	}

	task.Stage = model.StageInProgress
	record(task, stagePtr(model.StageBacklog), model.StageInProgress, "")
	persistErr := b.persist(ctx)
	snap := task.Clone()
	b.mu.Unlock()

	if persistErr != nil {
		return snap, persistErr
	}
	log.Info().Str("task", id).Int("wip", wip+1).Int("limit", b.wipLimit).Msg("task started")

	snippet, genErr := b.coder(ctx, snap.Description)
	if genErr != nil {
		return snap, fmt.Errorf("generate snippet for task %s: %w", id, genErr)
	}

	b.mu.Lock()
	task.CodeSnippet = snippet
	persistErr = b.persist(ctx)
	snap = task.Clone()
	b.mu.Unlock()

	if persistErr != nil {
		return snap, persistErr
	}
	b.hooks.Fire(ctx, hook.EventTransition, snap)
	return snap, nil
}

// Review moves an in-progress task to review and, when a reviewer is
// configured, runs it outside the lock and stores the returned notes.
func (b *Board) Review(ctx context.Context, id string) (model.Task, error) {
	b.mu.Lock()
	task, err := b.get(id)
	if err == nil {
		err = assertStage(task, model.StageInProgress)
	}
	if err != nil {
		b.mu.Unlock()
		return model.Task{}, err
	}
	task.Stage = model.StageReview
	record(task, stagePtr(model.StageInProgress), model.StageReview, "")
	persistErr := b.persist(ctx)
	snap := task.Clone()
	b.mu.Unlock()

	if persistErr != nil {
		return snap, persistErr
	}
	b.hooks.Fire(ctx, hook.EventTransition, snap)

	if b.reviewer == nil {
		return snap, nil
	}
	notes, revErr := b.reviewer(ctx, snap.Description, snap.CodeSnippet)
	if revErr != nil {
		return snap, fmt.Errorf("review task %s: %w", id, revErr)
	}

	b.mu.Lock()
	task.ReviewNotes = notes
	persistErr = b.persist(ctx)
	snap = task.Clone()
	b.mu.Unlock()

	if persistErr != nil {
		return snap, persistErr
	}
	return snap, nil
}

// Approve moves a review task to done.
func (b *Board) Approve(ctx context.Context, id string) (model.Task, error) {
	b.mu.Lock()
	task, err := b.get(id)
	if err == nil {
		err = assertStage(task, model.StageReview)
	}
	if err != nil {
		b.mu.Unlock()
		return model.Task{}, err
	}
	task.Stage = model.StageDone
	record(task, stagePtr(model.StageReview), model.StageDone, "")
	persistErr := b.persist(ctx)
	snap := task.Clone()
	b.mu.Unlock()

	if persistErr != nil {
		return snap, persistErr
	}
	log.Info().Str("task", id).Msg("task approved")
	b.hooks.Fire(ctx, hook.EventTransition, snap)
	b.hooks.Fire(ctx, hook.EventDone, snap)
	return snap, nil
}

// Reject returns a review task to the backlog, incrementing its retry count
// and recording reason in the audit trail.
func (b *Board) Reject(ctx context.Context, id, reason string) (model.Task, error) {
	b.mu.Lock()
	task, err := b.get(id)
	if err == nil {
		err = assertStage(task, model.StageReview)
	}
	if err != nil {
		b.mu.Unlock()
		return model.Task{}, err
	}
	task.Stage = model.StageBacklog
	task.RetryCount++
	record(task, stagePtr(model.StageReview), model.StageBacklog, reason)
	persistErr := b.persist(ctx)
	snap := task.Clone()
	b.mu.Unlock()

	if persistErr != nil {
		return snap, persistErr
	}
	log.Info().Str("task", id).Str("reason", reason).Int("retry", snap.RetryCount).Msg("task rejected")
	b.hooks.Fire(ctx, hook.EventRejected, snap)
	return snap, nil
}

// Get returns a copy of a single task.
func (b *Board) Get(id string) (model.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	task, err := b.get(id)
	if err != nil {
		return model.Task{}, err
	}
	return task.Clone(), nil
}

// List returns copies of all tasks ordered by creation time.
func (b *Board) List() []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		out = append(out, t.Clone())
	}
	sortTasks(out)
	return out
}

// ByStage returns copies of all tasks currently in stage.
func (b *Board) ByStage(stage model.Stage) []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.byStageLocked(stage)
}

// Snapshot groups all tasks by stage.
type Snapshot struct {
	Backlog    []model.Task `json:"backlog"`
	InProgress []model.Task `json:"in_progress"`
	Review     []model.Task `json:"review"`
	Done       []model.Task `json:"done"`
}

// View returns the whole board grouped by stage.
func (b *Board) View() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Backlog:    b.byStageLocked(model.StageBacklog),
		InProgress: b.byStageLocked(model.StageInProgress),
		Review:     b.byStageLocked(model.StageReview),
		Done:       b.byStageLocked(model.StageDone),
	}
}

// WIPLimit returns the configured admission cap.
func (b *Board) WIPLimit() int {
	return b.wipLimit
}

// FindStale returns copies of in-progress tasks whose most recent entry into
// in_progress is older than threshold. The clock starts at the audit entry
// for the latest admission, not at task creation, so a rejected and
// re-admitted task gets a fresh staleness window.
func (b *Board) FindStale(threshold time.Duration) []model.Task {
	cutoff := time.Now().UTC().Add(-threshold)

	b.mu.Lock()
	defer b.mu.Unlock()
	var stale []model.Task
	for _, t := range b.tasks {
		if t.Stage != model.StageInProgress {
			continue
		}
		entered, ok := t.EnteredStageAt(model.StageInProgress)
		if ok && entered.Before(cutoff) {
			stale = append(stale, t.Clone())
		}
	}
	sortTasks(stale)
	return stale
}

func (b *Board) byStageLocked(stage model.Stage) []model.Task {
	var out []model.Task
	for _, t := range b.tasks {
		if t.Stage == stage {
			out = append(out, t.Clone())
		}
	}
	sortTasks(out)
	return out
}

func (b *Board) get(id string) (*model.Task, error) {
	task, ok := b.tasks[id]
	if !ok {
		return nil, &model.NotFoundError{TaskID: id}
	}
	return task, nil
}

func (b *Board) countStage(stage model.Stage) int {
	n := 0
	for _, t := range b.tasks {
		if t.Stage == stage {
			n++
		}
	}
	return n
}

// checkDependencies collects every dependency short of done, not just the
// first.
func (b *Board) checkDependencies(task *model.Task) error {
	var blocking []string
	for _, dep := range task.DependsOn {
		if t, ok := b.tasks[dep]; ok && t.Stage != model.StageDone {
			blocking = append(blocking, dep)
		}
	}
	if len(blocking) > 0 {
		return &model.DependencyError{TaskID: task.ID, Blocking: blocking}
	}
	return nil
}

// persist flushes the collection to the store. Must be called inside the
// lock so a restart never observes state ahead of or behind memory.
func (b *Board) persist(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	tasks := make([]model.Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		tasks = append(tasks, t.Clone())
	}
	if err := b.store.Save(ctx, tasks); err != nil {
		return fmt.Errorf("persist board: %w", err)
	}
	return nil
}

// record appends an audit entry. Must be called inside the lock.
func record(task *model.Task, from *model.Stage, to model.Stage, note string) {
	task.History = append(task.History, model.AuditEntry{
		From:      from,
		To:        to,
		Timestamp: time.Now().UTC(),
		Note:      note,
	})
}

func assertStage(task *model.Task, expected model.Stage) error {
	if task.Stage != expected {
		return &model.InvalidTransitionError{TaskID: task.ID, Current: task.Stage, Expected: expected}
	}
	return nil
}

func stagePtr(s model.Stage) *model.Stage {
	return &s
}

func sortTasks(tasks []model.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}
