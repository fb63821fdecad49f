// Package model defines the core domain types for flowboard: tasks, pipeline
// stages, audit entries, and the board error taxonomy.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage is one of the four fixed pipeline positions a task occupies.
type Stage string

const (
	StageBacklog    Stage = "backlog"
	StageInProgress Stage = "in_progress"
	StageReview     Stage = "review"
	StageDone       Stage = "done"
)

// Stages returns every stage in pipeline order.
func Stages() []Stage {
	return []Stage{StageBacklog, StageInProgress, StageReview, StageDone}
}

// ParseStage converts a string into a Stage.
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageBacklog, StageInProgress, StageReview, StageDone:
		return Stage(s), nil
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// AuditEntry is a single immutable record of a stage transition.
// From is nil only for the creation entry.
type AuditEntry struct {
	From      *Stage    `json:"from_stage"`
	To        Stage     `json:"to_stage"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// Task is a unit of work moving through the pipeline. Task values are owned
// by the board; callers only ever see copies.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Stage       Stage        `json:"stage"`
	CreatedAt   time.Time    `json:"created_at"`
	CodeSnippet string       `json:"code_snippet,omitempty"`
	DependsOn   []string     `json:"depends_on"`
	History     []AuditEntry `json:"history"`
	ReviewNotes string       `json:"review_notes,omitempty"`
	RetryCount  int          `json:"retry_count"`
}

// NewTask creates a Backlog task with a fresh short id and creation time.
// The creation audit entry is appended by the board, not here.
func NewTask(title, description string, dependsOn []string) *Task {
	deps := make([]string, len(dependsOn))
	copy(deps, dependsOn)
	return &Task{
		ID:          uuid.NewString()[:8],
		Title:       title,
		Description: description,
		Stage:       StageBacklog,
		CreatedAt:   time.Now().UTC(),
		DependsOn:   deps,
		History:     []AuditEntry{},
	}
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() Task {
	out := *t
	out.DependsOn = make([]string, len(t.DependsOn))
	copy(out.DependsOn, t.DependsOn)
	out.History = make([]AuditEntry, len(t.History))
	copy(out.History, t.History)
	return out
}

// EnteredStageAt returns the timestamp of the most recent audit entry whose
// destination equals stage, scanning history backward. The second return is
// false when the task has never entered that stage.
func (t *Task) EnteredStageAt(stage Stage) (time.Time, bool) {
	for i := len(t.History) - 1; i >= 0; i-- {
		if t.History[i].To == stage {
			return t.History[i].Timestamp, true
		}
	}
	return time.Time{}, false
}

func (t *Task) String() string {
	s := fmt.Sprintf("[%s] %q %s", t.ID, t.Title, t.Stage)
	if len(t.DependsOn) > 0 {
		s += fmt.Sprintf(" deps=%v", t.DependsOn)
	}
	if t.RetryCount > 0 {
		s += fmt.Sprintf(" retry=%d", t.RetryCount)
	}
	return s
}
