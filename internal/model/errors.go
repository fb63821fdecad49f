package model

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError reports a missing task or dependency id.
type NotFoundError struct {
	TaskID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %q not found", e.TaskID)
}

// InvalidTransitionError reports an operation attempted from the wrong
// source stage.
type InvalidTransitionError struct {
	TaskID   string
	Current  Stage
	Expected Stage
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %q is in %q, expected %q", e.TaskID, e.Current, e.Expected)
}

// WIPLimitError reports an admission rejected by the in-progress limit.
type WIPLimitError struct {
	Current int
	Limit   int
}

func (e *WIPLimitError) Error() string {
	return fmt.Sprintf("wip limit reached (%d/%d): finish or review a task before starting a new one", e.Current, e.Limit)
}

// DependencyError reports every dependency blocking an admission.
type DependencyError struct {
	TaskID   string
	Blocking []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("task %q is blocked by unfinished dependencies: %s", e.TaskID, strings.Join(e.Blocking, ", "))
}

// IsNotFound reports whether err is a missing-task error.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsInvalidTransition reports whether err is a wrong-source-stage error.
func IsInvalidTransition(err error) bool {
	var e *InvalidTransitionError
	return errors.As(err, &e)
}

// IsWIPLimit reports whether err is a WIP-limit admission rejection.
func IsWIPLimit(err error) bool {
	var e *WIPLimitError
	return errors.As(err, &e)
}

// IsDependencyBlocked reports whether err is an unresolved-dependency error.
func IsDependencyBlocked(err error) bool {
	var e *DependencyError
	return errors.As(err, &e)
}
