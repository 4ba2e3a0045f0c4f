package supervisor

import (
	"errors"
	"fmt"
)

// TaskError exposes which supervised task produced an error, so callers
// can report per-task failures without string-matching the message. It is
// discoverable with errors.As on any error returned from Run.
type TaskError interface {
	error
	Unwrap() error
	TaskName() string
}

type taskTaggedError struct {
	err  error
	name string
}

func newTaskError(name string, err error) error {
	if err == nil {
		return nil
	}
	return &taskTaggedError{err: err, name: name}
}

func (e *taskTaggedError) Error() string    { return fmt.Sprintf("task %q: %s", e.name, e.err) }
func (e *taskTaggedError) Unwrap() error    { return e.err }
func (e *taskTaggedError) TaskName() string { return e.name }

// TaskNameOf returns the name of the task that produced err, if err (or
// something it wraps) is a TaskError.
func TaskNameOf(err error) (string, bool) {
	var te TaskError
	if errors.As(err, &te) {
		return te.TaskName(), true
	}
	return "", false
}
