package pipeline

import (
	"errors"
	"fmt"
)

// ErrSkip signals that a stage has nothing to do. It short-circuits the
// run without being a failure.
var ErrSkip = errors.New("nothing to process")

// StageFailedError is returned when a stage fails and stop_on_failure is
// set.
type StageFailedError struct {
	Stage string
	Err   error
}

func (e *StageFailedError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageFailedError) Unwrap() error { return e.Err }

// InvalidStateError reports a broken invariant in one unit of work, a loop
// or a group. The unit is dropped and its siblings carry on.
type InvalidStateError struct {
	Unit string
	Err  error
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state in %s: %v", e.Unit, e.Err)
}

func (e *InvalidStateError) Unwrap() error { return e.Err }
