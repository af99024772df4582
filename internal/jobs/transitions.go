package jobs

import (
	"errors"
	"fmt"

	"scribe/internal/services"
)

var (
	// ErrNotFound reports an unknown or expired job id.
	ErrNotFound = fmt.Errorf("job %w", services.ErrNotFound)
	// ErrInvalidTransition reports a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
)

var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusProcessing, StatusCompleted, StatusFailed},
}

// CanTransition reports whether a job in from may move to to. Terminal
// states have no exits; processing to processing is permitted as a no-op.
func CanTransition(from, to Status) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func transitionError(id int64, from, to Status) error {
	return fmt.Errorf("%w: job %d %s -> %s", ErrInvalidTransition, id, from, to)
}
