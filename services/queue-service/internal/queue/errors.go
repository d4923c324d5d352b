package queue

import (
	"errors"
	"fmt"
)

// All engine failures are local, recoverable conditions surfaced to the
// caller as-is. Repository failures pass through unchanged.
var (
	ErrSlotTaken = errors.New("appointment slot already taken")
	ErrNotFound  = errors.New("queue item not found")
)

// ValidationError reports a malformed join or transition request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a status change the lifecycle state machine
// forbids. The item is left unchanged.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition queue item from %s to %s", e.From, e.To)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsInvalidTransition(err error) bool {
	var te *InvalidTransitionError
	return errors.As(err, &te)
}
