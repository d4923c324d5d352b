package queue

import "github.com/waitlinehq/waitline/services/queue-service/internal/model"

// transitionMap lists, per target status, the statuses it may be reached
// from. Waiting is the initial status and can never be re-entered; completed
// and cancelled are terminal.
var transitionMap = map[string][]string{
	model.StatusWaiting:   {},
	model.StatusServing:   {model.StatusWaiting},
	model.StatusCompleted: {model.StatusServing},
	model.StatusCancelled: {model.StatusWaiting, model.StatusServing},
}

// KnownStatus reports whether s is part of the status vocabulary. Statuses
// outside it are validation failures, not transition failures.
func KnownStatus(s string) bool {
	_, ok := transitionMap[s]
	return ok
}

func ValidTransition(from, to string) bool {
	for _, status := range transitionMap[to] {
		if status == from {
			return true
		}
	}
	return false
}
