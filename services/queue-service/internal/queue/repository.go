package queue

import (
	"context"

	"github.com/waitlinehq/waitline/services/queue-service/internal/model"
)

// Repository is the engine's view of durable queue storage. The engine never
// assumes a storage technology and never trusts a cached rank: positions are
// re-derived from whatever snapshot the repository returns.
type Repository interface {
	// Insert stores a new item and returns it with its storage-assigned Seq.
	Insert(ctx context.Context, item model.QueueItem) (model.QueueItem, error)
	Update(ctx context.Context, item model.QueueItem) error
	// Delete is a no-op for an unknown id.
	Delete(ctx context.Context, id string) error
	// Item returns ErrNotFound for an unknown id.
	Item(ctx context.Context, id string) (model.QueueItem, error)
	// Partition returns every item of one line, regardless of status.
	Partition(ctx context.Context, key model.PartitionKey) ([]model.QueueItem, error)
	// TakenSlots returns the "HH:MM" appointment starts already claimed for
	// a (service, provider, date) tuple. Cancelled appointments do not block.
	TakenSlots(ctx context.Context, serviceID, providerID, date string) ([]string, error)
}
