package queue

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/waitlinehq/waitline/services/queue-service/internal/model"
)

// MemoryRepository is the in-process Repository used by tests and
// single-node deployments. Items live once in a flat table; each partition is
// an index list of item ids, so overlapping views never duplicate storage.
type MemoryRepository struct {
	mu         sync.RWMutex
	seq        int64
	items      map[string]model.QueueItem
	partitions map[model.PartitionKey][]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items:      map[string]model.QueueItem{},
		partitions: map[model.PartitionKey][]string{},
	}
}

func (r *MemoryRepository) Insert(_ context.Context, item model.QueueItem) (model.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	r.seq++
	item.Seq = r.seq

	key := item.Partition()
	r.items[item.ID] = item
	r.partitions[key] = append(r.partitions[key], item.ID)
	return item, nil
}

func (r *MemoryRepository) Update(_ context.Context, item model.QueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[item.ID]; !ok {
		return ErrNotFound
	}
	r.items[item.ID] = item
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return nil
	}
	delete(r.items, id)

	key := item.Partition()
	ids := r.partitions[key]
	for i, candidate := range ids {
		if candidate == id {
			r.partitions[key] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(r.partitions[key]) == 0 {
		delete(r.partitions, key)
	}
	return nil
}

func (r *MemoryRepository) Item(_ context.Context, id string) (model.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return model.QueueItem{}, ErrNotFound
	}
	return item, nil
}

func (r *MemoryRepository) Partition(_ context.Context, key model.PartitionKey) ([]model.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.partitions[key]
	out := make([]model.QueueItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := r.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *MemoryRepository) TakenSlots(_ context.Context, serviceID, providerID, date string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := model.PartitionKey{ServiceID: serviceID, ProviderID: providerID, QueueType: model.QueueTypeAppointment}
	var slots []string
	for _, id := range r.partitions[key] {
		item, ok := r.items[id]
		if !ok || item.Status == model.StatusCancelled {
			continue
		}
		if item.AppointmentDate == date {
			slots = append(slots, item.AppointmentTime)
		}
	}
	sort.Strings(slots)
	return slots, nil
}
