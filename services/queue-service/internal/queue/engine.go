package queue

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/waitlinehq/waitline/services/queue-service/internal/directory"
	"github.com/waitlinehq/waitline/services/queue-service/internal/model"
	"github.com/waitlinehq/waitline/services/queue-service/internal/timeslot"
)

const dateLayout = "2006-01-02"

// Engine orchestrates queue mutations: admission, cancellation, and status
// transitions. Mutations to one partition are serialized behind a
// per-partition mutex; different services, providers, and queue types never
// contend. Reads recompute positions from a single repository snapshot, so a
// racing read observes either the pre- or post-mutation line, never a torn
// one.
type Engine struct {
	repo            Repository
	dir             directory.Directory
	intervalMinutes int
	now             func() time.Time

	mu    sync.Mutex
	locks map[model.PartitionKey]*sync.Mutex
}

func NewEngine(repo Repository, dir directory.Directory) *Engine {
	return &Engine{
		repo:            repo,
		dir:             dir,
		intervalMinutes: timeslot.DefaultIntervalMinutes,
		now:             time.Now,
		locks:           map[model.PartitionKey]*sync.Mutex{},
	}
}

type JoinRequest struct {
	ServiceID     string
	ProviderID    string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	QueueType     string
	// AppointmentDate ("YYYY-MM-DD", defaults to today) and AppointmentTime
	// ("HH:MM") apply to appointment joins only.
	AppointmentDate string
	AppointmentTime string
}

type JoinResult struct {
	Item                 model.QueueItem
	Position             int
	EstimatedWaitMinutes int
}

// Join validates the request and admits a queue item in waiting status.
// Appointment joins must name a slot the generator currently produces for the
// service, and the (service, provider, date, slot) tuple must be free. A
// rejected join leaves the store untouched.
func (e *Engine) Join(ctx context.Context, req JoinRequest) (JoinResult, error) {
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	req.AppointmentDate = strings.TrimSpace(req.AppointmentDate)
	req.AppointmentTime = strings.TrimSpace(req.AppointmentTime)

	if req.ServiceID == "" {
		return JoinResult{}, &ValidationError{Field: "service_id", Reason: "required"}
	}
	if req.CustomerName == "" {
		return JoinResult{}, &ValidationError{Field: "customer_name", Reason: "required"}
	}
	if req.CustomerPhone == "" {
		return JoinResult{}, &ValidationError{Field: "customer_phone", Reason: "required"}
	}
	if !model.ValidQueueType(req.QueueType) {
		return JoinResult{}, &ValidationError{Field: "queue_type", Reason: "must be walk_in, provider, or appointment"}
	}
	if req.QueueType == model.QueueTypeProvider && req.ProviderID == "" {
		return JoinResult{}, &ValidationError{Field: "provider_id", Reason: "required for a provider-specific queue"}
	}

	switch req.QueueType {
	case model.QueueTypeAppointment:
		if req.AppointmentTime == "" {
			return JoinResult{}, &ValidationError{Field: "appointment_time", Reason: "required for an appointment"}
		}
		if req.AppointmentDate == "" {
			req.AppointmentDate = e.now().UTC().Format(dateLayout)
		} else if _, err := time.Parse(dateLayout, req.AppointmentDate); err != nil {
			return JoinResult{}, &ValidationError{Field: "appointment_date", Reason: "must be YYYY-MM-DD"}
		}
	default:
		if req.AppointmentTime != "" || req.AppointmentDate != "" {
			return JoinResult{}, &ValidationError{Field: "appointment_time", Reason: "only appointment joins carry a time slot"}
		}
	}

	svc, ok, err := e.dir.Service(ctx, req.ServiceID)
	if err != nil {
		return JoinResult{}, err
	}
	if !ok {
		return JoinResult{}, &ValidationError{Field: "service_id", Reason: "unknown service"}
	}

	if req.QueueType == model.QueueTypeAppointment {
		slots := timeslot.Generate(e.workingHours(ctx, svc.CompanyID), svc.DurationMinutes, e.intervalMinutes)
		if !slices.Contains(slots, req.AppointmentTime) {
			return JoinResult{}, &ValidationError{Field: "appointment_time", Reason: "not a bookable slot"}
		}
	}

	key := model.PartitionKey{ServiceID: req.ServiceID, ProviderID: req.ProviderID, QueueType: req.QueueType}
	unlock := e.lockPartition(key)
	defer unlock()

	if req.QueueType == model.QueueTypeAppointment {
		taken, err := e.repo.TakenSlots(ctx, req.ServiceID, req.ProviderID, req.AppointmentDate)
		if err != nil {
			return JoinResult{}, err
		}
		if slices.Contains(taken, req.AppointmentTime) {
			return JoinResult{}, ErrSlotTaken
		}
	}

	item := model.QueueItem{
		ID:              uuid.NewString(),
		ServiceID:       req.ServiceID,
		ProviderID:      req.ProviderID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		QueueType:       req.QueueType,
		Status:          model.StatusWaiting,
		AppointmentDate: req.AppointmentDate,
		AppointmentTime: req.AppointmentTime,
		JoinedAt:        e.now().UTC(),
	}
	item, err = e.repo.Insert(ctx, item)
	if err != nil {
		return JoinResult{}, err
	}

	estimates, err := e.partitionEstimates(ctx, key, svc.DurationMinutes)
	if err != nil {
		return JoinResult{}, err
	}
	result := JoinResult{Item: item}
	for _, est := range estimates {
		if est.ItemID == item.ID {
			result.Position = est.Position
			result.EstimatedWaitMinutes = est.EstimatedWaitMinutes
			break
		}
	}
	return result, nil
}

// Transition moves an item through the lifecycle state machine and returns
// the updated item with the fresh ranking of its partition, so observers see
// consistent positions as soon as the call returns. An invalid transition
// fails with InvalidTransitionError and mutates nothing.
func (e *Engine) Transition(ctx context.Context, itemID, to string) (model.QueueItem, []PositionEstimate, error) {
	if !KnownStatus(to) {
		return model.QueueItem{}, nil, &ValidationError{Field: "status", Reason: "must be waiting, serving, completed, or cancelled"}
	}

	item, err := e.repo.Item(ctx, itemID)
	if err != nil {
		return model.QueueItem{}, nil, err
	}

	key := item.Partition()
	unlock := e.lockPartition(key)
	defer unlock()

	// Reload under the partition lock; the first read only located the partition.
	item, err = e.repo.Item(ctx, itemID)
	if err != nil {
		return model.QueueItem{}, nil, err
	}
	if !ValidTransition(item.Status, to) {
		return model.QueueItem{}, nil, &InvalidTransitionError{From: item.Status, To: to}
	}

	item.Status = to
	if err := e.repo.Update(ctx, item); err != nil {
		return model.QueueItem{}, nil, err
	}

	estimates, err := e.partitionEstimates(ctx, key, e.serviceDuration(ctx, item.ServiceID))
	if err != nil {
		return model.QueueItem{}, nil, err
	}
	return item, estimates, nil
}

// Cancel is idempotent: cancelling an unknown id or an already-terminal item
// is a no-op, so retried cancellation requests are safe. The boolean reports
// whether this call actually moved the item to cancelled; when it did, the
// returned item carries the customer details for downstream notification.
func (e *Engine) Cancel(ctx context.Context, itemID string) (model.QueueItem, bool, error) {
	item, err := e.repo.Item(ctx, itemID)
	if errors.Is(err, ErrNotFound) {
		return model.QueueItem{}, false, nil
	}
	if err != nil {
		return model.QueueItem{}, false, err
	}

	unlock := e.lockPartition(item.Partition())
	defer unlock()

	item, err = e.repo.Item(ctx, itemID)
	if errors.Is(err, ErrNotFound) {
		return model.QueueItem{}, false, nil
	}
	if err != nil {
		return model.QueueItem{}, false, err
	}
	if model.TerminalStatus(item.Status) {
		return item, false, nil
	}

	item.Status = model.StatusCancelled
	if err := e.repo.Update(ctx, item); err != nil {
		return model.QueueItem{}, false, err
	}
	return item, true, nil
}

// Remove deletes an item outright (no-show expiry, retention purge). Removing
// an unknown id is a no-op.
func (e *Engine) Remove(ctx context.Context, itemID string) error {
	item, err := e.repo.Item(ctx, itemID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	unlock := e.lockPartition(item.Partition())
	defer unlock()
	return e.repo.Delete(ctx, itemID)
}

// Position returns the derived rank and wait estimate for one item. An item
// that is serving or terminal holds no position.
func (e *Engine) Position(ctx context.Context, itemID string) (PositionEstimate, error) {
	item, err := e.repo.Item(ctx, itemID)
	if err != nil {
		return PositionEstimate{}, err
	}

	estimates, err := e.partitionEstimates(ctx, item.Partition(), e.serviceDuration(ctx, item.ServiceID))
	if err != nil {
		return PositionEstimate{}, err
	}
	for _, est := range estimates {
		if est.ItemID == itemID {
			return est, nil
		}
	}
	return PositionEstimate{ItemID: itemID}, nil
}

// WaitingItem pairs a queue item with its derived rank for dashboard views.
type WaitingItem struct {
	Item                 model.QueueItem
	Position             int
	EstimatedWaitMinutes int
}

func (e *Engine) ListWaiting(ctx context.Context, serviceID, providerID, queueType string) ([]WaitingItem, error) {
	if !model.ValidQueueType(queueType) {
		return nil, &ValidationError{Field: "queue_type", Reason: "must be walk_in, provider, or appointment"}
	}

	key := model.PartitionKey{ServiceID: serviceID, ProviderID: providerID, QueueType: queueType}
	items, err := e.repo.Partition(ctx, key)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.QueueItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	estimates := Estimate(items, e.serviceDuration(ctx, serviceID))
	out := make([]WaitingItem, 0, len(estimates))
	for _, est := range estimates {
		out = append(out, WaitingItem{
			Item:                 byID[est.ItemID],
			Position:             est.Position,
			EstimatedWaitMinutes: est.EstimatedWaitMinutes,
		})
	}
	return out, nil
}

// AvailableSlots returns the generator output for a service minus the
// appointment slots already claimed for that (service, provider) on the given
// date. An empty date means today.
func (e *Engine) AvailableSlots(ctx context.Context, serviceID, providerID, date string) ([]string, error) {
	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return nil, &ValidationError{Field: "service_id", Reason: "required"}
	}
	date = strings.TrimSpace(date)
	if date == "" {
		date = e.now().UTC().Format(dateLayout)
	} else if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}

	svc, ok, err := e.dir.Service(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ValidationError{Field: "service_id", Reason: "unknown service"}
	}

	slots := timeslot.Generate(e.workingHours(ctx, svc.CompanyID), svc.DurationMinutes, e.intervalMinutes)
	taken, err := e.repo.TakenSlots(ctx, serviceID, strings.TrimSpace(providerID), date)
	if err != nil {
		return nil, err
	}
	if len(taken) == 0 {
		return slots, nil
	}

	open := make([]string, 0, len(slots))
	for _, s := range slots {
		if !slices.Contains(taken, s) {
			open = append(open, s)
		}
	}
	return open, nil
}

func (e *Engine) partitionEstimates(ctx context.Context, key model.PartitionKey, durationMinutes int) ([]PositionEstimate, error) {
	items, err := e.repo.Partition(ctx, key)
	if err != nil {
		return nil, err
	}
	return Estimate(items, durationMinutes), nil
}

func (e *Engine) workingHours(ctx context.Context, companyID string) string {
	company, ok, err := e.dir.Company(ctx, companyID)
	if err != nil || !ok {
		return ""
	}
	return company.WorkingHours
}

// serviceDuration tolerates a missing service so a duration change or removal
// never corrupts already-issued positions; ranks are derived either way.
func (e *Engine) serviceDuration(ctx context.Context, serviceID string) int {
	svc, ok, err := e.dir.Service(ctx, serviceID)
	if err != nil || !ok {
		return timeslot.DefaultDurationMinutes
	}
	return svc.DurationMinutes
}

func (e *Engine) lockPartition(key model.PartitionKey) func() {
	e.mu.Lock()
	l, ok := e.locks[key]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}
