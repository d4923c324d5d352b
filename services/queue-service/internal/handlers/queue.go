package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/waitlinehq/waitline/libs/db"
	"github.com/waitlinehq/waitline/services/queue-service/internal/favorites"
	"github.com/waitlinehq/waitline/services/queue-service/internal/model"
	"github.com/waitlinehq/waitline/services/queue-service/internal/outbox"
	"github.com/waitlinehq/waitline/services/queue-service/internal/queue"
)

type QueueHandler struct {
	engine     *queue.Engine
	pool       *db.Pool
	outboxRepo *outbox.Repository
	favorites  *favorites.Store
	logger     *slog.Logger
}

// NewQueueHandler wires the engine to HTTP. pool/outboxRepo and favoritesStore
// may be nil (tests, deployments without Kafka or Redis); eventing and the
// favorites endpoints degrade gracefully.
func NewQueueHandler(engine *queue.Engine, pool *db.Pool, outboxRepo *outbox.Repository, favoritesStore *favorites.Store, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{
		engine:     engine,
		pool:       pool,
		outboxRepo: outboxRepo,
		favorites:  favoritesStore,
		logger:     logger,
	}
}

type joinRequest struct {
	ServiceID       string `json:"service_id"`
	ProviderID      string `json:"provider_id"`
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerEmail   string `json:"customer_email"`
	QueueType       string `json:"queue_type"`
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
}

type joinResponse struct {
	ItemID               string `json:"item_id"`
	Status               string `json:"status"`
	QueueType            string `json:"queue_type"`
	Position             int    `json:"position"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
	AppointmentDate      string `json:"appointment_date,omitempty"`
	AppointmentTime      string `json:"appointment_time,omitempty"`
}

type positionResponse struct {
	ItemID               string `json:"item_id"`
	Position             int    `json:"position"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
}

type waitingItemResponse struct {
	ItemID               string `json:"item_id"`
	CustomerName         string `json:"customer_name"`
	QueueType            string `json:"queue_type"`
	Position             int    `json:"position"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
	JoinedAt             string `json:"joined_at"`
	AppointmentTime      string `json:"appointment_time,omitempty"`
}

func (h *QueueHandler) Join(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	result, err := h.engine.Join(r.Context(), queue.JoinRequest{
		ServiceID:       req.ServiceID,
		ProviderID:      req.ProviderID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		QueueType:       req.QueueType,
		AppointmentDate: req.AppointmentDate,
		AppointmentTime: req.AppointmentTime,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	item := result.Item
	payload := itemEventPayload(item)
	payload["position"] = result.Position
	payload["wait_minutes"] = result.EstimatedWaitMinutes
	payload["joined_at"] = item.JoinedAt.Format(time.RFC3339)
	h.emit(r.Context(), outbox.EventItemJoined, item.ID, payload)

	writeJSON(w, http.StatusCreated, joinResponse{
		ItemID:               item.ID,
		Status:               item.Status,
		QueueType:            item.QueueType,
		Position:             result.Position,
		EstimatedWaitMinutes: result.EstimatedWaitMinutes,
		AppointmentDate:      item.AppointmentDate,
		AppointmentTime:      item.AppointmentTime,
	})
}

func (h *QueueHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ItemID string `json:"item_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ItemID = strings.TrimSpace(req.ItemID)
	if req.ItemID == "" {
		http.Error(w, "item_id required", http.StatusBadRequest)
		return
	}

	item, changed, err := h.engine.Cancel(r.Context(), req.ItemID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if changed {
		h.emit(r.Context(), outbox.EventItemCancelled, item.ID, itemEventPayload(item))
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"item_id": req.ItemID,
		"status":  model.StatusCancelled,
	})
}

func (h *QueueHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	slots, err := h.engine.AvailableSlots(r.Context(), q.Get("service_id"), q.Get("provider_id"), q.Get("date"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if slots == nil {
		slots = []string{}
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *QueueHandler) Position(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	itemID := strings.TrimSpace(r.URL.Query().Get("item_id"))
	if itemID == "" {
		http.Error(w, "item_id required", http.StatusBadRequest)
		return
	}

	est, err := h.engine.Position(r.Context(), itemID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positionResponse{
		ItemID:               est.ItemID,
		Position:             est.Position,
		EstimatedWaitMinutes: est.EstimatedWaitMinutes,
	})
}

func (h *QueueHandler) Transition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ItemID string `json:"item_id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ItemID = strings.TrimSpace(req.ItemID)
	if req.ItemID == "" {
		http.Error(w, "item_id required", http.StatusBadRequest)
		return
	}

	item, estimates, err := h.engine.Transition(r.Context(), req.ItemID, req.Status)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	if eventType := transitionEvent(item.Status); eventType != "" {
		h.emit(r.Context(), eventType, item.ID, itemEventPayload(item))
	}

	positions := make([]positionResponse, 0, len(estimates))
	for _, est := range estimates {
		positions = append(positions, positionResponse{
			ItemID:               est.ItemID,
			Position:             est.Position,
			EstimatedWaitMinutes: est.EstimatedWaitMinutes,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"item_id":   item.ID,
		"status":    item.Status,
		"positions": positions,
	})
}

func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	serviceID := strings.TrimSpace(q.Get("service_id"))
	if serviceID == "" {
		http.Error(w, "service_id required", http.StatusBadRequest)
		return
	}
	queueType := strings.TrimSpace(q.Get("queue_type"))
	if queueType == "" {
		queueType = model.QueueTypeWalkIn
	}

	waiting, err := h.engine.ListWaiting(r.Context(), serviceID, strings.TrimSpace(q.Get("provider_id")), queueType)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	items := make([]waitingItemResponse, 0, len(waiting))
	for _, wi := range waiting {
		items = append(items, waitingItemResponse{
			ItemID:               wi.Item.ID,
			CustomerName:         wi.Item.CustomerName,
			QueueType:            wi.Item.QueueType,
			Position:             wi.Position,
			EstimatedWaitMinutes: wi.EstimatedWaitMinutes,
			JoinedAt:             wi.Item.JoinedAt.UTC().Format(time.RFC3339),
			AppointmentTime:      wi.Item.AppointmentTime,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *QueueHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	if h.favorites == nil {
		http.Error(w, "favorites not configured", http.StatusNotImplemented)
		return
	}

	switch r.Method {
	case http.MethodGet:
		phone := strings.TrimSpace(r.URL.Query().Get("phone"))
		if phone == "" {
			http.Error(w, "phone required", http.StatusBadRequest)
			return
		}
		ids, err := h.favorites.List(r.Context(), phone)
		if err != nil {
			http.Error(w, "failed to load favorites", http.StatusInternalServerError)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, http.StatusOK, ids)
	case http.MethodPost, http.MethodDelete:
		var req struct {
			Phone     string `json:"phone"`
			CompanyID string `json:"company_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.Phone = strings.TrimSpace(req.Phone)
		req.CompanyID = strings.TrimSpace(req.CompanyID)
		if req.Phone == "" || req.CompanyID == "" {
			http.Error(w, "phone and company_id required", http.StatusBadRequest)
			return
		}

		var err error
		if r.Method == http.MethodPost {
			err = h.favorites.Add(r.Context(), req.Phone, req.CompanyID)
		} else {
			err = h.favorites.Remove(r.Context(), req.Phone, req.CompanyID)
		}
		if err != nil {
			http.Error(w, "failed to update favorites", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// itemEventPayload is the customer-facing envelope shared by every
// queue.item.* event. Consumers refuse events without an item_id and a phone
// or email, so every emit path must go through here.
func itemEventPayload(item model.QueueItem) map[string]any {
	return map[string]any{
		"item_id":          item.ID,
		"service_id":       item.ServiceID,
		"provider_id":      item.ProviderID,
		"customer_name":    item.CustomerName,
		"customer_phone":   item.CustomerPhone,
		"customer_email":   item.CustomerEmail,
		"queue_type":       item.QueueType,
		"status":           item.Status,
		"appointment_date": item.AppointmentDate,
		"appointment_time": item.AppointmentTime,
	}
}

func transitionEvent(status string) string {
	switch status {
	case model.StatusServing:
		return outbox.EventItemCalled
	case model.StatusCompleted:
		return outbox.EventItemCompleted
	case model.StatusCancelled:
		return outbox.EventItemCancelled
	default:
		return ""
	}
}

// emit is best-effort: the queue mutation has already committed, so an outbox
// write failure is logged rather than surfaced as a request error.
func (h *QueueHandler) emit(ctx context.Context, eventType, aggregateID string, payload map[string]any) {
	if h.pool == nil || h.outboxRepo == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to build event payload", "err", err, "event_type", eventType)
		return
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		h.logger.Error("failed to open outbox tx", "err", err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "queue_item",
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
	}); err != nil {
		h.logger.Error("failed to write outbox event", "err", err, "event_type", eventType)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		h.logger.Error("failed to commit outbox event", "err", err, "event_type", eventType)
	}
}

func (h *QueueHandler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case queue.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, queue.ErrSlotTaken):
		http.Error(w, err.Error(), http.StatusConflict)
	case queue.IsInvalidTransition(err):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, queue.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.Error("queue operation failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
