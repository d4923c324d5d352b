package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/waitlinehq/waitline/services/queue-service/internal/directory"
	"github.com/waitlinehq/waitline/services/queue-service/internal/model"
	"github.com/waitlinehq/waitline/services/queue-service/internal/queue"
)

func newTestHandler(t *testing.T) *QueueHandler {
	t.Helper()
	repo := queue.NewMemoryRepository()
	dir := directory.NewStatic(
		[]model.Company{
			{ID: "co-1", Name: "Downtown Clinic", WorkingHours: "09:00-17:00"},
		},
		[]model.Service{
			{ID: "svc-1", CompanyID: "co-1", Name: "Consultation", DurationMinutes: 30},
		},
	)
	engine := queue.NewEngine(repo, dir)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewQueueHandler(engine, nil, nil, nil, logger)
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestJoinHandler(t *testing.T) {
	h := newTestHandler(t)

	rec := postJSON(t, h.Join, map[string]string{
		"service_id":     "svc-1",
		"customer_name":  "Ana",
		"customer_phone": "555-0101",
		"queue_type":     "walk_in",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	resp := decode[joinResponse](t, rec)
	if resp.ItemID == "" {
		t.Fatal("expected item_id in response")
	}
	if resp.Status != model.StatusWaiting || resp.Position != 1 || resp.EstimatedWaitMinutes != 30 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestJoinHandlerValidation(t *testing.T) {
	h := newTestHandler(t)

	rec := postJSON(t, h.Join, map[string]string{
		"service_id": "svc-1",
		"queue_type": "walk_in",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{not json"))
	rec2 := httptest.NewRecorder()
	h.Join(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec2.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec3 := httptest.NewRecorder()
	h.Join(rec3, req)
	if rec3.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec3.Code)
	}
}

func TestJoinHandlerSlotConflict(t *testing.T) {
	h := newTestHandler(t)

	booking := map[string]string{
		"service_id":       "svc-1",
		"customer_name":    "Ana",
		"customer_phone":   "555-0101",
		"queue_type":       "appointment",
		"appointment_date": "2026-09-01",
		"appointment_time": "10:00",
	}
	if rec := postJSON(t, h.Join, booking); rec.Code != http.StatusCreated {
		t.Fatalf("first booking status = %d: %s", rec.Code, rec.Body.String())
	}

	booking["customer_name"] = "Ben"
	booking["customer_phone"] = "555-0102"
	if rec := postJSON(t, h.Join, booking); rec.Code != http.StatusConflict {
		t.Fatalf("second booking status = %d, want 409", rec.Code)
	}
}

func TestCancelHandlerIdempotent(t *testing.T) {
	h := newTestHandler(t)

	join := decode[joinResponse](t, postJSON(t, h.Join, map[string]string{
		"service_id":     "svc-1",
		"customer_name":  "Ana",
		"customer_phone": "555-0101",
		"queue_type":     "walk_in",
	}))

	for i := 0; i < 2; i++ {
		rec := postJSON(t, h.Cancel, map[string]string{"item_id": join.ItemID})
		if rec.Code != http.StatusOK {
			t.Fatalf("cancel attempt %d status = %d, want 200", i+1, rec.Code)
		}
		resp := decode[map[string]string](t, rec)
		if resp["status"] != model.StatusCancelled {
			t.Fatalf("cancel attempt %d status field = %q", i+1, resp["status"])
		}
	}

	// Unknown ids cancel cleanly as well.
	rec := postJSON(t, h.Cancel, map[string]string{"item_id": "no-such-item"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown cancel status = %d, want 200", rec.Code)
	}

	rec = postJSON(t, h.Cancel, map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty cancel status = %d, want 400", rec.Code)
	}
}

func TestCancelledEventCarriesContactFields(t *testing.T) {
	h := newTestHandler(t)

	join := decode[joinResponse](t, postJSON(t, h.Join, map[string]string{
		"service_id":     "svc-1",
		"customer_name":  "Ana",
		"customer_phone": "555-0101",
		"customer_email": "ana@example.com",
		"queue_type":     "walk_in",
	}))

	item, changed, err := h.engine.Cancel(context.Background(), join.ItemID)
	if err != nil || !changed {
		t.Fatalf("Cancel: changed=%v err=%v", changed, err)
	}

	// Notification consumers drop events without an item_id and a phone or
	// email; the public cancel path must emit the same envelope transitions do.
	payload := itemEventPayload(item)
	if payload["item_id"] != join.ItemID {
		t.Fatalf("item_id = %v, want %s", payload["item_id"], join.ItemID)
	}
	if payload["customer_phone"] != "555-0101" || payload["customer_email"] != "ana@example.com" {
		t.Fatalf("contact fields missing from payload: %v", payload)
	}
	if payload["status"] != model.StatusCancelled {
		t.Fatalf("status = %v, want cancelled", payload["status"])
	}
}

func TestPositionHandler(t *testing.T) {
	h := newTestHandler(t)

	join := decode[joinResponse](t, postJSON(t, h.Join, map[string]string{
		"service_id":     "svc-1",
		"customer_name":  "Ana",
		"customer_phone": "555-0101",
		"queue_type":     "walk_in",
	}))

	req := httptest.NewRequest(http.MethodGet, "/?item_id="+join.ItemID, nil)
	rec := httptest.NewRecorder()
	h.Position(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[positionResponse](t, rec)
	if resp.ItemID != join.ItemID || resp.Position != 1 || resp.EstimatedWaitMinutes != 30 {
		t.Fatalf("unexpected response %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/?item_id=no-such-item", nil)
	rec = httptest.NewRecorder()
	h.Position(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown item status = %d, want 404", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	h.Position(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing item_id status = %d, want 400", rec.Code)
	}
}

func TestSlotsHandler(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/?service_id=svc-1&date=2026-09-01", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	slots := decode[[]string](t, rec)
	if len(slots) != 31 {
		t.Fatalf("slots = %d, want 31", len(slots))
	}
	if slots[0] != "09:00" || slots[len(slots)-1] != "16:30" {
		t.Fatalf("slot bounds = %s..%s", slots[0], slots[len(slots)-1])
	}

	req = httptest.NewRequest(http.MethodGet, "/?date=2026-09-01", nil)
	rec = httptest.NewRecorder()
	h.Slots(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing service status = %d, want 400", rec.Code)
	}
}

func TestTransitionHandler(t *testing.T) {
	h := newTestHandler(t)

	join := decode[joinResponse](t, postJSON(t, h.Join, map[string]string{
		"service_id":     "svc-1",
		"customer_name":  "Ana",
		"customer_phone": "555-0101",
		"queue_type":     "walk_in",
	}))

	rec := postJSON(t, h.Transition, map[string]string{
		"item_id": join.ItemID,
		"status":  model.StatusServing,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	resp := decode[struct {
		ItemID    string             `json:"item_id"`
		Status    string             `json:"status"`
		Positions []positionResponse `json:"positions"`
	}](t, rec)
	if resp.Status != model.StatusServing {
		t.Fatalf("status = %q, want serving", resp.Status)
	}
	if len(resp.Positions) != 0 {
		t.Fatalf("positions = %d, want 0 once the only item is serving", len(resp.Positions))
	}

	// serving -> serving is rejected and nothing changes.
	rec = postJSON(t, h.Transition, map[string]string{
		"item_id": join.ItemID,
		"status":  model.StatusServing,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("repeat transition status = %d, want 409", rec.Code)
	}

	// Sending an item back to waiting is a state-machine conflict, not a
	// malformed request.
	rec = postJSON(t, h.Transition, map[string]string{
		"item_id": join.ItemID,
		"status":  model.StatusWaiting,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("back-to-waiting status = %d, want 409", rec.Code)
	}

	rec = postJSON(t, h.Transition, map[string]string{
		"item_id": join.ItemID,
		"status":  "archived",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status = %d, want 400", rec.Code)
	}

	rec = postJSON(t, h.Transition, map[string]string{
		"item_id": "no-such-item",
		"status":  model.StatusServing,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown item status = %d, want 404", rec.Code)
	}
}

func TestListHandler(t *testing.T) {
	h := newTestHandler(t)

	for _, name := range []string{"Ana", "Ben"} {
		postJSON(t, h.Join, map[string]string{
			"service_id":     "svc-1",
			"customer_name":  name,
			"customer_phone": "555-" + name,
			"queue_type":     "walk_in",
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/?service_id=svc-1", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	items := decode[[]waitingItemResponse](t, rec)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].CustomerName != "Ana" || items[0].Position != 1 {
		t.Fatalf("first item = %+v, want Ana at position 1", items[0])
	}
	if items[1].CustomerName != "Ben" || items[1].Position != 2 {
		t.Fatalf("second item = %+v, want Ben at position 2", items[1])
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing service status = %d, want 400", rec.Code)
	}
}

func TestFavoritesHandlerUnconfigured(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/?phone=555-0101", nil)
	rec := httptest.NewRecorder()
	h.Favorites(rec, req)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", rec.Code)
	}
}
