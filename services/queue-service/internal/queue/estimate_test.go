package queue

import (
	"testing"
	"time"

	"github.com/waitlinehq/waitline/services/queue-service/internal/model"
)

func waitingItem(id string, joined time.Time, seq int64) model.QueueItem {
	return model.QueueItem{
		ID:        id,
		ServiceID: "svc-1",
		QueueType: model.QueueTypeWalkIn,
		Status:    model.StatusWaiting,
		JoinedAt:  joined,
		Seq:       seq,
	}
}

func TestEstimateOrdersByJoinTime(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	items := []model.QueueItem{
		waitingItem("c", base.Add(2*time.Minute), 3),
		waitingItem("a", base, 1),
		waitingItem("b", base.Add(1*time.Minute), 2),
	}

	got := Estimate(items, 20)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].ItemID != want {
			t.Fatalf("rank %d = %s, want %s", i+1, got[i].ItemID, want)
		}
		if got[i].Position != i+1 {
			t.Fatalf("position for %s = %d, want %d", want, got[i].Position, i+1)
		}
		if got[i].EstimatedWaitMinutes != (i+1)*20 {
			t.Fatalf("wait for %s = %d, want %d", want, got[i].EstimatedWaitMinutes, (i+1)*20)
		}
	}
}

func TestEstimateBreaksTiesBySeq(t *testing.T) {
	at := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	items := []model.QueueItem{
		waitingItem("later", at, 9),
		waitingItem("earlier", at, 4),
	}

	got := Estimate(items, 10)
	if got[0].ItemID != "earlier" || got[1].ItemID != "later" {
		t.Fatalf("tie order = %s, %s, want earlier, later", got[0].ItemID, got[1].ItemID)
	}

	// Same input, same ranking, every time.
	for i := 0; i < 5; i++ {
		again := Estimate(items, 10)
		for i := range got {
			if again[i] != got[i] {
				t.Fatalf("ranking not deterministic: %+v vs %+v", again[i], got[i])
			}
		}
	}
}

func TestEstimateSkipsNonWaiting(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	serving := waitingItem("s", base, 1)
	serving.Status = model.StatusServing
	done := waitingItem("d", base.Add(1*time.Minute), 2)
	done.Status = model.StatusCompleted
	gone := waitingItem("g", base.Add(2*time.Minute), 3)
	gone.Status = model.StatusCancelled
	items := []model.QueueItem{
		serving,
		done,
		gone,
		waitingItem("w", base.Add(3*time.Minute), 4),
	}

	got := Estimate(items, 25)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	// Positions close over excluded items: the lone waiter is first in line.
	if got[0].ItemID != "w" || got[0].Position != 1 || got[0].EstimatedWaitMinutes != 25 {
		t.Fatalf("got %+v, want w at position 1 wait 25", got[0])
	}
}

func TestEstimateEmpty(t *testing.T) {
	if got := Estimate(nil, 15); len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
	if got := Estimate([]model.QueueItem{}, 15); len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}

func TestEstimateDoesNotMutateInput(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	items := []model.QueueItem{
		waitingItem("b", base.Add(1*time.Minute), 2),
		waitingItem("a", base, 1),
	}

	Estimate(items, 15)
	if items[0].ID != "b" || items[1].ID != "a" {
		t.Fatalf("input order changed: %s, %s", items[0].ID, items[1].ID)
	}
}
