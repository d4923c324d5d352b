package queue

import (
	"sort"

	"github.com/waitlinehq/waitline/services/queue-service/internal/model"
	"github.com/waitlinehq/waitline/services/queue-service/internal/timeslot"
)

// PositionEstimate is the derived rank of a waiting item within its
// partition. Rank is never stored; it is recomputed from a snapshot on every
// read so stored and displayed positions cannot drift apart.
type PositionEstimate struct {
	ItemID               string
	Position             int
	EstimatedWaitMinutes int
}

// Estimate ranks the waiting items of one partition snapshot. Ordering is
// JoinedAt ascending with the storage-assigned Seq breaking ties, which makes
// repeated calls over the same snapshot return identical ranks
// (first-come-first-served). Items that are serving or terminal occupy no
// position and push nobody back.
//
// The wait estimate is position × service duration: conservative and
// explainable, not a throughput forecast.
func Estimate(items []model.QueueItem, durationMinutes int) []PositionEstimate {
	if durationMinutes <= 0 {
		durationMinutes = timeslot.DefaultDurationMinutes
	}

	waiting := make([]model.QueueItem, 0, len(items))
	for _, it := range items {
		if it.Status == model.StatusWaiting {
			waiting = append(waiting, it)
		}
	}

	sort.SliceStable(waiting, func(i, j int) bool {
		if waiting[i].JoinedAt.Equal(waiting[j].JoinedAt) {
			return waiting[i].Seq < waiting[j].Seq
		}
		return waiting[i].JoinedAt.Before(waiting[j].JoinedAt)
	})

	out := make([]PositionEstimate, 0, len(waiting))
	for i := range waiting {
		out = append(out, PositionEstimate{
			ItemID:               waiting[i].ID,
			Position:             i + 1,
			EstimatedWaitMinutes: (i + 1) * durationMinutes,
		})
	}
	return out
}
