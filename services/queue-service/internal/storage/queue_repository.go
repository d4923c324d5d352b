package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/waitlinehq/waitline/libs/db"
	"github.com/waitlinehq/waitline/services/queue-service/internal/model"
	"github.com/waitlinehq/waitline/services/queue-service/internal/queue"
)

// QueueRepository is the Postgres implementation of queue.Repository. The
// engine's per-partition lock serializes mutations within one process; the
// partial unique index on (service_id, provider_id, appointment_date,
// appointment_time) is the cross-instance backstop for appointment
// double-booking.
type QueueRepository struct {
	pool *db.Pool
}

func NewQueueRepository(pool *db.Pool) *QueueRepository {
	return &QueueRepository{pool: pool}
}

const queueItemColumns = `
	id::text, service_id, COALESCE(provider_id, ''), customer_name, customer_phone,
	COALESCE(customer_email, ''), queue_type, status,
	COALESCE(appointment_date, ''), COALESCE(appointment_time, ''), joined_at, seq`

func (r *QueueRepository) Insert(ctx context.Context, item model.QueueItem) (model.QueueItem, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO queue_items
			(id, service_id, provider_id, customer_name, customer_phone, customer_email,
			 queue_type, status, appointment_date, appointment_time, joined_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11)
		RETURNING seq
	`, item.ID, item.ServiceID, item.ProviderID, item.CustomerName, item.CustomerPhone, item.CustomerEmail,
		item.QueueType, item.Status, item.AppointmentDate, item.AppointmentTime, item.JoinedAt,
	).Scan(&item.Seq)
	if err != nil {
		if isUniqueViolation(err) {
			return model.QueueItem{}, queue.ErrSlotTaken
		}
		return model.QueueItem{}, err
	}
	return item, nil
}

func (r *QueueRepository) Update(ctx context.Context, item model.QueueItem) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE queue_items
		SET status = $2
		WHERE id = $1
	`, item.ID, item.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return queue.ErrNotFound
	}
	return nil
}

func (r *QueueRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM queue_items WHERE id = $1`, id)
	return err
}

func (r *QueueRepository) Item(ctx context.Context, id string) (model.QueueItem, error) {
	var item model.QueueItem
	err := r.pool.QueryRow(ctx, `
		SELECT `+queueItemColumns+`
		FROM queue_items
		WHERE id = $1
	`, id).Scan(
		&item.ID,
		&item.ServiceID,
		&item.ProviderID,
		&item.CustomerName,
		&item.CustomerPhone,
		&item.CustomerEmail,
		&item.QueueType,
		&item.Status,
		&item.AppointmentDate,
		&item.AppointmentTime,
		&item.JoinedAt,
		&item.Seq,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.QueueItem{}, queue.ErrNotFound
	}
	if err != nil {
		return model.QueueItem{}, err
	}
	return item, nil
}

func (r *QueueRepository) Partition(ctx context.Context, key model.PartitionKey) ([]model.QueueItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+queueItemColumns+`
		FROM queue_items
		WHERE service_id = $1
			AND COALESCE(provider_id, '') = $2
			AND queue_type = $3
		ORDER BY joined_at ASC, seq ASC
	`, key.ServiceID, key.ProviderID, key.QueueType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.QueueItem
	for rows.Next() {
		var item model.QueueItem
		if err := rows.Scan(
			&item.ID,
			&item.ServiceID,
			&item.ProviderID,
			&item.CustomerName,
			&item.CustomerPhone,
			&item.CustomerEmail,
			&item.QueueType,
			&item.Status,
			&item.AppointmentDate,
			&item.AppointmentTime,
			&item.JoinedAt,
			&item.Seq,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (r *QueueRepository) TakenSlots(ctx context.Context, serviceID, providerID, date string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appointment_time
		FROM queue_items
		WHERE service_id = $1
			AND COALESCE(provider_id, '') = $2
			AND queue_type = $3
			AND appointment_date = $4
			AND status <> $5
		ORDER BY appointment_time ASC
	`, serviceID, providerID, model.QueueTypeAppointment, date, model.StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return slots, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
