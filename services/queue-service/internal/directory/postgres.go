package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/waitlinehq/waitline/libs/db"
	"github.com/waitlinehq/waitline/services/queue-service/internal/model"
)

// Postgres reads companies and services from the shared database.
type Postgres struct {
	pool *db.Pool
}

func NewPostgres(pool *db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Service(ctx context.Context, id string) (model.Service, bool, error) {
	var svc model.Service
	err := p.pool.QueryRow(ctx, `
		SELECT id::text, company_id::text, name, duration_minutes
		FROM services
		WHERE id = $1
	`, id).Scan(&svc.ID, &svc.CompanyID, &svc.Name, &svc.DurationMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Service{}, false, nil
	}
	if err != nil {
		return model.Service{}, false, err
	}
	return svc, true, nil
}

func (p *Postgres) Company(ctx context.Context, id string) (model.Company, bool, error) {
	var c model.Company
	err := p.pool.QueryRow(ctx, `
		SELECT id::text, name, COALESCE(working_hours, '')
		FROM companies
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.WorkingHours)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Company{}, false, nil
	}
	if err != nil {
		return model.Company{}, false, err
	}
	return c, true, nil
}
