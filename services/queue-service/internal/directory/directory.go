package directory

import (
	"context"

	"github.com/waitlinehq/waitline/services/queue-service/internal/model"
)

// Directory provides the read-only company and service lookups the engine
// consumes: working hours and service durations. The second return value
// reports whether the record exists.
type Directory interface {
	Service(ctx context.Context, id string) (model.Service, bool, error)
	Company(ctx context.Context, id string) (model.Company, bool, error)
}

// Static is a fixed in-memory Directory for tests and local development.
type Static struct {
	services  map[string]model.Service
	companies map[string]model.Company
}

func NewStatic(companies []model.Company, services []model.Service) *Static {
	s := &Static{
		services:  make(map[string]model.Service, len(services)),
		companies: make(map[string]model.Company, len(companies)),
	}
	for _, c := range companies {
		s.companies[c.ID] = c
	}
	for _, svc := range services {
		s.services[svc.ID] = svc
	}
	return s
}

func (s *Static) Service(_ context.Context, id string) (model.Service, bool, error) {
	svc, ok := s.services[id]
	return svc, ok, nil
}

func (s *Static) Company(_ context.Context, id string) (model.Company, bool, error) {
	c, ok := s.companies[id]
	return c, ok, nil
}
