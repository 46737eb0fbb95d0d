package audit

import (
	"context"
	"fmt"
)

// Service defines audit query operations exposed over HTTP. Appends go
// through the Store directly from the access decision path.
type Service interface {
	Query(ctx context.Context, params QueryParams) ([]Record, int, error)
	Export(ctx context.Context, params QueryParams) ([]Record, error)
	Get(ctx context.Context, id string) (Record, error)
}

type service struct {
	store Store
}

// NewService creates a new audit service.
func NewService(store Store) Service {
	return &service{store: store}
}

func (s *service) Query(ctx context.Context, params QueryParams) ([]Record, int, error) {
	if params.Limit == 0 {
		params.Limit = 100
	}
	if params.Limit > 1000 {
		params.Limit = 1000
	}
	return s.store.Query(ctx, params)
}

func (s *service) Export(ctx context.Context, params QueryParams) ([]Record, error) {
	params.Limit = 10000
	params.Offset = 0
	records, _, err := s.store.Query(ctx, params)
	return records, err
}

func (s *service) Get(ctx context.Context, id string) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("id is required")
	}
	return s.store.Get(ctx, id)
}
