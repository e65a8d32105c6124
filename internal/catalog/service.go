package catalog

import (
	"context"

	"github.com/liquistock/liquistock/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Material, shared.Pagination, error)
	Get(ctx context.Context, id int64) (Material, error)
	Categories(ctx context.Context) ([]string, error)
}

// Service coordinates catalog reads.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

type listResult struct {
	Materials  []Material        `json:"materials"`
	Pagination shared.Pagination `json:"pagination"`
}

// List returns materials matching the filter, served from cache when possible.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Material, shared.Pagination, error) {
	key, err := s.cache.BuildKey(ctx, keyListing(filter)...)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	var result listResult
	err = s.cache.FetchJSON(ctx, key, &result, func(ctx context.Context) (interface{}, error) {
		materials, page, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		return listResult{Materials: materials, Pagination: page}, nil
	})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return result.Materials, result.Pagination, nil
}

// Get fetches a material by id, always fresh so quantities reflect the latest
// committed sale.
func (s *Service) Get(ctx context.Context, id int64) (Material, error) {
	return s.repo.Get(ctx, id)
}

// Categories lists distinct material categories.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}

// InvalidateListings drops cached listings after stock levels change.
func (s *Service) InvalidateListings(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
