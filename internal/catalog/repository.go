package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liquistock/liquistock/internal/shared"
)

// Repository reads materials from PostgreSQL. Quantity mutations happen only
// through the sales engine; this repository exposes no write path.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns materials matching the filter, ordered by internal code.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Material, shared.Pagination, error) {
	search := ""
	if filter.Search != "" {
		search = "%" + filter.Search + "%"
	}

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM materials
		 WHERE ($1 = '' OR code ILIKE $1 OR description ILIKE $1)
		   AND ($2 = '' OR category = $2)
		   AND (NOT $3 OR quantity > 0)`,
		search, filter.Category, filter.InStockOnly).Scan(&total)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)

	rows, err := r.pool.Query(ctx,
		`SELECT id, code, description, category, unit, unit_price, quantity, updated_at
		 FROM materials
		 WHERE ($1 = '' OR code ILIKE $1 OR description ILIKE $1)
		   AND ($2 = '' OR category = $2)
		   AND (NOT $3 OR quantity > 0)
		 ORDER BY code
		 LIMIT $4 OFFSET $5`,
		search, filter.Category, filter.InStockOnly, page.PerPage, (page.Page-1)*page.PerPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	defer rows.Close()

	var materials []Material
	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.ID, &m.Code, &m.Description, &m.Category, &m.Unit, &m.UnitPrice, &m.Quantity, &m.UpdatedAt); err != nil {
			return nil, shared.Pagination{}, err
		}
		materials = append(materials, m)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Pagination{}, err
	}
	return materials, page, nil
}

// Get fetches a single material by id.
func (r *Repository) Get(ctx context.Context, id int64) (Material, error) {
	var m Material
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, description, category, unit, unit_price, quantity, updated_at
		 FROM materials WHERE id = $1`, id).
		Scan(&m.ID, &m.Code, &m.Description, &m.Category, &m.Unit, &m.UnitPrice, &m.Quantity, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Material{}, ErrMaterialNotFound
		}
		return Material{}, err
	}
	return m, nil
}

// Categories returns the distinct material categories.
func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT category FROM materials WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
