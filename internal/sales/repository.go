package sales

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/liquistock/liquistock/internal/platform/db"
	"github.com/liquistock/liquistock/internal/shared"
)

// MaterialStock is the locked view of a material taken inside a sale
// transaction. The row lock is held until the transaction ends.
type MaterialStock struct {
	ID          int64
	Code        string
	Description string
	Quantity    decimal.Decimal
}

// ErrMaterialNotFound indicates the referenced material row does not exist.
var ErrMaterialNotFound = errors.New("sales: material not found")

// TxRepository exposes the transactional operations used by the engine.
type TxRepository interface {
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertSaleLine(ctx context.Context, line SaleLine) error
	GetMaterialForUpdate(ctx context.Context, materialID int64) (MaterialStock, error)
	AdjustMaterialQuantity(ctx context.Context, materialID int64, delta decimal.Decimal) error
	GetSaleForUpdate(ctx context.Context, saleID int64) (Sale, error)
	ListSaleLines(ctx context.Context, saleID int64) ([]SaleLine, error)
	SetSaleStatus(ctx context.Context, saleID int64, status SaleStatus, total decimal.Decimal) error
	AppendLog(ctx context.Context, entry shared.ActivityEntry) error
}

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	log  *shared.ActivityLog
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, log *shared.ActivityLog) *Repository {
	return &Repository{pool: pool, log: log}
}

// WithTx executes fn inside a single transaction; every write issued through
// the TxRepository commits or rolls back as one unit.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, log: r.log})
	})
}

type txRepo struct {
	tx  pgx.Tx
	log *shared.ActivityLog
}

func (r *txRepo) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO sales (customer_name, customer_phone, customer_email, conditions, payment_method, discount, total, status, responsible_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		sale.CustomerName, sale.CustomerPhone, sale.CustomerEmail, sale.Conditions,
		string(sale.PaymentMethod), sale.Discount, sale.Total, string(sale.Status), sale.ResponsibleID).
		Scan(&id)
	return id, err
}

func (r *txRepo) InsertSaleLine(ctx context.Context, line SaleLine) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO sale_lines (sale_id, material_id, quantity, unit_price, subtotal, line_order)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		line.SaleID, line.MaterialID, line.Quantity, line.UnitPrice, line.Subtotal, line.LineOrder)
	return err
}

func (r *txRepo) GetMaterialForUpdate(ctx context.Context, materialID int64) (MaterialStock, error) {
	var m MaterialStock
	err := r.tx.QueryRow(ctx,
		`SELECT id, code, description, quantity FROM materials WHERE id = $1 FOR UPDATE`,
		materialID).Scan(&m.ID, &m.Code, &m.Description, &m.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MaterialStock{}, ErrMaterialNotFound
		}
		return MaterialStock{}, err
	}
	return m, nil
}

func (r *txRepo) AdjustMaterialQuantity(ctx context.Context, materialID int64, delta decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE materials SET quantity = quantity + $1, updated_at = NOW() WHERE id = $2`,
		delta, materialID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMaterialNotFound
	}
	return nil
}

func (r *txRepo) GetSaleForUpdate(ctx context.Context, saleID int64) (Sale, error) {
	var s Sale
	var payment, status string
	err := r.tx.QueryRow(ctx,
		`SELECT id, customer_name, customer_phone, customer_email, conditions, payment_method, discount, total, status, responsible_id, created_at
		 FROM sales WHERE id = $1 FOR UPDATE`, saleID).
		Scan(&s.ID, &s.CustomerName, &s.CustomerPhone, &s.CustomerEmail, &s.Conditions,
			&payment, &s.Discount, &s.Total, &status, &s.ResponsibleID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrSaleNotFound
		}
		return Sale{}, err
	}
	s.PaymentMethod = PaymentMethod(payment)
	s.Status = SaleStatus(status)
	return s, nil
}

func (r *txRepo) ListSaleLines(ctx context.Context, saleID int64) ([]SaleLine, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT id, sale_id, material_id, quantity, unit_price, subtotal, line_order
		 FROM sale_lines WHERE sale_id = $1 ORDER BY line_order`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLines(rows)
}

func (r *txRepo) SetSaleStatus(ctx context.Context, saleID int64, status SaleStatus, total decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE sales SET status = $1, total = $2 WHERE id = $3`,
		string(status), total, saleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}

func (r *txRepo) AppendLog(ctx context.Context, entry shared.ActivityEntry) error {
	return r.log.RecordIn(ctx, r.tx, entry)
}

// Get fetches a sale header with its lines in cart order.
func (r *Repository) Get(ctx context.Context, saleID int64) (Sale, error) {
	var s Sale
	var payment, status string
	err := r.pool.QueryRow(ctx,
		`SELECT id, customer_name, customer_phone, customer_email, conditions, payment_method, discount, total, status, responsible_id, created_at
		 FROM sales WHERE id = $1`, saleID).
		Scan(&s.ID, &s.CustomerName, &s.CustomerPhone, &s.CustomerEmail, &s.Conditions,
			&payment, &s.Discount, &s.Total, &status, &s.ResponsibleID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrSaleNotFound
		}
		return Sale{}, err
	}
	s.PaymentMethod = PaymentMethod(payment)
	s.Status = SaleStatus(status)

	rows, err := r.pool.Query(ctx,
		`SELECT id, sale_id, material_id, quantity, unit_price, subtotal, line_order
		 FROM sale_lines WHERE sale_id = $1 ORDER BY line_order`, saleID)
	if err != nil {
		return Sale{}, err
	}
	defer rows.Close()
	lines, err := scanLines(rows)
	if err != nil {
		return Sale{}, err
	}
	s.Lines = lines
	return s, nil
}

// List returns sale headers newest first.
func (r *Repository) List(ctx context.Context, req ListSalesRequest) ([]Sale, shared.Pagination, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sales WHERE ($1 = '' OR status = $1)`, req.Status).Scan(&total)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	page := shared.NewPagination(req.Page, req.PerPage, total)

	rows, err := r.pool.Query(ctx,
		`SELECT id, customer_name, customer_phone, customer_email, conditions, payment_method, discount, total, status, responsible_id, created_at
		 FROM sales
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		req.Status, page.PerPage, (page.Page-1)*page.PerPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var s Sale
		var payment, status string
		if err := rows.Scan(&s.ID, &s.CustomerName, &s.CustomerPhone, &s.CustomerEmail, &s.Conditions,
			&payment, &s.Discount, &s.Total, &status, &s.ResponsibleID, &s.CreatedAt); err != nil {
			return nil, shared.Pagination{}, err
		}
		s.PaymentMethod = PaymentMethod(payment)
		s.Status = SaleStatus(status)
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Pagination{}, err
	}
	return sales, page, nil
}

func scanLines(rows pgx.Rows) ([]SaleLine, error) {
	var lines []SaleLine
	for rows.Next() {
		var l SaleLine
		if err := rows.Scan(&l.ID, &l.SaleID, &l.MaterialID, &l.Quantity, &l.UnitPrice, &l.Subtotal, &l.LineOrder); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
