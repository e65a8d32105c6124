package sales

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/liquistock/liquistock/internal/shared"
)

// memoryState is the committed store. Transactions mutate a deep copy and
// swap it in on commit, so a failed callback leaves no partial writes.
type memoryState struct {
	materials  map[int64]MaterialStock
	sales      map[int64]Sale
	lines      map[int64][]SaleLine
	logs       []shared.ActivityEntry
	nextSaleID int64
	nextLineID int64
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		materials:  make(map[int64]MaterialStock, len(s.materials)),
		sales:      make(map[int64]Sale, len(s.sales)),
		lines:      make(map[int64][]SaleLine, len(s.lines)),
		logs:       append([]shared.ActivityEntry(nil), s.logs...),
		nextSaleID: s.nextSaleID,
		nextLineID: s.nextLineID,
	}
	for id, m := range s.materials {
		c.materials[id] = m
	}
	for id, sale := range s.sales {
		c.sales[id] = sale
	}
	for id, ls := range s.lines {
		c.lines[id] = append([]SaleLine(nil), ls...)
	}
	return c
}

type memoryRepo struct {
	mu      sync.Mutex
	state   *memoryState
	txCalls int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: &memoryState{
		materials: make(map[int64]MaterialStock),
		sales:     make(map[int64]Sale),
		lines:     make(map[int64][]SaleLine),
	}}
}

func (r *memoryRepo) seedMaterial(id int64, code, description, quantity string) {
	r.state.materials[id] = MaterialStock{
		ID:          id,
		Code:        code,
		Description: description,
		Quantity:    decimal.RequireFromString(quantity),
	}
}

func (r *memoryRepo) quantity(id int64) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.materials[id].Quantity
}

// WithTx serialises transactions with a mutex, standing in for the row locks
// the real repository takes with SELECT ... FOR UPDATE.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txCalls++
	staged := r.state.clone()
	if err := fn(ctx, &memoryTx{state: staged}); err != nil {
		return err
	}
	r.state = staged
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, saleID int64) (Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sale, ok := r.state.sales[saleID]
	if !ok {
		return Sale{}, ErrSaleNotFound
	}
	sale.Lines = append([]SaleLine(nil), r.state.lines[saleID]...)
	return sale, nil
}

func (r *memoryRepo) List(ctx context.Context, req ListSalesRequest) ([]Sale, shared.Pagination, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sale
	for _, sale := range r.state.sales {
		if req.Status == "" || string(sale.Status) == req.Status {
			out = append(out, sale)
		}
	}
	return out, shared.NewPagination(req.Page, req.PerPage, len(out)), nil
}

type memoryTx struct {
	state *memoryState
}

func (tx *memoryTx) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	tx.state.nextSaleID++
	sale.ID = tx.state.nextSaleID
	sale.CreatedAt = time.Now()
	tx.state.sales[sale.ID] = sale
	return sale.ID, nil
}

func (tx *memoryTx) InsertSaleLine(ctx context.Context, line SaleLine) error {
	tx.state.nextLineID++
	line.ID = tx.state.nextLineID
	tx.state.lines[line.SaleID] = append(tx.state.lines[line.SaleID], line)
	return nil
}

func (tx *memoryTx) GetMaterialForUpdate(ctx context.Context, materialID int64) (MaterialStock, error) {
	m, ok := tx.state.materials[materialID]
	if !ok {
		return MaterialStock{}, ErrMaterialNotFound
	}
	return m, nil
}

func (tx *memoryTx) AdjustMaterialQuantity(ctx context.Context, materialID int64, delta decimal.Decimal) error {
	m, ok := tx.state.materials[materialID]
	if !ok {
		return ErrMaterialNotFound
	}
	m.Quantity = m.Quantity.Add(delta)
	tx.state.materials[materialID] = m
	return nil
}

func (tx *memoryTx) GetSaleForUpdate(ctx context.Context, saleID int64) (Sale, error) {
	sale, ok := tx.state.sales[saleID]
	if !ok {
		return Sale{}, ErrSaleNotFound
	}
	return sale, nil
}

func (tx *memoryTx) ListSaleLines(ctx context.Context, saleID int64) ([]SaleLine, error) {
	return append([]SaleLine(nil), tx.state.lines[saleID]...), nil
}

func (tx *memoryTx) SetSaleStatus(ctx context.Context, saleID int64, status SaleStatus, total decimal.Decimal) error {
	sale, ok := tx.state.sales[saleID]
	if !ok {
		return ErrSaleNotFound
	}
	sale.Status = status
	sale.Total = total
	tx.state.sales[saleID] = sale
	return nil
}

func (tx *memoryTx) AppendLog(ctx context.Context, entry shared.ActivityEntry) error {
	tx.state.logs = append(tx.state.logs, entry)
	return nil
}

type fakeInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeInvalidator) InvalidateListings(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func newTestService(repo *memoryRepo) (*Service, *fakeInvalidator) {
	inv := &fakeInvalidator{}
	return NewService(repo, nil, inv, nil, nil, nil), inv
}

func validInput(cart ...CartLine) SubmitSaleInput {
	return SubmitSaleInput{
		CustomerName:  "Maria Lopez",
		PaymentMethod: PaymentCash,
		Discount:      decimal.Zero,
		Cart:          cart,
		ActorID:       7,
	}
}

func line(materialID int64, qty, price string) CartLine {
	return CartLine{
		MaterialID: materialID,
		Quantity:   decimal.RequireFromString(qty),
		UnitPrice:  decimal.RequireFromString(price),
	}
}

func TestSubmitSaleComputesDiscountedTotal(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedMaterial(1, "MAT-001", "Leather sole", "10")
	repo.seedMaterial(2, "MAT-002", "Rubber heel", "10")
	svc, inv := newTestService(repo)

	input := validInput(line(1, "2", "50.00"), line(2, "1", "30.00"))
	input.Discount = decimal.RequireFromString("10")

	sale, err := svc.SubmitSale(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, SaleStatusCompleted, sale.Status)
	require.True(t, sale.Total.Equal(decimal.RequireFromString("117.00")), "total = %s", sale.Total)
	require.Len(t, sale.Lines, 2)
	require.True(t, sale.Lines[0].Subtotal.Equal(decimal.RequireFromString("100.00")))
	require.True(t, sale.Lines[1].Subtotal.Equal(decimal.RequireFromString("30.00")))

	require.True(t, repo.quantity(1).Equal(decimal.RequireFromString("8")))
	require.True(t, repo.quantity(2).Equal(decimal.RequireFromString("9")))
	require.Equal(t, 1, inv.calls)

	require.Len(t, repo.state.logs, 1)
	require.Equal(t, shared.ActionSale, repo.state.logs[0].Action)
	require.Equal(t, int64(7), repo.state.logs[0].ActorID)
}

func TestSubmitSalePreservesCartOrder(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedMaterial(3, "MAT-003", "Laces", "50")
	repo.seedMaterial(1, "MAT-001", "Sole", "50")
	svc, _ := newTestService(repo)

	sale, err := svc.SubmitSale(context.Background(), validInput(
		line(3, "1", "5.00"), line(1, "2", "8.00")))
	require.NoError(t, err)
	require.Equal(t, int64(3), sale.Lines[0].MaterialID)
	require.Equal(t, 1, sale.Lines[0].LineOrder)
	require.Equal(t, int64(1), sale.Lines[1].MaterialID)
	require.Equal(t, 2, sale.Lines[1].LineOrder)
}

func TestSubmitSaleInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedMaterial(1, "MAT-001", "Leather sole", "5")
	svc, inv := newTestService(repo)

	_, err := svc.SubmitSale(context.Background(), validInput(line(1, "6", "10.00")))
	require.ErrorIs(t, err, ErrStockInsufficient)

	var stockErr *StockInsufficientError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, int64(1), stockErr.MaterialID)
	require.Equal(t, "MAT-001", stockErr.Code)
	require.True(t, stockErr.Available.Equal(decimal.RequireFromString("5")))
	require.True(t, stockErr.Requested.Equal(decimal.RequireFromString("6")))

	require.True(t, repo.quantity(1).Equal(decimal.RequireFromString("5")))
	require.Empty(t, repo.state.sales)
	require.Empty(t, repo.state.logs)
	require.Equal(t, 0, inv.calls)
}

func TestSubmitSaleUnknownMaterial(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	_, err := svc.SubmitSale(context.Background(), validInput(line(99, "1", "10.00")))
	require.ErrorIs(t, err, ErrStockInsufficient)

	var stockErr *StockInsufficientError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, int64(99), stockErr.MaterialID)
	require.True(t, stockErr.Available.IsZero())
}

func TestSubmitSaleAtomicOnLateFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedMaterial(1, "MAT-001", "Sole", "10")
	repo.seedMaterial(2, "MAT-002", "Heel", "1")
	svc, _ := newTestService(repo)

	// First line would succeed; second is short. Nothing may persist.
	_, err := svc.SubmitSale(context.Background(), validInput(
		line(1, "4", "10.00"), line(2, "3", "5.00")))
	require.ErrorIs(t, err, ErrStockInsufficient)

	var stockErr *StockInsufficientError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, int64(2), stockErr.MaterialID)

	require.True(t, repo.quantity(1).Equal(decimal.RequireFromString("10")))
	require.True(t, repo.quantity(2).Equal(decimal.RequireFromString("1")))
	require.Empty(t, repo.state.sales)
	require.Empty(t, repo.state.lines)
}

func TestSubmitSaleValidationBeforeAnyTransaction(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedMaterial(1, "MAT-001", "Sole", "10")
	svc, _ := newTestService(repo)
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(*SubmitSaleInput)
		wantErr error
	}{
		{"empty cart", func(in *SubmitSaleInput) { in.Cart = nil }, ErrEmptyCart},
		{"blank customer", func(in *SubmitSaleInput) { in.CustomerName = "   " }, ErrCustomerRequired},
		{"zero quantity", func(in *SubmitSaleInput) { in.Cart[0].Quantity = decimal.Zero }, ErrInvalidQuantity},
		{"negative quantity", func(in *SubmitSaleInput) { in.Cart[0].Quantity = decimal.RequireFromString("-1") }, ErrInvalidQuantity},
		{"negative price", func(in *SubmitSaleInput) { in.Cart[0].UnitPrice = decimal.RequireFromString("-0.01") }, ErrInvalidUnitPrice},
		{"negative discount", func(in *SubmitSaleInput) { in.Discount = decimal.RequireFromString("-5") }, ErrInvalidDiscount},
		{"unknown payment", func(in *SubmitSaleInput) { in.PaymentMethod = "BARTER" }, ErrInvalidPayment},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput(line(1, "1", "10.00"))
			tc.mutate(&input)
			_, err := svc.SubmitSale(ctx, input)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}

	require.Equal(t, 0, repo.txCalls, "validation failures must not open a transaction")
}

func TestCancelSaleRestoresStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedMaterial(1, "MAT-A", "Material A", "10")
	repo.seedMaterial(2, "MAT-B", "Material B", "4")
	svc, inv := newTestService(repo)
	ctx := context.Background()

	sale, err := svc.SubmitSale(ctx, validInput(line(1, "3", "20.00"), line(2, "1", "15.00")))
	require.NoError(t, err)

	afterA := repo.quantity(1)
	afterB := repo.quantity(2)

	cancelled, err := svc.CancelSale(ctx, sale.ID, 9)
	require.NoError(t, err)
	require.Equal(t, SaleStatusCancelled, cancelled.Status)
	require.True(t, cancelled.Total.IsZero())

	require.True(t, repo.quantity(1).Equal(afterA.Add(decimal.RequireFromString("3"))))
	require.True(t, repo.quantity(2).Equal(afterB.Add(decimal.RequireFromString("1"))))
	require.Equal(t, 2, inv.calls)

	last := repo.state.logs[len(repo.state.logs)-1]
	require.Equal(t, shared.ActionCancellation, last.Action)
	require.Equal(t, int64(9), last.ActorID)
}

func TestCancelSaleIdempotencyGuard(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedMaterial(1, "MAT-A", "Material A", "10")
	svc, _ := newTestService(repo)
	ctx := context.Background()

	sale, err := svc.SubmitSale(ctx, validInput(line(1, "2", "10.00")))
	require.NoError(t, err)

	_, err = svc.CancelSale(ctx, sale.ID, 9)
	require.NoError(t, err)
	quantityAfterFirst := repo.quantity(1)
	logsAfterFirst := len(repo.state.logs)

	_, err = svc.CancelSale(ctx, sale.ID, 9)
	require.ErrorIs(t, err, ErrAlreadyCancelled)

	// Second call must be a pure no-op.
	require.True(t, repo.quantity(1).Equal(quantityAfterFirst))
	require.Len(t, repo.state.logs, logsAfterFirst)
	got, err := repo.Get(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, SaleStatusCancelled, got.Status)
}

func TestCancelSaleNotFound(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)

	_, err := svc.CancelSale(context.Background(), 12345, 1)
	require.ErrorIs(t, err, ErrSaleNotFound)
}

func TestCancelIsCompensatingNotRollback(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedMaterial(1, "MAT-A", "Material A", "10")
	svc, _ := newTestService(repo)
	ctx := context.Background()

	first, err := svc.SubmitSale(ctx, validInput(line(1, "3", "10.00")))
	require.NoError(t, err)
	_, err = svc.SubmitSale(ctx, validInput(line(1, "5", "10.00")))
	require.NoError(t, err)
	require.True(t, repo.quantity(1).Equal(decimal.RequireFromString("2")))

	// Cancelling the first sale restores its original 3 units verbatim,
	// regardless of the intervening sale.
	_, err = svc.CancelSale(ctx, first.ID, 1)
	require.NoError(t, err)
	require.True(t, repo.quantity(1).Equal(decimal.RequireFromString("5")))
}

func TestConcurrentSubmitNeverOversells(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedMaterial(1, "MAT-A", "Material A", "5")
	svc, _ := newTestService(repo)

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SubmitSale(context.Background(), validInput(line(1, "1", "10.00")))
		}(i)
	}
	wg.Wait()

	var committed, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, ErrStockInsufficient):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 5, committed)
	require.Equal(t, 5, rejected)
	require.True(t, repo.quantity(1).IsZero())
	require.Len(t, repo.state.sales, 5)
}

// readFailRepo commits normally but fails the post-commit confirmation read.
type readFailRepo struct {
	*memoryRepo
	getErr error
}

func (r *readFailRepo) Get(ctx context.Context, saleID int64) (Sale, error) {
	if r.getErr != nil {
		return Sale{}, r.getErr
	}
	return r.memoryRepo.Get(ctx, saleID)
}

func TestSubmitSaleSurvivesConfirmationReadFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedMaterial(1, "MAT-001", "Leather sole", "10")
	flaky := &readFailRepo{memoryRepo: repo, getErr: errors.New("connection dropped")}
	svc := NewService(flaky, nil, &fakeInvalidator{}, nil, nil, nil)

	input := validInput(line(1, "2", "50.00"))
	input.Discount = decimal.RequireFromString("10")
	sale, err := svc.SubmitSale(context.Background(), input)

	// The commit is durable, so the caller must get the sale, not an error.
	require.NoError(t, err)
	require.NotZero(t, sale.ID)
	require.Equal(t, SaleStatusCompleted, sale.Status)
	require.True(t, sale.Total.Equal(decimal.RequireFromString("90.00")), "total %s", sale.Total)
	require.Len(t, sale.Lines, 1)
	require.Equal(t, 1, sale.Lines[0].LineOrder)
	require.True(t, repo.quantity(1).Equal(decimal.RequireFromString("8")))
	require.Len(t, repo.state.sales, 1)
}

func TestCancelSaleSurvivesConfirmationReadFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedMaterial(1, "MAT-001", "Leather sole", "10")
	svc, _ := newTestService(repo)

	sale, err := svc.SubmitSale(context.Background(), validInput(line(1, "3", "20.00")))
	require.NoError(t, err)

	flaky := &readFailRepo{memoryRepo: repo, getErr: errors.New("connection dropped")}
	flakySvc := NewService(flaky, nil, &fakeInvalidator{}, nil, nil, nil)

	cancelled, err := flakySvc.CancelSale(context.Background(), sale.ID, 9)
	require.NoError(t, err)
	require.Equal(t, sale.ID, cancelled.ID)
	require.Equal(t, SaleStatusCancelled, cancelled.Status)
	require.True(t, cancelled.Total.IsZero())
	require.Len(t, cancelled.Lines, 1)
	require.True(t, repo.quantity(1).Equal(decimal.RequireFromString("10")))
}
