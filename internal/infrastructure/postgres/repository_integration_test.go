package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/application/inventory"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/infrastructure/postgres"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/pkg/config"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de integración (requieren DATABASE_URL)
// ──────────────────────────────────────────────────────────────────────────────

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func today() time.Time {
	n := time.Now().UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

// integrationPool abre el pool contra DATABASE_URL y aplica las migraciones.
func integrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if url == "" {
		t.Skip("DATABASE_URL no definido: se omiten las pruebas contra PostgreSQL")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: url, MaxConns: 10, MinConns: 0})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	_, err = postgres.Migrate(ctx, pool)
	require.NoError(t, err)
	return pool
}

type catalog struct {
	productID string
	w1, w2    string
}

// seedCatalog crea un producto y dos bodegas propias del test y los borra al terminar.
func seedCatalog(t *testing.T, pool *pgxpool.Pool) catalog {
	t.Helper()
	ctx := context.Background()
	c := catalog{productID: uuid.NewString(), w1: uuid.NewString(), w2: uuid.NewString()}
	_, err := pool.Exec(ctx, `INSERT INTO products (id, sku, name) VALUES ($1, $2, 'Leche')`, c.productID, "SKU-"+c.productID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO warehouses (id, name) VALUES ($1, 'Central'), ($2, 'Norte')`, c.w1, c.w2)
	require.NoError(t, err)

	t.Cleanup(func() {
		lots := `SELECT id FROM stock_lots WHERE product_id = $1`
		for _, q := range []string{
			`DELETE FROM stock_reservations WHERE lot_id IN (` + lots + `)`,
			`DELETE FROM stock_movements WHERE product_id = $1`,
			`DELETE FROM lot_override_audits WHERE product_id = $1`,
			`DELETE FROM stock_lots WHERE product_id = $1`,
			`DELETE FROM products WHERE id = $1`,
		} {
			_, _ = pool.Exec(ctx, q, c.productID)
		}
		_, _ = pool.Exec(ctx, `DELETE FROM warehouses WHERE id = ANY($1::uuid[])`, []string{c.w1, c.w2})
	})
	return c
}

func (c catalog) lot(warehouseID, code, qty string, days int) *entity.StockLot {
	now := time.Now().UTC()
	return &entity.StockLot{
		ID:          uuid.NewString(),
		ProductID:   c.productID,
		WarehouseID: warehouseID,
		LotCode:     code,
		ExpiryDate:  today().AddDate(0, 0, days),
		QtyOnHand:   dec(qty),
		UnitCost:    dec("10.00"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// order aísla los pedidos del test de los de otras corridas sobre la misma base.
func (c catalog) order(name string) string { return name + "-" + c.productID[:8] }

func lotCodes(list []*entity.StockLot) []string {
	out := make([]string, 0, len(list))
	for _, l := range list {
		out = append(out, l.LotCode)
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Lotes
// ──────────────────────────────────────────────────────────────────────────────

func TestLotRepo_ClaveNaturalYOrdenFEFO(t *testing.T) {
	pool := integrationPool(t)
	c := seedCatalog(t, pool)
	ctx := context.Background()
	repo := postgres.NewLotRepository(pool)

	late := c.lot(c.w1, "L-30", "5", 30)
	early := c.lot(c.w1, "L-10", "5", 10)
	north := c.lot(c.w2, "L-20", "5", 20)
	quarantined := c.lot(c.w1, "L-05", "5", 5)
	quarantined.IsQuarantined = true
	expired := c.lot(c.w1, "L-VENC", "5", -1)
	empty := c.lot(c.w1, "L-CERO", "0", 15)
	for _, l := range []*entity.StockLot{late, early, north, quarantined, expired, empty} {
		require.NoError(t, repo.Create(ctx, l))
	}

	dup := c.lot(c.w1, "L-30", "1", 30)
	assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrDuplicate)
	dup.WarehouseID = c.w2
	require.NoError(t, repo.Create(ctx, dup), "mismo código en otra bodega es otro lote")

	all, err := repo.ListEligible(ctx, c.productID, "", today())
	require.NoError(t, err)
	assert.Equal(t, []string{"L-10", "L-20", "L-30", "L-30"}, lotCodes(all))

	w1, err := repo.ListEligible(ctx, c.productID, c.w1, today())
	require.NoError(t, err)
	assert.Equal(t, []string{"L-10", "L-30"}, lotCodes(w1))

	listed, err := repo.ListByProduct(ctx, c.productID, c.w1)
	require.NoError(t, err)
	assert.Equal(t, []string{"L-VENC", "L-05", "L-10", "L-CERO", "L-30"}, lotCodes(listed))

	got, err := repo.GetByID(ctx, early.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.ExpiryDate.Equal(early.ExpiryDate))
	assert.True(t, got.QtyOnHand.Equal(dec("5")))

	missing, err := repo.GetByID(ctx, "no-es-uuid")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLotRepo_UpdateQtyNegativoSeRechaza(t *testing.T) {
	pool := integrationPool(t)
	c := seedCatalog(t, pool)
	ctx := context.Background()
	repo := postgres.NewLotRepository(pool)

	l := c.lot(c.w1, "L-1", "5", 10)
	require.NoError(t, repo.Create(ctx, l))

	err := repo.UpdateQty(ctx, l.ID, dec("-1"), time.Now())
	assert.True(t, errors.Is(err, domain.ErrNotEnoughStock), "err=%v", err)
	require.NoError(t, repo.UpdateQty(ctx, l.ID, dec("2.500"), time.Now()))

	got, err := repo.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, got.QtyOnHand.Equal(dec("2.5")))
}

// ──────────────────────────────────────────────────────────────────────────────
// Reservas
// ──────────────────────────────────────────────────────────────────────────────

func TestReservationRepo_SumaActivasExcluyendoPedido(t *testing.T) {
	pool := integrationPool(t)
	c := seedCatalog(t, pool)
	ctx := context.Background()
	lots := postgres.NewLotRepository(pool)
	repo := postgres.NewReservationRepository(pool)

	l1 := c.lot(c.w1, "L-1", "10", 10)
	l2 := c.lot(c.w1, "L-2", "10", 20)
	require.NoError(t, lots.Create(ctx, l1))
	require.NoError(t, lots.Create(ctx, l2))

	now := time.Now().UTC()
	for _, r := range []struct {
		order, lot, qty, status string
	}{
		{c.order("O-1"), l1.ID, "3", entity.ReservationPending},
		{c.order("O-2"), l1.ID, "2", entity.ReservationApplied},
		{c.order("O-3"), l2.ID, "4", entity.ReservationCancelled},
		{c.order("O-1"), l2.ID, "1", entity.ReservationPending},
	} {
		require.NoError(t, repo.Create(ctx, &entity.Reservation{
			ID: uuid.NewString(), OrderID: r.order, LotID: r.lot, Qty: dec(r.qty), Status: r.status, CreatedAt: now, UpdatedAt: now,
		}))
	}
	err := repo.Create(ctx, &entity.Reservation{
		ID: uuid.NewString(), OrderID: c.order("O-1"), LotID: l1.ID, Qty: dec("1"), Status: entity.ReservationPending, CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	sums, err := repo.SumActiveByLots(ctx, []string{l1.ID, l2.ID}, "")
	require.NoError(t, err)
	assert.True(t, sums[l1.ID].Equal(dec("5")))
	assert.True(t, sums[l2.ID].Equal(dec("1")))

	sums, err = repo.SumActiveByLots(ctx, []string{l1.ID, l2.ID}, c.order("O-1"))
	require.NoError(t, err)
	assert.True(t, sums[l1.ID].Equal(dec("2")))
	assert.True(t, sums[l2.ID].IsZero())

	active, err := repo.ListActiveByOrder(ctx, c.order("O-1"))
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestReservationUseCase_TodoONadaBajoLock(t *testing.T) {
	pool := integrationPool(t)
	c := seedCatalog(t, pool)
	ctx := context.Background()
	lots := postgres.NewLotRepository(pool)

	l1 := c.lot(c.w1, "L-1", "5", 10)
	l2 := c.lot(c.w1, "L-2", "5", 20)
	require.NoError(t, lots.Create(ctx, l1))
	require.NoError(t, lots.Create(ctx, l2))

	uc := inventory.NewReservationUseCase(postgres.NewTxRunner(pool, 2*time.Second), nil, time.Now)
	_, err := uc.CreateReservations(ctx, c.order("O-1"), []inventory.ReservationLine{{LotID: l1.ID, Qty: dec("4")}})
	require.NoError(t, err)

	_, err = uc.CreateReservations(ctx, c.order("O-2"), []inventory.ReservationLine{
		{LotID: l2.ID, Qty: dec("1")},
		{LotID: l1.ID, Qty: dec("2")},
	})
	assert.True(t, errors.Is(err, domain.ErrReservationInsufficient), "err=%v", err)

	active, err := postgres.NewReservationRepository(pool).ListActiveByOrder(ctx, c.order("O-2"))
	require.NoError(t, err)
	assert.Empty(t, active, "una línea faltante revierte todas")
}

// ──────────────────────────────────────────────────────────────────────────────
// Salidas concurrentes (FOR UPDATE + lock_timeout)
// ──────────────────────────────────────────────────────────────────────────────

func TestStockService_SalidasConcurrentesSinStockNegativo(t *testing.T) {
	pool := integrationPool(t)
	c := seedCatalog(t, pool)
	ctx := context.Background()
	lots := postgres.NewLotRepository(pool)

	a := c.lot(c.w1, "L-A", "4", 10)
	b := c.lot(c.w1, "L-B", "6", 20)
	require.NoError(t, lots.Create(ctx, a))
	require.NoError(t, lots.Create(ctx, b))

	reservations := postgres.NewReservationRepository(pool)
	alloc := inventory.NewAllocator(lots, reservations, time.Now)
	svc := inventory.NewStockService(postgres.NewTxRunner(pool, 2*time.Second), alloc,
		postgres.NewProductRepository(pool), postgres.NewWarehouseRepository(pool),
		inventory.StockServiceConfig{DefaultWarehouseID: c.w1, Logger: zerolog.Nop(), Now: time.Now})

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.RecordExitFEFO(ctx, inventory.ExitInput{
				ProductID: c.productID,
				Qty:       dec("3"),
				Actor:     "cajero",
				OrderID:   c.order(fmt.Sprintf("O-%d", i)),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrNotEnoughStock):
				rejected++
			default:
				t.Errorf("error inesperado: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, workers, ok+rejected)
	assert.LessOrEqual(t, ok*3, 10)

	total := decimal.Zero
	for _, id := range []string{a.ID, b.ID} {
		l, err := lots.GetByID(ctx, id)
		require.NoError(t, err)
		assert.False(t, l.QtyOnHand.IsNegative())
		total = total.Add(l.QtyOnHand)
	}
	assert.True(t, total.Equal(dec("10").Sub(dec("3").Mul(decimal.NewFromInt(int64(ok))))), "total=%s ok=%d", total, ok)

	movs, err := postgres.NewMovementRepository(pool).ListByProduct(ctx, c.productID, nil, nil, 0, 0)
	require.NoError(t, err)
	exited := decimal.Zero
	for _, m := range movs {
		assert.Equal(t, entity.MovementTypeExit, m.Type)
		exited = exited.Add(m.Qty)
	}
	assert.True(t, exited.Add(total).Equal(dec("10")), "lo que salió más lo que queda es lo que había")

	byOrder, err := postgres.NewMovementRepository(pool).ListByOrder(ctx, c.order("O-0"))
	require.NoError(t, err)
	for _, m := range byOrder {
		assert.Equal(t, c.order("O-0"), m.OrderID)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Idempotencia
// ──────────────────────────────────────────────────────────────────────────────

func TestIdempotencyRepo_ReservaDuplicadaYLiberacion(t *testing.T) {
	pool := integrationPool(t)
	ctx := context.Background()
	repo := postgres.NewIdempotencyRepository(pool)

	key := "it-" + uuid.NewString()
	t.Cleanup(func() { _ = repo.Delete(ctx, key) })

	claimedAt := time.Now().UTC().Truncate(time.Millisecond)
	claim := &entity.IdempotencyKey{
		Key: key, Operation: "record_exit_fefo", RequestHash: "h1", CreatedBy: "u1",
		CreatedAt: claimedAt, ExpiresAt: claimedAt.Add(time.Hour),
	}
	require.NoError(t, repo.Insert(ctx, claim))
	assert.ErrorIs(t, repo.Insert(ctx, claim), domain.ErrDuplicate)

	released, err := repo.ReleaseStale(ctx, key, claimedAt.Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, released, "una reserva reciente no se libera")

	released, err = repo.ReleaseStale(ctx, key, claimedAt)
	require.NoError(t, err)
	assert.True(t, released)

	require.NoError(t, repo.Insert(ctx, claim))
	require.NoError(t, repo.Complete(ctx, key, 201, []byte(`{"ok":true}`)))
	released, err = repo.ReleaseStale(ctx, key, claimedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, released, "una clave completada no se libera")

	got, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 201, got.StatusCode)
	assert.Equal(t, []byte(`{"ok":true}`), got.ResponseBody)

	n, err := repo.PurgeExpired(ctx, claimedAt.Add(2*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
	got, err = repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}
