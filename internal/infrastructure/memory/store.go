// Package memory implementa los puertos de persistencia en memoria. Se usa en tests y
// con APP_STORAGE=memory para levantar la API sin base de datos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/application/inventory"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/repository"
)

var (
	_ inventory.TxRunner                 = (*Store)(nil)
	_ repository.LotRepository           = (*LotRepo)(nil)
	_ repository.MovementRepository      = (*MovementRepo)(nil)
	_ repository.ReservationRepository   = (*ReservationRepo)(nil)
	_ repository.OverrideAuditRepository = (*OverrideRepo)(nil)
	_ repository.IdempotencyRepository   = (*IdempotencyRepo)(nil)
	_ repository.WarehouseRepository     = (*WarehouseRepo)(nil)
	_ repository.ProductRepository       = (*ProductRepo)(nil)
)

// Store guarda todo el estado en mapas protegidos por mutex.
// Las transacciones se serializan con txMu, lo que equivale a bloquear todos los lotes:
// más grueso que SELECT FOR UPDATE pero con las mismas garantías.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	products     map[string]*entity.Product
	warehouses   map[string]*entity.Warehouse
	lots         map[string]*entity.StockLot
	movements    []*entity.Movement
	reservations map[string]*entity.Reservation
	overrides    []*entity.LotOverrideAudit

	// Las claves de idempotencia viven fuera de las transacciones de stock.
	idemMu sync.Mutex
	idem   map[string]*entity.IdempotencyKey
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{
		products:     make(map[string]*entity.Product),
		warehouses:   make(map[string]*entity.Warehouse),
		lots:         make(map[string]*entity.StockLot),
		reservations: make(map[string]*entity.Reservation),
		idem:         make(map[string]*entity.IdempotencyKey),
	}
}

// PutProduct inserta o reemplaza un producto.
func (s *Store) PutProduct(p *entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.products[p.ID] = &c
}

// PutWarehouse inserta o reemplaza una bodega.
func (s *Store) PutWarehouse(w *entity.Warehouse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *w
	s.warehouses[w.ID] = &c
}

// PutLot inserta o reemplaza un lote tal cual (incluye flags de cuarentena y bloqueo).
func (s *Store) PutLot(l *entity.StockLot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *l
	s.lots[l.ID] = &c
}

// Run ejecuta fn como una unidad: si fn falla se restaura el estado previo de lotes,
// movimientos, reservas y overrides.
func (s *Store) Run(ctx context.Context, fn func(repos inventory.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(s.repos()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) repos() inventory.TxRepos {
	return inventory.TxRepos{
		Lots:         s.Lots(),
		Movements:    s.Movements(),
		Reservations: s.Reservations(),
		Overrides:    s.Overrides(),
	}
}

type snapshot struct {
	lots         map[string]*entity.StockLot
	movements    int
	reservations map[string]*entity.Reservation
	overrides    int
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		lots:         make(map[string]*entity.StockLot, len(s.lots)),
		movements:    len(s.movements),
		reservations: make(map[string]*entity.Reservation, len(s.reservations)),
		overrides:    len(s.overrides),
	}
	for id, l := range s.lots {
		c := *l
		snap.lots[id] = &c
	}
	for id, r := range s.reservations {
		c := *r
		snap.reservations[id] = &c
	}
	return snap
}

// restore vuelve al snapshot. Movimientos y overrides son solo inserción: basta truncar.
func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lots = snap.lots
	s.movements = s.movements[:snap.movements]
	s.reservations = snap.reservations
	s.overrides = s.overrides[:snap.overrides]
}

// Accesores de repositorios.
func (s *Store) Lots() *LotRepo                 { return &LotRepo{s: s} }
func (s *Store) Movements() *MovementRepo       { return &MovementRepo{s: s} }
func (s *Store) Reservations() *ReservationRepo { return &ReservationRepo{s: s} }
func (s *Store) Overrides() *OverrideRepo       { return &OverrideRepo{s: s} }
func (s *Store) Idempotency() *IdempotencyRepo  { return &IdempotencyRepo{s: s} }
func (s *Store) Warehouses() *WarehouseRepo     { return &WarehouseRepo{s: s} }
func (s *Store) Products() *ProductRepo         { return &ProductRepo{s: s} }

// ──────────────────────────────────────────────────────────────────────────────
// Lotes
// ──────────────────────────────────────────────────────────────────────────────

// LotRepo implementa repository.LotRepository.
type LotRepo struct{ s *Store }

func (r *LotRepo) GetByID(_ context.Context, id string) (*entity.StockLot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.lots[id]
	if !ok {
		return nil, nil
	}
	c := *l
	return &c, nil
}

// GetForUpdate equivale a GetByID: el lock lo da Store.Run.
func (r *LotRepo) GetForUpdate(ctx context.Context, id string) (*entity.StockLot, error) {
	return r.GetByID(ctx, id)
}

func (r *LotRepo) FindByCodeForUpdate(_ context.Context, productID, lotCode, warehouseID string) (*entity.StockLot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, l := range r.s.lots {
		if l.ProductID == productID && l.LotCode == lotCode && l.WarehouseID == warehouseID {
			c := *l
			return &c, nil
		}
	}
	return nil, nil
}

func (r *LotRepo) Create(_ context.Context, lot *entity.StockLot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.lots[lot.ID]; ok {
		return domain.ErrDuplicate
	}
	for _, l := range r.s.lots {
		if l.ProductID == lot.ProductID && l.LotCode == lot.LotCode && l.WarehouseID == lot.WarehouseID {
			return domain.ErrDuplicate
		}
	}
	c := *lot
	r.s.lots[lot.ID] = &c
	return nil
}

func (r *LotRepo) UpdateQty(_ context.Context, id string, qty decimal.Decimal, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lots[id]
	if !ok {
		return domain.ErrNotFound
	}
	if qty.IsNegative() {
		return domain.NotEnoughStock(l.ProductID, l.QtyOnHand.Sub(qty), l.QtyOnHand)
	}
	l.QtyOnHand = qty
	l.UpdatedAt = now
	return nil
}

func (r *LotRepo) UpdateCost(_ context.Context, id string, unitCost decimal.Decimal, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lots[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.UnitCost = unitCost
	l.UpdatedAt = now
	return nil
}

func (r *LotRepo) ListEligible(_ context.Context, productID, warehouseID string, today time.Time) ([]*entity.StockLot, error) {
	return r.list(productID, warehouseID, func(l *entity.StockLot) bool {
		return !l.IsBlocked() && !l.IsExpired(today) && l.QtyOnHand.GreaterThan(decimal.Zero)
	}), nil
}

func (r *LotRepo) ListByProduct(_ context.Context, productID, warehouseID string) ([]*entity.StockLot, error) {
	return r.list(productID, warehouseID, nil), nil
}

func (r *LotRepo) list(productID, warehouseID string, keep func(*entity.StockLot) bool) []*entity.StockLot {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.StockLot, 0)
	for _, l := range r.s.lots {
		if l.ProductID != productID || (warehouseID != "" && l.WarehouseID != warehouseID) {
			continue
		}
		if keep != nil && !keep(l) {
			continue
		}
		c := *l
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiryDate.Equal(out[j].ExpiryDate) {
			return out[i].ExpiryDate.Before(out[j].ExpiryDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Movimientos
// ──────────────────────────────────────────────────────────────────────────────

// MovementRepo implementa repository.MovementRepository.
type MovementRepo struct{ s *Store }

func (r *MovementRepo) Create(_ context.Context, m *entity.Movement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *m
	r.s.movements = append(r.s.movements, &c)
	return nil
}

// ListByProduct devuelve los más recientes primero.
func (r *MovementRepo) ListByProduct(_ context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.Movement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.Movement, 0)
	for i := len(r.s.movements) - 1; i >= 0; i-- {
		m := r.s.movements[i]
		if m.ProductID != productID {
			continue
		}
		if from != nil && m.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && m.CreatedAt.After(*to) {
			continue
		}
		c := *m
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r *MovementRepo) ListByOrder(_ context.Context, orderID string) ([]*entity.Movement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.Movement, 0)
	for _, m := range r.s.movements {
		if m.OrderID == orderID {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ──────────────────────────────────────────────────────────────────────────────
// Reservas
// ──────────────────────────────────────────────────────────────────────────────

// ReservationRepo implementa repository.ReservationRepository.
type ReservationRepo struct{ s *Store }

func (r *ReservationRepo) Create(_ context.Context, res *entity.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.reservations[res.ID]; ok {
		return domain.ErrDuplicate
	}
	c := *res
	r.s.reservations[res.ID] = &c
	return nil
}

func (r *ReservationRepo) GetByID(_ context.Context, id string) (*entity.Reservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, nil
	}
	c := *res
	return &c, nil
}

func (r *ReservationRepo) GetForUpdate(ctx context.Context, id string) (*entity.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r *ReservationRepo) UpdateStatus(_ context.Context, id, status string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return domain.ErrNotFound
	}
	res.Status = status
	res.UpdatedAt = now
	return nil
}

func (r *ReservationRepo) DeleteByOrderAndLot(_ context.Context, orderID, lotID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, res := range r.s.reservations {
		if res.OrderID == orderID && res.LotID == lotID {
			delete(r.s.reservations, id)
		}
	}
	return nil
}

func (r *ReservationRepo) ListActiveByOrder(_ context.Context, orderID string) ([]*entity.Reservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.Reservation, 0)
	for _, res := range r.s.reservations {
		if res.OrderID == orderID && res.IsActive() {
			c := *res
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ReservationRepo) SumActiveByLots(_ context.Context, lotIDs []string, excludeOrderID string) (map[string]decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	wanted := make(map[string]struct{}, len(lotIDs))
	for _, id := range lotIDs {
		wanted[id] = struct{}{}
	}
	out := make(map[string]decimal.Decimal)
	for _, res := range r.s.reservations {
		if _, ok := wanted[res.LotID]; !ok || !res.IsActive() {
			continue
		}
		if excludeOrderID != "" && res.OrderID == excludeOrderID {
			continue
		}
		out[res.LotID] = out[res.LotID].Add(res.Qty)
	}
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Overrides
// ──────────────────────────────────────────────────────────────────────────────

// OverrideRepo implementa repository.OverrideAuditRepository.
type OverrideRepo struct{ s *Store }

func (r *OverrideRepo) Create(_ context.Context, a *entity.LotOverrideAudit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *a
	r.s.overrides = append(r.s.overrides, &c)
	return nil
}

// ListByProduct devuelve los más recientes primero.
func (r *OverrideRepo) ListByProduct(_ context.Context, productID string, limit, offset int) ([]*entity.LotOverrideAudit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.LotOverrideAudit, 0)
	for i := len(r.s.overrides) - 1; i >= 0; i-- {
		if a := r.s.overrides[i]; a.ProductID == productID {
			c := *a
			out = append(out, &c)
		}
	}
	return page(out, limit, offset), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Idempotencia
// ──────────────────────────────────────────────────────────────────────────────

// IdempotencyRepo implementa repository.IdempotencyRepository.
type IdempotencyRepo struct{ s *Store }

func (r *IdempotencyRepo) Get(_ context.Context, key string) (*entity.IdempotencyKey, error) {
	r.s.idemMu.Lock()
	defer r.s.idemMu.Unlock()
	k, ok := r.s.idem[key]
	if !ok {
		return nil, nil
	}
	c := *k
	c.ResponseBody = append([]byte(nil), k.ResponseBody...)
	return &c, nil
}

func (r *IdempotencyRepo) Insert(_ context.Context, k *entity.IdempotencyKey) error {
	r.s.idemMu.Lock()
	defer r.s.idemMu.Unlock()
	if _, ok := r.s.idem[k.Key]; ok {
		return domain.ErrDuplicate
	}
	c := *k
	r.s.idem[k.Key] = &c
	return nil
}

func (r *IdempotencyRepo) Complete(_ context.Context, key string, statusCode int, body []byte) error {
	r.s.idemMu.Lock()
	defer r.s.idemMu.Unlock()
	k, ok := r.s.idem[key]
	if !ok {
		return domain.ErrNotFound
	}
	k.StatusCode = statusCode
	k.ResponseBody = append([]byte(nil), body...)
	return nil
}

func (r *IdempotencyRepo) Delete(_ context.Context, key string) error {
	r.s.idemMu.Lock()
	defer r.s.idemMu.Unlock()
	delete(r.s.idem, key)
	return nil
}

func (r *IdempotencyRepo) ReleaseStale(_ context.Context, key string, claimedBefore time.Time) (bool, error) {
	r.s.idemMu.Lock()
	defer r.s.idemMu.Unlock()
	k, ok := r.s.idem[key]
	if !ok || k.IsCompleted() || k.CreatedAt.After(claimedBefore) {
		return false, nil
	}
	delete(r.s.idem, key)
	return true, nil
}

func (r *IdempotencyRepo) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.idemMu.Lock()
	defer r.s.idemMu.Unlock()
	var n int64
	for key, k := range r.s.idem {
		if k.IsExpired(now) {
			delete(r.s.idem, key)
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Catálogo
// ──────────────────────────────────────────────────────────────────────────────

// WarehouseRepo implementa repository.WarehouseRepository.
type WarehouseRepo struct{ s *Store }

func (r *WarehouseRepo) GetByID(_ context.Context, id string) (*entity.Warehouse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.warehouses[id]
	if !ok {
		return nil, nil
	}
	c := *w
	return &c, nil
}

// ProductRepo implementa repository.ProductRepository.
type ProductRepo struct{ s *Store }

func (r *ProductRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}
