package inventory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/inventory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

var today = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func lot(id string, qty string, expiresInDays int) *entity.StockLot {
	return &entity.StockLot{
		ID:          id,
		ProductID:   "P",
		WarehouseID: "W1",
		LotCode:     "L-" + id,
		ExpiryDate:  today.AddDate(0, 0, expiresInDays),
		QtyOnHand:   dec(qty),
		UnitCost:    dec("10.00"),
	}
}

func candidates(lots ...*entity.StockLot) []inventory.Candidate {
	out := make([]inventory.Candidate, 0, len(lots))
	for _, l := range lots {
		out = append(out, inventory.Candidate{Lot: l, Available: l.QtyOnHand})
	}
	return out
}

func opts() inventory.AllocateOptions {
	return inventory.AllocateOptions{ProductID: "P", Today: today}
}

func intPtr(n int) *int { return &n }

// ──────────────────────────────────────────────────────────────────────────────
// Orden FEFO y conservación
// ──────────────────────────────────────────────────────────────────────────────

// Escenario: A (5, vence en 10 días) y B (8, vence en 30). Pedir 10 → A:5, B:5.
func TestAllocate_DosLotesEnOrdenDeVencimiento(t *testing.T) {
	a, b := lot("A", "5", 10), lot("B", "8", 30)

	plan, err := inventory.Allocate(candidates(b, a), dec("10"), opts())
	require.NoError(t, err)
	require.Len(t, plan.Lines, 2)

	assert.Equal(t, "A", plan.Lines[0].LotID)
	assert.True(t, plan.Lines[0].Qty.Equal(dec("5")))
	assert.Equal(t, "B", plan.Lines[1].LotID)
	assert.True(t, plan.Lines[1].Qty.Equal(dec("5")))
	assert.True(t, plan.Total().Equal(dec("10")), "la suma del plan debe igualar lo pedido")
}

func TestAllocate_NoTocaLoteTardioSiAlcanzaElTemprano(t *testing.T) {
	a, b, c := lot("A", "4", 3), lot("B", "4", 5), lot("C", "100", 90)

	plan, err := inventory.Allocate(candidates(c, b, a), dec("6"), opts())
	require.NoError(t, err)
	require.Len(t, plan.Lines, 2)
	assert.Equal(t, []string{"A", "B"}, []string{plan.Lines[0].LotID, plan.Lines[1].LotID})
	assert.True(t, plan.Lines[1].Qty.Equal(dec("2")))
}

func TestAllocate_EmpateDeVencimientoOrdenaPorID(t *testing.T) {
	x, y := lot("lot-2", "3", 7), lot("lot-1", "3", 7)

	plan, err := inventory.Allocate(candidates(x, y), dec("4"), opts())
	require.NoError(t, err)
	assert.Equal(t, "lot-1", plan.Lines[0].LotID)
	assert.Equal(t, "lot-2", plan.Lines[1].LotID)
}

func TestAllocate_CantidadesDecimales(t *testing.T) {
	a, b := lot("A", "1.250", 1), lot("B", "2.500", 2)

	plan, err := inventory.Allocate(candidates(a, b), dec("3.125"), opts())
	require.NoError(t, err)
	assert.True(t, plan.Total().Equal(dec("3.125")))
	assert.True(t, plan.Lines[1].Qty.Equal(dec("1.875")))
}

// ──────────────────────────────────────────────────────────────────────────────
// Exclusiones
// ──────────────────────────────────────────────────────────────────────────────

// Escenario: A en cuarentena. Pedir 3 → solo B.
func TestAllocate_LoteEnCuarentenaNuncaSeElige(t *testing.T) {
	a, b := lot("A", "5", 10), lot("B", "8", 30)
	a.IsQuarantined = true

	plan, err := inventory.Allocate(candidates(a, b), dec("3"), opts())
	require.NoError(t, err)
	require.Len(t, plan.Lines, 1)
	assert.Equal(t, "B", plan.Lines[0].LotID)
}

func TestAllocate_LoteConBloqueoDuroNuncaSeElige(t *testing.T) {
	a, b := lot("A", "5", 1), lot("B", "5", 2)
	a.IsReserved = true

	plan, err := inventory.Allocate(candidates(a, b), dec("5"), opts())
	require.NoError(t, err)
	assert.Equal(t, "B", plan.Lines[0].LotID)
}

func TestAllocate_LoteVencidoNuncaSeElige(t *testing.T) {
	expired, fresh := lot("A", "500", -1), lot("B", "2", 5)

	_, err := inventory.Allocate(candidates(expired, fresh), dec("3"), opts())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotEnoughStock))

	var se *domain.StockError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Available.Equal(dec("2")), "el vencido no suma al disponible")
}

func TestAllocate_VenceHoySigueSiendoElegible(t *testing.T) {
	plan, err := inventory.Allocate(candidates(lot("A", "1", 0)), dec("1"), opts())
	require.NoError(t, err)
	assert.Len(t, plan.Lines, 1)
}

func TestAllocate_LotesExcluidos(t *testing.T) {
	a, b := lot("A", "5", 1), lot("B", "5", 2)
	o := opts()
	o.ExcludedLotIDs = []string{"A"}

	plan, err := inventory.Allocate(candidates(a, b), dec("5"), o)
	require.NoError(t, err)
	require.Len(t, plan.Lines, 1)
	assert.Equal(t, "B", plan.Lines[0].LotID)
}

func TestAllocate_DisponibleDescuentaReservas(t *testing.T) {
	a, b := lot("A", "5", 1), lot("B", "5", 2)
	cs := []inventory.Candidate{
		{Lot: a, Available: dec("1")},
		{Lot: b, Available: dec("5")},
	}

	plan, err := inventory.Allocate(cs, dec("3"), opts())
	require.NoError(t, err)
	assert.True(t, plan.Lines[0].Qty.Equal(dec("1")))
	assert.True(t, plan.Lines[1].Qty.Equal(dec("2")))
}

// ──────────────────────────────────────────────────────────────────────────────
// Errores
// ──────────────────────────────────────────────────────────────────────────────

func TestAllocate_CantidadNoPositiva(t *testing.T) {
	for _, q := range []string{"0", "-1"} {
		_, err := inventory.Allocate(candidates(lot("A", "5", 1)), dec(q), opts())
		assert.True(t, errors.Is(err, domain.ErrValidation), "qty=%s", q)
	}
}

func TestAllocate_SinLotesElegibles(t *testing.T) {
	a := lot("A", "5", 1)
	a.IsQuarantined = true

	_, err := inventory.Allocate(candidates(a), dec("1"), opts())
	assert.True(t, errors.Is(err, domain.ErrNoLotsAvailable))
	assert.False(t, errors.Is(err, domain.ErrNotEnoughStock))
}

func TestAllocate_StockInsuficienteNoDevuelvePlanParcial(t *testing.T) {
	plan, err := inventory.Allocate(candidates(lot("A", "5", 1), lot("B", "8", 2)), dec("20"), opts())
	require.Error(t, err)
	assert.Empty(t, plan.Lines)

	var se *domain.StockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, domain.KindNotEnoughStock, se.Kind)
	assert.True(t, se.Requested.Equal(dec("20")))
	assert.True(t, se.Available.Equal(dec("13")))
	assert.Equal(t, "P", se.ProductID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Vida útil mínima
// ──────────────────────────────────────────────────────────────────────────────

func TestAllocate_VidaUtilExcluyeLotesCortos(t *testing.T) {
	short, long := lot("A", "5", 10), lot("B", "8", 30)
	o := opts()
	o.MinShelfLifeDays = intPtr(15)

	plan, err := inventory.Allocate(candidates(short, long), dec("6"), o)
	require.NoError(t, err)
	require.Len(t, plan.Lines, 1)
	assert.Equal(t, "B", plan.Lines[0].LotID)
}

func TestAllocate_VidaUtilInsuficienteEsErrorPropio(t *testing.T) {
	short, long := lot("A", "5", 10), lot("B", "8", 30)
	o := opts()
	o.MinShelfLifeDays = intPtr(15)

	_, err := inventory.Allocate(candidates(short, long), dec("10"), o)
	assert.True(t, errors.Is(err, domain.ErrInsufficientShelfLife))
}

func TestAllocate_VidaUtilConCantidadInsuficienteEsNotEnoughStock(t *testing.T) {
	short, long := lot("A", "5", 10), lot("B", "8", 30)
	o := opts()
	o.MinShelfLifeDays = intPtr(15)

	_, err := inventory.Allocate(candidates(short, long), dec("50"), o)
	assert.True(t, errors.Is(err, domain.ErrNotEnoughStock))
}

func TestAllocate_VidaUtilLimiteExacto(t *testing.T) {
	o := opts()
	o.MinShelfLifeDays = intPtr(10)

	_, err := inventory.Allocate(candidates(lot("A", "5", 10)), dec("5"), o)
	assert.NoError(t, err, "10 días restantes cumplen un mínimo de 10")
}
