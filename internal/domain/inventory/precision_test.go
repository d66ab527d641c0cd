package inventory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/inventory"
)

func TestValidateQty(t *testing.T) {
	assert.NoError(t, inventory.ValidateQty(dec("1.125"), "qty"))
	assert.True(t, errors.Is(inventory.ValidateQty(dec("1.1255"), "qty"), domain.ErrValidation))
	assert.True(t, errors.Is(inventory.ValidateQty(dec("0"), "qty"), domain.ErrValidation))
}

func TestValidateMoney(t *testing.T) {
	assert.NoError(t, inventory.ValidateMoney(dec("12.50"), "unit_cost"))
	assert.True(t, errors.Is(inventory.ValidateMoney(dec("12.505"), "unit_cost"), domain.ErrValidation))
	assert.True(t, errors.Is(inventory.ValidateMoney(dec("-3"), "unit_cost"), domain.ErrValidation))
}

func TestDaysUntil(t *testing.T) {
	assert.Equal(t, 10, inventory.DaysUntil(today.AddDate(0, 0, 10), today.Add(23*time.Hour)))
	assert.Equal(t, -1, inventory.DaysUntil(today.AddDate(0, 0, -1), today))
}

func TestValueLots_PromedioPonderado(t *testing.T) {
	a := lot("A", "10", 5)
	a.UnitCost = dec("10.00")
	b := lot("B", "30", 9)
	b.UnitCost = dec("20.00")
	empty := lot("C", "0", 9)

	v := inventory.ValueLots([]*entity.StockLot{a, b, empty})
	assert.True(t, v.QtyOnHand.Equal(dec("40")))
	assert.True(t, v.AverageCost.Equal(dec("17.5")), "got %s", v.AverageCost)
	assert.True(t, v.TotalCost.Equal(dec("700")), "got %s", v.TotalCost)
}

func TestCostCalculator_SinStockDevuelveCero(t *testing.T) {
	assert.True(t, inventory.CostCalculator(dec("0"), dec("0"), dec("0"), dec("5")).IsZero())
}
