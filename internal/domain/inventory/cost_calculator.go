package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
)

// CostCalculator implementa el costo promedio ponderado incremental.
// NuevoCosto = ((StockActual * CostoActual) + (CantEntrada * CostoEntrada)) / (StockActual + CantEntrada)
func CostCalculator(stockActual, costoActual, cantEntrada, costoEntrada decimal.Decimal) decimal.Decimal {
	sum := stockActual.Add(cantEntrada)
	if sum.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	num := stockActual.Mul(costoActual).Add(cantEntrada.Mul(costoEntrada))
	return num.Div(sum)
}

// Valuation es la valorización de un conjunto de lotes.
type Valuation struct {
	QtyOnHand   decimal.Decimal `json:"qty_on_hand"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// ValueLots acumula lote a lote con CostCalculator; el promedio se redondea a 2 decimales.
func ValueLots(lots []*entity.StockLot) Valuation {
	qty, avg := decimal.Zero, decimal.Zero
	for _, l := range lots {
		if !l.QtyOnHand.GreaterThan(decimal.Zero) {
			continue
		}
		avg = CostCalculator(qty, avg, l.QtyOnHand, l.UnitCost)
		qty = qty.Add(l.QtyOnHand)
	}
	return Valuation{
		QtyOnHand:   qty,
		TotalCost:   qty.Mul(avg).Round(MoneyScale),
		AverageCost: avg.Round(MoneyScale),
	}
}
