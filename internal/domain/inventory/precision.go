package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
)

// Precisión de punto fijo: cantidades con 3 decimales, dinero con 2.
const (
	QtyScale   = 3
	MoneyScale = 2
)

// ValidateQty exige q > 0 y como máximo 3 decimales.
func ValidateQty(q decimal.Decimal, field string) error {
	if !q.GreaterThan(decimal.Zero) {
		return domain.Validation("%s debe ser mayor a cero", field)
	}
	if !q.Equal(q.Truncate(QtyScale)) {
		return domain.Validation("%s admite hasta %d decimales", field, QtyScale)
	}
	return nil
}

// ValidateMoney exige m > 0 y como máximo 2 decimales.
func ValidateMoney(m decimal.Decimal, field string) error {
	if !m.GreaterThan(decimal.Zero) {
		return domain.Validation("%s debe ser mayor a cero", field)
	}
	if !m.Equal(m.Truncate(MoneyScale)) {
		return domain.Validation("%s admite hasta %d decimales", field, MoneyScale)
	}
	return nil
}
