package inventory

import (
	"time"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
)

// DateOf trunca t a la fecha de calendario (en la zona de t) y la expresa a medianoche UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil devuelve los días de calendario entre today y expiry (negativo si ya venció).
func DaysUntil(expiry, today time.Time) int {
	return int(DateOf(expiry).Sub(DateOf(today)).Hours() / 24)
}

// HasShelfLife indica si al lote le quedan al menos minDays días de vida útil.
func HasShelfLife(lot *entity.StockLot, today time.Time, minDays int) bool {
	return DaysUntil(lot.ExpiryDate, today) >= minDays
}
