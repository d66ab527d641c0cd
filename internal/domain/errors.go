package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Errores de infraestructura y frontera (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
)

// ErrorKind clasifica los errores de negocio del motor de stock.
type ErrorKind string

const (
	KindValidation              ErrorKind = "VALIDATION_ERROR"
	KindInconsistentLot         ErrorKind = "INCONSISTENT_LOT"
	KindNotEnoughStock          ErrorKind = "NOT_ENOUGH_STOCK"
	KindNoLotsAvailable         ErrorKind = "NO_LOTS_AVAILABLE"
	KindInsufficientShelfLife   ErrorKind = "INSUFFICIENT_SHELF_LIFE"
	KindLotBlocked              ErrorKind = "LOT_BLOCKED"
	KindInvalidLot              ErrorKind = "INVALID_LOT"
	KindMissingIdempotencyKey   ErrorKind = "MISSING_IDEMPOTENCY_KEY"
	KindIdempotency             ErrorKind = "IDEMPOTENCY_ERROR"
	KindReservationInsufficient ErrorKind = "RESERVATION_INSUFFICIENT"
	KindReservationNotFound     ErrorKind = "RESERVATION_NOT_FOUND"
	KindInvalidTransition       ErrorKind = "INVALID_TRANSITION"
)

// LotShortage describe un lote que no alcanza a cubrir lo pedido.
type LotShortage struct {
	LotID     string          `json:"lot_id"`
	LotCode   string          `json:"lot_code"`
	Requested decimal.Decimal `json:"requested"`
	Available decimal.Decimal `json:"available"`
}

// StockError es el error tipado del núcleo de stock. Lleva los datos necesarios
// para que el llamador arme un mensaje preciso (producto, cantidades, lote).
type StockError struct {
	Kind      ErrorKind
	Message   string
	ProductID string
	LotID     string
	LotCode   string
	Requested decimal.Decimal
	Available decimal.Decimal
	Shortages []LotShortage
}

func (e *StockError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.ProductID != "" {
		fmt.Fprintf(&b, " (producto=%s", e.ProductID)
		if e.LotCode != "" {
			fmt.Fprintf(&b, ", lote=%s", e.LotCode)
		}
		if !e.Requested.IsZero() || !e.Available.IsZero() {
			fmt.Fprintf(&b, ", solicitado=%s, disponible=%s", e.Requested.String(), e.Available.String())
		}
		b.WriteString(")")
	}
	return b.String()
}

// Is compara por Kind, así errors.Is(err, domain.ErrNotEnoughStock) funciona con cualquier instancia.
func (e *StockError) Is(target error) bool {
	t, ok := target.(*StockError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinelas por tipo, para usar con errors.Is.
var (
	ErrValidation              = &StockError{Kind: KindValidation}
	ErrInconsistentLot         = &StockError{Kind: KindInconsistentLot}
	ErrNotEnoughStock          = &StockError{Kind: KindNotEnoughStock}
	ErrNoLotsAvailable         = &StockError{Kind: KindNoLotsAvailable}
	ErrInsufficientShelfLife   = &StockError{Kind: KindInsufficientShelfLife}
	ErrLotBlocked              = &StockError{Kind: KindLotBlocked}
	ErrInvalidLot              = &StockError{Kind: KindInvalidLot}
	ErrMissingIdempotencyKey   = &StockError{Kind: KindMissingIdempotencyKey}
	ErrIdempotency             = &StockError{Kind: KindIdempotency}
	ErrReservationInsufficient = &StockError{Kind: KindReservationInsufficient}
	ErrReservationNotFound     = &StockError{Kind: KindReservationNotFound}
	ErrInvalidTransition       = &StockError{Kind: KindInvalidTransition}
)

// KindOf devuelve el ErrorKind de err, o "" si no es un StockError.
func KindOf(err error) ErrorKind {
	var se *StockError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// Validation construye un VALIDATION_ERROR con mensaje.
func Validation(format string, args ...any) *StockError {
	return &StockError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotEnoughStock construye un NOT_ENOUGH_STOCK con cantidades.
func NotEnoughStock(productID string, requested, available decimal.Decimal) *StockError {
	return &StockError{
		Kind:      KindNotEnoughStock,
		Message:   "stock insuficiente",
		ProductID: productID,
		Requested: requested,
		Available: available,
	}
}
