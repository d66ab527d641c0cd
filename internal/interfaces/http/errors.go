package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/application/dto"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
)

// statusByKind traduce cada tipo de error de stock a un código HTTP.
var statusByKind = map[domain.ErrorKind]int{
	domain.KindValidation:              fiber.StatusBadRequest,
	domain.KindMissingIdempotencyKey:   fiber.StatusBadRequest,
	domain.KindReservationNotFound:     fiber.StatusNotFound,
	domain.KindNotEnoughStock:          fiber.StatusConflict,
	domain.KindNoLotsAvailable:         fiber.StatusConflict,
	domain.KindInsufficientShelfLife:   fiber.StatusConflict,
	domain.KindLotBlocked:              fiber.StatusConflict,
	domain.KindReservationInsufficient: fiber.StatusConflict,
	domain.KindIdempotency:             fiber.StatusConflict,
	domain.KindInconsistentLot:         fiber.StatusUnprocessableEntity,
	domain.KindInvalidLot:              fiber.StatusUnprocessableEntity,
	domain.KindInvalidTransition:       fiber.StatusUnprocessableEntity,
}

// StockErrorDetails datos estructurados que acompañan a un error de stock.
type StockErrorDetails struct {
	ProductID string               `json:"product_id,omitempty"`
	LotID     string               `json:"lot_id,omitempty"`
	LotCode   string               `json:"lot_code,omitempty"`
	Requested *decimal.Decimal     `json:"requested,omitempty"`
	Available *decimal.Decimal     `json:"available,omitempty"`
	Shortages []domain.LotShortage `json:"shortages,omitempty"`
}

// errorResponse arma status y cuerpo para err. Los errores no tipados son 500.
func errorResponse(err error) (int, dto.ErrorResponse) {
	var se *domain.StockError
	if errors.As(err, &se) {
		status, ok := statusByKind[se.Kind]
		if !ok {
			status = fiber.StatusInternalServerError
		}
		msg := se.Message
		if msg == "" {
			msg = se.Error()
		}
		body := dto.ErrorResponse{Code: string(se.Kind), Message: msg}
		if d := detailsOf(se); d != nil {
			body.Details = d
		}
		return status, body
	}
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: string(domain.KindValidation), Message: "datos inválidos"}
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso no encontrado"}
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "no autorizado"}
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"}
	}
	return fiber.StatusInternalServerError, dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"}
}

func detailsOf(se *domain.StockError) *StockErrorDetails {
	d := &StockErrorDetails{
		ProductID: se.ProductID,
		LotID:     se.LotID,
		LotCode:   se.LotCode,
		Shortages: se.Shortages,
	}
	if se.Kind == domain.KindNotEnoughStock || !se.Requested.IsZero() {
		req, avail := se.Requested, se.Available
		d.Requested, d.Available = &req, &avail
	}
	if d.ProductID == "" && d.LotID == "" && d.Requested == nil && len(d.Shortages) == 0 {
		return nil
	}
	return d
}

// writeError responde con el error mapeado y lo registra según su gravedad.
func writeError(c *fiber.Ctx, log zerolog.Logger, err error) error {
	status, body := errorResponse(err)
	logRejected(log, c, status, body.Code, err)
	return c.Status(status).JSON(body)
}

func logRejected(log zerolog.Logger, c *fiber.Ctx, status int, code string, err error) {
	ev := log.Warn()
	if status >= fiber.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Str("kind", code).
		Msg("operación rechazada")
}

func badRequest(c *fiber.Ctx, code, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: code, Message: msg})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}
