package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/application/dto"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/application/idempotency"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/application/inventory"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
)

// ReservationHandler maneja el ciclo de vida de las reservas blandas (protegido).
type ReservationHandler struct {
	mutator
	uc *inventory.ReservationUseCase
}

// NewReservationHandler construye el handler.
func NewReservationHandler(uc *inventory.ReservationUseCase, guard *idempotency.Guard, log zerolog.Logger) *ReservationHandler {
	return &ReservationHandler{mutator: mutator{guard: guard, log: log}, uc: uc}
}

// Create godoc
// @Summary      Reservar lotes para un pedido
// @Description  Todo o nada: si algún lote no alcanza no se crea ninguna reserva y el error
//
//	lista cada lote faltante.
//
// @Tags         reservations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string                         true  "clave del cliente"
// @Param        body             body    dto.CreateReservationsRequest  true  "pedido y líneas por lote"
// @Success      201  {array}   dto.ReservationDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/stock/reservations [post]
func (h *ReservationHandler) Create(c *fiber.Ctx) error {
	if GetUserID(c) == "" {
		return unauthorized(c)
	}
	var in dto.CreateReservationsRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	lines := make([]inventory.ReservationLine, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, inventory.ReservationLine{LotID: l.LotID, Qty: l.Qty})
	}
	return h.run(c, inventory.OpReserve, in, func(ctx context.Context) (int, any) {
		list, err := h.uc.CreateReservations(ctx, in.OrderID, lines)
		if err != nil {
			return h.result(c, 0, nil, err)
		}
		out := make([]dto.ReservationDTO, 0, len(list))
		for _, r := range list {
			out = append(out, dto.ReservationFromEntity(r))
		}
		return fiber.StatusCreated, out
	})
}

// Apply godoc
// @Summary      Marcar reserva como aplicada
// @Tags         reservations
// @Security     Bearer
// @Produce      json
// @Param        Idempotency-Key  header  string  true  "clave del cliente"
// @Param        id               path    string  true  "reserva"
// @Success      200  {object}  dto.ReservationDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/stock/reservations/{id}/apply [post]
func (h *ReservationHandler) Apply(c *fiber.Ctx) error {
	return h.transition(c, inventory.OpApplyReserve, h.uc.Apply)
}

// Cancel godoc
// @Summary      Cancelar reserva
// @Tags         reservations
// @Security     Bearer
// @Produce      json
// @Param        Idempotency-Key  header  string  true  "clave del cliente"
// @Param        id               path    string  true  "reserva"
// @Success      200  {object}  dto.ReservationDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/reservations/{id}/cancel [post]
func (h *ReservationHandler) Cancel(c *fiber.Ctx) error {
	return h.transition(c, inventory.OpCancelReserve, h.uc.Cancel)
}

func (h *ReservationHandler) transition(
	c *fiber.Ctx,
	operation string,
	fn func(ctx context.Context, id string) (*entity.Reservation, error),
) error {
	if GetUserID(c) == "" {
		return unauthorized(c)
	}
	id := c.Params("id")
	return h.run(c, operation, fiber.Map{"reservation_id": id}, func(ctx context.Context) (int, any) {
		r, err := fn(ctx, id)
		if err != nil {
			return h.result(c, 0, nil, err)
		}
		return fiber.StatusOK, dto.ReservationFromEntity(r)
	})
}

// CancelOrder godoc
// @Summary      Cancelar las reservas activas de un pedido
// @Tags         reservations
// @Security     Bearer
// @Produce      json
// @Param        Idempotency-Key  header  string  true  "clave del cliente"
// @Param        id               path    string  true  "pedido"
// @Success      200  {object}  dto.CancelOrderResponse
// @Router       /api/stock/orders/{id}/cancel-reservations [post]
func (h *ReservationHandler) CancelOrder(c *fiber.Ctx) error {
	if GetUserID(c) == "" {
		return unauthorized(c)
	}
	orderID := c.Params("id")
	return h.run(c, inventory.OpCancelOrder, fiber.Map{"order_id": orderID}, func(ctx context.Context) (int, any) {
		n, err := h.uc.CancelOrder(ctx, orderID)
		if err != nil {
			return h.result(c, 0, nil, err)
		}
		return fiber.StatusOK, dto.CancelOrderResponse{OrderID: orderID, Cancelled: n}
	})
}

// QtyAvailable godoc
// @Summary      Disponible de un lote
// @Tags         reservations
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "lote"
// @Success      200  {object}  dto.QtyAvailableResponse
// @Router       /api/stock/lots/{id}/available [get]
func (h *ReservationHandler) QtyAvailable(c *fiber.Ctx) error {
	lotID := c.Params("id")
	qty, err := h.uc.QtyAvailable(c.UserContext(), lotID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.QtyAvailableResponse{LotID: lotID, QtyAvailable: qty})
}
