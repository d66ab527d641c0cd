package http

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/application/dto"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/application/idempotency"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/application/inventory"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
)

// StockHandler maneja entradas, salidas FEFO/override y consultas de lotes (protegido).
type StockHandler struct {
	mutator
	stock         *inventory.StockService
	allocator     *inventory.Allocator
	query         *inventory.QueryUseCase
	overrideRoles []string
}

// NewStockHandler construye el handler. overrideRoles son los roles que pueden elegir lote.
func NewStockHandler(
	stock *inventory.StockService,
	allocator *inventory.Allocator,
	query *inventory.QueryUseCase,
	guard *idempotency.Guard,
	overrideRoles []string,
	log zerolog.Logger,
) *StockHandler {
	return &StockHandler{
		mutator:       mutator{guard: guard, log: log},
		stock:         stock,
		allocator:     allocator,
		query:         query,
		overrideRoles: overrideRoles,
	}
}

// RecordEntry godoc
// @Summary      Registrar entrada de stock
// @Description  Crea el lote o acumula sobre uno existente con el mismo vencimiento.
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string            true  "clave del cliente"
// @Param        body             body    dto.EntryRequest  true  "producto, lote, vencimiento, cantidad y costo"
// @Success      201  {object}  dto.MovementDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/stock/entries [post]
func (h *StockHandler) RecordEntry(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.EntryRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	expiry, err := time.Parse(dto.DateLayout, strings.TrimSpace(in.ExpiryDate))
	if err != nil {
		return writeError(c, h.log, domain.Validation("expiry_date debe tener formato YYYY-MM-DD"))
	}

	return h.run(c, inventory.OpRecordEntry, in, func(ctx context.Context) (int, any) {
		mov, err := h.stock.RecordEntry(ctx, inventory.EntryInput{
			ProductID:   in.ProductID,
			LotCode:     in.LotCode,
			ExpiryDate:  expiry,
			Qty:         in.Qty,
			UnitCost:    in.UnitCost,
			WarehouseID: in.WarehouseID,
			Actor:       userID,
			Reason:      in.Reason,
			OrderID:     in.OrderID,
		})
		if err != nil {
			return h.result(c, 0, nil, err)
		}
		return fiber.StatusCreated, dto.MovementFromEntity(mov)
	})
}

// RecordExit godoc
// @Summary      Registrar salida de stock
// @Description  Sin lot_id consume lotes en orden FEFO. Con lot_id es un override: requiere
//
//	lot_override_reason y un rol autorizado; el resto se completa con FEFO.
//
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string           true  "clave del cliente"
// @Param        body             body    dto.ExitRequest  true  "producto, cantidad, pedido, bodega, vida útil mínima"
// @Success      201  {object}  dto.MovementsResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/stock/exits [post]
func (h *StockHandler) RecordExit(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.ExitRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}

	if !in.IsOverride() {
		return h.run(c, inventory.OpRecordExit, in, func(ctx context.Context) (int, any) {
			movs, err := h.stock.RecordExitFEFO(ctx, inventory.ExitInput{
				ProductID:        in.ProductID,
				Qty:              in.Qty,
				Actor:            userID,
				OrderID:          in.OrderID,
				WarehouseID:      in.WarehouseID,
				MinShelfLifeDays: in.MinShelfLifeDays,
				Reason:           in.Reason,
			})
			if err != nil {
				return h.result(c, 0, nil, err)
			}
			return fiber.StatusCreated, dto.MovementsFromEntities(movs)
		})
	}

	if !hasRole(GetRole(c), h.overrideRoles) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "rol sin permiso para elegir lote"})
	}
	return h.run(c, inventory.OpOverrideExit, in, func(ctx context.Context) (int, any) {
		movs, err := h.stock.RecordExitWithOverride(ctx, inventory.OverrideExitInput{
			ProductID:        in.ProductID,
			Qty:              in.Qty,
			LotID:            in.LotID,
			OverrideReason:   in.LotOverrideReason,
			Actor:            userID,
			OrderID:          in.OrderID,
			WarehouseID:      in.WarehouseID,
			MinShelfLifeDays: in.MinShelfLifeDays,
			Reason:           in.Reason,
		})
		if err != nil {
			return h.result(c, 0, nil, err)
		}
		return fiber.StatusCreated, dto.MovementsFromEntities(movs)
	})
}

// PickingSuggestions godoc
// @Summary      Sugerencia de picking FEFO
// @Description  Calcula el plan FEFO sin mover stock.
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        id                   path   string  true   "producto"
// @Param        qty                  query  string  true   "cantidad"
// @Param        warehouse_id         query  string  false  "bodega"
// @Param        order_id             query  string  false  "pedido (sus reservas no descuentan)"
// @Param        min_shelf_life_days  query  int     false  "vida útil mínima"
// @Success      200  {object}  inventory.Plan
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/stock/products/{id}/picking-suggestions [get]
func (h *StockHandler) PickingSuggestions(c *fiber.Ctx) error {
	qty, err := decimal.NewFromString(c.Query("qty"))
	if err != nil {
		return writeError(c, h.log, domain.Validation("qty inválida"))
	}
	minDays, err := optionalInt(c, "min_shelf_life_days")
	if err != nil {
		return writeError(c, h.log, err)
	}
	plan, err := h.allocator.Plan(c.UserContext(), inventory.PlanRequest{
		ProductID:        c.Params("id"),
		Qty:              qty,
		WarehouseID:      c.Query("warehouse_id"),
		OrderID:          c.Query("order_id"),
		MinShelfLifeDays: minDays,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(plan)
}

// LotSummary godoc
// @Summary      Lotes de un producto
// @Description  Lotes en orden FEFO con reservado, disponible, elegibilidad y valorización.
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        id            path   string  true   "producto"
// @Param        warehouse_id  query  string  false  "bodega"
// @Success      200  {object}  dto.LotSummaryResponse
// @Router       /api/stock/products/{id}/lots [get]
func (h *StockHandler) LotSummary(c *fiber.Ctx) error {
	summary, err := h.query.LotSummary(c.UserContext(), c.Params("id"), c.Query("warehouse_id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.LotSummaryFromResult(summary))
}

// ListMovements godoc
// @Summary      Libro mayor de un producto
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        id      path   string  true   "producto"
// @Param        from    query  string  false  "desde (YYYY-MM-DD o RFC3339)"
// @Param        to      query  string  false  "hasta (YYYY-MM-DD o RFC3339)"
// @Param        limit   query  int     false  "límite"
// @Param        offset  query  int     false  "desplazamiento"
// @Success      200  {object}  dto.ListResponse[dto.MovementDTO]
// @Router       /api/stock/products/{id}/movements [get]
func (h *StockHandler) ListMovements(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return badRequest(c, "INVALID_QUERY", "parámetros de paginación inválidos")
	}
	page.DefaultPage()
	from, err := optionalTime(c, "from")
	if err != nil {
		return writeError(c, h.log, err)
	}
	to, err := optionalTime(c, "to")
	if err != nil {
		return writeError(c, h.log, err)
	}
	movs, err := h.query.ListMovements(c.UserContext(), inventory.MovementFilter{
		ProductID: c.Params("id"),
		From:      from,
		To:        to,
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	items := make([]dto.MovementDTO, 0, len(movs))
	for _, m := range movs {
		items = append(items, dto.MovementFromEntity(m))
	}
	return c.JSON(dto.ListResponse[dto.MovementDTO]{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// ListOrderMovements godoc
// @Summary      Movimientos de un pedido
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "pedido"
// @Success      200  {object}  dto.MovementsResponse
// @Router       /api/stock/orders/{id}/movements [get]
func (h *StockHandler) ListOrderMovements(c *fiber.Ctx) error {
	movs, err := h.query.ListOrderMovements(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.MovementsFromEntities(movs))
}

// ListOverrides godoc
// @Summary      Trazas de override de un producto
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        id      path   string  true   "producto"
// @Param        limit   query  int     false  "límite"
// @Param        offset  query  int     false  "desplazamiento"
// @Success      200  {object}  dto.ListResponse[dto.OverrideAuditDTO]
// @Router       /api/stock/products/{id}/overrides [get]
func (h *StockHandler) ListOverrides(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return badRequest(c, "INVALID_QUERY", "parámetros de paginación inválidos")
	}
	page.DefaultPage()
	audits, err := h.query.ListOverrides(c.UserContext(), c.Params("id"), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, h.log, err)
	}
	items := make([]dto.OverrideAuditDTO, 0, len(audits))
	for _, a := range audits {
		items = append(items, dto.OverrideFromEntity(a))
	}
	return c.JSON(dto.ListResponse[dto.OverrideAuditDTO]{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

func optionalInt(c *fiber.Ctx, key string) (*int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, domain.Validation("%s debe ser un entero", key)
	}
	return &n, nil
}

// optionalTime acepta YYYY-MM-DD o RFC3339.
func optionalTime(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(dto.DateLayout, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, domain.Validation("%s debe tener formato YYYY-MM-DD o RFC3339", key)
	}
	return &t, nil
}
