package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/application/dto"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/application/idempotency"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
)

// HeaderIdempotencyKey header obligatorio en toda operación que modifica stock.
const HeaderIdempotencyKey = "Idempotency-Key"

// RequireIdempotencyKey rechaza con 400 una mutación sin Idempotency-Key antes de leer el cuerpo.
func RequireIdempotencyKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.TrimSpace(c.Get(HeaderIdempotencyKey)) == "" {
			return badRequest(c, string(domain.KindMissingIdempotencyKey), "falta el header Idempotency-Key")
		}
		return c.Next()
	}
}

// mutationFunc ejecuta la operación y devuelve el status y el cuerpo a responder.
type mutationFunc func(ctx context.Context) (int, any)

// mutator envuelve las operaciones mutantes con el Guard de idempotencia: la respuesta
// (éxito o fallo de negocio) se guarda serializada y se repite byte a byte.
type mutator struct {
	guard *idempotency.Guard
	log   zerolog.Logger
}

func (m mutator) run(c *fiber.Ctx, operation string, payload any, fn mutationFunc) error {
	req := idempotency.Request{
		Key:       c.Get(HeaderIdempotencyKey),
		Operation: operation,
		Actor:     GetUserID(c),
		Payload:   payload,
	}
	resp, err := m.guard.Execute(c.UserContext(), req, func(ctx context.Context) idempotency.Response {
		status, body := fn(ctx)
		raw, err := c.App().Config().JSONEncoder(body)
		if err != nil {
			m.log.Error().Err(err).Str("operation", operation).Msg("serializar respuesta")
			raw, _ = c.App().Config().JSONEncoder(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
			return idempotency.Response{StatusCode: fiber.StatusInternalServerError, Body: raw}
		}
		return idempotency.Response{StatusCode: status, Body: raw}
	})
	if err != nil {
		return writeError(c, m.log, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(resp.StatusCode).Send(resp.Body)
}

// result convierte el resultado de un caso de uso en status y cuerpo.
func (m mutator) result(c *fiber.Ctx, okStatus int, body any, err error) (int, any) {
	if err != nil {
		status, errBody := errorResponse(err)
		logRejected(m.log, c, status, errBody.Code, err)
		return status, errBody
	}
	return okStatus, body
}
