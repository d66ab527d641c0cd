package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/pkg/jwt"
)

// operatorRoles pueden mutar stock. Los overrides se restringen además en el handler.
var operatorRoles = []string{jwt.RoleAdmin, jwt.RoleEncargado, jwt.RoleVendedor, jwt.RoleBodeguero}

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Stock        *StockHandler
	Reservations *ReservationHandler
	JWTSecret    string
	JWTIssuer    string
}

// Router registra las rutas de la API. Todas requieren Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")
	stock := api.Group("/stock", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))
	operator := RequireRole(operatorRoles...)
	keyed := RequireIdempotencyKey()

	// Entradas y salidas (mutaciones con Idempotency-Key)
	stock.Post("/entries", operator, keyed, deps.Stock.RecordEntry)
	stock.Post("/exits", operator, keyed, deps.Stock.RecordExit)

	// Consultas por producto
	products := stock.Group("/products/:id")
	products.Get("/picking-suggestions", deps.Stock.PickingSuggestions)
	products.Get("/lots", deps.Stock.LotSummary)
	products.Get("/movements", deps.Stock.ListMovements)
	products.Get("/overrides", deps.Stock.ListOverrides)

	// Pedidos
	orders := stock.Group("/orders/:id")
	orders.Get("/movements", deps.Stock.ListOrderMovements)
	orders.Post("/cancel-reservations", operator, keyed, deps.Reservations.CancelOrder)

	// Reservas
	reservations := stock.Group("/reservations")
	reservations.Post("/", operator, keyed, deps.Reservations.Create)
	reservations.Post("/:id/apply", operator, keyed, deps.Reservations.Apply)
	reservations.Post("/:id/cancel", operator, keyed, deps.Reservations.Cancel)

	stock.Get("/lots/:id/available", deps.Reservations.QtyAvailable)
}
