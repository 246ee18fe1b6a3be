package apiv1

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

// Registering handlers must mount every v1 route, including the admin
// webhook-stats read and flush pair.
func TestRegisterHandlersMountsRoutes(t *testing.T) {
	app := fiber.New()
	RegisterHandlers(app.Group("/api/v1"), NewAPIServer())

	registered := make(map[string]bool)
	for _, route := range app.GetRoutes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"GET /api/v1/ping",
		"GET /api/v1/account",
		"POST /api/v1/payments",
		"POST /api/v1/payments/refund",
		"GET /api/v1/billing/history",
		"POST /api/v1/subscriptions",
		"GET /api/v1/subscriptions",
		"PATCH /api/v1/subscriptions/:id",
		"DELETE /api/v1/subscriptions/:id",
		"GET /api/v1/admin/webhook-stats",
		"POST /api/v1/admin/webhook-stats/flush",
		"POST /api/v1/admin/ledger/export",
	} {
		assert.True(t, registered[want], "route %s not registered", want)
	}
}
