package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/payfox/payfox/app/controllers"
	"github.com/payfox/payfox/internal/pkg/middleware"
)

// APIServer dispatches v1 API routes to their controllers.
type APIServer struct {
}

// NewAPIServer creates a v1 API server.
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// RegisterHandlers mounts all v1 routes on the given router group. The group
// is expected to carry API key authentication already.
func RegisterHandlers(router fiber.Router, server *APIServer) {
	router.Get("/ping", server.Ping)

	router.Get("/account", controllers.HandleGetAccount)

	router.Post("/payments", controllers.HandleCreatePayment)
	router.Post("/payments/refund", controllers.HandleRefund)
	router.Get("/billing/history", controllers.HandleGetBillingHistory)

	router.Post("/subscriptions", controllers.HandleCreateSubscription)
	router.Get("/subscriptions", controllers.HandleListSubscriptions)
	router.Patch("/subscriptions/:id", controllers.HandleUpdateSubscription)
	router.Delete("/subscriptions/:id", controllers.HandleCancelSubscription)

	admin := router.Group("/admin", middleware.RequireAdmin())
	admin.Get("/users", controllers.HandleAdminListUsers)
	admin.Put("/users/:id/role", controllers.HandleAdminSetRole)
	admin.Post("/plans", controllers.HandleAdminCreatePlan)
	admin.Patch("/plans/:id", controllers.HandleAdminUpdatePlan)
	admin.Delete("/plans/:id", controllers.HandleAdminDeactivatePlan)
	admin.Post("/ledger/export", controllers.HandleAdminExportLedger)
	admin.Get("/webhook-stats", controllers.HandleAdminListWebhookStats)
	admin.Post("/webhook-stats/flush", controllers.HandleAdminFlushWebhookStats)
}

// Ping answers a liveness probe for authenticated clients.
func (s *APIServer) Ping(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ping": "pong"})
}
