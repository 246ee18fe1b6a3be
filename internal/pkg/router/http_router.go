package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/payfox/payfox/app/controllers"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Webhooks authenticate with the signature header, never an API key.
	app.Post("/webhooks/stripe", controllers.HandleStripeWebhook)

	// Public catalog and registration.
	app.Get("/plans", controllers.HandleListPlans)
	app.Post("/register", controllers.HandleRegister)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
