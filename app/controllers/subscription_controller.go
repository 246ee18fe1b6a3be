package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/payfox/payfox/internal/pkg/billing"
	"github.com/payfox/payfox/internal/pkg/database"
	"github.com/payfox/payfox/internal/pkg/usercontext"
)

type createSubscriptionRequest struct {
	PriceID         string `json:"price_id"`
	PaymentMethodID string `json:"payment_method_id"`
}

type updateSubscriptionRequest struct {
	PriceID string `json:"price_id"`
	Upgrade bool   `json:"upgrade"`
}

// HandleCreateSubscription starts a subscription for the authenticated user.
func HandleCreateSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req createSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Invalid request body"})
	}

	cmd, err := commandService()
	if err != nil {
		return respondError(c, err)
	}

	result, err := cmd.CreateSubscription(c.Context(), userCtx.UserID, req.PriceID, req.PaymentMethodID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleUpdateSubscription switches the subscription to another price.
func HandleUpdateSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	subscriptionID := c.Params("id")

	var req updateSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Invalid request body"})
	}

	cmd, err := commandService()
	if err != nil {
		return respondError(c, err)
	}

	result, err := cmd.UpdateSubscription(c.Context(), userCtx.UserID, subscriptionID, req.PriceID, req.Upgrade)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// HandleCancelSubscription cancels the subscription, at period end unless the
// caller asks for an immediate cancel.
func HandleCancelSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	subscriptionID := c.Params("id")

	cancelAtPeriodEnd := c.QueryBool("cancel_at_period_end", true)

	cmd, err := commandService()
	if err != nil {
		return respondError(c, err)
	}

	result, err := cmd.CancelSubscription(c.Context(), userCtx.UserID, subscriptionID, cancelAtPeriodEnd)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// HandleListSubscriptions returns the user's locally mirrored subscriptions.
func HandleListSubscriptions(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	repo := billing.NewRepository(database.GetDB())
	subs, err := repo.ListSubscriptionsByUser(userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"subscriptions": subs})
}
