package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/payfox/payfox/internal/pkg/usercontext"
)

type createPaymentRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

type refundRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
	Amount          *int64 `json:"amount"`
}

// HandleCreatePayment opens a payment intent for the authenticated user and
// returns the client secret for frontend confirmation.
func HandleCreatePayment(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req createPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Invalid request body"})
	}

	cmd, err := commandService()
	if err != nil {
		return respondError(c, err)
	}

	result, err := cmd.CreatePaymentIntent(c.Context(), userCtx.UserID, req.Amount, req.Currency, req.Description, req.Metadata)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleRefund refunds a payment the authenticated user owns.
func HandleRefund(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req refundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Invalid request body"})
	}

	cmd, err := commandService()
	if err != nil {
		return respondError(c, err)
	}

	result, err := cmd.ProcessRefund(c.Context(), userCtx.UserID, req.PaymentIntentID, req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// HandleGetBillingHistory returns a page of the user's ledger, newest first.
func HandleGetBillingHistory(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	cmd, err := commandService()
	if err != nil {
		return respondError(c, err)
	}

	page, err := cmd.GetBillingHistory(c.Context(), userCtx.UserID, limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}
