package controllers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/payfox/payfox/app/models"
	"github.com/payfox/payfox/app/repository"
	"github.com/payfox/payfox/internal/pkg/cache"
)

const (
	planCacheKey = "plans:active"
	planCacheTTL = 5 * time.Minute
)

type planRequest struct {
	Name          string   `json:"name"`
	Amount        int64    `json:"amount"`
	Currency      string   `json:"currency"`
	Interval      string   `json:"interval"`
	Features      []string `json:"features"`
	StripePriceID string   `json:"stripe_price_id"`
}

// HandleListPlans returns the active plan catalog. Public, cached in Redis.
func HandleListPlans(c *fiber.Ctx) error {
	if cached, err := cache.Get(planCacheKey); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(cached)
	}

	plans, err := repository.GetGlobalFactory().GetPlanRepository().ListActive()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load plans"})
	}

	body, err := json.Marshal(fiber.Map{"plans": plans})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to encode plans"})
	}
	if err := cache.Set(planCacheKey, string(body), planCacheTTL); err != nil {
		log.Debugf("plan cache write: %v", err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

// HandleAdminCreatePlan adds a plan to the catalog.
func HandleAdminCreatePlan(c *fiber.Ctx) error {
	var req planRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Invalid request body"})
	}
	if req.Name == "" || req.Amount < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Name and a non-negative amount are required"})
	}

	plan := &models.Plan{
		Name:          req.Name,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Interval:      req.Interval,
		StripePriceID: req.StripePriceID,
		IsActive:      true,
	}
	if err := plan.SetFeatures(req.Features); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Invalid feature list"})
	}

	if err := repository.GetGlobalFactory().GetPlanRepository().Create(plan); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create plan"})
	}
	invalidatePlanCache()
	return c.Status(fiber.StatusCreated).JSON(plan)
}

// HandleAdminUpdatePlan modifies an existing plan.
func HandleAdminUpdatePlan(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Invalid plan id"})
	}

	repo := repository.GetGlobalFactory().GetPlanRepository()
	plan, err := repo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Plan not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load plan"})
	}

	var req planRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Invalid request body"})
	}

	if req.Name != "" {
		plan.Name = req.Name
	}
	if req.Amount > 0 {
		plan.Amount = req.Amount
	}
	if req.Currency != "" {
		plan.Currency = req.Currency
	}
	if req.Interval != "" {
		plan.Interval = req.Interval
	}
	if req.StripePriceID != "" {
		plan.StripePriceID = req.StripePriceID
	}
	if req.Features != nil {
		if err := plan.SetFeatures(req.Features); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Invalid feature list"})
		}
	}

	if err := repo.Update(plan); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update plan"})
	}
	invalidatePlanCache()
	return c.JSON(plan)
}

// HandleAdminDeactivatePlan removes a plan from the public catalog without
// touching existing subscriptions.
func HandleAdminDeactivatePlan(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "Invalid plan id"})
	}

	if err := repository.GetGlobalFactory().GetPlanRepository().Deactivate(uint(id)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to deactivate plan"})
	}
	invalidatePlanCache()
	return c.JSON(fiber.Map{"deactivated": true})
}

func invalidatePlanCache() {
	if err := cache.Delete(planCacheKey); err != nil {
		log.Debugf("plan cache invalidation: %v", err)
	}
}
