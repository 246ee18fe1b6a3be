package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/payfox/payfox/app/models"
	"github.com/payfox/payfox/internal/pkg/database"
	"github.com/payfox/payfox/internal/pkg/ledgerexport"
	"github.com/payfox/payfox/internal/pkg/metrics/counter"
)

// HandleAdminExportLedger uploads a CSV snapshot of the ledger to the
// configured bucket. Defaults to the last 30 days.
func HandleAdminExportLedger(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	if days <= 0 || days > 365 {
		days = 30
	}

	cfg, err := ledgerexport.LoadConfig()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": err.Error()})
	}
	if !cfg.IsEnabled() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Ledger export is disabled"})
	}

	exporter, err := ledgerexport.NewExporter(cfg, database.GetDB())
	if err != nil {
		log.Errorf("ledger exporter init: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to initialize exporter"})
	}

	until := time.Now().UTC()
	since := until.AddDate(0, 0, -days)
	result, err := exporter.Export(c.Context(), since, until)
	if err != nil {
		log.Errorf("ledger export: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Export failed"})
	}
	return c.JSON(result)
}

// HandleAdminListWebhookStats returns the flushed webhook counters per event
// type and outcome.
func HandleAdminListWebhookStats(c *fiber.Ctx) error {
	var stats []models.WebhookStat
	if err := database.GetDB().Order("event_type, outcome").Find(&stats).Error; err != nil {
		log.Errorf("webhook stats list: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load webhook stats"})
	}
	return c.JSON(fiber.Map{"stats": stats})
}

// HandleAdminFlushWebhookStats drains the pending webhook counters from
// Redis into the database.
func HandleAdminFlushWebhookStats(c *fiber.Ctx) error {
	if err := counter.FlushAll(); err != nil {
		log.Errorf("webhook stats flush: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Flush failed"})
	}
	return c.JSON(fiber.Map{"flushed": true})
}
