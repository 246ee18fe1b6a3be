package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/payfox/payfox/internal/pkg/billing"
	"github.com/payfox/payfox/internal/pkg/database"
	"github.com/payfox/payfox/internal/pkg/metrics/counter"
)

// HandleStripeWebhook ingests processor webhook deliveries. The signature is
// verified against the raw body before anything is persisted; an invalid
// delivery leaves zero state behind. A 5xx answer makes the processor
// redeliver, which is the retry mechanism for failed handlers.
func HandleStripeWebhook(c *fiber.Ctx) error {
	payload := c.BodyRaw()
	sigHeader := c.Get("Stripe-Signature")

	verifier := billing.NewSignatureVerifierFromEnv()
	event, err := verifier.Verify(payload, sigHeader)
	if err != nil {
		counter.Increment("unknown", counter.OutcomeRejected)
		log.Warnf("[webhook] rejected delivery from %s: %v", c.IP(), err)
		return respondError(c, err)
	}

	svc := billing.NewServiceFromDB(database.GetDB()).WithNotifier(paymentNotifier())

	created, stored, err := svc.RecordWebhookEvent(c.Context(), billing.WebhookEventInput{
		Provider:        "stripe",
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(payload),
		SignatureValid:  true,
	})
	if err != nil {
		log.Errorf("[webhook] journal write for %s: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to journal event"})
	}

	// A replay of an already processed delivery is acknowledged without
	// touching any state. Earlier failed attempts run again.
	if !created && stored.Processed() {
		counter.Increment(string(event.Type), counter.OutcomeDuplicate)
		return c.JSON(fiber.Map{"received": true})
	}

	if err := svc.ProcessEvent(c.Context(), event); err != nil {
		if markErr := svc.MarkWebhookProcessed(c.Context(), stored.ID, err); markErr != nil {
			log.Errorf("[webhook] marking %s failed: %v", event.ID, markErr)
		}
		counter.Increment(string(event.Type), counter.OutcomeFailed)
		log.Errorf("[webhook] processing %s (%s): %v", event.ID, event.Type, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Event processing failed"})
	}

	if err := svc.MarkWebhookProcessed(c.Context(), stored.ID, nil); err != nil {
		log.Errorf("[webhook] marking %s processed: %v", event.ID, err)
	}
	counter.Increment(string(event.Type), counter.OutcomeProcessed)
	return c.JSON(fiber.Map{"received": true})
}
