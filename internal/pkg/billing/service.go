package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/payfox/payfox/app/models"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"
)

// Notifier delivers user-facing billing notifications. Best effort: a
// notification failure never fails the webhook handler.
type Notifier interface {
	NotifyPaymentFailed(email string, amount int64, currency, description string) error
}

// Service reconciles verified webhook events into local subscription, role
// and ledger state. Handlers are idempotent: the processor delivers
// at-least-once and redelivers after any 5xx.
type Service struct {
	repo     Repository
	notifier Notifier
}

// NewService creates a reconciliation service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a reconciliation service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// WithNotifier attaches a payment-failure notifier.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// ProcessEvent dispatches a verified event to exactly one handler by type.
// Unknown types are a successful no-op so the processor stops redelivering
// them. Handler errors propagate so the caller can answer 5xx and lean on
// the processor's retry.
func (s *Service) ProcessEvent(ctx context.Context, event stripe.Event) error {
	switch string(event.Type) {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return s.handleSubscriptionChange(ctx, event, false)
	case EventSubscriptionDeleted:
		return s.handleSubscriptionChange(ctx, event, true)
	case EventInvoicePaid:
		return s.handleInvoice(ctx, event, models.BillingEntryStatusPaid)
	case EventInvoiceFailed:
		return s.handleInvoice(ctx, event, models.BillingEntryStatusFailed)
	case EventInvoiceCreated:
		// Informational only; the ledger row is written on payment outcome.
		return nil
	default:
		log.Debugf("[billing] ignoring event type %s (%s)", event.Type, event.ID)
		return nil
	}
}

func (s *Service) handleSubscriptionChange(ctx context.Context, event stripe.Event, terminal bool) error {
	payload, err := parseSubscriptionEvent(event)
	if err != nil {
		return fmt.Errorf("parse subscription event %s: %w", event.ID, err)
	}

	userID, err := s.repo.ResolveCustomer(payload.Customer)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Unmapped customer: never guess an owner. Acknowledge so the
			// processor stops retrying a delivery we can never apply.
			log.Warnf("[billing] event %s: no mapping for customer %s, skipping", event.ID, payload.Customer)
			return nil
		}
		return err
	}

	status := normalizeStatus(payload.Status)
	cancelAtPeriodEnd := payload.CancelAtPeriodEnd
	if terminal {
		status = models.SubscriptionStatusCanceled
		cancelAtPeriodEnd = true
	}

	snap := SubscriptionSnapshot{
		ExternalSubscriptionID: payload.ID,
		UserID:                 userID,
		Status:                 status,
		PlanRef:                payload.PlanRef(),
		CurrentPeriodStart:     unixToTimePtr(payload.CurrentPeriodStart),
		CurrentPeriodEnd:       unixToTimePtr(payload.CurrentPeriodEnd),
		CancelAtPeriodEnd:      cancelAtPeriodEnd,
		EventTS:                eventTime(event),
		RawPayloadJSON:         string(event.Data.Raw),
	}

	stored, err := s.repo.UpsertSubscription(snap)
	if err != nil {
		if errors.Is(err, ErrStaleEvent) {
			log.Infof("[billing] event %s: stale snapshot for subscription %s discarded", event.ID, payload.ID)
			return nil
		}
		return fmt.Errorf("upsert subscription %s: %w", payload.ID, err)
	}

	if _, err := s.repo.UpsertRoleAssignment(userID, RoleForStatus(stored.Status), stored.ExternalSubscriptionID, snap.EventTS); err != nil {
		return fmt.Errorf("reconcile role for user %d: %w", userID, err)
	}
	return nil
}

func (s *Service) handleInvoice(ctx context.Context, event stripe.Event, status string) error {
	payload, err := parseInvoiceEvent(event)
	if err != nil {
		return fmt.Errorf("parse invoice event %s: %w", event.ID, err)
	}

	userID, err := s.repo.ResolveCustomer(payload.Customer)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warnf("[billing] event %s: no mapping for customer %s, skipping", event.ID, payload.Customer)
			return nil
		}
		return err
	}

	description := payload.Description
	if description == "" {
		description = "Subscription payment"
	}

	created, err := s.repo.RecordBillingEntry(BillingEntryInput{
		UserID:      userID,
		ExternalID:  payload.ID,
		Amount:      payload.AmountDue,
		Currency:    strings.ToLower(payload.Currency),
		Status:      status,
		Description: description,
	})
	if err != nil {
		return fmt.Errorf("record billing entry %s: %w", payload.ID, err)
	}

	// Notify only on the first delivery of a failed payment; duplicates and
	// redeliveries stay silent.
	if created && status == models.BillingEntryStatusFailed && s.notifier != nil {
		email, err := s.repo.GetUserEmail(userID)
		if err != nil {
			log.Warnf("[billing] event %s: cannot notify user %d: %v", event.ID, userID, err)
			return nil
		}
		if err := s.notifier.NotifyPaymentFailed(email, payload.AmountDue, payload.Currency, description); err != nil {
			log.Warnf("[billing] event %s: payment-failed notification for user %d: %v", event.ID, userID, err)
		}
	}
	return nil
}

// ReconcileRole recomputes and persists the access tier implied by a
// subscription status. Exposed for the command path's optimistic mirrors.
func (s *Service) ReconcileRole(ctx context.Context, userID uint, status, externalSubID string) (*models.RoleAssignment, error) {
	_ = ctx
	if userID == 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return s.repo.UpsertRoleAssignment(userID, RoleForStatus(status), externalSubID, eventTimeNow())
}

// RecordWebhookEvent persists a delivery in the webhook journal, idempotent
// on the provider event id. Deliveries without an id are keyed by a payload
// hash so replays still deduplicate.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, fmt.Errorf("%w: provider is required", ErrValidation)
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional
// error. A stored error keeps the event eligible for reprocessing on the
// next delivery.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return fmt.Errorf("%w: webhook event id is required", ErrValidation)
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// Repo exposes the repository for read paths that need no reconciliation.
func (s *Service) Repo() Repository {
	return s.repo
}
