package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/payfox/payfox/app/models"
	"github.com/stripe/stripe-go/v76"
)

// Processor is the outbound payment-processor surface the command path
// needs. ProcessorClient implements it against the Stripe API.
type Processor interface {
	CreateCustomer(ctx context.Context, email string, userID uint) (string, error)
	CreatePaymentIntent(ctx context.Context, customerID string, amount int64, currency string, metadata map[string]string) (*stripe.PaymentIntent, error)
	CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID string) (*stripe.Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	UpdateSubscriptionPrice(ctx context.Context, sub *stripe.Subscription, priceID, prorationBehavior string) (*stripe.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) (*stripe.Subscription, error)
	CreateRefund(ctx context.Context, paymentIntentID string, amount *int64) (*stripe.Refund, error)
}

var _ Processor = (*ProcessorClient)(nil)

// PaymentIntentResult is what the payment endpoints return to the frontend.
type PaymentIntentResult struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
}

// SubscriptionResult describes a created or updated subscription. The client
// secret is only set on creation, when the first invoice needs confirmation.
type SubscriptionResult struct {
	SubscriptionID string `json:"subscription_id"`
	Status         string `json:"status"`
	ClientSecret   string `json:"client_secret,omitempty"`
}

// RefundResult reports a completed refund.
type RefundResult struct {
	RefundID string `json:"refund_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// BillingHistoryPage is a paginated slice of the ledger.
type BillingHistoryPage struct {
	Entries []models.BillingHistoryEntry `json:"entries"`
	Total   int64                        `json:"total"`
	Limit   int                          `json:"limit"`
	Offset  int                          `json:"offset"`
}

// CommandService executes user-initiated billing operations against the
// processor. Writes to local state here are optimistic mirrors; webhook
// reconciliation remains the source of truth and converges them.
type CommandService struct {
	repo      Repository
	processor Processor
	limiter   RateLimiter
	svc       *Service
}

// NewCommandService wires the command path.
func NewCommandService(repo Repository, processor Processor, limiter RateLimiter) *CommandService {
	return &CommandService{
		repo:      repo,
		processor: processor,
		limiter:   limiter,
		svc:       NewService(repo),
	}
}

func (c *CommandService) checkRate(ctx context.Context, operation string, userID uint) (string, error) {
	if c.limiter == nil {
		return "", nil
	}
	key := fmt.Sprintf("%s:%d", operation, userID)
	ok, retryAfter, err := c.limiter.Allow(ctx, key)
	if err != nil {
		// Redis being down must not block payments.
		log.Warnf("[billing] rate limiter unavailable for %s: %v", key, err)
		return "", nil
	}
	if !ok {
		return "", fmt.Errorf("%w: retry in %s", ErrRateLimited, retryAfter.Round(time.Second))
	}
	return key, nil
}

func (c *CommandService) clearRate(ctx context.Context, key string) {
	if c.limiter == nil || key == "" {
		return
	}
	if err := c.limiter.Clear(ctx, key); err != nil {
		log.Warnf("[billing] rate limiter clear %s: %v", key, err)
	}
}

// EnsureCustomer returns the user's processor customer id, creating the
// customer and mapping on first use.
func (c *CommandService) EnsureCustomer(ctx context.Context, userID uint) (string, error) {
	mapping, err := c.repo.GetCustomerMappingByUserID(userID)
	if err == nil {
		return mapping.ExternalCustomerID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	email, err := c.repo.GetUserEmail(userID)
	if err != nil {
		return "", err
	}

	customerID, err := c.processor.CreateCustomer(ctx, email, userID)
	if err != nil {
		return "", err
	}
	if err := c.repo.CreateCustomerMapping(&models.CustomerMapping{
		ExternalCustomerID: customerID,
		UserID:             userID,
	}); err != nil {
		return "", err
	}
	return customerID, nil
}

// CreatePaymentIntent opens a one-off payment and records a pending ledger
// row. The row's status converges to paid or failed via the invoice webhooks.
func (c *CommandService) CreatePaymentIntent(ctx context.Context, userID uint, amount int64, currency, description string, metadata map[string]string) (*PaymentIntentResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrValidation)
	}

	rateKey, err := c.checkRate(ctx, "payment", userID)
	if err != nil {
		return nil, err
	}

	customerID, err := c.EnsureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	pi, err := c.processor.CreatePaymentIntent(ctx, customerID, amount, currency, SanitizePaymentMetadata(metadata))
	if err != nil {
		return nil, err
	}

	if description == "" {
		description = "One-off payment"
	}
	if _, err := c.repo.RecordBillingEntry(BillingEntryInput{
		UserID:      userID,
		ExternalID:  pi.ID,
		Amount:      amount,
		Currency:    currency,
		Status:      models.BillingEntryStatusPending,
		Description: description,
	}); err != nil {
		log.Warnf("[billing] pending ledger row for intent %s: %v", pi.ID, err)
	}

	c.clearRate(ctx, rateKey)

	return &PaymentIntentResult{
		PaymentIntentID: pi.ID,
		ClientSecret:    pi.ClientSecret,
		Amount:          amount,
		Currency:        currency,
		Status:          string(pi.Status),
	}, nil
}

// ProcessRefund refunds a payment the user owns. Ownership is checked against
// the local ledger before any processor call; the refund is then appended as
// its own ledger row, never an overwrite of the original.
func (c *CommandService) ProcessRefund(ctx context.Context, userID uint, paymentIntentID string, amount *int64) (*RefundResult, error) {
	if strings.TrimSpace(paymentIntentID) == "" {
		return nil, fmt.Errorf("%w: payment intent id is required", ErrValidation)
	}
	if amount != nil && *amount <= 0 {
		return nil, fmt.Errorf("%w: refund amount must be positive", ErrValidation)
	}

	entry, err := c.repo.GetBillingEntryByExternalID(userID, paymentIntentID)
	if err != nil {
		return nil, err
	}

	rateKey, err := c.checkRate(ctx, "refund", userID)
	if err != nil {
		return nil, err
	}

	ref, err := c.processor.CreateRefund(ctx, paymentIntentID, amount)
	if err != nil {
		return nil, err
	}

	refunded := entry.Amount
	if amount != nil {
		refunded = *amount
	}
	if _, err := c.repo.RecordBillingEntry(BillingEntryInput{
		UserID:      userID,
		ExternalID:  ref.ID,
		Amount:      -refunded,
		Currency:    entry.Currency,
		Status:      models.BillingEntryStatusRefunded,
		Description: "Refund for " + paymentIntentID,
	}); err != nil {
		log.Warnf("[billing] refund ledger row for %s: %v", ref.ID, err)
	}

	c.clearRate(ctx, rateKey)

	return &RefundResult{
		RefundID: ref.ID,
		Amount:   refunded,
		Currency: entry.Currency,
		Status:   string(ref.Status),
	}, nil
}

// CreateSubscription starts a subscription for the user and optimistically
// grants the premium tier; the subsequent webhook confirms or reverts it.
func (c *CommandService) CreateSubscription(ctx context.Context, userID uint, priceID, paymentMethodID string) (*SubscriptionResult, error) {
	if strings.TrimSpace(priceID) == "" {
		return nil, fmt.Errorf("%w: price id is required", ErrValidation)
	}

	rateKey, err := c.checkRate(ctx, "subscription", userID)
	if err != nil {
		return nil, err
	}

	customerID, err := c.EnsureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub, err := c.processor.CreateSubscription(ctx, customerID, priceID, paymentMethodID)
	if err != nil {
		return nil, err
	}

	if _, err := c.svc.ReconcileRole(ctx, userID, string(sub.Status), sub.ID); err != nil {
		log.Warnf("[billing] optimistic role for user %d: %v", userID, err)
	}

	c.clearRate(ctx, rateKey)

	result := &SubscriptionResult{
		SubscriptionID: sub.ID,
		Status:         string(sub.Status),
	}
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		result.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	return result, nil
}

// UpdateSubscription switches the subscription to a new price. Upgrades
// prorate immediately; downgrades take effect at the next cycle.
func (c *CommandService) UpdateSubscription(ctx context.Context, userID uint, subscriptionID, priceID string, upgrade bool) (*SubscriptionResult, error) {
	if strings.TrimSpace(priceID) == "" {
		return nil, fmt.Errorf("%w: price id is required", ErrValidation)
	}

	sub, err := c.ownedSubscription(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}

	behavior := ProrationNone
	if upgrade {
		behavior = ProrationCreateProrations
	}
	updated, err := c.processor.UpdateSubscriptionPrice(ctx, sub, priceID, behavior)
	if err != nil {
		return nil, err
	}

	return &SubscriptionResult{
		SubscriptionID: updated.ID,
		Status:         string(updated.Status),
	}, nil
}

// CancelSubscription cancels the subscription, at period end by default. A
// period-end cancel keeps the premium tier until the period lapses; an
// immediate cancel downgrades right away.
func (c *CommandService) CancelSubscription(ctx context.Context, userID uint, subscriptionID string, cancelAtPeriodEnd bool) (*SubscriptionResult, error) {
	sub, err := c.ownedSubscription(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}

	canceled, err := c.processor.CancelSubscription(ctx, sub.ID, cancelAtPeriodEnd)
	if err != nil {
		return nil, err
	}

	if !cancelAtPeriodEnd {
		if _, err := c.svc.ReconcileRole(ctx, userID, models.SubscriptionStatusCanceled, sub.ID); err != nil {
			log.Warnf("[billing] optimistic downgrade for user %d: %v", userID, err)
		}
	}

	return &SubscriptionResult{
		SubscriptionID: canceled.ID,
		Status:         string(canceled.Status),
	}, nil
}

// ownedSubscription retrieves a subscription and verifies the caller's
// customer mapping owns it.
func (c *CommandService) ownedSubscription(ctx context.Context, userID uint, subscriptionID string) (*stripe.Subscription, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, fmt.Errorf("%w: subscription id is required", ErrValidation)
	}

	mapping, err := c.repo.GetCustomerMappingByUserID(userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: subscription does not belong to user", ErrUnauthorized)
		}
		return nil, err
	}

	sub, err := c.processor.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Customer == nil || sub.Customer.ID != mapping.ExternalCustomerID {
		return nil, fmt.Errorf("%w: subscription does not belong to user", ErrUnauthorized)
	}
	return sub, nil
}

// GetBillingHistory returns a page of the user's ledger, newest first.
func (c *CommandService) GetBillingHistory(ctx context.Context, userID uint, limit, offset int) (*BillingHistoryPage, error) {
	_ = ctx
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	entries, total, err := c.repo.ListBillingHistory(userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &BillingHistoryPage{
		Entries: entries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}
