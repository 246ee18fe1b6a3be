package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/payfox/payfox/internal/pkg/env"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/subscription"
)

// Proration behaviors accepted by UpdateSubscriptionPrice.
// create_prorations applies the change immediately with prorated billing
// (upgrade); none defers it to the next cycle (downgrade).
const (
	ProrationCreateProrations = "create_prorations"
	ProrationNone             = "none"
)

// ProcessorConfig holds the processor credentials. Injected into the client
// constructor; nothing reads the environment after startup.
type ProcessorConfig struct {
	SecretKey     string
	WebhookSecret string
}

func (c ProcessorConfig) Validate() error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return fmt.Errorf("%w: STRIPE_SECRET_KEY is not set", ErrConfiguration)
	}
	return nil
}

// ProcessorClient wraps the Stripe API for the command path. Webhook
// handling never calls the processor; only user-initiated commands do.
type ProcessorClient struct {
	cfg ProcessorConfig
}

// NewProcessorClient creates a processor client from explicit configuration.
func NewProcessorClient(cfg ProcessorConfig) (*ProcessorClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stripe.Key = cfg.SecretKey
	return &ProcessorClient{cfg: cfg}, nil
}

// NewProcessorClientFromEnv builds the config from the environment and
// constructs a client.
func NewProcessorClientFromEnv() (*ProcessorClient, error) {
	return NewProcessorClient(ProcessorConfig{
		SecretKey:     strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		WebhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
	})
}

// CreateCustomer registers the user with the processor and returns the new
// customer id.
func (p *ProcessorClient) CreateCustomer(ctx context.Context, email string, userID uint) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			"user_id": strconv.FormatUint(uint64(userID), 10),
		},
	}
	params.Context = ctx

	cust, err := customer.New(params)
	if err != nil {
		return "", wrapProcessorErr(err)
	}
	return cust.ID, nil
}

// CreatePaymentIntent opens a payment for frontend confirmation. The
// idempotency key bounds duplicate intents when the caller retries.
func (p *ProcessorClient) CreatePaymentIntent(ctx context.Context, customerID string, amount int64, currency string, metadata map[string]string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(strings.ToLower(currency)),
		Customer: stripe.String(customerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(uuid.NewString())
	if len(metadata) > 0 {
		params.Metadata = metadata
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, wrapProcessorErr(err)
	}
	return pi, nil
}

// CreateSubscription opens an incomplete subscription and returns it with
// the first invoice's payment intent expanded, so the caller can hand the
// client secret to the frontend.
func (p *ProcessorClient) CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(uuid.NewString())
	params.AddExpand("latest_invoice.payment_intent")
	if paymentMethodID != "" {
		params.DefaultPaymentMethod = stripe.String(paymentMethodID)
	}

	sub, err := subscription.New(params)
	if err != nil {
		return nil, wrapProcessorErr(err)
	}
	return sub, nil
}

// GetSubscription retrieves a subscription, including its owning customer id
// for ownership checks.
func (p *ProcessorClient) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		return nil, wrapProcessorErr(err)
	}
	return sub, nil
}

// UpdateSubscriptionPrice switches the subscription's single item to a new
// price with the given proration behavior.
func (p *ProcessorClient) UpdateSubscriptionPrice(ctx context.Context, sub *stripe.Subscription, priceID, prorationBehavior string) (*stripe.Subscription, error) {
	if len(sub.Items.Data) == 0 {
		return nil, fmt.Errorf("%w: subscription %s has no items", ErrUpstream, sub.ID)
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(sub.Items.Data[0].ID),
				Price: stripe.String(priceID),
			},
		},
		ProrationBehavior: stripe.String(prorationBehavior),
	}
	params.Context = ctx

	updated, err := subscription.Update(sub.ID, params)
	if err != nil {
		return nil, wrapProcessorErr(err)
	}
	return updated, nil
}

// CancelSubscription cancels at period end by default; an immediate cancel
// ends the subscription now.
func (p *ProcessorClient) CancelSubscription(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) (*stripe.Subscription, error) {
	if cancelAtPeriodEnd {
		params := &stripe.SubscriptionParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		}
		params.Context = ctx

		sub, err := subscription.Update(subscriptionID, params)
		if err != nil {
			return nil, wrapProcessorErr(err)
		}
		return sub, nil
	}

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	sub, err := subscription.Cancel(subscriptionID, params)
	if err != nil {
		return nil, wrapProcessorErr(err)
	}
	return sub, nil
}

// CreateRefund refunds a payment intent, in full when amount is nil.
func (p *ProcessorClient) CreateRefund(ctx context.Context, paymentIntentID string, amount *int64) (*stripe.Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(uuid.NewString())
	if amount != nil {
		params.Amount = stripe.Int64(*amount)
	}

	ref, err := refund.New(params)
	if err != nil {
		return nil, wrapProcessorErr(err)
	}
	return ref, nil
}
