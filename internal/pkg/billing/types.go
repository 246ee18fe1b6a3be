package billing

import "time"

// SubscriptionSnapshot is the normalized shape applied to the subscription
// record store. EventTS is the source event timestamp, not the arrival time;
// the store uses it to discard out-of-order deliveries.
type SubscriptionSnapshot struct {
	ExternalSubscriptionID string
	UserID                 uint
	Status                 string
	PlanRef                string
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
	CancelAtPeriodEnd      bool
	EventTS                time.Time
	RawPayloadJSON         string
}

// BillingEntryInput is the normalized input for ledger inserts, keyed for
// idempotency on ExternalID.
type BillingEntryInput struct {
	UserID      uint
	ExternalID  string
	Amount      int64
	Currency    string
	Status      string
	Description string
}

// WebhookEventInput is the normalized input for webhook journal persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
