package billing

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
)

// Recognized webhook event types. Everything else is acknowledged and
// ignored so new processor event types never cause retry storms.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoicePaid         = "invoice.payment_succeeded"
	EventInvoiceFailed       = "invoice.payment_failed"
	EventInvoiceCreated      = "invoice.created"
)

// SubscriptionEventPayload carries the subscription fields the handlers
// need, decoded straight from the event's raw data object.
type SubscriptionEventPayload struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// PlanRef returns the price id of the first subscription item, if any.
func (p *SubscriptionEventPayload) PlanRef() string {
	if len(p.Items.Data) == 0 {
		return ""
	}
	return p.Items.Data[0].Price.ID
}

// InvoiceEventPayload carries the invoice fields the ledger handlers need.
type InvoiceEventPayload struct {
	ID          string `json:"id"`
	Customer    string `json:"customer"`
	AmountDue   int64  `json:"amount_due"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

func parseSubscriptionEvent(event stripe.Event) (*SubscriptionEventPayload, error) {
	var p SubscriptionEventPayload
	if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.ID) == "" {
		return nil, errors.New("subscription event payload missing id")
	}
	if strings.TrimSpace(p.Customer) == "" {
		return nil, errors.New("subscription event payload missing customer")
	}
	return &p, nil
}

func parseInvoiceEvent(event stripe.Event) (*InvoiceEventPayload, error) {
	var p InvoiceEventPayload
	if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.ID) == "" {
		return nil, errors.New("invoice event payload missing id")
	}
	if strings.TrimSpace(p.Customer) == "" {
		return nil, errors.New("invoice event payload missing customer")
	}
	return &p, nil
}

// eventTime is the source timestamp of a delivery, used by the out-of-order
// guard. Falls back to now for events without a created time (test fixtures).
func eventTime(event stripe.Event) time.Time {
	if event.Created > 0 {
		return time.Unix(event.Created, 0).UTC()
	}
	return time.Now().UTC()
}

func eventTimeNow() time.Time {
	return time.Now().UTC()
}

func unixToTimePtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
