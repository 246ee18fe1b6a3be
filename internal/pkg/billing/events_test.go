package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func TestParseSubscriptionEvent(t *testing.T) {
	event := stripe.Event{
		ID:   "evt_1",
		Data: &stripe.EventData{Raw: []byte(`{
			"id": "sub_1",
			"customer": "cus_1",
			"status": "active",
			"current_period_start": 1700000000,
			"current_period_end": 1702592000,
			"cancel_at_period_end": true,
			"items": {"data": [{"price": {"id": "price_1"}}]}
		}`)},
	}

	p, err := parseSubscriptionEvent(event)
	require.NoError(t, err)
	assert.Equal(t, "sub_1", p.ID)
	assert.Equal(t, "cus_1", p.Customer)
	assert.Equal(t, "active", p.Status)
	assert.True(t, p.CancelAtPeriodEnd)
	assert.Equal(t, "price_1", p.PlanRef())
}

func TestParseSubscriptionEventMissingFields(t *testing.T) {
	_, err := parseSubscriptionEvent(stripe.Event{
		Data: &stripe.EventData{Raw: []byte(`{"customer": "cus_1"}`)},
	})
	assert.Error(t, err)

	_, err = parseSubscriptionEvent(stripe.Event{
		Data: &stripe.EventData{Raw: []byte(`{"id": "sub_1"}`)},
	})
	assert.Error(t, err)
}

func TestParseInvoiceEvent(t *testing.T) {
	event := stripe.Event{
		Data: &stripe.EventData{Raw: []byte(`{
			"id": "in_1",
			"customer": "cus_1",
			"amount_due": 1999,
			"currency": "eur",
			"description": "Pro plan"
		}`)},
	}

	p, err := parseInvoiceEvent(event)
	require.NoError(t, err)
	assert.Equal(t, "in_1", p.ID)
	assert.Equal(t, int64(1999), p.AmountDue)
	assert.Equal(t, "Pro plan", p.Description)
}

func TestEventTime(t *testing.T) {
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), eventTime(stripe.Event{Created: 1700000000}))

	// No created time falls back to roughly now.
	got := eventTime(stripe.Event{})
	assert.WithinDuration(t, time.Now().UTC(), got, time.Minute)
}

func TestUnixToTimePtr(t *testing.T) {
	assert.Nil(t, unixToTimePtr(0))
	assert.Nil(t, unixToTimePtr(-5))
	ptr := unixToTimePtr(1700000000)
	require.NotNil(t, ptr)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), *ptr)
}
