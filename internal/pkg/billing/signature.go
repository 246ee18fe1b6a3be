package billing

import (
	"strings"

	"github.com/payfox/payfox/internal/pkg/env"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// SignatureVerifier authenticates inbound webhook deliveries. Verification
// runs against the exact raw request bytes; re-serializing parsed JSON breaks
// the signature and must never happen upstream of this call.
type SignatureVerifier struct {
	secret string
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: strings.TrimSpace(secret)}
}

func NewSignatureVerifierFromEnv() *SignatureVerifier {
	return NewSignatureVerifier(env.GetEnv("STRIPE_WEBHOOK_SECRET", ""))
}

// Verify checks the signature header against the raw payload and returns the
// parsed event. The embedded timestamp is checked against the default
// tolerance window, so replayed signatures expire.
func (v *SignatureVerifier) Verify(payload []byte, sigHeader string) (stripe.Event, error) {
	if v.secret == "" {
		return stripe.Event{}, ErrConfiguration
	}
	if strings.TrimSpace(sigHeader) == "" {
		return stripe.Event{}, ErrInvalidSignature
	}

	// IgnoreAPIVersionMismatch: the processor may deliver events pinned to a
	// different API version than the SDK; the signature check is unaffected.
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, ErrInvalidSignature
	}
	return event, nil
}
