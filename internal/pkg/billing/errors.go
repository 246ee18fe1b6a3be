package billing

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
)

// Error kinds surfaced by the billing core. Controllers map these to HTTP
// statuses; everything else is treated as an internal error.
var (
	// ErrInvalidSignature rejects a webhook whose signature or timestamp does
	// not check out against the endpoint secret.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrConfiguration means a required secret/key is unset. Fatal at startup.
	ErrConfiguration = errors.New("billing configuration missing")

	// ErrNotFound covers absent customer mappings, billing rows and
	// subscriptions.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation covers bad command input (non-positive amounts, missing
	// ids).
	ErrValidation = errors.New("invalid input")

	// ErrRateLimited is returned when a user exceeds the per-operation
	// attempt budget; retriable after the reported cooldown.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthorized means an ownership check failed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUpstream wraps processor-side failures with the human-readable
	// reason when the processor supplies one.
	ErrUpstream = errors.New("payment processor error")

	// ErrStaleEvent marks a snapshot discarded by the out-of-order guard.
	// Not a failure: callers acknowledge the delivery and move on.
	ErrStaleEvent = errors.New("stale event discarded")
)

// wrapProcessorErr converts a stripe-go error into an ErrUpstream, keeping the
// user-presentable message and dropping everything else.
func wrapProcessorErr(err error) error {
	if err == nil {
		return nil
	}
	var sErr *stripe.Error
	if errors.As(err, &sErr) && sErr.Msg != "" {
		return fmt.Errorf("%w: %s", ErrUpstream, sErr.Msg)
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}
