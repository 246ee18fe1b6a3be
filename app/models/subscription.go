package models

import "time"

// Billing provider constants used across billing-related models.
const (
	BillingProviderStripe = "stripe"
)

const (
	BillingIntervalMonth = "month"
	BillingIntervalYear  = "year"
)

const (
	SubscriptionStatusActive            = "active"
	SubscriptionStatusTrialing          = "trialing"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusCanceled          = "canceled"
	SubscriptionStatusUnpaid            = "unpaid"
	SubscriptionStatusIncomplete        = "incomplete"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
)

// Subscription mirrors a processor-side subscription. Rows are upserted by
// external subscription id and never deleted; terminal statuses stay in place.
// EventTS is the source event timestamp of the last applied snapshot and is
// the anchor for the out-of-order delivery guard.
type Subscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	ExternalSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_subscriptions_external_id" json:"external_subscription_id"`
	UserID                 uint       `gorm:"not null;index" json:"user_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'incomplete';index" json:"status"`
	PlanRef                string     `gorm:"type:varchar(191);not null;default:''" json:"plan_ref"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool       `gorm:"default:false" json:"cancel_at_period_end"`
	EventTS                time.Time  `gorm:"type:timestamp;not null;index" json:"event_ts"`
	RawPayloadJSON         string     `gorm:"type:longtext" json:"-"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminalSubscriptionStatus reports whether a status permits no further
// transitions. A canceled or incomplete_expired record never re-activates.
func IsTerminalSubscriptionStatus(status string) bool {
	switch status {
	case SubscriptionStatusCanceled, SubscriptionStatusIncompleteExpired:
		return true
	default:
		return false
	}
}
