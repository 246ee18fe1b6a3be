package models

import "time"

const (
	BillingEntryStatusPending       = "pending"
	BillingEntryStatusPaid          = "paid"
	BillingEntryStatusFailed        = "failed"
	BillingEntryStatusRefunded      = "refunded"
	BillingEntryStatusVoid          = "void"
	BillingEntryStatusUncollectible = "uncollectible"
)

// BillingHistoryEntry is one row of the append-only payment ledger. ExternalID
// carries the processor-side invoice/payment-intent/refund id and is the
// idempotency key: inserting the same id twice is a no-op.
type BillingHistoryEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	ExternalID  string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_billing_history_external_id" json:"external_id"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Currency    string    `gorm:"type:varchar(8);not null" json:"currency"`
	Status      string    `gorm:"type:varchar(20);not null;index" json:"status"`
	Description string    `gorm:"type:varchar(500);default:''" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
