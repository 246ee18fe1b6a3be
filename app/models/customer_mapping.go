package models

import "time"

// CustomerMapping links a processor customer id to a local user. Created once
// by the command path on first payment and immutable afterwards; webhook
// handlers only ever read it.
type CustomerMapping struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	ExternalCustomerID string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_customer_mappings_external_id" json:"external_customer_id"`
	UserID             uint      `gorm:"not null;uniqueIndex:ux_customer_mappings_user_id" json:"user_id"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
}
