package models

import "time"

const (
	RoleFree    = "free"
	RolePremium = "premium"
	RoleAdmin   = "admin"
)

// RoleAssignment is the access tier derived from the latest known
// subscription status. Admin is never derived; it is assigned out-of-band and
// reconciliation must not overwrite it.
type RoleAssignment struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	UserID                 uint      `gorm:"not null;uniqueIndex:ux_role_assignments_user_id" json:"user_id"`
	Role                   string    `gorm:"type:varchar(20);not null;default:'free'" json:"role"`
	ExternalSubscriptionID string    `gorm:"type:varchar(191);default:''" json:"external_subscription_id,omitempty"`
	EventTS                time.Time `gorm:"type:timestamp;default:null" json:"event_ts"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
