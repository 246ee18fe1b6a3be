package models

import "time"

// WebhookStat accumulates processed webhook counts per event type and
// outcome. Counters are staged in Redis and flushed here periodically.
type WebhookStat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventType string    `gorm:"type:varchar(100);not null;index:ux_webhook_stats_type_outcome,unique,priority:1" json:"event_type"`
	Outcome   string    `gorm:"type:varchar(20);not null;index:ux_webhook_stats_type_outcome,unique,priority:2" json:"outcome"`
	Count     int64     `gorm:"not null;default:0" json:"count"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
