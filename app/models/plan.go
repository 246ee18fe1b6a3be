package models

import (
	"encoding/json"
	"time"
)

// Plan is read-mostly reference data describing a purchasable tier. Mutated
// only through admin endpoints; the public listing returns active plans only.
type Plan struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name" validate:"required,min=2,max=100"`
	Amount        int64     `gorm:"not null" json:"amount" validate:"gte=0"`
	Currency      string    `gorm:"type:varchar(8);not null;default:'usd'" json:"currency" validate:"required,len=3"`
	Interval      string    `gorm:"type:varchar(16);not null" json:"interval" validate:"oneof=month year"`
	FeaturesJSON  string    `gorm:"type:text;default:'[]'" json:"-"`
	StripePriceID string    `gorm:"type:varchar(191);not null;default:'';index" json:"stripe_price_id"`
	IsActive      bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Features decodes the stored feature list; a broken value degrades to empty.
func (p *Plan) Features() []string {
	var out []string
	if err := json.Unmarshal([]byte(p.FeaturesJSON), &out); err != nil {
		return nil
	}
	return out
}

// SetFeatures encodes the feature list for storage.
func (p *Plan) SetFeatures(features []string) error {
	if features == nil {
		features = []string{}
	}
	b, err := json.Marshal(features)
	if err != nil {
		return err
	}
	p.FeaturesJSON = string(b)
	return nil
}
