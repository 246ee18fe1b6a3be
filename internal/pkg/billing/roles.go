package billing

import (
	"strings"

	"github.com/payfox/payfox/app/models"
)

// RoleForStatus maps a processor subscription status to the local access
// tier. past_due keeps premium as a grace period; incomplete grants nothing
// until the first payment completes. Admin is never derived here.
func RoleForStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing, models.SubscriptionStatusPastDue:
		return models.RolePremium
	default:
		return models.RoleFree
	}
}

func normalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case models.RoleAdmin:
		return models.RoleAdmin
	case models.RolePremium:
		return models.RolePremium
	default:
		return models.RoleFree
	}
}

func normalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case models.SubscriptionStatusActive,
		models.SubscriptionStatusTrialing,
		models.SubscriptionStatusPastDue,
		models.SubscriptionStatusCanceled,
		models.SubscriptionStatusUnpaid,
		models.SubscriptionStatusIncompleteExpired:
		return s
	default:
		return models.SubscriptionStatusIncomplete
	}
}
