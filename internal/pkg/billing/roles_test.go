package billing

import (
	"testing"

	"github.com/payfox/payfox/app/models"
	"github.com/stretchr/testify/assert"
)

func TestRoleForStatus(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"active", models.RolePremium},
		{"trialing", models.RolePremium},
		{"past_due", models.RolePremium},
		{"canceled", models.RoleFree},
		{"unpaid", models.RoleFree},
		{"incomplete", models.RoleFree},
		{"incomplete_expired", models.RoleFree},
		{"", models.RoleFree},
		{"something_new", models.RoleFree},
		{" Active ", models.RolePremium},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoleForStatus(tt.status), "status %q", tt.status)
	}
}

func TestNormalizeStatusUnknownMapsToIncomplete(t *testing.T) {
	assert.Equal(t, models.SubscriptionStatusIncomplete, normalizeStatus("paused"))
	assert.Equal(t, models.SubscriptionStatusActive, normalizeStatus("ACTIVE"))
	assert.Equal(t, models.SubscriptionStatusCanceled, normalizeStatus("canceled"))
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, models.RoleAdmin, normalizeRole(" Admin "))
	assert.Equal(t, models.RolePremium, normalizeRole("premium"))
	assert.Equal(t, models.RoleFree, normalizeRole("garbage"))
}
