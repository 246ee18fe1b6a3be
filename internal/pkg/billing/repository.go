package billing

import (
	"errors"
	"time"

	"github.com/payfox/payfox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the persistence operations used by the billing
// services. All cross-event consistency lives here: webhook invocations are
// stateless and independent, so ordering and idempotence are enforced with
// conditional writes, not in-memory locks.
type Repository interface {
	// ResolveCustomer maps a processor customer id to the local user id.
	// Returns ErrNotFound when no mapping exists; callers must fail closed.
	ResolveCustomer(externalCustomerID string) (uint, error)
	GetCustomerMappingByUserID(userID uint) (*models.CustomerMapping, error)
	CreateCustomerMapping(m *models.CustomerMapping) error

	// UpsertSubscription applies a snapshot keyed by external subscription
	// id. Returns ErrStaleEvent when the snapshot's event timestamp is older
	// than the stored record's, or when a terminal record would be revived.
	UpsertSubscription(snap SubscriptionSnapshot) (*models.Subscription, error)
	GetSubscriptionByExternalID(externalID string) (*models.Subscription, error)
	ListSubscriptionsByUser(userID uint) ([]models.Subscription, error)

	// UpsertRoleAssignment writes the derived role for a user. A persisted
	// admin role is sticky: the write becomes a no-op and the admin row is
	// returned unchanged.
	UpsertRoleAssignment(userID uint, role, externalSubID string, eventTS time.Time) (*models.RoleAssignment, error)
	GetRoleAssignment(userID uint) (*models.RoleAssignment, error)
	// SetRoleOutOfBand overwrites the role unconditionally. Admin grants and
	// revocations go through here, never through reconciliation.
	SetRoleOutOfBand(userID uint, role string) (*models.RoleAssignment, error)

	// RecordBillingEntry appends a ledger row, idempotent on external id.
	// The bool reports whether a row was actually created.
	RecordBillingEntry(in BillingEntryInput) (bool, error)
	GetBillingEntryByExternalID(userID uint, externalID string) (*models.BillingHistoryEntry, error)
	ListBillingHistory(userID uint, limit, offset int) ([]models.BillingHistoryEntry, int64, error)

	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error

	GetUserEmail(userID uint) (string, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ResolveCustomer(externalCustomerID string) (uint, error) {
	var m models.CustomerMapping
	err := r.db.Where("external_customer_id = ?", externalCustomerID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return m.UserID, nil
}

func (r *gormRepository) GetCustomerMappingByUserID(userID uint) (*models.CustomerMapping, error) {
	var m models.CustomerMapping
	err := r.db.Where("user_id = ?", userID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) CreateCustomerMapping(m *models.CustomerMapping) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_customer_id"}},
		DoNothing: true,
	}).Create(m).Error
}

// UpsertSubscription runs the out-of-order guard inside a transaction with a
// locked read, so concurrent deliveries for the same subscription serialize
// on the row instead of interleaving.
func (r *gormRepository) UpsertSubscription(snap SubscriptionSnapshot) (*models.Subscription, error) {
	var out *models.Subscription
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Subscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("external_subscription_id = ?", snap.ExternalSubscriptionID).
			First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err == nil {
			if snap.EventTS.Before(existing.EventTS) {
				return ErrStaleEvent
			}
			// canceled / incomplete_expired are terminal; a later event must
			// not revive the record or re-grant access.
			if models.IsTerminalSubscriptionStatus(existing.Status) &&
				!models.IsTerminalSubscriptionStatus(snap.Status) {
				return ErrStaleEvent
			}
		}

		sub := models.Subscription{
			ExternalSubscriptionID: snap.ExternalSubscriptionID,
			UserID:                 snap.UserID,
			Status:                 normalizeStatus(snap.Status),
			PlanRef:                snap.PlanRef,
			CurrentPeriodStart:     snap.CurrentPeriodStart,
			CurrentPeriodEnd:       snap.CurrentPeriodEnd,
			CancelAtPeriodEnd:      snap.CancelAtPeriodEnd,
			EventTS:                snap.EventTS,
			RawPayloadJSON:         snap.RawPayloadJSON,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_subscription_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id",
				"status",
				"plan_ref",
				"current_period_start",
				"current_period_end",
				"cancel_at_period_end",
				"event_ts",
				"raw_payload_json",
				"updated_at",
			}),
		}).Create(&sub).Error; err != nil {
			return err
		}

		var stored models.Subscription
		if err := tx.Where("external_subscription_id = ?", snap.ExternalSubscriptionID).
			First(&stored).Error; err != nil {
			return err
		}
		out = &stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormRepository) GetSubscriptionByExternalID(externalID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("external_subscription_id = ?", externalID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) ListSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&subs).Error
	return subs, err
}

func (r *gormRepository) UpsertRoleAssignment(userID uint, role, externalSubID string, eventTS time.Time) (*models.RoleAssignment, error) {
	var out *models.RoleAssignment
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.RoleAssignment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// Admin is assigned out-of-band and sticky; reconciliation never
		// downgrades it.
		if err == nil && existing.Role == models.RoleAdmin {
			out = &existing
			return nil
		}

		ra := models.RoleAssignment{
			UserID:                 userID,
			Role:                   normalizeRole(role),
			ExternalSubscriptionID: externalSubID,
			EventTS:                eventTS,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"role",
				"external_subscription_id",
				"event_ts",
				"updated_at",
			}),
		}).Create(&ra).Error; err != nil {
			return err
		}

		var stored models.RoleAssignment
		if err := tx.Where("user_id = ?", userID).First(&stored).Error; err != nil {
			return err
		}
		out = &stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormRepository) GetRoleAssignment(userID uint) (*models.RoleAssignment, error) {
	var ra models.RoleAssignment
	err := r.db.Where("user_id = ?", userID).First(&ra).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ra, nil
}

func (r *gormRepository) SetRoleOutOfBand(userID uint, role string) (*models.RoleAssignment, error) {
	ra := models.RoleAssignment{
		UserID: userID,
		Role:   normalizeRole(role),
	}
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"role",
			"updated_at",
		}),
	}).Create(&ra).Error; err != nil {
		return nil, err
	}

	var stored models.RoleAssignment
	if err := r.db.Where("user_id = ?", userID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormRepository) RecordBillingEntry(in BillingEntryInput) (bool, error) {
	entry := models.BillingHistoryEntry{
		UserID:      in.UserID,
		ExternalID:  in.ExternalID,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Status:      in.Status,
		Description: in.Description,
	}
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoNothing: true,
	}).Create(&entry)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) GetBillingEntryByExternalID(userID uint, externalID string) (*models.BillingHistoryEntry, error) {
	var entry models.BillingHistoryEntry
	err := r.db.Where("user_id = ? AND external_id = ?", userID, externalID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *gormRepository) ListBillingHistory(userID uint, limit, offset int) ([]models.BillingHistoryEntry, int64, error) {
	var total int64
	if err := r.db.Model(&models.BillingHistoryEntry{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.BillingHistoryEntry
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, total, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) GetUserEmail(userID uint) (string, error) {
	var user models.User
	err := r.db.Select("email").Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return user.Email, nil
}
