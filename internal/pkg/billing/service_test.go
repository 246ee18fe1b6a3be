package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/payfox/payfox/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

// fakeRepo is an in-memory Repository with the same conditional-write
// semantics as the GORM implementation.
type fakeRepo struct {
	mappings      map[string]uint // external customer id -> user id
	mappingByUser map[uint]string
	subscriptions map[string]*models.Subscription
	roles         map[uint]*models.RoleAssignment
	entries       map[string]*models.BillingHistoryEntry
	entryOrder    []string
	webhookEvents map[string]*models.WebhookEvent
	emails        map[uint]string
	nextID        uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		mappings:      map[string]uint{},
		mappingByUser: map[uint]string{},
		subscriptions: map[string]*models.Subscription{},
		roles:         map[uint]*models.RoleAssignment{},
		entries:       map[string]*models.BillingHistoryEntry{},
		webhookEvents: map[string]*models.WebhookEvent{},
		emails:        map[uint]string{},
	}
}

func (f *fakeRepo) addMapping(customerID string, userID uint) {
	f.mappings[customerID] = userID
	f.mappingByUser[userID] = customerID
}

func (f *fakeRepo) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeRepo) ResolveCustomer(externalCustomerID string) (uint, error) {
	userID, ok := f.mappings[externalCustomerID]
	if !ok {
		return 0, ErrNotFound
	}
	return userID, nil
}

func (f *fakeRepo) GetCustomerMappingByUserID(userID uint) (*models.CustomerMapping, error) {
	customerID, ok := f.mappingByUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &models.CustomerMapping{ExternalCustomerID: customerID, UserID: userID}, nil
}

func (f *fakeRepo) CreateCustomerMapping(m *models.CustomerMapping) error {
	if _, exists := f.mappings[m.ExternalCustomerID]; exists {
		return nil
	}
	f.addMapping(m.ExternalCustomerID, m.UserID)
	return nil
}

func (f *fakeRepo) UpsertSubscription(snap SubscriptionSnapshot) (*models.Subscription, error) {
	existing, ok := f.subscriptions[snap.ExternalSubscriptionID]
	if ok {
		if snap.EventTS.Before(existing.EventTS) {
			return nil, ErrStaleEvent
		}
		if models.IsTerminalSubscriptionStatus(existing.Status) &&
			!models.IsTerminalSubscriptionStatus(snap.Status) {
			return nil, ErrStaleEvent
		}
	}
	sub := &models.Subscription{
		ID:                     f.id(),
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
	if ok {
		sub.ID = existing.ID
	}
	f.subscriptions[snap.ExternalSubscriptionID] = sub
	return sub, nil
}

func (f *fakeRepo) GetSubscriptionByExternalID(externalID string) (*models.Subscription, error) {
	sub, ok := f.subscriptions[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return sub, nil
}

func (f *fakeRepo) ListSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	for _, sub := range f.subscriptions {
		if sub.UserID == userID {
			subs = append(subs, *sub)
		}
	}
	return subs, nil
}

func (f *fakeRepo) UpsertRoleAssignment(userID uint, role, externalSubID string, eventTS time.Time) (*models.RoleAssignment, error) {
	if existing, ok := f.roles[userID]; ok && existing.Role == models.RoleAdmin {
		return existing, nil
	}
	ra := &models.RoleAssignment{
		ID:                     f.id(),
		UserID:                 userID,
		Role:                   normalizeRole(role),
		ExternalSubscriptionID: externalSubID,
		EventTS:                eventTS,
	}
	f.roles[userID] = ra
	return ra, nil
}

func (f *fakeRepo) GetRoleAssignment(userID uint) (*models.RoleAssignment, error) {
	ra, ok := f.roles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return ra, nil
}

func (f *fakeRepo) SetRoleOutOfBand(userID uint, role string) (*models.RoleAssignment, error) {
	ra := &models.RoleAssignment{
		ID:     f.id(),
		UserID: userID,
		Role:   normalizeRole(role),
	}
	f.roles[userID] = ra
	return ra, nil
}

func (f *fakeRepo) RecordBillingEntry(in BillingEntryInput) (bool, error) {
	if _, exists := f.entries[in.ExternalID]; exists {
		return false, nil
	}
	f.entries[in.ExternalID] = &models.BillingHistoryEntry{
		ID:          f.id(),
		UserID:      in.UserID,
		ExternalID:  in.ExternalID,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Status:      in.Status,
		Description: in.Description,
		CreatedAt:   time.Now(),
	}
	f.entryOrder = append(f.entryOrder, in.ExternalID)
	return true, nil
}

func (f *fakeRepo) GetBillingEntryByExternalID(userID uint, externalID string) (*models.BillingHistoryEntry, error) {
	entry, ok := f.entries[externalID]
	if !ok || entry.UserID != userID {
		return nil, ErrNotFound
	}
	return entry, nil
}

func (f *fakeRepo) ListBillingHistory(userID uint, limit, offset int) ([]models.BillingHistoryEntry, int64, error) {
	var all []models.BillingHistoryEntry
	for i := len(f.entryOrder) - 1; i >= 0; i-- {
		entry := f.entries[f.entryOrder[i]]
		if entry.UserID == userID {
			all = append(all, *entry)
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (f *fakeRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := event.Provider + ":" + event.ProviderEventID
	if stored, exists := f.webhookEvents[key]; exists {
		return false, stored, nil
	}
	event.ID = f.id()
	f.webhookEvents[key] = event
	return true, event, nil
}

func (f *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, event := range f.webhookEvents {
		if event.ID == id {
			now := time.Now()
			event.ProcessedAt = &now
			event.ProcessingError = processingError
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeRepo) GetUserEmail(userID uint) (string, error) {
	email, ok := f.emails[userID]
	if !ok {
		return "", ErrNotFound
	}
	return email, nil
}

func subscriptionEvent(t *testing.T, eventType, subID, customerID, status string, created int64) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":                   subID,
		"customer":             customerID,
		"status":               status,
		"current_period_start": created,
		"current_period_end":   created + 30*24*3600,
		"cancel_at_period_end": false,
		"items": map[string]interface{}{
			"data": []map[string]interface{}{
				{"price": map[string]interface{}{"id": "price_pro_monthly"}},
			},
		},
	})
	require.NoError(t, err)
	return stripe.Event{
		ID:      fmt.Sprintf("evt_%s_%d", eventType, created),
		Type:    stripe.EventType(eventType),
		Created: created,
		Data:    &stripe.EventData{Raw: raw},
	}
}

func invoiceEvent(t *testing.T, eventType, invoiceID, customerID string, amount int64) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":         invoiceID,
		"customer":   customerID,
		"amount_due": amount,
		"currency":   "eur",
	})
	require.NoError(t, err)
	return stripe.Event{
		ID:      "evt_" + invoiceID,
		Type:    stripe.EventType(eventType),
		Created: time.Now().Unix(),
		Data:    &stripe.EventData{Raw: raw},
	}
}

func TestProcessEventSubscriptionCreatedGrantsPremium(t *testing.T) {
	repo := newFakeRepo()
	repo.addMapping("cus_1", 7)
	svc := NewService(repo)

	event := subscriptionEvent(t, EventSubscriptionCreated, "sub_1", "cus_1", "active", 1000)
	require.NoError(t, svc.ProcessEvent(context.Background(), event))

	sub, err := repo.GetSubscriptionByExternalID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, uint(7), sub.UserID)
	assert.Equal(t, "price_pro_monthly", sub.PlanRef)

	role, err := repo.GetRoleAssignment(7)
	require.NoError(t, err)
	assert.Equal(t, models.RolePremium, role.Role)
}

func TestProcessEventOutOfOrderConverges(t *testing.T) {
	repo := newFakeRepo()
	repo.addMapping("cus_1", 7)
	svc := NewService(repo)

	// The newer event (t=2000, active) lands first; the older one (t=1000,
	// trialing) arrives late and must be discarded.
	newer := subscriptionEvent(t, EventSubscriptionUpdated, "sub_1", "cus_1", "active", 2000)
	older := subscriptionEvent(t, EventSubscriptionCreated, "sub_1", "cus_1", "trialing", 1000)

	require.NoError(t, svc.ProcessEvent(context.Background(), newer))
	require.NoError(t, svc.ProcessEvent(context.Background(), older))

	sub, err := repo.GetSubscriptionByExternalID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, time.Unix(2000, 0).UTC(), sub.EventTS)
}

func TestProcessEventDuplicateDeliveryIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	repo.addMapping("cus_1", 7)
	svc := NewService(repo)

	event := subscriptionEvent(t, EventSubscriptionCreated, "sub_1", "cus_1", "active", 1000)
	require.NoError(t, svc.ProcessEvent(context.Background(), event))
	require.NoError(t, svc.ProcessEvent(context.Background(), event))

	sub, err := repo.GetSubscriptionByExternalID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Len(t, repo.subscriptions, 1)
}

func TestProcessEventDeletedCancelsAndDowngrades(t *testing.T) {
	repo := newFakeRepo()
	repo.addMapping("cus_1", 7)
	svc := NewService(repo)

	created := subscriptionEvent(t, EventSubscriptionCreated, "sub_1", "cus_1", "active", 1000)
	deleted := subscriptionEvent(t, EventSubscriptionDeleted, "sub_1", "cus_1", "active", 2000)

	require.NoError(t, svc.ProcessEvent(context.Background(), created))
	require.NoError(t, svc.ProcessEvent(context.Background(), deleted))

	sub, err := repo.GetSubscriptionByExternalID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCanceled, sub.Status)
	assert.True(t, sub.CancelAtPeriodEnd)

	role, err := repo.GetRoleAssignment(7)
	require.NoError(t, err)
	assert.Equal(t, models.RoleFree, role.Role)
}

func TestProcessEventTerminalStatusIsNotRevived(t *testing.T) {
	repo := newFakeRepo()
	repo.addMapping("cus_1", 7)
	svc := NewService(repo)

	deleted := subscriptionEvent(t, EventSubscriptionDeleted, "sub_1", "cus_1", "active", 2000)
	lateUpdate := subscriptionEvent(t, EventSubscriptionUpdated, "sub_1", "cus_1", "active", 3000)

	require.NoError(t, svc.ProcessEvent(context.Background(), deleted))
	require.NoError(t, svc.ProcessEvent(context.Background(), lateUpdate))

	sub, err := repo.GetSubscriptionByExternalID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCanceled, sub.Status)

	role, err := repo.GetRoleAssignment(7)
	require.NoError(t, err)
	assert.Equal(t, models.RoleFree, role.Role)
}

func TestProcessEventPastDueKeepsPremium(t *testing.T) {
	repo := newFakeRepo()
	repo.addMapping("cus_1", 7)
	svc := NewService(repo)

	active := subscriptionEvent(t, EventSubscriptionCreated, "sub_1", "cus_1", "active", 1000)
	pastDue := subscriptionEvent(t, EventSubscriptionUpdated, "sub_1", "cus_1", "past_due", 2000)

	require.NoError(t, svc.ProcessEvent(context.Background(), active))
	require.NoError(t, svc.ProcessEvent(context.Background(), pastDue))

	role, err := repo.GetRoleAssignment(7)
	require.NoError(t, err)
	assert.Equal(t, models.RolePremium, role.Role)
}

func TestProcessEventAdminRoleIsSticky(t *testing.T) {
	repo := newFakeRepo()
	repo.addMapping("cus_1", 7)
	_, err := repo.SetRoleOutOfBand(7, models.RoleAdmin)
	require.NoError(t, err)
	svc := NewService(repo)

	deleted := subscriptionEvent(t, EventSubscriptionDeleted, "sub_1", "cus_1", "active", 2000)
	require.NoError(t, svc.ProcessEvent(context.Background(), deleted))

	role, err := repo.GetRoleAssignment(7)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role.Role)
}

func TestProcessEventUnmappedCustomerIsAcknowledged(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	event := subscriptionEvent(t, EventSubscriptionCreated, "sub_1", "cus_unknown", "active", 1000)
	require.NoError(t, svc.ProcessEvent(context.Background(), event))

	_, err := repo.GetSubscriptionByExternalID("sub_1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, repo.roles)
}

func TestProcessEventUnknownTypeIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	event := stripe.Event{
		ID:   "evt_x",
		Type: "charge.dispute.created",
		Data: &stripe.EventData{Raw: []byte(`{}`)},
	}
	require.NoError(t, svc.ProcessEvent(context.Background(), event))
	assert.Empty(t, repo.subscriptions)
	assert.Empty(t, repo.entries)
}

func TestProcessEventInvoicePaidAppendsLedgerOnce(t *testing.T) {
	repo := newFakeRepo()
	repo.addMapping("cus_1", 7)
	svc := NewService(repo)

	event := invoiceEvent(t, EventInvoicePaid, "in_1", "cus_1", 1999)
	require.NoError(t, svc.ProcessEvent(context.Background(), event))
	require.NoError(t, svc.ProcessEvent(context.Background(), event))

	entries, total, err := repo.ListBillingHistory(7, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, models.BillingEntryStatusPaid, entries[0].Status)
	assert.Equal(t, int64(1999), entries[0].Amount)
	assert.Equal(t, "Subscription payment", entries[0].Description)
}

type recordingNotifier struct {
	calls []string
}

func (n *recordingNotifier) NotifyPaymentFailed(email string, amount int64, currency, description string) error {
	n.calls = append(n.calls, email)
	return nil
}

func TestProcessEventInvoiceFailedNotifiesOnce(t *testing.T) {
	repo := newFakeRepo()
	repo.addMapping("cus_1", 7)
	repo.emails[7] = "user@example.com"
	notifier := &recordingNotifier{}
	svc := NewService(repo).WithNotifier(notifier)

	event := invoiceEvent(t, EventInvoiceFailed, "in_2", "cus_1", 1999)
	require.NoError(t, svc.ProcessEvent(context.Background(), event))
	require.NoError(t, svc.ProcessEvent(context.Background(), event))

	assert.Equal(t, []string{"user@example.com"}, notifier.calls)

	entry, err := repo.GetBillingEntryByExternalID(7, "in_2")
	require.NoError(t, err)
	assert.Equal(t, models.BillingEntryStatusFailed, entry.Status)
}

func TestRecordWebhookEventDeduplicates(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	in := WebhookEventInput{
		Provider:        "stripe",
		ProviderEventID: "evt_1",
		EventType:       EventInvoicePaid,
		PayloadJSON:     `{"id":"evt_1"}`,
		SignatureValid:  true,
	}

	created, first, err := svc.RecordWebhookEvent(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, first)
	assert.False(t, first.Processed())

	created, second, err := svc.RecordWebhookEvent(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestMarkWebhookProcessedControlsReprocessing(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	_, event, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:        "stripe",
		ProviderEventID: "evt_2",
		EventType:       EventInvoicePaid,
		SignatureValid:  true,
	})
	require.NoError(t, err)

	// A failed attempt stays eligible for reprocessing.
	require.NoError(t, svc.MarkWebhookProcessed(context.Background(), event.ID, fmt.Errorf("db down")))
	_, stored, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:        "stripe",
		ProviderEventID: "evt_2",
	})
	require.NoError(t, err)
	assert.False(t, stored.Processed())

	require.NoError(t, svc.MarkWebhookProcessed(context.Background(), event.ID, nil))
	_, stored, err = svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:        "stripe",
		ProviderEventID: "evt_2",
	})
	require.NoError(t, err)
	assert.True(t, stored.Processed())
}
