package counter

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payfox/payfox/internal/pkg/cache"
)

func TestIncrementAccumulatesPerTypeAndOutcome(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache.SetClient(client)

	Increment("invoice.payment_succeeded", OutcomeProcessed)
	Increment("invoice.payment_succeeded", OutcomeProcessed)
	Increment("invoice.payment_succeeded", OutcomeDuplicate)
	Increment("customer.subscription.updated", OutcomeFailed)

	data, err := client.HGetAll(context.Background(), webhookCountersKey).Result()
	require.NoError(t, err)
	assert.Equal(t, "2", data["invoice.payment_succeeded|processed"])
	assert.Equal(t, "1", data["invoice.payment_succeeded|duplicate"])
	assert.Equal(t, "1", data["customer.subscription.updated|failed"])
}
