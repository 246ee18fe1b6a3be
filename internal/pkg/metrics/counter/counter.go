package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/payfox/payfox/app/models"
	"github.com/payfox/payfox/internal/pkg/cache"
	"github.com/payfox/payfox/internal/pkg/database"
)

const webhookCountersKey = "webhook:counters"

// Delivery outcomes tracked per event type.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// Increment bumps the pending counter for an event type and outcome in
// Redis. Best effort: metrics never fail a webhook response.
func Increment(eventType, outcome string) {
	ctx := context.Background()
	field := eventType + "|" + outcome
	if err := cache.GetClient().HIncrBy(ctx, webhookCountersKey, field, 1).Err(); err != nil {
		log.Debugf("webhook counter increment %s: %v", field, err)
	}
}

// FlushAll drains the pending counters into the webhook_stats table. Uses
// RENAME to a temporary key so in-flight increments are never lost.
func FlushAll() error {
	ctx := context.Background()
	rdb := cache.GetClient()

	tmpKey := fmt.Sprintf("%s:tmp:%d", webhookCountersKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", webhookCountersKey, tmpKey).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "no such key") || err.Error() == "redis: nil" {
			return nil
		}
		return err
	}
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	fields := make([]string, 0, len(data))
	for field := range data {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	db := database.GetDB()
	for _, field := range fields {
		count, perr := strconv.ParseInt(data[field], 10, 64)
		if perr != nil || count == 0 {
			continue
		}
		eventType, outcome, ok := strings.Cut(field, "|")
		if !ok {
			continue
		}

		stat := models.WebhookStat{
			EventType: eventType,
			Outcome:   outcome,
			Count:     count,
		}
		if err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "event_type"}, {Name: "outcome"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count":      gorm.Expr("count + ?", count),
				"updated_at": time.Now(),
			}),
		}).Create(&stat).Error; err != nil {
			return err
		}
	}
	return nil
}
