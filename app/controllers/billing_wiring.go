package controllers

import (
	"strconv"
	"time"

	"github.com/payfox/payfox/internal/pkg/billing"
	"github.com/payfox/payfox/internal/pkg/cache"
	"github.com/payfox/payfox/internal/pkg/database"
	"github.com/payfox/payfox/internal/pkg/env"
	"github.com/payfox/payfox/internal/pkg/mail"
)

func paymentNotifier() billing.Notifier {
	return mail.NewPaymentNotifier(env.GetEnv("APP_NAME", "PayFox"))
}

func commandRateLimiter() billing.RateLimiter {
	limit, err := strconv.Atoi(env.GetEnv("BILLING_RATE_LIMIT_ATTEMPTS", "5"))
	if err != nil || limit <= 0 {
		limit = 5
	}
	windowSec, err := strconv.Atoi(env.GetEnv("BILLING_RATE_LIMIT_WINDOW_SECONDS", "3600"))
	if err != nil || windowSec <= 0 {
		windowSec = 3600
	}
	return billing.NewRateLimiter(cache.GetClient(), "billing:ratelimit", limit, time.Duration(windowSec)*time.Second)
}

// commandService builds the command path for a request: repository on the
// live DB handle, processor from env, limiter on the shared Redis client.
func commandService() (*billing.CommandService, error) {
	processor, err := billing.NewProcessorClientFromEnv()
	if err != nil {
		return nil, err
	}
	repo := billing.NewRepository(database.GetDB())
	return billing.NewCommandService(repo, processor, commandRateLimiter()), nil
}
