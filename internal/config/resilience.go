package config

import (
	"time"

	"product_sheet/internal/retry"
)

// ResilienceConfig holds retry budgets per remote concern. Sheet writes have
// no entry: appends and row deletes are not idempotent and are never retried.
type ResilienceConfig struct {
	SheetRead    retry.Config
	Notification retry.Config
}

var DefaultResilienceConfig = ResilienceConfig{
	SheetRead: retry.Config{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Timeout:    15 * time.Second,
	},
	Notification: retry.Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    10 * time.Second,
	},
}

// NoRetryConfig makes a single attempt per call.
var NoRetryConfig = ResilienceConfig{
	SheetRead: retry.Config{
		MaxRetries: 0,
		Timeout:    15 * time.Second,
	},
	Notification: retry.Config{
		MaxRetries: 0,
		Timeout:    10 * time.Second,
	},
}
