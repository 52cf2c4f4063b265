package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"product_sheet/internal/retry"

	"github.com/rs/zerolog/log"
)

const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
	maxNamesInBatch  = 10
)

// Client pushes plain-text messages to an ntfy topic.
type Client struct {
	httpClient *http.Client
	baseURL    string
	topic      string
	enabled    bool
	batchMode  bool
	priority   string
	policy     retry.Config

	// Circuit breaker state
	mutex       sync.Mutex
	failures    int
	lastFailure time.Time
	circuitOpen bool

	totalSent   int64
	totalFailed int64

	wg sync.WaitGroup
}

type Options struct {
	BaseURL   string
	Topic     string
	Enabled   bool
	BatchMode bool
	Priority  string
	Retry     retry.Config
}

type NotificationError struct {
	Type       string
	StatusCode int
	Underlying error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed [%s]: %v", e.Type, e.Underlying)
}

func (e *NotificationError) Unwrap() error {
	return e.Underlying
}

func (e *NotificationError) IsRetryable() bool {
	switch e.Type {
	case "network", "server", "rate_limit":
		return true
	case "auth", "client", "circuit_open":
		return false
	default:
		return e.StatusCode >= 500
	}
}

func isRetryable(err error) bool {
	var notifErr *NotificationError
	if errors.As(err, &notifErr) {
		return notifErr.IsRetryable()
	}
	return true
}

func NewClient(opts Options) *Client {
	policy := opts.Retry
	policy.Retryable = isRetryable
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		topic:     opts.Topic,
		enabled:   opts.Enabled,
		batchMode: opts.BatchMode,
		priority:  opts.Priority,
		policy:    policy,
	}
}

// SendNotification delivers message, retrying transient failures.
func (c *Client) SendNotification(ctx context.Context, message string) error {
	if !c.enabled {
		log.Debug().Msg("Notifications disabled, skipping")
		return nil
	}

	if c.isCircuitOpen() {
		log.Warn().Msg("Circuit breaker open, skipping notification")
		return &NotificationError{
			Type:       "circuit_open",
			Underlying: errors.New("circuit breaker is open"),
		}
	}

	_, err := retry.WithRetry(ctx, c.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.send(ctx, message)
	})
	if err != nil {
		c.recordFailure()
		return err
	}
	c.recordSuccess()
	return nil
}

func (c *Client) send(ctx context.Context, message string) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, c.topic)

	log.Debug().
		Str("url", url).
		Str("message", message).
		Msg("Sending notification")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(message))
	if err != nil {
		return &NotificationError{Type: "client", Underlying: err}
	}

	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Title", "Product sheet updated")
	if c.priority != "" {
		req.Header.Set("Priority", c.priority)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NotificationError{Type: "network", Underlying: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &NotificationError{
			Type:       categorizeHTTPError(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Underlying: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	}

	log.Debug().Int("status_code", resp.StatusCode).Msg("Notification sent successfully")
	return nil
}

// NotifyProductsAdded announces newly written products without blocking the caller.
func (c *Client) NotifyProductsAdded(ctx context.Context, names []string) {
	if !c.enabled || len(names) == 0 {
		return
	}

	if c.batchMode {
		log.Info().Int("products", len(names)).Msg("Sending batch notification for new products")
		c.sendAsync(ctx, formatBatchMessage(names))
		return
	}

	log.Info().Int("products", len(names)).Msg("Sending individual notifications for new products")
	for i, name := range names {
		c.sendAsync(ctx, formatIndividualMessage(name, i+1, len(names)))
	}
}

func (c *Client) sendAsync(ctx context.Context, message string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.SendNotification(ctx, message); err != nil {
			log.Warn().Err(err).Msg("Async notification failed")
		}
	}()
}

// Wait blocks until in-flight async notifications finish or ctx is done.
func (c *Client) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func formatBatchMessage(names []string) string {
	var sb strings.Builder

	if len(names) == 1 {
		sb.WriteString("1 product added\n")
	} else {
		sb.WriteString(fmt.Sprintf("%d products added\n", len(names)))
	}

	shown := min(len(names), maxNamesInBatch)
	for _, name := range names[:shown] {
		sb.WriteString(fmt.Sprintf("- %s\n", name))
	}
	if len(names) > shown {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(names)-shown))
	}

	return strings.TrimSuffix(sb.String(), "\n")
}

func formatIndividualMessage(name string, n, total int) string {
	if total > 1 {
		return fmt.Sprintf("Product added (%d/%d): %s", n, total, name)
	}
	return fmt.Sprintf("Product added: %s", name)
}

func (c *Client) isCircuitOpen() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.circuitOpen {
		return false
	}

	// Half-open after the cooldown: let the next attempt through.
	if time.Since(c.lastFailure) > breakerCooldown {
		c.circuitOpen = false
		c.failures = 0
		log.Info().Msg("Circuit breaker moving to half-open state")
	}

	return c.circuitOpen
}

func (c *Client) recordSuccess() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.totalSent++
	c.failures = 0
	if c.circuitOpen {
		c.circuitOpen = false
		log.Info().Msg("Circuit breaker closed after successful notification")
	}
}

func (c *Client) recordFailure() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.totalFailed++
	c.failures++
	c.lastFailure = time.Now()

	if c.failures >= breakerThreshold && !c.circuitOpen {
		c.circuitOpen = true
		log.Warn().
			Int("failures", c.failures).
			Msg("Circuit breaker opened due to consecutive failures")
	}
}

func categorizeHTTPError(statusCode int) string {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return "auth"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limit"
	case statusCode >= 400 && statusCode < 500:
		return "client"
	case statusCode >= 500:
		return "server"
	default:
		return "unknown"
	}
}

// GetMetrics returns delivered and failed notification counts.
func (c *Client) GetMetrics() (sent, failed int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.totalSent, c.totalFailed
}
