// Package retry adds transient-error retries with jittered backoff to
// market data lookups. Order placement is deliberately not retried here:
// a failed order abandons the day's action for that leg.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/pmcc_bot/internal/broker"
	"github.com/eddiefleurent/pmcc_bot/internal/models"
)

// Config controls retry attempts and backoff growth.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig is tuned for a once-a-day run: a few quick retries, never
// more than half a minute of waiting per lookup.
var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
}

// MarketData wraps a broker.MarketData with retries on transient failures.
type MarketData struct {
	inner  broker.MarketData
	logger *logrus.Logger
	config Config
}

// Ensure MarketData implements the port at compile time.
var _ broker.MarketData = (*MarketData)(nil)

// NewMarketData wraps inner with the retry policy.
func NewMarketData(inner broker.MarketData, logger *logrus.Logger, config ...Config) *MarketData {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	return &MarketData{inner: inner, logger: logger, config: cfg}
}

// GetUnderlyingPrice retries transient spot-price failures.
func (m *MarketData) GetUnderlyingPrice(ctx context.Context, symbol string) (float64, error) {
	return execRetry(ctx, m, "underlying price", func() (float64, error) {
		return m.inner.GetUnderlyingPrice(ctx, symbol)
	})
}

// GetOptionChain retries transient chain-snapshot failures.
func (m *MarketData) GetOptionChain(ctx context.Context, symbol string) (models.Chain, error) {
	return execRetry(ctx, m, "option chain", func() (models.Chain, error) {
		return m.inner.GetOptionChain(ctx, symbol)
	})
}

// GetOptionQuote retries transient quote failures. A quote that resolves
// without a delta is a valid answer, not a retryable failure.
func (m *MarketData) GetOptionQuote(ctx context.Context, contract models.OptionContract) (*broker.Quote, error) {
	return execRetry(ctx, m, "option quote", func() (*broker.Quote, error) {
		return m.inner.GetOptionQuote(ctx, contract)
	})
}

func execRetry[T any](ctx context.Context, m *MarketData, what string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	backoff := m.config.InitialBackoff

	for attempt := 0; attempt <= m.config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s lookup canceled: %w", what, ctx.Err())
		}

		res, err := fn()
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !isTransientError(err) || attempt == m.config.MaxRetries {
			break
		}

		m.logger.WithError(err).Warnf("transient %s failure, retrying in %v (attempt %d/%d)",
			what, backoff, attempt+1, m.config.MaxRetries)
		select {
		case <-time.After(backoff):
			backoff = m.nextBackoff(backoff)
		case <-ctx.Done():
			return zero, fmt.Errorf("%s lookup canceled during backoff: %w", what, ctx.Err())
		}
	}

	return zero, lastErr
}

func (m *MarketData) nextBackoff(currentBackoff time.Duration) time.Duration {
	backoff := time.Duration(float64(currentBackoff) * 1.5)
	if backoff > m.config.MaxBackoff {
		backoff = m.config.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			m.logger.WithError(err).Warn("failed to generate backoff jitter")
		} else {
			backoff += time.Duration(jitterVal.Int64())
		}
	}

	return backoff
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"server error",
		"rate limit",
		"429", // HTTP 429 Too Many Requests
		"502", // HTTP 502 Bad Gateway
		"503", // HTTP 503 Service Unavailable
		"504", // HTTP 504 Gateway Timeout
		"network",
		"dns",
		"tcp",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
