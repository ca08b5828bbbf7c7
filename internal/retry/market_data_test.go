package retry

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/pmcc_bot/internal/broker"
	"github.com/eddiefleurent/pmcc_bot/internal/models"
)

// flakyMarket fails a set number of times before succeeding.
type flakyMarket struct {
	failures int
	err      error
	calls    int
}

var _ broker.MarketData = (*flakyMarket)(nil)

func (f *flakyMarket) GetUnderlyingPrice(context.Context, string) (float64, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, f.err
	}
	return 500, nil
}

func (f *flakyMarket) GetOptionChain(context.Context, string) (models.Chain, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return models.Chain{}, nil
}

func (f *flakyMarket) GetOptionQuote(context.Context, models.OptionContract) (*broker.Quote, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &broker.Quote{Mark: 100}, nil
}

func fastConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestRetriesTransientFailure(t *testing.T) {
	inner := &flakyMarket{failures: 2, err: errors.New("connection refused")}
	m := NewMarketData(inner, testLogger(), fastConfig())

	spot, err := m.GetUnderlyingPrice(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("expected recovery after retries: %v", err)
	}
	if spot != 500 {
		t.Fatalf("spot = %.2f, want 500", spot)
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls)
	}
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	inner := &flakyMarket{failures: 100, err: errors.New("request timeout")}
	m := NewMarketData(inner, testLogger(), fastConfig())

	_, err := m.GetOptionChain(context.Background(), "SPY")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if inner.calls != 4 {
		t.Fatalf("calls = %d, want 1 + 3 retries", inner.calls)
	}
}

func TestDoesNotRetryPermanentError(t *testing.T) {
	inner := &flakyMarket{failures: 100, err: errors.New("invalid symbol")}
	m := NewMarketData(inner, testLogger(), fastConfig())

	_, err := m.GetUnderlyingPrice(context.Background(), "NOPE")
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, permanent errors must not be retried", inner.calls)
	}
}

func TestDoesNotRetryQuoteUnavailable(t *testing.T) {
	inner := &flakyMarket{failures: 100, err: broker.ErrQuoteUnavailable}
	m := NewMarketData(inner, testLogger(), fastConfig())

	_, err := m.GetOptionQuote(context.Background(), models.OptionContract{Symbol: "SPY"})
	if !errors.Is(err, broker.ErrQuoteUnavailable) {
		t.Fatalf("err = %v, want ErrQuoteUnavailable", err)
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, missing greeks are an answer, not a transient fault", inner.calls)
	}
}

func TestContextCancellationStopsRetries(t *testing.T) {
	inner := &flakyMarket{failures: 100, err: errors.New("connection reset")}
	m := NewMarketData(inner, testLogger(), Config{
		MaxRetries:     5,
		InitialBackoff: time.Hour,
		MaxBackoff:     time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := m.GetUnderlyingPrice(ctx, "SPY")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, want 1 before cancellation", inner.calls)
	}
}
