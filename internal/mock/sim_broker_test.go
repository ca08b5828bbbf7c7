package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eddiefleurent/pmcc_bot/internal/broker"
	"github.com/eddiefleurent/pmcc_bot/internal/models"
)

func TestChainCoversLeapsHorizon(t *testing.T) {
	s := NewSimBroker(500)
	chain, err := s.GetOptionChain(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("chain: %v", err)
	}

	now := time.Now()
	var maxDTE int
	for _, exp := range chain.Expirations() {
		if dte := models.DaysUntil(now, exp); dte > maxDTE {
			maxDTE = dte
		}
	}
	if maxDTE < 365 {
		t.Fatalf("longest expiry only %d days out, LEAPS search needs >= 365", maxDTE)
	}
}

func TestDeltaDecreasesWithStrike(t *testing.T) {
	s := NewSimBroker(500)
	exp := time.Now().AddDate(0, 6, 0)

	var prev float64 = 1.1
	for _, strike := range []float64{400, 450, 500, 550, 600} {
		q, err := s.GetOptionQuote(context.Background(), models.OptionContract{
			Symbol: "SPY", Strike: strike, Expiry: exp, Right: models.RightCall,
		})
		if err != nil {
			t.Fatalf("quote %v: %v", strike, err)
		}
		if q.Delta == nil {
			t.Fatalf("missing delta at strike %v", strike)
		}
		if *q.Delta >= prev {
			t.Fatalf("delta %.3f at strike %v not below previous %.3f", *q.Delta, strike, prev)
		}
		prev = *q.Delta
	}
}

func TestDeepITMQuoteCarriesIntrinsic(t *testing.T) {
	s := NewSimBroker(500)
	q, err := s.GetOptionQuote(context.Background(), models.OptionContract{
		Symbol: "SPY", Strike: 400, Expiry: time.Now().AddDate(1, 1, 0), Right: models.RightCall,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Mark < 100*models.SharesPerContract {
		t.Fatalf("mark $%.2f below intrinsic value of a 100-point ITM call", q.Mark)
	}
}

func TestPlaceMarketOrderFillsAtMark(t *testing.T) {
	s := NewSimBroker(500)
	c := models.OptionContract{
		Symbol: "SPY", Strike: 520, Expiry: time.Now().AddDate(0, 1, 0), Right: models.RightCall,
	}

	q, err := s.GetOptionQuote(context.Background(), c)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	fill, err := s.PlaceMarketOrder(context.Background(), c, broker.Sell, 1, "tag")
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if fill != q.Mark {
		t.Fatalf("fill %.2f != mark %.2f", fill, q.Mark)
	}
	if s.Fills[broker.Sell] != 1 {
		t.Fatalf("fill counter = %d, want 1", s.Fills[broker.Sell])
	}
}

func TestFailOrdersReturnsOrderError(t *testing.T) {
	s := NewSimBroker(500)
	s.FailOrders = true

	_, err := s.PlaceMarketOrder(context.Background(), models.OptionContract{
		Symbol: "SPY", Strike: 520, Expiry: time.Now().AddDate(0, 1, 0), Right: models.RightCall,
	}, broker.Buy, 1, "tag")

	var orderErr *broker.OrderError
	if !errors.As(err, &orderErr) {
		t.Fatalf("err = %v, want *broker.OrderError", err)
	}
	if s.Fills[broker.Buy] != 0 {
		t.Fatal("failed order must not count as a fill")
	}
}
