package selector

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

var now0 = time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

// fakeMarket scripts the chain and per-contract quotes for one symbol.
type fakeMarket struct {
	spot        float64
	chain       models.Chain
	quotes      map[string]*broker.Quote
	unavailable map[string]bool
}

var _ broker.MarketData = (*fakeMarket)(nil)

func (f *fakeMarket) GetUnderlyingPrice(context.Context, string) (float64, error) {
	return f.spot, nil
}

func (f *fakeMarket) GetOptionChain(context.Context, string) (models.Chain, error) {
	return f.chain, nil
}

func (f *fakeMarket) GetOptionQuote(_ context.Context, c models.OptionContract) (*broker.Quote, error) {
	if f.unavailable[c.String()] {
		return nil, broker.ErrQuoteUnavailable
	}
	q, ok := f.quotes[c.String()]
	if !ok {
		return nil, broker.ErrQuoteUnavailable
	}
	return q, nil
}

func contractKey(strike float64, expiry time.Time) string {
	return models.OptionContract{Symbol: "SPY", Strike: strike, Expiry: expiry, Right: models.RightCall}.String()
}

func quote(mark, delta float64) *broker.Quote {
	return &broker.Quote{Mark: mark, Delta: &delta}
}

func testSelector(f *fakeMarket) *Selector {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := New(f, log)
	s.now = func() time.Time { return now0 }
	return s
}

func leapsParams() Params {
	return Params{
		Symbol:         "SPY",
		Policy:         MinDTE,
		DTE:            365,
		TargetDelta:    0.70,
		DeltaTolerance: 0.15,
		Side:           AtLeast,
		BandLowPct:     0.80,
		BandHighPct:    1.10,
	}
}

func TestMinDTESkipsExpiriesUnderFloor(t *testing.T) {
	exp300 := now0.AddDate(0, 0, 300)
	exp400 := now0.AddDate(0, 0, 400)

	f := &fakeMarket{
		spot: 500,
		chain: models.Chain{
			exp300: {470},
			exp400: {470},
		},
		quotes: map[string]*broker.Quote{
			contractKey(470, exp300): quote(9000, 0.71),
			contractKey(470, exp400): quote(11000, 0.71),
		},
	}

	sel, err := testSelector(f).Select(context.Background(), leapsParams())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !sel.Contract.Expiry.Equal(exp400) {
		t.Fatalf("picked expiry %s, want the first one past the 365-day floor (%s)",
			sel.Contract.Expiry.Format("2006-01-02"), exp400.Format("2006-01-02"))
	}
}

func TestNearestDTEPicksClosestExpiry(t *testing.T) {
	exp20 := now0.AddDate(0, 0, 20)
	exp35 := now0.AddDate(0, 0, 35)
	exp90 := now0.AddDate(0, 0, 90)

	f := &fakeMarket{
		spot: 500,
		chain: models.Chain{
			exp20: {520},
			exp35: {520},
			exp90: {520},
		},
		quotes: map[string]*broker.Quote{
			contractKey(520, exp20): quote(150, 0.30),
			contractKey(520, exp35): quote(200, 0.30),
			contractKey(520, exp90): quote(400, 0.30),
		},
	}

	p := Params{
		Symbol: "SPY", Policy: NearestDTE, DTE: 30,
		TargetDelta: 0.30, DeltaTolerance: 0.15, Side: AtMost,
		BandLowPct: 0.95, BandHighPct: 1.15,
	}
	sel, err := testSelector(f).Select(context.Background(), p)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !sel.Contract.Expiry.Equal(exp35) {
		t.Fatalf("picked expiry %s, want the 35-day one", sel.Contract.Expiry.Format("2006-01-02"))
	}
}

func TestPicksClosestDelta(t *testing.T) {
	exp := now0.AddDate(0, 0, 400)
	f := &fakeMarket{
		spot:  500,
		chain: models.Chain{exp: {460, 470, 480}},
		quotes: map[string]*broker.Quote{
			contractKey(460, exp): quote(12000, 0.78),
			contractKey(470, exp): quote(11000, 0.71),
			contractKey(480, exp): quote(10000, 0.64),
		},
	}

	sel, err := testSelector(f).Select(context.Background(), leapsParams())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.Contract.Strike != 470 {
		t.Fatalf("strike = %.0f, want 470 (closest to delta 0.70)", sel.Contract.Strike)
	}
	if sel.Delta != 0.71 || sel.Mark != 11000 {
		t.Fatalf("selection did not carry the quoted delta/mark: %+v", sel)
	}
}

func TestDeltaTieGoesToLowestStrike(t *testing.T) {
	exp := now0.AddDate(0, 0, 400)
	f := &fakeMarket{
		spot:  500,
		chain: models.Chain{exp: {460, 480}},
		quotes: map[string]*broker.Quote{
			contractKey(460, exp): quote(12000, 0.75),
			contractKey(480, exp): quote(10000, 0.65),
		},
	}

	sel, err := testSelector(f).Select(context.Background(), leapsParams())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.Contract.Strike != 460 {
		t.Fatalf("strike = %.0f, want 460 on an exact delta tie", sel.Contract.Strike)
	}
}

func TestAtLeastSideFilter(t *testing.T) {
	exp := now0.AddDate(0, 0, 400)
	f := &fakeMarket{
		spot:  500,
		chain: models.Chain{exp: {500}},
		quotes: map[string]*broker.Quote{
			// Below target - tolerance (0.55): too far out of the money for the long leg.
			contractKey(500, exp): quote(8000, 0.50),
		},
	}

	_, err := testSelector(f).Select(context.Background(), leapsParams())
	if !errors.Is(err, ErrNoContract) {
		t.Fatalf("err = %v, want ErrNoContract", err)
	}
}

func TestAtMostSideFilter(t *testing.T) {
	exp := now0.AddDate(0, 0, 30)
	f := &fakeMarket{
		spot:  500,
		chain: models.Chain{exp: {480, 520}},
		quotes: map[string]*broker.Quote{
			contractKey(480, exp): quote(500, 0.48), // above target + tolerance (0.45)
			contractKey(520, exp): quote(180, 0.30),
		},
	}

	p := Params{
		Symbol: "SPY", Policy: NearestDTE, DTE: 30,
		TargetDelta: 0.30, DeltaTolerance: 0.15, Side: AtMost,
		BandLowPct: 0.95, BandHighPct: 1.15,
	}
	sel, err := testSelector(f).Select(context.Background(), p)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.Contract.Strike != 520 {
		t.Fatalf("strike = %.0f, want 520 (0.48 delta filtered out)", sel.Contract.Strike)
	}
}

func TestUnavailableQuotesAreSkipped(t *testing.T) {
	exp := now0.AddDate(0, 0, 400)
	f := &fakeMarket{
		spot:  500,
		chain: models.Chain{exp: {460, 470}},
		quotes: map[string]*broker.Quote{
			contractKey(470, exp): quote(11000, 0.71),
		},
		unavailable: map[string]bool{contractKey(460, exp): true},
	}

	sel, err := testSelector(f).Select(context.Background(), leapsParams())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.Contract.Strike != 470 {
		t.Fatalf("strike = %.0f, want 470", sel.Contract.Strike)
	}
}

func TestNilDeltaIsSkipped(t *testing.T) {
	exp := now0.AddDate(0, 0, 400)
	f := &fakeMarket{
		spot:  500,
		chain: models.Chain{exp: {460, 470}},
		quotes: map[string]*broker.Quote{
			contractKey(460, exp): {Mark: 12000}, // no greeks
			contractKey(470, exp): quote(11000, 0.71),
		},
	}

	sel, err := testSelector(f).Select(context.Background(), leapsParams())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.Contract.Strike != 470 {
		t.Fatalf("strike = %.0f, want 470", sel.Contract.Strike)
	}
}

func TestFloorStrikeExcludesOwnedStrike(t *testing.T) {
	exp := now0.AddDate(0, 0, 30)
	f := &fakeMarket{
		spot:  500,
		chain: models.Chain{exp: {470, 480}},
		quotes: map[string]*broker.Quote{
			contractKey(470, exp): quote(900, 0.42),
			contractKey(480, exp): quote(700, 0.40),
		},
	}

	floor := 470.0
	p := Params{
		Symbol: "SPY", Policy: NearestDTE, DTE: 30,
		TargetDelta: 0.30, DeltaTolerance: 0.15, Side: AtMost,
		BandLowPct: 0.90, BandHighPct: 1.15,
		FloorStrike: &floor,
	}
	sel, err := testSelector(f).Select(context.Background(), p)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.Contract.Strike != 480 {
		t.Fatalf("strike = %.0f, want 480 (470 is the owned strike)", sel.Contract.Strike)
	}
}

func TestNoQualifyingExpiry(t *testing.T) {
	f := &fakeMarket{
		spot:  500,
		chain: models.Chain{now0.AddDate(0, 0, 200): {470}},
	}

	_, err := testSelector(f).Select(context.Background(), leapsParams())
	if !errors.Is(err, ErrNoContract) {
		t.Fatalf("err = %v, want ErrNoContract", err)
	}
}

func TestNoStrikesInsideBand(t *testing.T) {
	exp := now0.AddDate(0, 0, 400)
	f := &fakeMarket{
		spot:  500,
		chain: models.Chain{exp: {100, 900}},
	}

	_, err := testSelector(f).Select(context.Background(), leapsParams())
	if !errors.Is(err, ErrNoContract) {
		t.Fatalf("err = %v, want ErrNoContract", err)
	}
}
