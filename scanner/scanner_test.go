package scanner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Mald0r0r000/market-radar-tool/config"
	"github.com/Mald0r0r000/market-radar-tool/models"
	"github.com/Mald0r0r000/market-radar-tool/source"
)

type stubSource struct {
	name       string
	settlement models.SettlementCurrency
	snapshot   *models.OrderBookSnapshot
	err        error
	calls      *atomic.Int64
	calledAt   int64
}

func (s *stubSource) Name() string                          { return s.name }
func (s *stubSource) Settlement() models.SettlementCurrency { return s.settlement }

func (s *stubSource) FetchOrderBook(ctx context.Context) (*models.OrderBookSnapshot, error) {
	if s.calls != nil {
		s.calledAt = s.calls.Add(1)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

type stubRate struct {
	rate     float64
	degraded bool
	spot     float64
	spotErr  error
	calls    *atomic.Int64
	calledAt int64
}

func (r *stubRate) FetchReferenceRate(ctx context.Context) (float64, bool) {
	if r.calls != nil {
		r.calledAt = r.calls.Add(1)
	}
	return r.rate, r.degraded
}

func (r *stubRate) SpotLookup(ctx context.Context) (float64, error) {
	return r.spot, r.spotErr
}

func scanConfig() *config.Config {
	return &config.Config{
		Radar: config.RadarConfig{Name: "test", Version: "0.0.1", Symbol: "BTC/USDT"},
		Scan: config.ScanConfig{
			BucketSize:  1,
			RangePct:    0.15,
			MinVolume:   0,
			NoiseBuffer: 0.5,
		},
		Reader: config.ReaderConfig{Timeout: time.Second},
	}
}

func quotes(pairs ...float64) []models.Quote {
	qs := make([]models.Quote, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		qs = append(qs, models.Quote{Price: pairs[i], Quantity: pairs[i+1]})
	}
	return qs
}

func TestRunAggregatesAcrossSources(t *testing.T) {
	// A foreign-fiat book at rate 1.02 and a native book landing in the
	// same buckets after normalization.
	fiat := &stubSource{
		name:       "kraken",
		settlement: models.SettlementForeignFiat,
		snapshot: &models.OrderBookSnapshot{
			Source:     "kraken",
			Settlement: models.SettlementForeignFiat,
			Bids:       quotes(100.98, 2), // 99 USDT
			Asks:       quotes(103.02, 1), // 101 USDT
		},
	}
	native := &stubSource{
		name:       "binance",
		settlement: models.SettlementNative,
		snapshot: &models.OrderBookSnapshot{
			Source:     "binance",
			Settlement: models.SettlementNative,
			Bids:       quotes(99.2, 1, 100.1, 1),
			Asks:       quotes(101.3, 2),
		},
	}

	s := New(scanConfig(), []source.Source{fiat, native}, &stubRate{rate: 1.02})
	result := s.Run(context.Background())

	if got := result.Book.Bids[99]; got != 3 {
		t.Fatalf("expected bucket 99 to hold quantity 3, got %v", got)
	}
	if got := result.Book.Bids[100]; got != 1 {
		t.Fatalf("expected bucket 100 to hold quantity 1, got %v", got)
	}
	if result.ReferenceOrigin != "mid_price_mean" {
		t.Fatalf("expected reference from mid-prices, got %q", result.ReferenceOrigin)
	}
	if result.SupportWall.Price != 99 {
		t.Fatalf("expected support wall at 99, got %v", result.SupportWall.Price)
	}
	if len(result.Report) != 2 {
		t.Fatalf("expected 2 source statuses, got %d", len(result.Report))
	}
}

func TestRunSurvivesPartialSourceFailure(t *testing.T) {
	good := &stubSource{
		name:       "binance",
		settlement: models.SettlementNative,
		snapshot: &models.OrderBookSnapshot{
			Source:     "binance",
			Settlement: models.SettlementNative,
			Bids:       quotes(99, 5),
			Asks:       quotes(101, 2),
		},
	}
	bad := &stubSource{name: "bybit", err: errors.New("upstream 503")}

	s := New(scanConfig(), []source.Source{good, bad}, &stubRate{rate: 1})
	result := s.Run(context.Background())

	if result.NoData() {
		t.Fatalf("expected the surviving source to contribute data")
	}
	var badStatus models.SourceStatus
	for _, st := range result.Report {
		if st.Source == "bybit" {
			badStatus = st
		}
	}
	if badStatus.OK || badStatus.Error == "" {
		t.Fatalf("expected the failing source to be reported, got %+v", badStatus)
	}
	if got := result.Book.Bids[99]; got != 5 {
		t.Fatalf("expected the healthy book to aggregate, got %v", got)
	}
}

func TestRunAllSourcesFailedFallsBackToReference(t *testing.T) {
	s := New(scanConfig(),
		[]source.Source{
			&stubSource{name: "kraken", err: errors.New("timeout")},
			&stubSource{name: "binance", err: errors.New("timeout")},
		},
		&stubRate{rate: 1, spot: 97000})

	result := s.Run(context.Background())

	if !result.NoData() {
		t.Fatalf("expected a no-data cycle")
	}
	if result.ReferencePrice != 97000 {
		t.Fatalf("expected reference from spot lookup, got %v", result.ReferencePrice)
	}
	if result.SupportWall.Price != 97000 || result.ResistanceWall.Price != 97000 {
		t.Fatalf("expected both walls at the reference price, got %v / %v",
			result.SupportWall.Price, result.ResistanceWall.Price)
	}
	if len(result.Rows) != 0 {
		t.Fatalf("expected no depth rows, got %d", len(result.Rows))
	}
}

func TestRunSpotLookupConvertedToSettlement(t *testing.T) {
	// No sources, so the reference can only come from the spot lookup. The
	// lookup quotes in the foreign fiat and must be divided by the cycle's
	// conversion rate before it centers the scan.
	s := New(scanConfig(), nil, &stubRate{rate: 2.0, spot: 100000})
	result := s.Run(context.Background())

	if result.ReferenceOrigin != "external_lookup" {
		t.Fatalf("expected reference from the spot lookup, got %q", result.ReferenceOrigin)
	}
	if result.ReferencePrice != 50000 {
		t.Fatalf("expected settlement-converted reference 50000, got %v", result.ReferencePrice)
	}
}

func TestRunResolvesRateBeforeFetching(t *testing.T) {
	var seq atomic.Int64
	rate := &stubRate{rate: 1, calls: &seq}
	src := &stubSource{
		name:       "binance",
		settlement: models.SettlementNative,
		snapshot: &models.OrderBookSnapshot{
			Source:     "binance",
			Settlement: models.SettlementNative,
			Bids:       quotes(99, 1),
			Asks:       quotes(101, 1),
		},
		calls: &seq,
	}

	s := New(scanConfig(), []source.Source{src}, rate)
	s.Run(context.Background())

	if rate.calledAt == 0 || src.calledAt == 0 {
		t.Fatalf("expected both the rate and the source to be queried")
	}
	if rate.calledAt >= src.calledAt {
		t.Fatalf("expected the conversion rate to resolve before any fetch (rate at %d, fetch at %d)",
			rate.calledAt, src.calledAt)
	}
}

func TestRunDegradedRateIsReported(t *testing.T) {
	s := New(scanConfig(), nil, &stubRate{rate: 1, degraded: true})
	result := s.Run(context.Background())

	if !result.RateDegraded {
		t.Fatalf("expected the degraded rate to surface in the result")
	}
	if result.ConversionRate != 1 {
		t.Fatalf("expected identity conversion rate, got %v", result.ConversionRate)
	}
}

func TestRunFreshStatePerCycle(t *testing.T) {
	src := &stubSource{
		name:       "binance",
		settlement: models.SettlementNative,
		snapshot: &models.OrderBookSnapshot{
			Source:     "binance",
			Settlement: models.SettlementNative,
			Bids:       quotes(99, 5),
			Asks:       quotes(101, 2),
		},
	}

	s := New(scanConfig(), []source.Source{src}, &stubRate{rate: 1})
	first := s.Run(context.Background())
	second := s.Run(context.Background())

	if first.ID == second.ID {
		t.Fatalf("expected distinct scan IDs per cycle")
	}
	if got := second.Book.Bids[99]; got != 5 {
		t.Fatalf("expected quantities not to accumulate across cycles, got %v", got)
	}
}
