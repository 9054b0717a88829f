package processor

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestEstimatePrefersMidPriceMean(t *testing.T) {
	est := NewReferenceEstimator(func(ctx context.Context) (float64, error) {
		t.Fatal("lookup must not run when mid-prices are available")
		return 0, nil
	})

	price, origin := est.Estimate(context.Background(), []float64{99000, 101000})
	if price != 100000 {
		t.Fatalf("expected mean 100000, got %v", price)
	}
	if origin != ReferenceFromMidPrices {
		t.Fatalf("expected origin %q, got %q", ReferenceFromMidPrices, origin)
	}
}

func TestEstimateIgnoresUnusableMids(t *testing.T) {
	est := NewReferenceEstimator(nil)

	price, origin := est.Estimate(context.Background(), []float64{math.NaN(), -5, 100000})
	if price != 100000 || origin != ReferenceFromMidPrices {
		t.Fatalf("expected the single usable mid to win, got %v (%s)", price, origin)
	}
}

func TestEstimateFallsBackToLookup(t *testing.T) {
	est := NewReferenceEstimator(func(ctx context.Context) (float64, error) {
		return 98765, nil
	})

	price, origin := est.Estimate(context.Background(), nil)
	if price != 98765 {
		t.Fatalf("expected lookup price 98765, got %v", price)
	}
	if origin != ReferenceFromLookup {
		t.Fatalf("expected origin %q, got %q", ReferenceFromLookup, origin)
	}
}

func TestEstimateFallsBackToConstant(t *testing.T) {
	est := NewReferenceEstimator(func(ctx context.Context) (float64, error) {
		return 0, errors.New("ticker unavailable")
	})

	price, origin := est.Estimate(context.Background(), nil)
	if price != DefaultReferencePrice {
		t.Fatalf("expected fallback constant %v, got %v", DefaultReferencePrice, price)
	}
	if origin != ReferenceFromFallback {
		t.Fatalf("expected origin %q, got %q", ReferenceFromFallback, origin)
	}
}

func TestEstimateCustomFallback(t *testing.T) {
	est := NewReferenceEstimator(nil)
	est.Fallback = 42000

	price, origin := est.Estimate(context.Background(), nil)
	if price != 42000 || origin != ReferenceFromFallback {
		t.Fatalf("expected custom fallback 42000, got %v (%s)", price, origin)
	}
}
