package processor

import (
	"context"
	"math"

	"github.com/Mald0r0r000/market-radar-tool/logger"
)

// DefaultReferencePrice anchors a scan when neither the aggregated books
// nor the external lookup yield a usable price. It is a coarse safety net,
// not a market estimate; the resulting scan degrades visibly in the report.
const DefaultReferencePrice = 100000.0

// Reference price origins, reported per scan so a degraded estimate is
// distinguishable from a healthy one.
const (
	ReferenceFromMidPrices = "mid_price_mean"
	ReferenceFromLookup    = "external_lookup"
	ReferenceFromFallback  = "fallback_constant"
)

// ReferenceEstimator derives the scan's reference price from per-source
// mid-prices, falling back to an external spot lookup and then to a fixed
// constant when no market data is available.
type ReferenceEstimator struct {
	// Lookup resolves a last-resort spot price. Optional; a nil lookup
	// skips straight to the fallback constant.
	Lookup func(ctx context.Context) (float64, error)

	// Fallback replaces DefaultReferencePrice when positive.
	Fallback float64

	log *logger.Log
}

func NewReferenceEstimator(lookup func(ctx context.Context) (float64, error)) *ReferenceEstimator {
	return &ReferenceEstimator{
		Lookup: lookup,
		log:    logger.GetLogger(),
	}
}

// Estimate returns the reference price and the origin it was derived from.
// mids holds one mid-price per successfully fetched two-sided book.
func (e *ReferenceEstimator) Estimate(ctx context.Context, mids []float64) (float64, string) {
	log := e.logger().WithComponent("reference_estimator")

	if mean, ok := meanOf(mids); ok {
		return mean, ReferenceFromMidPrices
	}

	if e.Lookup != nil {
		price, err := e.Lookup(ctx)
		if err == nil && price > 0 {
			log.WithFields(logger.Fields{"price": price}).Warn("no mid-prices collected, using external spot lookup")
			return price, ReferenceFromLookup
		}
		if err != nil {
			log.WithError(err).Warn("external spot lookup failed")
		}
	}

	fallback := e.Fallback
	if fallback <= 0 {
		fallback = DefaultReferencePrice
	}
	log.WithFields(logger.Fields{"price": fallback}).Warn("no reference price available, using fallback constant")
	return fallback, ReferenceFromFallback
}

func (e *ReferenceEstimator) logger() *logger.Log {
	if e.log == nil {
		e.log = logger.GetLogger()
	}
	return e.log
}

// meanOf averages the finite positive values of mids. ok is false when no
// usable value remains.
func meanOf(mids []float64) (float64, bool) {
	sum, n := 0.0, 0
	for _, m := range mids {
		if m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			continue
		}
		sum += m
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
