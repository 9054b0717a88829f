package processor

import (
	"math"

	"github.com/Mald0r0r000/market-radar-tool/models"
)

// Normalizer converts quoted prices into the settlement currency. Books
// quoted natively in the settlement currency pass through unchanged; books
// quoted in a foreign fiat are divided by the fiat price of one settlement
// unit.
type Normalizer struct {
	rate float64
}

// NewNormalizer builds a normalizer for the given conversion rate. A
// non-positive or non-finite rate collapses to the identity rate 1.0, the
// same degraded behavior the rate fetcher applies on failure.
func NewNormalizer(rate float64) Normalizer {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		rate = 1.0
	}
	return Normalizer{rate: rate}
}

// Factor returns the multiplier applied to prices quoted under the given
// settlement convention.
func (n Normalizer) Factor(settlement models.SettlementCurrency) float64 {
	if settlement == models.SettlementForeignFiat {
		return 1.0 / n.rate
	}
	return 1.0
}

// Price converts a single quoted price into the settlement currency.
func (n Normalizer) Price(price float64, settlement models.SettlementCurrency) float64 {
	return price * n.Factor(settlement)
}
