package processor

import (
	"math"

	"github.com/Mald0r0r000/market-radar-tool/logger"
	"github.com/Mald0r0r000/market-radar-tool/models"
)

// Aggregator merges normalized order book snapshots into a single depth
// surface keyed by price bucket. Each scan cycle builds a fresh aggregate;
// nothing is carried over between cycles.
type Aggregator struct {
	bucketSize float64
	log        *logger.Log
}

func NewAggregator(bucketSize float64) *Aggregator {
	return &Aggregator{
		bucketSize: bucketSize,
		log:        logger.GetLogger(),
	}
}

// Bucket maps a settlement-currency price onto its bucket key. Prices are
// rounded to the nearest bucket boundary; exact midpoints resolve to the
// even multiple (round half to even), so 150 with a bucket size of 100
// lands on 200 while 250 lands on 200 as well.
func (a *Aggregator) Bucket(price float64) float64 {
	return math.RoundToEven(price/a.bucketSize) * a.bucketSize
}

// Aggregate folds the snapshots into one bucketed book and collects one
// mid-price per snapshot that exposes both sides. Malformed quotes are
// skipped individually; a bad entry never discards the rest of its book.
func (a *Aggregator) Aggregate(snapshots []*models.OrderBookSnapshot, norm Normalizer) (models.AggregatedBook, []float64) {
	book := models.NewAggregatedBook()
	mids := make([]float64, 0, len(snapshots))

	for _, snap := range snapshots {
		if snap == nil {
			continue
		}
		log := a.log.WithComponent("aggregator").WithFields(logger.Fields{
			"source": snap.Source,
			"symbol": snap.Symbol,
		})

		factor := norm.Factor(snap.Settlement)
		skipped := 0

		bestBid := math.NaN()
		for _, q := range snap.Bids {
			price, ok := a.fold(book.Bids, q, factor)
			if !ok {
				skipped++
				continue
			}
			if math.IsNaN(bestBid) || price > bestBid {
				bestBid = price
			}
		}

		bestAsk := math.NaN()
		for _, q := range snap.Asks {
			price, ok := a.fold(book.Asks, q, factor)
			if !ok {
				skipped++
				continue
			}
			if math.IsNaN(bestAsk) || price < bestAsk {
				bestAsk = price
			}
		}

		if skipped > 0 {
			log.WithFields(logger.Fields{"skipped": skipped}).Warn("skipped malformed order book entries")
		}
		if !math.IsNaN(bestBid) && !math.IsNaN(bestAsk) {
			mids = append(mids, (bestBid+bestAsk)/2)
		}
	}

	return book, mids
}

// fold normalizes one quote, adds its quantity into the side map and
// returns the normalized price. Malformed quotes report ok=false.
func (a *Aggregator) fold(side map[float64]float64, q models.Quote, factor float64) (float64, bool) {
	if !validQuote(q) {
		return 0, false
	}
	price := q.Price * factor
	side[a.Bucket(price)] += q.Quantity
	return price, true
}

func validQuote(q models.Quote) bool {
	if q.Price <= 0 || math.IsNaN(q.Price) || math.IsInf(q.Price, 0) {
		return false
	}
	if q.Quantity <= 0 || math.IsNaN(q.Quantity) || math.IsInf(q.Quantity, 0) {
		return false
	}
	return true
}
