package processor

import (
	"math"
	"sort"

	"github.com/Mald0r0r000/market-radar-tool/models"
)

// WallParams tune the support/resistance detection window around the
// reference price. All values are settlement-currency denominated except
// ScanRange, which is a fraction of the reference price.
type WallParams struct {
	// ScanRange bounds the detection window to [ref*(1-r), ref*(1+r)].
	ScanRange float64
	// MinVolume drops buckets whose cumulative quantity is below it.
	MinVolume float64
	// NoiseBuffer excludes buckets within this absolute distance of the
	// reference price, where resting size churns too fast to be a wall.
	NoiseBuffer float64
}

// Filter restricts the aggregated book to the detection window and applies
// the minimum volume threshold. The result backs both wall detection and
// the depth rows of the scan report.
func Filter(book models.AggregatedBook, ref float64, p WallParams) models.AggregatedBook {
	low := ref * (1 - p.ScanRange)
	high := ref * (1 + p.ScanRange)

	out := models.NewAggregatedBook()
	for price, vol := range book.Bids {
		if price >= low && price <= high && vol >= p.MinVolume {
			out.Bids[price] = vol
		}
	}
	for price, vol := range book.Asks {
		if price >= low && price <= high && vol >= p.MinVolume {
			out.Asks[price] = vol
		}
	}
	return out
}

// DetectWalls locates the strongest support and resistance levels in a
// filtered book. A wall is the highest-volume bucket on its side outside
// the noise buffer; ties resolve to the lowest bucket price. When the
// exclusion leaves no candidate the bucket closest to the reference price
// stands in, and an empty side falls back to the reference price itself.
func DetectWalls(filtered models.AggregatedBook, ref float64, p WallParams) (support, resistance models.Wall) {
	support = models.Wall{
		Price: pickWall(filtered.Bids, ref, func(price float64) bool {
			return price < ref-p.NoiseBuffer
		}),
		Side: models.SideSupport,
	}
	resistance = models.Wall{
		Price: pickWall(filtered.Asks, ref, func(price float64) bool {
			return price > ref+p.NoiseBuffer
		}),
		Side: models.SideResistance,
	}
	return support, resistance
}

// pickWall selects the wall price for one side. outside reports whether a
// bucket clears the noise buffer.
func pickWall(side map[float64]float64, ref float64, outside func(float64) bool) float64 {
	if len(side) == 0 {
		return ref
	}

	best := math.NaN()
	bestVol := math.Inf(-1)
	for price, vol := range side {
		if !outside(price) {
			continue
		}
		if vol > bestVol || (vol == bestVol && price < best) {
			best, bestVol = price, vol
		}
	}
	if !math.IsNaN(best) {
		return best
	}

	// Every bucket sits inside the noise buffer; take the one closest to
	// the reference price instead of reporting nothing.
	closest := math.NaN()
	closestDist := math.Inf(1)
	for price := range side {
		dist := math.Abs(price - ref)
		if dist < closestDist || (dist == closestDist && price < closest) {
			closest, closestDist = price, dist
		}
	}
	return closest
}

// Rows flattens a filtered book into price-sorted depth rows for the scan
// report.
func Rows(filtered models.AggregatedBook) []models.DepthRow {
	rows := make([]models.DepthRow, 0, len(filtered.Bids)+len(filtered.Asks))
	for price, vol := range filtered.Bids {
		rows = append(rows, models.DepthRow{Price: price, Volume: vol, Side: models.SideSupport})
	}
	for price, vol := range filtered.Asks {
		rows = append(rows, models.DepthRow{Price: price, Volume: vol, Side: models.SideResistance})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Price != rows[j].Price {
			return rows[i].Price < rows[j].Price
		}
		return rows[i].Side < rows[j].Side
	})
	return rows
}
