package models

import "time"

// Side of the book a bucket or wall belongs to.
type Side string

const (
	SideSupport    Side = "support"
	SideResistance Side = "resistance"
)

// AggregatedBook holds cumulative quantities per discretized price bucket,
// one map per side. All bucket keys are settlement-currency prices and unique
// per side; quantities are never negative.
type AggregatedBook struct {
	Bids map[float64]float64 `json:"bids"`
	Asks map[float64]float64 `json:"asks"`
}

// NewAggregatedBook returns fresh empty maps for one scan cycle.
func NewAggregatedBook() AggregatedBook {
	return AggregatedBook{
		Bids: make(map[float64]float64),
		Asks: make(map[float64]float64),
	}
}

// Empty reports whether no bucket survived aggregation on either side.
func (b AggregatedBook) Empty() bool {
	return len(b.Bids) == 0 && len(b.Asks) == 0
}

// Wall is the dominant liquidity level detected on one side of the book.
type Wall struct {
	Price float64 `json:"price"`
	Side  Side    `json:"side"`
}

// DepthRow is one renderable row of the aggregated liquidity table.
type DepthRow struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
	Side   Side    `json:"side"`
}

// SourceStatus records the outcome of one source fetch within a cycle.
type SourceStatus struct {
	Source  string        `json:"source"`
	OK      bool          `json:"ok"`
	Error   string        `json:"error,omitempty"`
	Entries int           `json:"entries"`
	Latency time.Duration `json:"latency"`
}

// ScanResult is the complete, self-contained outcome of one scan cycle. It
// replaces ambient per-cycle state: everything a renderer or exporter needs
// is carried here.
type ScanResult struct {
	ID              string         `json:"id"`
	Symbol          string         `json:"symbol"`
	ReferencePrice  float64        `json:"reference_price"`
	ReferenceOrigin string         `json:"reference_origin"`
	ConversionRate  float64        `json:"conversion_rate"`
	RateDegraded    bool           `json:"rate_degraded"`
	SupportWall     Wall           `json:"support_wall"`
	ResistanceWall  Wall           `json:"resistance_wall"`
	Book            AggregatedBook `json:"book"`
	Rows            []DepthRow     `json:"rows"`
	Report          []SourceStatus `json:"report"`
	StartedAt       time.Time      `json:"started_at"`
	Duration        time.Duration  `json:"duration"`
}

// NoData reports whether every configured source failed in this cycle.
func (r *ScanResult) NoData() bool {
	for _, st := range r.Report {
		if st.OK {
			return false
		}
	}
	return true
}
