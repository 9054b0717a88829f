package models

import "time"

// SettlementCurrency tags the currency an order book is quoted in relative to
// the common settlement currency of the scan.
type SettlementCurrency int

const (
	// SettlementNative means the book is already quoted in the settlement
	// currency (USDT in the default setup) and needs no conversion.
	SettlementNative SettlementCurrency = iota
	// SettlementForeignFiat means the book is quoted in the foreign fiat
	// (USD) and prices must be divided by the conversion rate.
	SettlementForeignFiat
)

func (s SettlementCurrency) String() string {
	switch s {
	case SettlementNative:
		return "native"
	case SettlementForeignFiat:
		return "foreign_fiat"
	default:
		return "unknown"
	}
}

// Quote represents a single price level in exchange-native units.
type Quote struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBookSnapshot is one source's order book captured during a scan cycle.
// Bids and asks carry raw exchange-native prices; sort order is not
// guaranteed. Snapshots are never mutated after the fetch.
type OrderBookSnapshot struct {
	Source     string             `json:"source"`
	Symbol     string             `json:"symbol"`
	Bids       []Quote            `json:"bids"`
	Asks       []Quote            `json:"asks"`
	Settlement SettlementCurrency `json:"settlement"`
	FetchedAt  time.Time          `json:"fetched_at"`
}
