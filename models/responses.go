package models

import "encoding/json"

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// KRAKEN ////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// KrakenDepthResp mirrors Kraken's /0/public/Depth response. The result is a
// map keyed by Kraken's internal pair name; each level is a variable-length
// tuple of price, volume and timestamp with mixed JSON types.
type KrakenDepthResp struct {
	Error  []string                   `json:"error"`
	Result map[string]KrakenDepthBook `json:"result"`
}

type KrakenDepthBook struct {
	Bids [][]json.RawMessage `json:"bids"`
	Asks [][]json.RawMessage `json:"asks"`
}

// KrakenTickerResp mirrors Kraken's /0/public/Ticker response. Only the last
// trade close array ("c") is used for the conversion rate and the last-resort
// spot lookup.
type KrakenTickerResp struct {
	Error  []string                    `json:"error"`
	Result map[string]KrakenTickerInfo `json:"result"`
}

type KrakenTickerInfo struct {
	Close []string `json:"c"`
}

/////////////////////////////////////////////////////////////////////////////
//////////////////////////////// COINBASE ///////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// CoinbaseBookResp mirrors the Coinbase Exchange level2 book endpoint. Levels
// are [price, size, num_orders] tuples where num_orders is a JSON number.
type CoinbaseBookResp struct {
	Sequence int64               `json:"sequence"`
	Bids     [][]json.RawMessage `json:"bids"`
	Asks     [][]json.RawMessage `json:"asks"`
}

/////////////////////////////////////////////////////////////////////////////
////////////////////////////// HYPERLIQUID //////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// HyperliquidLevel is one price level of the l2Book response. Prices and
// sizes arrive as strings quoted in USDC, treated as USD.
type HyperliquidLevel struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

// HyperliquidBookResp mirrors the l2Book info response: levels[0] are bids,
// levels[1] are asks.
type HyperliquidBookResp struct {
	Coin   string               `json:"coin"`
	Time   int64                `json:"time"`
	Levels [][]HyperliquidLevel `json:"levels"`
}

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// BYBIT /////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// BybitBookResult mirrors the result payload of Bybit's v5 orderbook
// endpoint as returned through the bybit.go.api client.
type BybitBookResult struct {
	Symbol    string     `json:"s"`
	Bids      [][]string `json:"b"`
	Asks      [][]string `json:"a"`
	Timestamp int64      `json:"ts"`
	UpdateID  int64      `json:"u"`
}
