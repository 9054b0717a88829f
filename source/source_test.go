package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Mald0r0r000/market-radar-tool/config"
	"github.com/Mald0r0r000/market-radar-tool/models"
)

func minimalConfig() *config.Config {
	return &config.Config{
		Radar: config.RadarConfig{Name: "test", Version: "0.0.1"},
		Reader: config.ReaderConfig{
			Timeout:   2 * time.Second,
			UserAgent: "MarketRadar-test/1.0",
			ConnectionPool: config.ConnectionPoolConfig{
				MaxIdleConns:    2,
				MaxConnsPerHost: 2,
				IdleConnTimeout: 5 * time.Second,
			},
			RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10},
		},
	}
}

func TestParseQuoteRejectsBadLevels(t *testing.T) {
	cases := []struct {
		price, qty string
	}{
		{"abc", "1"},
		{"100", "xyz"},
		{"-100", "1"},
		{"100", "0"},
		{"0", "1"},
	}
	for _, tc := range cases {
		if _, ok := parseQuote(tc.price, tc.qty); ok {
			t.Fatalf("expected quote (%s, %s) to be rejected", tc.price, tc.qty)
		}
	}

	q, ok := parseQuote("117250.5", "0.75")
	if !ok || q.Price != 117250.5 || q.Quantity != 0.75 {
		t.Fatalf("expected valid quote to parse, got %+v ok=%v", q, ok)
	}
}

func TestParseTupleQuoteSkipsShortAndTypedTuples(t *testing.T) {
	short := []json.RawMessage{json.RawMessage(`"100"`)}
	if _, ok := parseTupleQuote(short); ok {
		t.Fatalf("expected short tuple to be rejected")
	}

	numeric := []json.RawMessage{json.RawMessage(`100`), json.RawMessage(`"1"`)}
	if _, ok := parseTupleQuote(numeric); ok {
		t.Fatalf("expected non-string price to be rejected")
	}

	// Kraken appends a numeric timestamp as the third element.
	full := []json.RawMessage{json.RawMessage(`"100.5"`), json.RawMessage(`"2"`), json.RawMessage(`1700000000`)}
	q, ok := parseTupleQuote(full)
	if !ok || q.Price != 100.5 || q.Quantity != 2 {
		t.Fatalf("expected tuple with trailing timestamp to parse, got %+v ok=%v", q, ok)
	}
}

func TestParsePairQuotesDropsMalformedLevels(t *testing.T) {
	levels := [][]string{
		{"100", "1"},
		{"bad", "1"},
		{"101"},
		{"102", "2"},
	}
	quotes := parsePairQuotes(levels)
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
}

func TestKrakenFetchOrderBook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pair") != "XBTUSD" {
			t.Errorf("unexpected pair: %s", r.URL.Query().Get("pair"))
		}
		w.Write([]byte(`{
			"error": [],
			"result": {
				"XXBTZUSD": {
					"bids": [["117000.1", "0.5", 1700000000], ["116900.0", "1.2", 1700000000]],
					"asks": [["117100.0", "0.8", 1700000000]]
				}
			}
		}`))
	}))
	defer server.Close()

	cfg := minimalConfig()
	cfg.Sources.Kraken = config.EndpointConfig{URL: server.URL, Symbol: "XBTUSD", Limit: 500}

	snap, err := NewKrakenSource(cfg).FetchOrderBook(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if snap.Settlement != models.SettlementForeignFiat {
		t.Fatalf("expected foreign fiat settlement, got %v", snap.Settlement)
	}
	if len(snap.Bids) != 2 || len(snap.Asks) != 1 {
		t.Fatalf("unexpected book: %d bids / %d asks", len(snap.Bids), len(snap.Asks))
	}
	if snap.Bids[0].Price != 117000.1 {
		t.Fatalf("unexpected best bid: %v", snap.Bids[0].Price)
	}
}

func TestKrakenAPIErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": ["EQuery:Unknown asset pair"], "result": {}}`))
	}))
	defer server.Close()

	cfg := minimalConfig()
	cfg.Sources.Kraken = config.EndpointConfig{URL: server.URL, Symbol: "NOPE", Limit: 10}

	if _, err := NewKrakenSource(cfg).FetchOrderBook(context.Background()); err == nil {
		t.Fatalf("expected an api error")
	}
}

func TestCoinbaseFetchOrderBook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/BTC-USD/book" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"bids": [["117000.5", "0.4", 3]],
			"asks": [["117050.0", "0.9", 1], ["bad", "1", 1]]
		}`))
	}))
	defer server.Close()

	cfg := minimalConfig()
	cfg.Sources.Coinbase = config.EndpointConfig{URL: server.URL, Symbol: "BTC-USD"}

	snap, err := NewCoinbaseSource(cfg).FetchOrderBook(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(snap.Bids) != 1 || len(snap.Asks) != 1 {
		t.Fatalf("expected the malformed ask to be dropped, got %d bids / %d asks", len(snap.Bids), len(snap.Asks))
	}
}

func TestHyperliquidFetchOrderBook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req["type"] != "l2Book" || req["coin"] != "BTC" {
			t.Errorf("unexpected request: %v", req)
		}
		w.Write([]byte(`{
			"levels": [
				[{"px": "116980.0", "sz": "0.6", "n": 2}],
				[{"px": "117020.0", "sz": "0.3", "n": 1}]
			]
		}`))
	}))
	defer server.Close()

	cfg := minimalConfig()
	cfg.Sources.Hyperliquid = config.HyperliquidConfig{URL: server.URL, Coin: "BTC"}

	snap, err := NewHyperliquidSource(cfg).FetchOrderBook(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(snap.Bids) != 1 || len(snap.Asks) != 1 {
		t.Fatalf("unexpected book: %d bids / %d asks", len(snap.Bids), len(snap.Asks))
	}
	if snap.Asks[0].Price != 117020.0 {
		t.Fatalf("unexpected best ask: %v", snap.Asks[0].Price)
	}
}

func TestHyperliquidMissingLevels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"levels": []}`))
	}))
	defer server.Close()

	cfg := minimalConfig()
	cfg.Sources.Hyperliquid = config.HyperliquidConfig{URL: server.URL, Coin: "BTC"}

	if _, err := NewHyperliquidSource(cfg).FetchOrderBook(context.Background()); err == nil {
		t.Fatalf("expected an error for a book without levels")
	}
}

func TestFetchReferenceRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": [], "result": {"USDTZUSD": {"c": ["1.0203", "100"]}}}`))
	}))
	defer server.Close()

	cfg := minimalConfig()
	cfg.Rate = config.RateConfig{URL: server.URL, Pair: "USDTZUSD"}

	rate, degraded := NewRateFetcher(cfg).FetchReferenceRate(context.Background())
	if degraded {
		t.Fatalf("expected a healthy rate fetch")
	}
	if rate != 1.0203 {
		t.Fatalf("expected rate 1.0203, got %v", rate)
	}
}

func TestFetchReferenceRatePicksRequestedPair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"error": [],
			"result": {
				"XXBTZUSD": {"c": ["117000.0", "1"]},
				"USDTZUSD": {"c": ["1.0101", "100"]}
			}
		}`))
	}))
	defer server.Close()

	cfg := minimalConfig()
	cfg.Rate = config.RateConfig{URL: server.URL, Pair: "USDTZUSD"}

	rate, degraded := NewRateFetcher(cfg).FetchReferenceRate(context.Background())
	if degraded {
		t.Fatalf("expected a healthy rate fetch")
	}
	if rate != 1.0101 {
		t.Fatalf("expected the requested pair's price 1.0101, got %v", rate)
	}
}

func TestFetchReferenceRateRenamedPair(t *testing.T) {
	// Kraken keys the result by its internal pair name; a single entry under
	// a different key still serves the requested pair.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": [], "result": {"USDTZUSD": {"c": ["1.02", "5"]}}}`))
	}))
	defer server.Close()

	cfg := minimalConfig()
	cfg.Rate = config.RateConfig{URL: server.URL, Pair: "USDTUSD"}

	rate, degraded := NewRateFetcher(cfg).FetchReferenceRate(context.Background())
	if degraded || rate != 1.02 {
		t.Fatalf("expected rate 1.02 from the renamed pair, got %v (degraded=%v)", rate, degraded)
	}
}

func TestFetchReferenceRateDegradesOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := minimalConfig()
	cfg.Rate = config.RateConfig{URL: server.URL, Pair: "USDTZUSD"}

	rate, degraded := NewRateFetcher(cfg).FetchReferenceRate(context.Background())
	if !degraded {
		t.Fatalf("expected a degraded rate")
	}
	if rate != 1.0 {
		t.Fatalf("expected identity fallback rate, got %v", rate)
	}
}

func TestBuildRegistryPreservesScanOrder(t *testing.T) {
	cfg := minimalConfig()
	cfg.Sources.Enabled = []string{"coinbase", "kraken", "hyperliquid"}
	cfg.Sources.Kraken = config.EndpointConfig{URL: "https://api.kraken.com/0/public/Depth", Symbol: "XBTUSD", Limit: 500}
	cfg.Sources.Coinbase = config.EndpointConfig{URL: "https://api.exchange.coinbase.com", Symbol: "BTC-USD"}
	cfg.Sources.Hyperliquid = config.HyperliquidConfig{URL: "https://api.hyperliquid.xyz/info", Coin: "BTC"}

	sources, err := BuildRegistry(cfg)
	if err != nil {
		t.Fatalf("registry build failed: %v", err)
	}
	want := []string{"coinbase", "kraken", "hyperliquid"}
	if len(sources) != len(want) {
		t.Fatalf("expected %d sources, got %d", len(want), len(sources))
	}
	for i, name := range want {
		if sources[i].Name() != name {
			t.Fatalf("expected source %d to be %s, got %s", i, name, sources[i].Name())
		}
	}
}

func TestBuildRegistryRejectsUnknownSource(t *testing.T) {
	cfg := minimalConfig()
	cfg.Sources.Enabled = []string{"mtgox"}

	if _, err := BuildRegistry(cfg); err == nil {
		t.Fatalf("expected an error for an unknown source")
	}
}
