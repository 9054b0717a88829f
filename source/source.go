package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/Mald0r0r000/market-radar-tool/config"
	"github.com/Mald0r0r000/market-radar-tool/models"
)

// Source is one exchange capable of serving a one-shot order book snapshot.
// Each source is an independent failure domain: an error from FetchOrderBook
// never affects another source's contribution to the cycle.
type Source interface {
	Name() string
	Settlement() models.SettlementCurrency
	FetchOrderBook(ctx context.Context) (*models.OrderBookSnapshot, error)
}

// BuildRegistry instantiates the enabled sources in the configured scan
// order. Unknown names are rejected at config validation time, so this only
// fails on constructor errors.
func BuildRegistry(cfg *config.Config) ([]Source, error) {
	sources := make([]Source, 0, len(cfg.Sources.Enabled))
	for _, name := range cfg.Sources.Enabled {
		var (
			s   Source
			err error
		)
		switch name {
		case "kraken":
			s = NewKrakenSource(cfg)
		case "coinbase":
			s = NewCoinbaseSource(cfg)
		case "hyperliquid":
			s = NewHyperliquidSource(cfg)
		case "binance":
			s = NewBinanceSource(cfg)
		case "bybit":
			s = NewBybitSource(cfg)
		case "kucoin":
			s, err = NewKucoinSource(cfg)
		default:
			err = fmt.Errorf("unknown source '%s'", name)
		}
		if err != nil {
			return nil, fmt.Errorf("building source %s: %w", name, err)
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// newHTTPClient builds the pooled HTTP client shared by the REST sources.
func newHTTPClient(cfg *config.Config) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Reader.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Reader.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     cfg.Reader.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.Reader.ConnectionPool.IdleConnTimeout,
		DisableCompression:  false,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Reader.Timeout,
	}
}

// newLimiter builds the per-source request limiter from the reader config.
func newLimiter(cfg *config.Config) *rate.Limiter {
	rps := cfg.Reader.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Reader.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// httpGetJSON performs a GET against url and returns the body. Non-200
// statuses are errors so the caller's failure guard can absorb them.
func httpGetJSON(ctx context.Context, client *http.Client, url, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// parseQuote converts a price/quantity string pair into a Quote. Unparseable
// or non-positive values are rejected so one bad level never poisons a book.
func parseQuote(priceStr, qtyStr string) (models.Quote, bool) {
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return models.Quote{}, false
	}
	quantity, err := strconv.ParseFloat(qtyStr, 64)
	if err != nil {
		return models.Quote{}, false
	}
	if price <= 0 || quantity <= 0 {
		return models.Quote{}, false
	}
	return models.Quote{Price: price, Quantity: quantity}, true
}

// parseTupleQuote handles the variable-length mixed-type level tuples used by
// Kraken and Coinbase ([price, volume, ...extras]). Short tuples and
// non-string price or volume fields are skipped individually.
func parseTupleQuote(tuple []json.RawMessage) (models.Quote, bool) {
	if len(tuple) < 2 {
		return models.Quote{}, false
	}
	var priceStr, qtyStr string
	if err := json.Unmarshal(tuple[0], &priceStr); err != nil {
		return models.Quote{}, false
	}
	if err := json.Unmarshal(tuple[1], &qtyStr); err != nil {
		return models.Quote{}, false
	}
	return parseQuote(priceStr, qtyStr)
}

// parsePairQuotes converts [][2]string levels into quotes, dropping malformed
// entries one by one.
func parsePairQuotes(levels [][]string) []models.Quote {
	quotes := make([]models.Quote, 0, len(levels))
	for _, level := range levels {
		if len(level) < 2 {
			continue
		}
		if q, ok := parseQuote(level[0], level[1]); ok {
			quotes = append(quotes, q)
		}
	}
	return quotes
}
