package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Mald0r0r000/market-radar-tool/config"
	"github.com/Mald0r0r000/market-radar-tool/logger"
	"github.com/Mald0r0r000/market-radar-tool/models"
)

// RateFetcher resolves the conversion rate between the foreign fiat and the
// settlement currency (USDT/USD by default) from Kraken's public ticker. The
// rate is fetched once per scan cycle and shared read-only afterwards.
type RateFetcher struct {
	cfg    *config.Config
	client *http.Client
	log    *logger.Log
}

func NewRateFetcher(cfg *config.Config) *RateFetcher {
	return &RateFetcher{
		cfg:    cfg,
		client: newHTTPClient(cfg),
		log:    logger.GetLogger(),
	}
}

// FetchReferenceRate returns the foreign-fiat price of one settlement unit.
// On any failure it degrades to the identity rate 1.0 so the scan can
// continue with approximate conversion; degraded reports that condition.
func (f *RateFetcher) FetchReferenceRate(ctx context.Context) (rate float64, degraded bool) {
	log := f.log.WithComponent("rate_fetcher").WithFields(logger.Fields{
		"pair":      f.cfg.Rate.Pair,
		"operation": "fetch_reference_rate",
	})

	last, err := f.fetchTickerLast(ctx, f.cfg.Rate.Pair)
	if err != nil {
		log.WithError(err).Warn("conversion rate unavailable, degrading to identity rate")
		return 1.0, true
	}

	log.WithFields(logger.Fields{"rate": last}).Info("conversion rate resolved")
	return last, false
}

// SpotLookup fetches the last trade price for the scan symbol's fiat pair.
// It backs the reference price estimator's external last-resort fallback;
// the returned price is fiat-quoted and callers convert it into the
// settlement currency.
func (f *RateFetcher) SpotLookup(ctx context.Context) (float64, error) {
	return f.fetchTickerLast(ctx, f.cfg.Sources.Kraken.Symbol)
}

func (f *RateFetcher) fetchTickerLast(ctx context.Context, pair string) (float64, error) {
	url := fmt.Sprintf("%s?pair=%s", f.cfg.Rate.URL, pair)
	body, err := httpGetJSON(ctx, f.client, url, f.cfg.Reader.UserAgent)
	if err != nil {
		return 0, err
	}

	var resp models.KrakenTickerResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("failed to decode ticker response: %w", err)
	}
	if len(resp.Error) > 0 {
		return 0, fmt.Errorf("kraken api error: %v", resp.Error)
	}

	// Prefer an exact key match; Kraken answers under its internal pair
	// name (XBTUSD -> XXBTZUSD), in which case the single entry wins.
	info, ok := resp.Result[pair]
	if !ok {
		if len(resp.Result) > 1 {
			return 0, fmt.Errorf("ticker response is ambiguous: %d pairs for '%s'", len(resp.Result), pair)
		}
		for _, v := range resp.Result {
			info = v
		}
	}
	if len(info.Close) == 0 {
		return 0, fmt.Errorf("ticker response contains no close price")
	}

	last, err := strconv.ParseFloat(info.Close[0], 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse last price '%s': %w", info.Close[0], err)
	}
	if last <= 0 {
		return 0, fmt.Errorf("non-positive last price %v", last)
	}
	return last, nil
}
