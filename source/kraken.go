package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Mald0r0r000/market-radar-tool/config"
	"github.com/Mald0r0r000/market-radar-tool/logger"
	"github.com/Mald0r0r000/market-radar-tool/models"
)

// KrakenSource fetches spot order book snapshots from Kraken's public Depth
// endpoint. Kraken books are quoted in USD, so prices need conversion into
// the settlement currency.
type KrakenSource struct {
	cfg     *config.Config
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Log
}

func NewKrakenSource(cfg *config.Config) *KrakenSource {
	return &KrakenSource{
		cfg:     cfg,
		client:  newHTTPClient(cfg),
		limiter: newLimiter(cfg),
		log:     logger.GetLogger(),
	}
}

func (s *KrakenSource) Name() string { return "kraken" }

func (s *KrakenSource) Settlement() models.SettlementCurrency {
	return models.SettlementForeignFiat
}

func (s *KrakenSource) FetchOrderBook(ctx context.Context) (*models.OrderBookSnapshot, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	log := s.log.WithComponent("kraken_source").WithFields(logger.Fields{
		"symbol":    s.cfg.Sources.Kraken.Symbol,
		"operation": "fetch_orderbook",
	})

	url := fmt.Sprintf("%s?pair=%s&count=%d",
		s.cfg.Sources.Kraken.URL, s.cfg.Sources.Kraken.Symbol, s.cfg.Sources.Kraken.Limit)

	start := time.Now()
	body, err := httpGetJSON(ctx, s.client, url, s.cfg.Reader.UserAgent)
	if err != nil {
		return nil, err
	}
	logger.LogPerformanceEntry(log, "kraken_source", "api_request", time.Since(start), nil)

	var resp models.KrakenDepthResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode depth response: %w", err)
	}
	if len(resp.Error) > 0 {
		return nil, fmt.Errorf("kraken api error: %v", resp.Error)
	}

	// The result map is keyed by Kraken's internal pair name, which differs
	// from the requested one (XBTUSD -> XXBTZUSD). Take the first entry.
	var book models.KrakenDepthBook
	found := false
	for _, b := range resp.Result {
		book = b
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("depth response contains no pair data")
	}

	snapshot := &models.OrderBookSnapshot{
		Source:     s.Name(),
		Symbol:     s.cfg.Sources.Kraken.Symbol,
		Settlement: s.Settlement(),
		FetchedAt:  time.Now().UTC(),
	}
	for _, tuple := range book.Bids {
		if q, ok := parseTupleQuote(tuple); ok {
			snapshot.Bids = append(snapshot.Bids, q)
		}
	}
	for _, tuple := range book.Asks {
		if q, ok := parseTupleQuote(tuple); ok {
			snapshot.Asks = append(snapshot.Asks, q)
		}
	}

	logger.IncrementSourceRead(s.Name(), len(body))
	log.WithFields(logger.Fields{
		"bids": len(snapshot.Bids),
		"asks": len(snapshot.Asks),
	}).Debug("orderbook snapshot fetched")

	return snapshot, nil
}
