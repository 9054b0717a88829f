package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"
	"golang.org/x/time/rate"

	"github.com/Mald0r0r000/market-radar-tool/config"
	"github.com/Mald0r0r000/market-radar-tool/logger"
	"github.com/Mald0r0r000/market-radar-tool/models"
)

// BybitSource fetches spot order book snapshots through the bybit.go.api v5
// client. The BTC/USDT book is already quoted in the settlement currency.
type BybitSource struct {
	cfg     *config.Config
	client  *bybit.Client
	limiter *rate.Limiter
	log     *logger.Log
}

func NewBybitSource(cfg *config.Config) *BybitSource {
	client := bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(cfg.Sources.Bybit.URL))
	client.HTTPClient = newHTTPClient(cfg)

	return &BybitSource{
		cfg:     cfg,
		client:  client,
		limiter: newLimiter(cfg),
		log:     logger.GetLogger(),
	}
}

func (s *BybitSource) Name() string { return "bybit" }

func (s *BybitSource) Settlement() models.SettlementCurrency {
	return models.SettlementNative
}

func (s *BybitSource) FetchOrderBook(ctx context.Context) (*models.OrderBookSnapshot, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	log := s.log.WithComponent("bybit_source").WithFields(logger.Fields{
		"symbol":    s.cfg.Sources.Bybit.Symbol,
		"operation": "fetch_orderbook",
	})

	params := map[string]interface{}{
		"category": "spot",
		"symbol":   s.cfg.Sources.Bybit.Symbol,
		"limit":    s.cfg.Sources.Bybit.Limit,
	}

	start := time.Now()
	resp, err := s.client.NewUtaBybitServiceWithParams(params).GetOrderBookInfo(ctx)
	if err != nil {
		return nil, err
	}
	logger.LogPerformanceEntry(log, "bybit_source", "api_request", time.Since(start), nil)

	payload, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal orderbook result: %w", err)
	}

	var book models.BybitBookResult
	if err := json.Unmarshal(payload, &book); err != nil {
		return nil, fmt.Errorf("failed to decode orderbook result: %w", err)
	}

	snapshot := &models.OrderBookSnapshot{
		Source:     s.Name(),
		Symbol:     s.cfg.Sources.Bybit.Symbol,
		Bids:       parsePairQuotes(book.Bids),
		Asks:       parsePairQuotes(book.Asks),
		Settlement: s.Settlement(),
		FetchedAt:  time.Now().UTC(),
	}

	logger.IncrementSourceRead(s.Name(), len(payload))
	log.WithFields(logger.Fields{
		"bids": len(snapshot.Bids),
		"asks": len(snapshot.Asks),
	}).Debug("orderbook snapshot fetched")

	return snapshot, nil
}
