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

// CoinbaseSource fetches the full level2 spot book from Coinbase Exchange.
// Books are quoted in USD.
type CoinbaseSource struct {
	cfg     *config.Config
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Log
}

func NewCoinbaseSource(cfg *config.Config) *CoinbaseSource {
	return &CoinbaseSource{
		cfg:     cfg,
		client:  newHTTPClient(cfg),
		limiter: newLimiter(cfg),
		log:     logger.GetLogger(),
	}
}

func (s *CoinbaseSource) Name() string { return "coinbase" }

func (s *CoinbaseSource) Settlement() models.SettlementCurrency {
	return models.SettlementForeignFiat
}

func (s *CoinbaseSource) FetchOrderBook(ctx context.Context) (*models.OrderBookSnapshot, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	log := s.log.WithComponent("coinbase_source").WithFields(logger.Fields{
		"symbol":    s.cfg.Sources.Coinbase.Symbol,
		"operation": "fetch_orderbook",
	})

	url := fmt.Sprintf("%s/products/%s/book?level=2",
		s.cfg.Sources.Coinbase.URL, s.cfg.Sources.Coinbase.Symbol)

	start := time.Now()
	body, err := httpGetJSON(ctx, s.client, url, s.cfg.Reader.UserAgent)
	if err != nil {
		return nil, err
	}
	logger.LogPerformanceEntry(log, "coinbase_source", "api_request", time.Since(start), nil)

	var resp models.CoinbaseBookResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode book response: %w", err)
	}

	snapshot := &models.OrderBookSnapshot{
		Source:     s.Name(),
		Symbol:     s.cfg.Sources.Coinbase.Symbol,
		Settlement: s.Settlement(),
		FetchedAt:  time.Now().UTC(),
	}
	for _, tuple := range resp.Bids {
		if q, ok := parseTupleQuote(tuple); ok {
			snapshot.Bids = append(snapshot.Bids, q)
		}
	}
	for _, tuple := range resp.Asks {
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
