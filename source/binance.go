package source

import (
	"context"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"github.com/Mald0r0r000/market-radar-tool/config"
	"github.com/Mald0r0r000/market-radar-tool/logger"
	"github.com/Mald0r0r000/market-radar-tool/models"
)

// BinanceSource fetches spot order book snapshots through the go-binance
// client. The BTC/USDT book is already quoted in the settlement currency.
type BinanceSource struct {
	cfg     *config.Config
	client  *binance.Client
	limiter *rate.Limiter
	log     *logger.Log
}

func NewBinanceSource(cfg *config.Config) *BinanceSource {
	client := binance.NewClient("", "")
	client.HTTPClient = newHTTPClient(cfg)
	if cfg.Sources.Binance.URL != "" {
		client.BaseURL = cfg.Sources.Binance.URL
	}

	return &BinanceSource{
		cfg:     cfg,
		client:  client,
		limiter: newLimiter(cfg),
		log:     logger.GetLogger(),
	}
}

func (s *BinanceSource) Name() string { return "binance" }

func (s *BinanceSource) Settlement() models.SettlementCurrency {
	return models.SettlementNative
}

func (s *BinanceSource) FetchOrderBook(ctx context.Context) (*models.OrderBookSnapshot, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	log := s.log.WithComponent("binance_source").WithFields(logger.Fields{
		"symbol":    s.cfg.Sources.Binance.Symbol,
		"operation": "fetch_orderbook",
	})

	start := time.Now()
	depth, err := s.client.NewDepthService().
		Symbol(s.cfg.Sources.Binance.Symbol).
		Limit(s.cfg.Sources.Binance.Limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	logger.LogPerformanceEntry(log, "binance_source", "api_request", time.Since(start), nil)

	snapshot := &models.OrderBookSnapshot{
		Source:     s.Name(),
		Symbol:     s.cfg.Sources.Binance.Symbol,
		Settlement: s.Settlement(),
		FetchedAt:  time.Now().UTC(),
	}
	for _, bid := range depth.Bids {
		if q, ok := parseQuote(bid.Price, bid.Quantity); ok {
			snapshot.Bids = append(snapshot.Bids, q)
		}
	}
	for _, ask := range depth.Asks {
		if q, ok := parseQuote(ask.Price, ask.Quantity); ok {
			snapshot.Asks = append(snapshot.Asks, q)
		}
	}

	logger.IncrementSourceRead(s.Name(), len(snapshot.Bids)+len(snapshot.Asks))
	log.WithFields(logger.Fields{
		"bids": len(snapshot.Bids),
		"asks": len(snapshot.Asks),
	}).Debug("orderbook snapshot fetched")

	return snapshot, nil
}
