package source

import (
	"context"
	"strconv"
	"time"

	api "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/api"
	spotmarket "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/generate/spot/market"
	sdktype "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/types"
	"golang.org/x/time/rate"

	"github.com/Mald0r0r000/market-radar-tool/config"
	"github.com/Mald0r0r000/market-radar-tool/logger"
	"github.com/Mald0r0r000/market-radar-tool/models"
)

// KucoinSource fetches part order books through the KuCoin universal SDK.
// The BTC-USDT book is already quoted in the settlement currency.
type KucoinSource struct {
	cfg       *config.Config
	marketAPI spotmarket.MarketAPI
	limiter   *rate.Limiter
	log       *logger.Log
}

func NewKucoinSource(cfg *config.Config) (*KucoinSource, error) {
	transportOpt := sdktype.NewTransportOptionBuilder().
		SetMaxIdleConns(cfg.Reader.ConnectionPool.MaxIdleConns).
		SetMaxIdleConnsPerHost(cfg.Reader.ConnectionPool.MaxIdleConns).
		SetMaxConnsPerHost(cfg.Reader.ConnectionPool.MaxConnsPerHost).
		SetIdleConnTimeout(cfg.Reader.ConnectionPool.IdleConnTimeout).
		SetTimeout(cfg.Reader.Timeout).
		Build()

	option := sdktype.NewClientOptionBuilder().
		WithSpotEndpoint(cfg.Sources.Kucoin.URL).
		WithTransportOption(transportOpt).
		Build()

	client := api.NewClient(option)
	marketAPI := client.RestService().GetSpotService().GetMarketAPI()

	return &KucoinSource{
		cfg:       cfg,
		marketAPI: marketAPI,
		limiter:   newLimiter(cfg),
		log:       logger.GetLogger(),
	}, nil
}

func (s *KucoinSource) Name() string { return "kucoin" }

func (s *KucoinSource) Settlement() models.SettlementCurrency {
	return models.SettlementNative
}

func (s *KucoinSource) FetchOrderBook(ctx context.Context) (*models.OrderBookSnapshot, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	log := s.log.WithComponent("kucoin_source").WithFields(logger.Fields{
		"symbol":    s.cfg.Sources.Kucoin.Symbol,
		"operation": "fetch_orderbook",
	})

	req := spotmarket.NewGetPartOrderBookReqBuilder().
		SetSymbol(s.cfg.Sources.Kucoin.Symbol).
		SetSize(strconv.Itoa(s.cfg.Sources.Kucoin.Limit)).
		Build()

	start := time.Now()
	resp, err := s.marketAPI.GetPartOrderBook(req, ctx)
	if err != nil {
		return nil, err
	}
	logger.LogPerformanceEntry(log, "kucoin_source", "api_request", time.Since(start), nil)

	snapshot := &models.OrderBookSnapshot{
		Source:     s.Name(),
		Symbol:     s.cfg.Sources.Kucoin.Symbol,
		Bids:       parsePairQuotes(resp.Bids),
		Asks:       parsePairQuotes(resp.Asks),
		Settlement: s.Settlement(),
		FetchedAt:  time.Now().UTC(),
	}

	logger.IncrementSourceRead(s.Name(), len(snapshot.Bids)+len(snapshot.Asks))
	log.WithFields(logger.Fields{
		"bids": len(snapshot.Bids),
		"asks": len(snapshot.Asks),
	}).Debug("orderbook snapshot fetched")

	return snapshot, nil
}
