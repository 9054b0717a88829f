package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Mald0r0r000/market-radar-tool/config"
	"github.com/Mald0r0r000/market-radar-tool/logger"
	"github.com/Mald0r0r000/market-radar-tool/models"
)

// HyperliquidSource fetches the l2 book from the Hyperliquid info endpoint.
// The DEX quotes in USDC, which the scan treats as USD (foreign fiat).
type HyperliquidSource struct {
	cfg     *config.Config
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Log
}

func NewHyperliquidSource(cfg *config.Config) *HyperliquidSource {
	return &HyperliquidSource{
		cfg:     cfg,
		client:  newHTTPClient(cfg),
		limiter: newLimiter(cfg),
		log:     logger.GetLogger(),
	}
}

func (s *HyperliquidSource) Name() string { return "hyperliquid" }

func (s *HyperliquidSource) Settlement() models.SettlementCurrency {
	return models.SettlementForeignFiat
}

func (s *HyperliquidSource) FetchOrderBook(ctx context.Context) (*models.OrderBookSnapshot, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	log := s.log.WithComponent("hyperliquid_source").WithFields(logger.Fields{
		"coin":      s.cfg.Sources.Hyperliquid.Coin,
		"operation": "fetch_orderbook",
	})

	payload, err := json.Marshal(map[string]string{
		"type": "l2Book",
		"coin": s.cfg.Sources.Hyperliquid.Coin,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Sources.Hyperliquid.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.cfg.Reader.UserAgent)

	start := time.Now()
	resp, err := s.client.Do(req)
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
	logger.LogPerformanceEntry(log, "hyperliquid_source", "api_request", time.Since(start), nil)

	var book models.HyperliquidBookResp
	if err := json.Unmarshal(body, &book); err != nil {
		return nil, fmt.Errorf("failed to decode l2Book response: %w", err)
	}
	if len(book.Levels) < 2 {
		return nil, fmt.Errorf("l2Book response missing levels")
	}

	snapshot := &models.OrderBookSnapshot{
		Source:     s.Name(),
		Symbol:     s.cfg.Sources.Hyperliquid.Coin,
		Settlement: s.Settlement(),
		FetchedAt:  time.Now().UTC(),
	}
	for _, level := range book.Levels[0] {
		if q, ok := parseQuote(level.Px, level.Sz); ok {
			snapshot.Bids = append(snapshot.Bids, q)
		}
	}
	for _, level := range book.Levels[1] {
		if q, ok := parseQuote(level.Px, level.Sz); ok {
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
