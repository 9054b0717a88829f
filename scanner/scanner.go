package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mald0r0r000/market-radar-tool/config"
	"github.com/Mald0r0r000/market-radar-tool/logger"
	"github.com/Mald0r0r000/market-radar-tool/models"
	"github.com/Mald0r0r000/market-radar-tool/processor"
	"github.com/Mald0r0r000/market-radar-tool/source"
)

// RateSource resolves the fiat/settlement conversion rate and the
// last-resort spot price. Satisfied by source.RateFetcher.
type RateSource interface {
	FetchReferenceRate(ctx context.Context) (rate float64, degraded bool)
	SpotLookup(ctx context.Context) (float64, error)
}

// Scanner runs one scan cycle at a time: fetch every enabled source,
// aggregate the books, estimate the reference price and detect the walls.
// Each cycle starts from fresh state and returns a self-contained result.
type Scanner struct {
	cfg     *config.Config
	sources []source.Source
	rate    RateSource
	agg     *processor.Aggregator
	log     *logger.Log
}

func New(cfg *config.Config, sources []source.Source, rate RateSource) *Scanner {
	return &Scanner{
		cfg:     cfg,
		sources: sources,
		rate:    rate,
		agg:     processor.NewAggregator(cfg.Scan.BucketSize),
		log:     logger.GetLogger(),
	}
}

type fetchOutcome struct {
	snapshot *models.OrderBookSnapshot
	status   models.SourceStatus
}

// Run executes one full scan cycle. The conversion rate is resolved before
// any book is fetched so every snapshot in the cycle normalizes against the
// same rate; source failures degrade the cycle but never abort it.
func (s *Scanner) Run(ctx context.Context) *models.ScanResult {
	started := time.Now()
	scanID := uuid.New().String()
	log := s.log.WithComponent("scanner").WithFields(logger.Fields{"scan_id": scanID})

	rate, degraded := s.rate.FetchReferenceRate(ctx)
	norm := processor.NewNormalizer(rate)

	outcomes := s.fetchAll(ctx)

	snapshots := make([]*models.OrderBookSnapshot, 0, len(outcomes))
	report := make([]models.SourceStatus, 0, len(outcomes))
	for _, out := range outcomes {
		report = append(report, out.status)
		if out.status.OK {
			snapshots = append(snapshots, out.snapshot)
		}
	}

	book, mids := s.agg.Aggregate(snapshots, norm)

	// The spot lookup quotes in the foreign fiat; the reference price must
	// be in the settlement currency like every bucket it centers on.
	est := processor.NewReferenceEstimator(func(ctx context.Context) (float64, error) {
		spot, err := s.rate.SpotLookup(ctx)
		if err != nil {
			return 0, err
		}
		return norm.Price(spot, models.SettlementForeignFiat), nil
	})
	ref, origin := est.Estimate(ctx, mids)

	params := processor.WallParams{
		ScanRange:   s.cfg.Scan.RangePct,
		MinVolume:   s.cfg.Scan.MinVolume,
		NoiseBuffer: s.cfg.Scan.NoiseBuffer,
	}
	filtered := processor.Filter(book, ref, params)
	support, resistance := processor.DetectWalls(filtered, ref, params)

	result := &models.ScanResult{
		ID:              scanID,
		Symbol:          s.cfg.Radar.Symbol,
		ReferencePrice:  ref,
		ReferenceOrigin: origin,
		ConversionRate:  rate,
		RateDegraded:    degraded,
		SupportWall:     support,
		ResistanceWall:  resistance,
		Book:            book,
		Rows:            processor.Rows(filtered),
		Report:          report,
		StartedAt:       started,
		Duration:        time.Since(started),
	}

	logger.IncrementScanCycle()
	s.logCycle(log, result)
	return result
}

// fetchAll queries every source concurrently, each under its own timeout.
// The returned slice preserves registry order so reports stay stable.
func (s *Scanner) fetchAll(ctx context.Context) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(s.sources))

	var wg sync.WaitGroup
	for i, src := range s.sources {
		wg.Add(1)
		go func(i int, src source.Source) {
			defer wg.Done()
			outcomes[i] = s.fetchOne(ctx, src)
		}(i, src)
	}
	wg.Wait()

	return outcomes
}

func (s *Scanner) fetchOne(ctx context.Context, src source.Source) fetchOutcome {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.Reader.Timeout)
	defer cancel()

	started := time.Now()
	snap, err := src.FetchOrderBook(fetchCtx)
	latency := time.Since(started)

	status := models.SourceStatus{
		Source:  src.Name(),
		Latency: latency,
	}
	if err != nil {
		status.Error = err.Error()
		s.log.WithComponent("scanner").WithFields(logger.Fields{
			"source":     src.Name(),
			"latency_ms": latency.Milliseconds(),
		}).WithError(err).Warn("source fetch failed")
		return fetchOutcome{status: status}
	}

	status.OK = true
	status.Entries = len(snap.Bids) + len(snap.Asks)
	return fetchOutcome{snapshot: snap, status: status}
}

func (s *Scanner) logCycle(log *logger.Entry, result *models.ScanResult) {
	sourcesOK := 0
	for _, st := range result.Report {
		if st.OK {
			sourcesOK++
		}
	}

	entry := log.WithFields(logger.Fields{
		"symbol":           result.Symbol,
		"reference_price":  result.ReferencePrice,
		"reference_origin": result.ReferenceOrigin,
		"support_wall":     result.SupportWall.Price,
		"resistance_wall":  result.ResistanceWall.Price,
		"sources_ok":       sourcesOK,
		"sources_total":    len(result.Report),
		"duration_ms":      result.Duration.Milliseconds(),
	})
	if result.NoData() {
		entry.Warn("scan cycle completed without order book data")
		return
	}
	if result.RateDegraded {
		entry.Warn("scan cycle completed with degraded conversion rate")
		return
	}
	entry.Info("scan cycle completed")

	log.LogMetric("scanner", "scan_cycle_duration_ms", result.Duration.Milliseconds(), "gauge",
		logger.Fields{"symbol": result.Symbol, "sources_ok": sourcesOK})
}
