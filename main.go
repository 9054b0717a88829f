package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Mald0r0r000/market-radar-tool/config"
	"github.com/Mald0r0r000/market-radar-tool/logger"
	"github.com/Mald0r0r000/market-radar-tool/models"
	"github.com/Mald0r0r000/market-radar-tool/scanner"
	"github.com/Mald0r0r000/market-radar-tool/source"
	"github.com/Mald0r0r000/market-radar-tool/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	once := flag.Bool("once", false, "Run a single scan cycle and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Radar.Name,
		"version": cfg.Radar.Version,
		"symbol":  cfg.Radar.Symbol,
	}).Info("starting market radar")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch {
		logger.InitCloudWatch(cfg.Storage.S3.Region, cfg.Metrics.Namespace)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	sources, err := source.BuildRegistry(cfg)
	if err != nil {
		log.WithError(err).Error("failed to build source registry")
		os.Exit(1)
	}

	var exporter *writer.DepthExporter
	if cfg.Storage.S3.Enabled {
		exporter, err = writer.NewDepthExporter(ctx, cfg)
		if err != nil {
			log.WithError(err).Error("failed to create depth exporter")
			os.Exit(1)
		}
	} else {
		log.WithComponent("main").Info("S3 storage disabled; skipping depth export")
	}

	s := scanner.New(cfg, sources, source.NewRateFetcher(cfg))

	runCycle := func() {
		result := s.Run(ctx)
		reportResult(log, result)
		if exporter != nil {
			if err := exporter.Export(ctx, result); err != nil {
				log.WithError(err).Warn("depth export failed")
			}
		}
	}

	if *once || cfg.Scan.IntervalMs <= 0 {
		runCycle()
		log.Info("market radar stopped")
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	interval := time.Duration(cfg.Scan.IntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.WithFields(logger.Fields{"interval": interval.String()}).Info("entering scan loop")
	runCycle()

	for {
		select {
		case sig := <-sigChan:
			log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
			cancel()
			log.Info("market radar stopped")
			return
		case <-ticker.C:
			runCycle()
		}
	}
}

// reportResult prints the human-facing cycle summary: walls, reference
// price and per-source outcomes.
func reportResult(log *logger.Log, result *models.ScanResult) {
	entry := log.WithComponent("main").WithFields(logger.Fields{
		"scan_id":          result.ID,
		"symbol":           result.Symbol,
		"reference_price":  result.ReferencePrice,
		"reference_origin": result.ReferenceOrigin,
		"support_wall":     result.SupportWall.Price,
		"resistance_wall":  result.ResistanceWall.Price,
	})

	if result.NoData() {
		entry.Warn("no order book data collected this cycle")
	} else {
		entry.Info("scan summary")
	}

	for _, st := range result.Report {
		srcEntry := log.WithComponent("main").WithFields(logger.Fields{
			"scan_id":    result.ID,
			"source":     st.Source,
			"entries":    st.Entries,
			"latency_ms": st.Latency.Milliseconds(),
		})
		if st.OK {
			srcEntry.Debug("source ok")
			continue
		}
		srcEntry.WithFields(logger.Fields{"error": st.Error}).Warn("source failed")
	}
}
