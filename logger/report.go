package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type sourceStat struct {
	messages int64
	bytes    int64
}

var (
	sourceErrors int64
	sourceWarns  int64
	scanCycles   int64
	sourceReads  int64
	exportWrites int64
	sources      sync.Map // map[string]*sourceStat
)

func recordWarn(component string) {
	if strings.Contains(component, "source") || strings.Contains(component, "rate") {
		atomic.AddInt64(&sourceWarns, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "source") || strings.Contains(component, "rate") {
		atomic.AddInt64(&sourceErrors, 1)
	}
}

// IncrementSourceRead records one fetched order book snapshot of the given
// payload size for a source.
func IncrementSourceRead(source string, size int) {
	atomic.AddInt64(&sourceReads, 1)
	recordSource(source, size)
}

// IncrementScanCycle records one completed scan cycle.
func IncrementScanCycle() {
	atomic.AddInt64(&scanCycles, 1)
}

// IncrementExportWrite records one exported scan result of the given size.
func IncrementExportWrite(size int64) {
	atomic.AddInt64(&exportWrites, 1)
	recordSource("export", int(size))
}

func recordSource(name string, size int) {
	v, _ := sources.LoadOrStore(name, &sourceStat{})
	ss := v.(*sourceStat)
	atomic.AddInt64(&ss.messages, 1)
	atomic.AddInt64(&ss.bytes, int64(size))
}

// StartReport begins periodic logging of runtime and per-source statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()

	sourceData := map[string]map[string]int64{}
	sources.Range(func(k, v any) bool {
		name := k.(string)
		ss := v.(*sourceStat)
		sourceData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&ss.messages),
			"bytes":    atomic.LoadInt64(&ss.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	fields := Fields{
		"source_errors": atomic.LoadInt64(&sourceErrors),
		"source_warns":  atomic.LoadInt64(&sourceWarns),
		"scan_cycles":   atomic.LoadInt64(&scanCycles),
		"source_reads":  atomic.LoadInt64(&sourceReads),
		"export_writes": atomic.LoadInt64(&exportWrites),
		"goroutines":    runtime.NumGoroutine(),
		"cpu_percent":   cpuPct,
		"memory_mb":     int64(memStats.Used) / 1024 / 1024,
		"sources":       sourceData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("Radar-CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("Radar-MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		{MetricName: aws.String("Radar-SourceErrors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&sourceErrors)))},
		{MetricName: aws.String("Radar-SourceWarns"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&sourceWarns)))},
		{MetricName: aws.String("Radar-ScanCycles"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&scanCycles)))},
		{MetricName: aws.String("Radar-SourceReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&sourceReads)))},
		{MetricName: aws.String("Radar-ExportWrites"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&exportWrites)))},
	}

	for name, stats := range sourceData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("Radar-SourceMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Source"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("Radar-SourceBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Source"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
