package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "github.com/Mald0r0r000/market-radar-tool/config"
	"github.com/Mald0r0r000/market-radar-tool/logger"
	"github.com/Mald0r0r000/market-radar-tool/models"
)

// DepthRecord is the parquet row layout for one aggregated depth bucket of
// a scan cycle, alongside the cycle's reference price and detected walls so
// each file is self-describing.
type DepthRecord struct {
	ScanID         string  `parquet:"name=scan_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol         string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp      int64   `parquet:"name=timestamp, type=INT64"`
	Side           string  `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price          float64 `parquet:"name=price, type=DOUBLE"`
	Volume         float64 `parquet:"name=volume, type=DOUBLE"`
	ReferencePrice float64 `parquet:"name=reference_price, type=DOUBLE"`
	ConversionRate float64 `parquet:"name=conversion_rate, type=DOUBLE"`
	SupportWall    float64 `parquet:"name=support_wall, type=DOUBLE"`
	ResistanceWall float64 `parquet:"name=resistance_wall, type=DOUBLE"`
}

// s3API is the slice of the S3 client the exporter uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// DepthExporter persists each scan's filtered depth table to S3 as a
// parquet file, partitioned by date.
type DepthExporter struct {
	cfg      *appconfig.Config
	s3Client s3API
	log      *logger.Log
}

// NewDepthExporter builds the exporter and validates AWS credentials up
// front so a misconfigured bucket fails at startup rather than mid-scan.
func NewDepthExporter(ctx context.Context, cfg *appconfig.Config) (*DepthExporter, error) {
	log := logger.GetLogger()

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	exporter := &DepthExporter{
		cfg:      cfg,
		s3Client: s3.NewFromConfig(awsCfg),
		log:      log,
	}

	log.WithComponent("depth_exporter").WithFields(logger.Fields{
		"bucket": cfg.Storage.S3.Bucket,
		"region": cfg.Storage.S3.Region,
		"prefix": cfg.Storage.S3.Prefix,
	}).Info("depth exporter initialized")

	return exporter, nil
}

// Export writes one scan's depth rows to S3. A cycle without rows is
// skipped; export failures are returned but never abort the scan loop.
func (e *DepthExporter) Export(ctx context.Context, result *models.ScanResult) error {
	log := e.log.WithComponent("depth_exporter").WithFields(logger.Fields{
		"scan_id":   result.ID,
		"symbol":    result.Symbol,
		"row_count": len(result.Rows),
		"operation": "export",
	})

	if len(result.Rows) == 0 {
		log.Debug("scan produced no depth rows, skipping export")
		return nil
	}

	data, err := e.createParquetFile(result)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}

	key := e.objectKey(result)
	if err := e.upload(ctx, key, data); err != nil {
		log.WithError(err).
			WithEnv("S3_BUCKET").
			WithFields(logger.Fields{"bucket": e.cfg.Storage.S3.Bucket, "s3_key": key}).
			Error("failed to upload to S3")
		return err
	}

	logger.IncrementExportWrite(int64(len(data)))
	log.WithFields(logger.Fields{"s3_key": key, "file_size": len(data)}).Info("depth table exported")
	e.log.LogMetric("depth_exporter", "export_bytes", len(data), "counter",
		logger.Fields{"symbol": result.Symbol})
	return nil
}

func (e *DepthExporter) objectKey(result *models.ScanResult) string {
	ts := result.StartedAt.UTC()
	filename := fmt.Sprintf("depth_%s_%s.parquet", ts.Format("20060102150405"), result.ID)
	return path.Join(
		e.cfg.Storage.S3.Prefix,
		fmt.Sprintf("date=%s", ts.Format("2006-01-02")),
		filename,
	)
}

func (e *DepthExporter) createParquetFile(result *models.ScanResult) ([]byte, error) {
	fw := newMemoryFileWriter()

	pw, err := writer.NewParquetWriter(fw, new(DepthRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	ts := result.StartedAt.UnixMilli()
	for _, row := range result.Rows {
		record := DepthRecord{
			ScanID:         result.ID,
			Symbol:         result.Symbol,
			Timestamp:      ts,
			Side:           string(row.Side),
			Price:          row.Price,
			Volume:         row.Volume,
			ReferencePrice: result.ReferencePrice,
			ConversionRate: result.ConversionRate,
			SupportWall:    result.SupportWall.Price,
			ResistanceWall: result.ResistanceWall.Price,
		}
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return fw.Bytes(), nil
}

func (e *DepthExporter) upload(ctx context.Context, key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(e.cfg.Storage.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":  "parquet",
			"radar-version": e.cfg.Radar.Version,
		},
	}

	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if _, err := e.s3Client.PutObject(uploadCtx, input); err != nil {
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", e.cfg.Storage.S3.Bucket, err)
	}
	return nil
}
