package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Radar   RadarConfig   `yaml:"radar"`
	Scan    ScanConfig    `yaml:"scan"`
	Reader  ReaderConfig  `yaml:"reader"`
	Rate    RateConfig    `yaml:"rate"`
	Sources SourcesConfig `yaml:"sources"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type RadarConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Symbol  string `yaml:"symbol"`
}

// ScanConfig holds the aggregation and wall detection policy. RangePct is the
// half-width of the price window as a fraction of the reference price, while
// NoiseBuffer is an absolute distance in the settlement currency.
type ScanConfig struct {
	BucketSize  float64 `yaml:"bucket_size"`
	RangePct    float64 `yaml:"range_pct"`
	MinVolume   float64 `yaml:"min_volume"`
	NoiseBuffer float64 `yaml:"noise_buffer"`
	IntervalMs  int     `yaml:"interval_ms"`
}

type ReaderConfig struct {
	Timeout        time.Duration        `yaml:"timeout"`
	UserAgent      string               `yaml:"user_agent"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

// RateConfig describes the reference conversion-rate fetch. The rate is the
// foreign fiat price of one settlement unit (USDT/USD in the default setup).
type RateConfig struct {
	URL  string `yaml:"url"`
	Pair string `yaml:"pair"`
}

type SourcesConfig struct {
	Enabled     []string          `yaml:"enabled"`
	Kraken      EndpointConfig    `yaml:"kraken"`
	Coinbase    EndpointConfig    `yaml:"coinbase"`
	Hyperliquid HyperliquidConfig `yaml:"hyperliquid"`
	Binance     EndpointConfig    `yaml:"binance"`
	Bybit       EndpointConfig    `yaml:"bybit"`
	Kucoin      EndpointConfig    `yaml:"kucoin"`
}

type EndpointConfig struct {
	URL    string `yaml:"url"`
	Symbol string `yaml:"symbol"`
	Limit  int    `yaml:"limit"`
}

type HyperliquidConfig struct {
	URL  string `yaml:"url"`
	Coin string `yaml:"coin"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch bool   `yaml:"cloudwatch"`
	Namespace  string `yaml:"namespace"`
}

// DefaultSources is the scan order when sources.enabled is omitted.
var DefaultSources = []string{"kraken", "coinbase", "binance", "bybit", "kucoin", "hyperliquid"}

// LoadConfig reads and validates the YAML configuration at path. Missing scan
// and reader knobs fall back to documented defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(config)

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			BucketSize:  100,
			RangePct:    0.15,
			MinVolume:   0,
			NoiseBuffer: 300,
		},
		Reader: ReaderConfig{
			Timeout:   5 * time.Second,
			UserAgent: "MarketRadar/1.0",
			ConnectionPool: ConnectionPoolConfig{
				MaxIdleConns:    10,
				MaxConnsPerHost: 10,
				IdleConnTimeout: 30 * time.Second,
			},
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 5,
				BurstSize:         1,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Radar.Symbol == "" {
		cfg.Radar.Symbol = "BTC/USDT"
	}
	if len(cfg.Sources.Enabled) == 0 {
		cfg.Sources.Enabled = append([]string(nil), DefaultSources...)
	}
	if cfg.Rate.URL == "" {
		cfg.Rate.URL = "https://api.kraken.com/0/public/Ticker"
	}
	if cfg.Rate.Pair == "" {
		cfg.Rate.Pair = "USDTZUSD"
	}
	if cfg.Sources.Kraken.URL == "" {
		cfg.Sources.Kraken.URL = "https://api.kraken.com/0/public/Depth"
	}
	if cfg.Sources.Kraken.Symbol == "" {
		cfg.Sources.Kraken.Symbol = "XBTUSD"
	}
	if cfg.Sources.Kraken.Limit == 0 {
		cfg.Sources.Kraken.Limit = 500
	}
	if cfg.Sources.Coinbase.URL == "" {
		cfg.Sources.Coinbase.URL = "https://api.exchange.coinbase.com"
	}
	if cfg.Sources.Coinbase.Symbol == "" {
		cfg.Sources.Coinbase.Symbol = "BTC-USD"
	}
	if cfg.Sources.Hyperliquid.URL == "" {
		cfg.Sources.Hyperliquid.URL = "https://api.hyperliquid.xyz/info"
	}
	if cfg.Sources.Hyperliquid.Coin == "" {
		cfg.Sources.Hyperliquid.Coin = "BTC"
	}
	if cfg.Sources.Binance.Symbol == "" {
		cfg.Sources.Binance.Symbol = "BTCUSDT"
	}
	if cfg.Sources.Binance.Limit == 0 {
		cfg.Sources.Binance.Limit = 1000
	}
	if cfg.Sources.Bybit.URL == "" {
		cfg.Sources.Bybit.URL = "https://api.bybit.com"
	}
	if cfg.Sources.Bybit.Symbol == "" {
		cfg.Sources.Bybit.Symbol = "BTCUSDT"
	}
	if cfg.Sources.Bybit.Limit == 0 {
		cfg.Sources.Bybit.Limit = 200
	}
	if cfg.Sources.Kucoin.URL == "" {
		cfg.Sources.Kucoin.URL = "https://api.kucoin.com"
	}
	if cfg.Sources.Kucoin.Symbol == "" {
		cfg.Sources.Kucoin.Symbol = "BTC-USDT"
	}
	// KuCoin only serves part books of 20 or 100 levels.
	if cfg.Sources.Kucoin.Limit == 0 {
		cfg.Sources.Kucoin.Limit = 100
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Radar.Name == "" {
		return fmt.Errorf("radar.name is required")
	}

	if cfg.Radar.Version == "" {
		return fmt.Errorf("radar.version is required")
	}

	if cfg.Scan.BucketSize <= 0 {
		return fmt.Errorf("scan.bucket_size must be greater than 0")
	}
	if cfg.Scan.RangePct <= 0 || cfg.Scan.RangePct >= 1 {
		return fmt.Errorf("scan.range_pct must be between 0 and 1")
	}
	if cfg.Scan.MinVolume < 0 {
		return fmt.Errorf("scan.min_volume must not be negative")
	}
	if cfg.Scan.NoiseBuffer < 0 {
		return fmt.Errorf("scan.noise_buffer must not be negative")
	}

	if cfg.Reader.Timeout <= 0 {
		return fmt.Errorf("reader.timeout must be greater than 0")
	}

	known := map[string]struct{}{
		"kraken": {}, "coinbase": {}, "binance": {}, "bybit": {}, "kucoin": {}, "hyperliquid": {},
	}
	seen := map[string]struct{}{}
	for _, name := range cfg.Sources.Enabled {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("sources.enabled contains unknown source '%s'", name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("sources.enabled lists source '%s' twice", name)
		}
		seen[name] = struct{}{}
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
