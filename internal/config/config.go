package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	OCR     OCRConfig     `yaml:"ocr" mapstructure:"ocr"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Ledger  LedgerConfig  `yaml:"ledger" mapstructure:"ledger"`
	Feed    FeedConfig    `yaml:"feed" mapstructure:"feed"`
	Lots    LotsConfig    `yaml:"lots" mapstructure:"lots"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// OCRConfig configures document text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// ExtractConfig configures the field extraction heuristics.
type ExtractConfig struct {
	QuantityCeiling int      `yaml:"quantity_ceiling" mapstructure:"quantity_ceiling"`
	PatternsFile    string   `yaml:"patterns_file" mapstructure:"patterns_file"`
	DateLayouts     []string `yaml:"date_layouts" mapstructure:"date_layouts"`
}

// LedgerConfig configures where and how the inventory ledger is read.
type LedgerConfig struct {
	Location    string   `yaml:"location" mapstructure:"location"`
	Format      string   `yaml:"format" mapstructure:"format"`
	Sheet       string   `yaml:"sheet" mapstructure:"sheet"`
	DateLayouts []string `yaml:"date_layouts" mapstructure:"date_layouts"`
	MinYear     int      `yaml:"min_year" mapstructure:"min_year"`
}

// FeedConfig configures the carrier synchronization feed.
type FeedConfig struct {
	Location    string  `yaml:"location" mapstructure:"location"`
	Format      string  `yaml:"format" mapstructure:"format"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// LotsConfig configures the lot tracking aggregator.
type LotsConfig struct {
	CutoffYear int `yaml:"cutoff_year" mapstructure:"cutoff_year"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentDocuments int `yaml:"max_concurrent_documents" mapstructure:"max_concurrent_documents"`
	UpsertRetries          int `yaml:"upsert_retries" mapstructure:"upsert_retries"`
}

// ServerConfig configures the HTTP trigger server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty path looks
// for an optional config.yaml in the working directory; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("ORDERRECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "orderrecon.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("extract.quantity_ceiling", 10000)
	v.SetDefault("extract.date_layouts", []string{"1/2/2006", "1/2/06", "2006-01-02", "January 2, 2006", "Jan 2, 2006"})
	v.SetDefault("ledger.format", "auto")
	v.SetDefault("ledger.date_layouts", []string{"2/1/2006", "2006-01-02"})
	v.SetDefault("ledger.min_year", 1990)
	v.SetDefault("feed.format", "auto")
	v.SetDefault("feed.rate_per_sec", 5.0)
	v.SetDefault("feed.timeout_secs", 30)
	v.SetDefault("feed.max_retries", 3)
	v.SetDefault("lots.cutoff_year", 2020)
	v.SetDefault("batch.max_concurrent_documents", 4)
	v.SetDefault("batch.upsert_retries", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
