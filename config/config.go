package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Finnhub   FinnhubConfig   `mapstructure:"finnhub"`
	Yahoo     YahooConfig     `mapstructure:"yahoo"`
	Quotes    QuotesConfig    `mapstructure:"quotes"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Collector CollectorConfig `mapstructure:"collector"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

type StorageConfig struct {
	Backend  string `mapstructure:"backend"` // "memory" or "postgres"
	CreateDB bool   `mapstructure:"create_db"`
}

type LedgerConfig struct {
	StartingCash float64 `mapstructure:"starting_cash"`
}

type RESTConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type YahooConfig struct {
	REST RESTConfig `mapstructure:"rest"`
}

type QuotesConfig struct {
	Providers        []string `mapstructure:"providers"`
	HistoryProviders []string `mapstructure:"history_providers"`
	USDINRRate       float64  `mapstructure:"usd_inr_rate"`
	FetchConcurrency int      `mapstructure:"fetch_concurrency"`
}

// PolicyConfig holds freshness windows for one cache tier.
type PolicyConfig struct {
	OpenTTL     time.Duration `mapstructure:"open_ttl"`
	ClosedTTL   time.Duration `mapstructure:"closed_ttl"`
	MultiDayTTL time.Duration `mapstructure:"multi_day_ttl"`
	LongTTL     time.Duration `mapstructure:"long_ttl"`
}

type CacheConfig struct {
	Local  PolicyConfig `mapstructure:"local"`
	Shared PolicyConfig `mapstructure:"shared"`
}

type CollectorConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	Watchlist []string      `mapstructure:"watchlist"`
	Retention time.Duration `mapstructure:"retention"`
}

// ConfigDirEnv names a directory searched for config.yaml before the
// executable-relative default.
const ConfigDirEnv = "PAPERTRADE_CONFIG_DIR"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.environment", "dev")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.dbname", "papertrade")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("ledger.starting_cash", 100000)

	v.SetDefault("finnhub.rest.base_url", "https://finnhub.io/api/v1")
	v.SetDefault("finnhub.rest.timeout", 10*time.Second)
	v.SetDefault("finnhub.ws.url", "wss://ws.finnhub.io")
	v.SetDefault("finnhub.api_key", "")
	v.SetDefault("finnhub.webhook_secret", "")
	v.SetDefault("yahoo.rest.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("yahoo.rest.timeout", 10*time.Second)

	v.SetDefault("quotes.providers", []string{"finnhub", "yahoo"})
	v.SetDefault("quotes.history_providers", []string{"yahoo", "finnhub"})
	v.SetDefault("quotes.usd_inr_rate", 83.50)
	v.SetDefault("quotes.fetch_concurrency", 5)

	for _, tier := range []string{"local", "shared"} {
		v.SetDefault("cache."+tier+".open_ttl", time.Minute)
		v.SetDefault("cache."+tier+".closed_ttl", time.Hour)
		v.SetDefault("cache."+tier+".multi_day_ttl", 24*time.Hour)
		v.SetDefault("cache."+tier+".long_ttl", 7*24*time.Hour)
	}

	v.SetDefault("collector.interval", time.Minute)
	v.SetDefault("collector.retention", 30*24*time.Hour)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// Support environment variables with dot notation (e.g., FINNHUB_API_KEY)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	v := newViper()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		v.AddConfigPath(dir)
	}
	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		v.AddConfigPath(filepath.Join(pwd, "../../config"))
	} else {
		v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
	}

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	cfg, err := decode(v)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return decode(v)
}
