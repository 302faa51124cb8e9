package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"

	"mcwatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Market   MarketConfig   `mapstructure:"market"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Payments PaymentsConfig `mapstructure:"payments"`
	Presence PresenceConfig `mapstructure:"presence"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	API      APIConfig      `mapstructure:"api"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LockKey     int64  `mapstructure:"lock_key"`
}

// StorageConfig selects and tunes the snapshot backend.
type StorageConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig enables the price cache mirror when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MarketConfig covers the pair provider and the valuation policy.
type MarketConfig struct {
	BaseURL            string            `mapstructure:"base_url"`
	RequestTimeout     time.Duration     `mapstructure:"request_timeout"`
	UserAgent          string            `mapstructure:"user_agent"`
	PreferFDV          bool              `mapstructure:"prefer_fdv"`
	Blacklist          []string          `mapstructure:"blacklist"`
	Venues             []string          `mapstructure:"venues"`
	VenueAliases       map[string]string `mapstructure:"venue_aliases"`
	RefreshConcurrency int               `mapstructure:"refresh_concurrency"`
}

// AlertsConfig governs the alert watch loop.
type AlertsConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	HistoryCapacity int           `mapstructure:"history_capacity"`
}

// PaymentsConfig governs invoices and the payment watch loop.
type PaymentsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	RPCURL         string        `mapstructure:"rpc_url"`
	Wallet         string        `mapstructure:"wallet"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	Expiry         time.Duration `mapstructure:"expiry"`
	SignatureLimit int           `mapstructure:"signature_limit"`
	USDCMint       string        `mapstructure:"usdc_mint"`
	TokenDecimals  int32         `mapstructure:"token_decimals"`
	Retention      time.Duration `mapstructure:"retention"`
	Label          string        `mapstructure:"label"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PresenceConfig sets the wallet balance reporting cadence.
type PresenceConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// TelegramConfig describes the Telegram messaging collaborator.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// APIConfig controls the HTTP command API.
type APIConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MCWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mcwatch")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.lock_key", int64(0x6d637761))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("storage.driver", "bunt")
	v.SetDefault("storage.path", "data/mcwatch.db")
	v.SetDefault("storage.max_open_conns", 10)
	v.SetDefault("storage.max_idle_conns", 2)
	v.SetDefault("storage.conn_max_lifetime", "30m")

	v.SetDefault("redis.ttl", "10m")

	v.SetDefault("market.base_url", "https://api.dexscreener.com")
	v.SetDefault("market.request_timeout", "12s")
	v.SetDefault("market.prefer_fdv", true)
	v.SetDefault("market.blacklist", []string{"heaven"})
	v.SetDefault("market.venues", []string{"meteora", "raydium", "pumpswap"})
	v.SetDefault("market.refresh_concurrency", 8)

	v.SetDefault("alerts.poll_interval", "3s")
	v.SetDefault("alerts.startup_delay", "0s")
	v.SetDefault("alerts.history_capacity", 1000)

	v.SetDefault("payments.enabled", true)
	v.SetDefault("payments.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("payments.poll_interval", "10s")
	v.SetDefault("payments.expiry", "30m")
	v.SetDefault("payments.signature_limit", 50)
	v.SetDefault("payments.usdc_mint", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	v.SetDefault("payments.token_decimals", 6)
	v.SetDefault("payments.retention", "7d")
	v.SetDefault("payments.label", "McCap")
	v.SetDefault("payments.request_timeout", "15s")

	v.SetDefault("presence.interval", "300s")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.timeout", "10s")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.listen", ":8080")
	v.SetDefault("api.cors_origins", []string{"*"})

	v.SetDefault("export.max_data_points", 1000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			stringToDurationHook(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// stringToDurationHook accepts Go durations plus day and week units such as "7d".
func stringToDurationHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return time.Duration(0), nil
		}
		d, err := str2duration.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", raw, err)
		}
		return d, nil
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerts.PollInterval <= 0 {
		return fmt.Errorf("alerts.poll_interval must be greater than zero")
	}
	if c.Alerts.HistoryCapacity <= 0 {
		return fmt.Errorf("alerts.history_capacity must be greater than zero")
	}
	if c.Market.RefreshConcurrency <= 0 {
		return fmt.Errorf("market.refresh_concurrency must be greater than zero")
	}
	switch c.Storage.Driver {
	case "bunt":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be bunt or postgres, got %q", c.Storage.Driver)
	}
	if c.Payments.Enabled {
		if c.Payments.PollInterval <= 0 {
			return fmt.Errorf("payments.poll_interval must be greater than zero")
		}
		if c.Payments.Expiry <= 0 {
			return fmt.Errorf("payments.expiry must be greater than zero")
		}
		if c.Payments.SignatureLimit <= 0 || c.Payments.SignatureLimit > 1000 {
			return fmt.Errorf("payments.signature_limit must be between 1 and 1000")
		}
	}
	if c.Presence.Interval < 0 {
		return fmt.Errorf("presence.interval cannot be negative")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
	}
	if c.API.Enabled && c.API.Listen == "" {
		return fmt.Errorf("api.listen is required when the api is enabled")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
