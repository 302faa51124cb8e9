package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("app:\n  name: test\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load should succeed: %v", err)
	}
	if cfg.Alerts.PollInterval != 3*time.Second {
		t.Fatalf("unexpected alert poll interval %s", cfg.Alerts.PollInterval)
	}
	if cfg.Payments.Expiry != 30*time.Minute || cfg.Payments.PollInterval != 10*time.Second {
		t.Fatalf("unexpected payment timings %+v", cfg.Payments)
	}
	if cfg.Payments.Retention != 7*24*time.Hour {
		t.Fatalf("7d retention should parse, got %s", cfg.Payments.Retention)
	}
	if cfg.Payments.SignatureLimit != 50 || cfg.Payments.TokenDecimals != 6 {
		t.Fatalf("unexpected payment limits %+v", cfg.Payments)
	}
	if cfg.Presence.Interval != 300*time.Second {
		t.Fatalf("unexpected presence interval %s", cfg.Presence.Interval)
	}
	if !cfg.Market.PreferFDV || len(cfg.Market.Blacklist) != 1 || cfg.Market.Blacklist[0] != "heaven" {
		t.Fatalf("unexpected market defaults %+v", cfg.Market)
	}
	if cfg.Alerts.HistoryCapacity != 1000 {
		t.Fatalf("unexpected history capacity %d", cfg.Alerts.HistoryCapacity)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
market:
  prefer_fdv: false
  venue_aliases:
    whirlpool: orca
payments:
  expiry: 2h
logging:
  file:
    path: /tmp/mcwatch.log
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MCWATCH_ALERTS_POLL_INTERVAL", "1m")
	t.Setenv("MCWATCH_MARKET_BLACKLIST", "heaven,moonshot")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load should succeed: %v", err)
	}
	if cfg.Market.PreferFDV {
		t.Fatal("file should override prefer_fdv")
	}
	if cfg.Market.VenueAliases["whirlpool"] != "orca" {
		t.Fatalf("venue aliases not decoded: %v", cfg.Market.VenueAliases)
	}
	if cfg.Payments.Expiry != 2*time.Hour {
		t.Fatalf("unexpected expiry %s", cfg.Payments.Expiry)
	}
	if cfg.Alerts.PollInterval != time.Minute {
		t.Fatalf("env should override poll interval, got %s", cfg.Alerts.PollInterval)
	}
	if len(cfg.Market.Blacklist) != 2 || cfg.Market.Blacklist[1] != "moonshot" {
		t.Fatalf("comma separated env slice not decoded: %v", cfg.Market.Blacklist)
	}
	if cfg.Logging.File.Path != "/tmp/mcwatch.log" {
		t.Fatalf("nested logging file not decoded: %+v", cfg.Logging.File)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Storage:  StorageConfig{Driver: "bunt"},
			Market:   MarketConfig{RefreshConcurrency: 4},
			Alerts:   AlertsConfig{PollInterval: time.Second, HistoryCapacity: 10},
			Payments: PaymentsConfig{Enabled: true, PollInterval: time.Second, Expiry: time.Minute, SignatureLimit: 50},
			API:      APIConfig{Enabled: true, Listen: ":0"},
			Export:   ExportConfig{MaxDataPoints: 10},
		}
	}

	ok := base()
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]func(*Config){
		"poll interval":  func(c *Config) { c.Alerts.PollInterval = 0 },
		"postgres dsn":   func(c *Config) { c.Storage.Driver = "postgres" },
		"driver":         func(c *Config) { c.Storage.Driver = "mysql" },
		"signatures":     func(c *Config) { c.Payments.SignatureLimit = 0 },
		"telegram token": func(c *Config) { c.Telegram.Enabled = true },
		"api listen":     func(c *Config) { c.API.Listen = "" },
		"export points":  func(c *Config) { c.Export.MaxDataPoints = 0 },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := Config{Export: ExportConfig{MaxDataPoints: 100}}
	if cfg.ResolveMaxPoints(0) != 100 || cfg.ResolveMaxPoints(5) != 5 {
		t.Fatal("override should win when positive")
	}
}
