package config

import (
	"os"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
polymarket:
  gamma_api_url: "https://gamma.example.com"
  timeout: 5s

scheduler:
  max_users_per_tick: 200
  concurrency: 8
  min_interval_seconds: 60
  max_interval_seconds: 1800

bot:
  risk_level: "high"
  max_daily_loss: 40

server:
  tick_secret: "s3cret"

storage:
  db_path: "/tmp/polytrader-test.db"

logging:
  level: "debug"
  format: "text"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Polymarket.GammaAPIURL != "https://gamma.example.com" {
		t.Errorf("Unexpected gamma URL: %s", cfg.Polymarket.GammaAPIURL)
	}
	if cfg.Polymarket.Timeout != 5*time.Second {
		t.Errorf("Unexpected timeout: %v", cfg.Polymarket.Timeout)
	}
	if cfg.Scheduler.Concurrency != 8 {
		t.Errorf("Unexpected concurrency: %d", cfg.Scheduler.Concurrency)
	}
	if cfg.Scheduler.MaxTradesPerScan != 5 {
		t.Errorf("Expected default max_trades_per_scan 5, got %d", cfg.Scheduler.MaxTradesPerScan)
	}
	if cfg.Bot.RiskLevel != "high" || cfg.Bot.MaxDailyLoss != 40 {
		t.Errorf("Unexpected bot config: %+v", cfg.Bot)
	}
	if cfg.Server.TickSecret != "s3cret" {
		t.Errorf("Unexpected tick secret: %q", cfg.Server.TickSecret)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scheduler.Concurrency != 12 {
		t.Errorf("Expected default concurrency 12, got %d", cfg.Scheduler.Concurrency)
	}
	if cfg.Scheduler.DefaultBuysPerDay != 24 {
		t.Errorf("Expected default buys per day 24, got %d", cfg.Scheduler.DefaultBuysPerDay)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("POLYTRADER_SERVER_TICK_SECRET", "from-env")
	t.Setenv("POLYTRADER_SCHEDULER_CONCURRENCY", "3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.TickSecret != "from-env" {
		t.Errorf("Expected env tick secret, got %q", cfg.Server.TickSecret)
	}
	if cfg.Scheduler.Concurrency != 3 {
		t.Errorf("Expected env concurrency 3, got %d", cfg.Scheduler.Concurrency)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing gamma url", func(c *Config) { c.Polymarket.GammaAPIURL = "" }},
		{"zero concurrency", func(c *Config) { c.Scheduler.Concurrency = 0 }},
		{"inverted interval bounds", func(c *Config) { c.Scheduler.MaxIntervalSeconds = 10; c.Scheduler.MinIntervalSeconds = 20 }},
		{"zero trades per scan", func(c *Config) { c.Scheduler.MaxTradesPerScan = 0 }},
		{"zero default buys per day", func(c *Config) { c.Scheduler.DefaultBuysPerDay = 0 }},
		{"bad risk level", func(c *Config) { c.Bot.RiskLevel = "yolo" }},
		{"emergency stop above 100", func(c *Config) { c.Bot.EmergencyStopPct = 120 }},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "1" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"empty db path", func(c *Config) { c.Storage.DBPath = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error for %s", tt.name)
			}
		})
	}
}
