package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func resetGlobal() {
	globalConfig = nil
	configFilePath = ""
}

func TestDefaults(t *testing.T) {
	resetGlobal()
	cfg, err := LoadFromFile("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Simulation.NumSimulations != 50000 || cfg.Simulation.NumDecks != 8 {
		t.Fatalf("unexpected simulation defaults: %+v", cfg.Simulation)
	}
	if cfg.Simulation.Timeout != 3*time.Second {
		t.Fatalf("unexpected simulation timeout: %v", cfg.Simulation.Timeout)
	}
	if cfg.Signal.Every != 7 || cfg.Signal.HistoryCapacity != 100 {
		t.Fatalf("unexpected signal defaults: %+v", cfg.Signal)
	}
	if cfg.Risk.InitialBalance != 1000 || cfg.Risk.MaxSessionMinutes != 120 {
		t.Fatalf("unexpected risk defaults: %+v", cfg.Risk)
	}
	if cfg.Feed.Mode != "demo" {
		t.Fatalf("default feed mode = %s, want demo", cfg.Feed.Mode)
	}
	if cfg.Telegram.MinTier != "MEDIUM" {
		t.Fatalf("default telegram min_tier = %s", cfg.Telegram.MinTier)
	}
	if err := cfg.Signal.Payouts.PayoutTable().Validate(); err != nil {
		t.Fatalf("default payouts invalid: %v", err)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	resetGlobal()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
simulation:
  num_simulations: 10000
  num_decks: 6
signal:
  every: 5
  payouts:
    banker: 1.95
    player: 2.0
    tie: 8.0
risk:
  initial_balance: 2500
  base_unit: 25
feed:
  mode: websocket
  url: wss://example.com/outcomes
  table: T7
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Simulation.NumSimulations != 10000 || cfg.Simulation.NumDecks != 6 {
		t.Fatalf("simulation not overridden: %+v", cfg.Simulation)
	}
	if cfg.Signal.Every != 5 {
		t.Fatalf("signal.every = %d, want 5", cfg.Signal.Every)
	}
	if cfg.Signal.Payouts.Tie != 8.0 {
		t.Fatalf("payouts.tie = %v, want 8.0", cfg.Signal.Payouts.Tie)
	}
	if cfg.Risk.InitialBalance != 2500 || cfg.Risk.BaseUnit != 25 {
		t.Fatalf("risk not overridden: %+v", cfg.Risk)
	}
	if cfg.Feed.Mode != "websocket" || cfg.Feed.Table != "T7" {
		t.Fatalf("feed not overridden: %+v", cfg.Feed)
	}
	// 未覆盖的字段保留默认值
	if cfg.Risk.StopLossPct != 0.05 {
		t.Fatalf("stop_loss_pct = %v, want default 0.05", cfg.Risk.StopLossPct)
	}
}

func TestLoadJSON(t *testing.T) {
	resetGlobal()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := []byte(`{"signal":{"every":3},"risk":{"base_unit":5}}`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if cfg.Signal.Every != 3 || cfg.Risk.BaseUnit != 5 {
		t.Fatalf("json not applied: every=%d base_unit=%v", cfg.Signal.Every, cfg.Risk.BaseUnit)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	resetGlobal()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero simulations", func(c *Config) { c.Simulation.NumSimulations = 0 }},
		{"zero signal interval", func(c *Config) { c.Signal.Every = 0 }},
		{"payout below evens", func(c *Config) { c.Signal.Payouts.Banker = 0.9 }},
		{"zero balance", func(c *Config) { c.Risk.InitialBalance = 0 }},
		{"max bet pct above one", func(c *Config) { c.Risk.MaxBetPct = 1.5 }},
		{"websocket without url", func(c *Config) { c.Feed.Mode = "websocket"; c.Feed.URL = "" }},
		{"unknown feed mode", func(c *Config) { c.Feed.Mode = "replay" }},
		{"telegram enabled without token", func(c *Config) { c.Telegram.Enabled = true }},
		{"telegram invalid tier", func(c *Config) {
			c.Telegram.Enabled = true
			c.Telegram.BotToken = "t"
			c.Telegram.ChatID = "c"
			c.Telegram.MinTier = "ULTRA"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			cfg.applyDefaults()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("%s: expected validation error", tc.name)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	resetGlobal()
	t.Setenv("SIGNAL_EVERY", "9")
	t.Setenv("RISK_INITIAL_BALANCE", "5000")
	t.Setenv("FEED_TABLE", "VIP-1")
	cfg, err := LoadFromFile("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Signal.Every != 9 {
		t.Fatalf("SIGNAL_EVERY not applied: %d", cfg.Signal.Every)
	}
	if cfg.Risk.InitialBalance != 5000 {
		t.Fatalf("RISK_INITIAL_BALANCE not applied: %v", cfg.Risk.InitialBalance)
	}
	if cfg.Feed.Table != "VIP-1" {
		t.Fatalf("FEED_TABLE not applied: %s", cfg.Feed.Table)
	}
}
