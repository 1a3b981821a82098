package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.ListenAddress != ":8545" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if len(cfg.Engine.Collateral) != 2 {
		t.Fatalf("expected default collateral set, got %d entries", len(cfg.Engine.Collateral))
	}
	if cfg.Engine.OracleMaxAge() != 3*time.Hour {
		t.Fatalf("unexpected oracle max age: %s", cfg.Engine.OracleMaxAge())
	}

	// Loading again must parse the file just written.
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Engine.Collateral[0].Symbol != "WETH" {
		t.Fatalf("unexpected collateral symbol: %q", reloaded.Engine.Collateral[0].Symbol)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
ListenAddress = ":9000"

[engine]
LiquidationThreshold = 40

[[engine.collateral]]
Symbol = "weth"
InitialPrice = "1500"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9000" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if cfg.Engine.LiquidationThreshold != 40 {
		t.Fatalf("unexpected threshold: %d", cfg.Engine.LiquidationThreshold)
	}
	if cfg.Engine.LiquidationBonus != 10 {
		t.Fatalf("expected default bonus, got %d", cfg.Engine.LiquidationBonus)
	}
	if cfg.Engine.Collateral[0].Symbol != "WETH" {
		t.Fatalf("symbol should be normalised, got %q", cfg.Engine.Collateral[0].Symbol)
	}
	if cfg.Engine.Collateral[0].Decimals != 18 {
		t.Fatalf("expected default decimals, got %d", cfg.Engine.Collateral[0].Decimals)
	}
	if cfg.RateLimits.MutatePerMinute != 120 {
		t.Fatalf("expected default mutate budget, got %f", cfg.RateLimits.MutatePerMinute)
	}
}
