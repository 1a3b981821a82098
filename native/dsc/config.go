package dsc

import (
	"strings"
	"time"
)

// Config captures the runtime configuration for the engine module.
type Config struct {
	LiquidationThreshold uint64             `toml:"LiquidationThreshold"`
	LiquidationBonus     uint64             `toml:"LiquidationBonus"`
	OracleMaxAgeSeconds  int64              `toml:"OracleMaxAgeSeconds"`
	Collateral           []CollateralConfig `toml:"collateral"`
}

// CollateralConfig describes one accepted collateral token and its feed.
type CollateralConfig struct {
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"Decimals"`
	// FeedURL points at a JSON round-data endpoint. When empty the daemon
	// wires a manual feed seeded with InitialPrice.
	FeedURL      string `toml:"FeedURL"`
	FeedAPIKey   string `toml:"FeedAPIKey"`
	InitialPrice string `toml:"InitialPrice"`
}

// Normalise applies defaults and canonical casing to the configuration values.
func (c Config) Normalise() Config {
	cfg := Config{
		LiquidationThreshold: c.LiquidationThreshold,
		LiquidationBonus:     c.LiquidationBonus,
		OracleMaxAgeSeconds:  c.OracleMaxAgeSeconds,
		Collateral:           append([]CollateralConfig{}, c.Collateral...),
	}
	if cfg.LiquidationThreshold == 0 {
		cfg.LiquidationThreshold = defaultLiquidationThreshold
	}
	if cfg.LiquidationBonus == 0 {
		cfg.LiquidationBonus = defaultLiquidationBonus
	}
	if cfg.OracleMaxAgeSeconds <= 0 {
		cfg.OracleMaxAgeSeconds = int64(defaultOracleMaxAge / time.Second)
	}
	for i := range cfg.Collateral {
		cfg.Collateral[i].Symbol = normaliseSymbol(cfg.Collateral[i].Symbol)
		if cfg.Collateral[i].Decimals == 0 {
			cfg.Collateral[i].Decimals = weiDecimals
		}
		cfg.Collateral[i].FeedURL = strings.TrimSpace(cfg.Collateral[i].FeedURL)
		cfg.Collateral[i].InitialPrice = strings.TrimSpace(cfg.Collateral[i].InitialPrice)
	}
	return cfg
}

// OracleMaxAge returns the configured freshness window as a duration.
func (c Config) OracleMaxAge() time.Duration {
	return time.Duration(c.OracleMaxAgeSeconds) * time.Second
}

// RiskParameters converts the configuration into engine risk parameters.
func (c Config) RiskParameters() RiskParameters {
	return RiskParameters{
		LiquidationThreshold: c.LiquidationThreshold,
		LiquidationBonus:     c.LiquidationBonus,
		OracleMaxAge:         c.OracleMaxAge(),
	}.Normalise()
}
