package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/bohrplanet/Defi-stablecoin/native/dsc"
)

// Config is the daemon's top-level configuration.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	// DataDir holds the position ledger. Empty means in-memory only.
	DataDir       string     `toml:"DataDir"`
	Env           string     `toml:"Env"`
	FaucetEnabled bool       `toml:"FaucetEnabled"`
	Paused        bool       `toml:"Paused"`
	RateLimits    RateLimits `toml:"ratelimits"`
	Engine        dsc.Config `toml:"engine"`
}

// RateLimits carries the per-class request budgets for the gateway.
type RateLimits struct {
	MutatePerMinute float64 `toml:"MutatePerMinute"`
	MutateBurst     int     `toml:"MutateBurst"`
	QueryPerMinute  float64 `toml:"QueryPerMinute"`
	QueryBurst      int     `toml:"QueryBurst"`
}

// Load reads the configuration from path, writing a default file first
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8545"
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "dev"
	}
	if c.RateLimits.MutatePerMinute <= 0 {
		c.RateLimits.MutatePerMinute = 120
	}
	if c.RateLimits.MutateBurst <= 0 {
		c.RateLimits.MutateBurst = 10
	}
	if c.RateLimits.QueryPerMinute <= 0 {
		c.RateLimits.QueryPerMinute = 600
	}
	if c.RateLimits.QueryBurst <= 0 {
		c.RateLimits.QueryBurst = 50
	}
	c.Engine = c.Engine.Normalise()
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		Engine: dsc.Config{
			Collateral: []dsc.CollateralConfig{
				{Symbol: "WETH", Decimals: 18, InitialPrice: "2000"},
				{Symbol: "WBTC", Decimals: 8, InitialPrice: "60000"},
			},
		},
	}
	cfg.applyDefaults()

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create config dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create default config: %w", err)
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, fmt.Errorf("write default config: %w", err)
	}
	return cfg, nil
}
