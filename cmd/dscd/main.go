package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/bohrplanet/Defi-stablecoin/config"
	"github.com/bohrplanet/Defi-stablecoin/core/events"
	"github.com/bohrplanet/Defi-stablecoin/crypto"
	"github.com/bohrplanet/Defi-stablecoin/gateway"
	"github.com/bohrplanet/Defi-stablecoin/gateway/middleware"
	nativecommon "github.com/bohrplanet/Defi-stablecoin/native/common"
	"github.com/bohrplanet/Defi-stablecoin/native/dsc"
	"github.com/bohrplanet/Defi-stablecoin/native/token"
	"github.com/bohrplanet/Defi-stablecoin/observability/logging"
	"github.com/bohrplanet/Defi-stablecoin/storage"
)

const synthSymbol = "DSC"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("DSC_ENV"))
	logger := logging.Setup("dscd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.Env
	}

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	engine, tokens, err := buildEngine(cfg, db)
	if err != nil {
		panic(fmt.Sprintf("Failed to build engine: %v", err))
	}

	pauses := nativecommon.NewStaticPauses()
	pauses.SetPaused("dsc", cfg.Paused)
	engine.SetPauses(pauses)
	engine.SetEmitter(events.NewSlogEmitter(logger))

	server := gateway.New(engine, tokens, gateway.Config{
		RateLimits: map[string]middleware.RateLimit{
			"mutate": {RequestsPerMinute: cfg.RateLimits.MutatePerMinute, Burst: cfg.RateLimits.MutateBurst},
			"query":  {RequestsPerMinute: cfg.RateLimits.QueryPerMinute, Burst: cfg.RateLimits.QueryBurst},
		},
		FaucetEnabled: cfg.FaucetEnabled,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("gateway listening",
			slog.String("address", cfg.ListenAddress),
			slog.String("env", env),
			slog.Any("collateral", engine.CollateralTokens()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("gateway stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.Any("error", err))
	}
}

func openDatabase(dataDir string) (storage.Database, error) {
	if strings.TrimSpace(dataDir) == "" {
		return storage.NewMemDB(), nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return storage.NewLevelDB(dataDir)
}

// buildEngine wires the synthetic token, collateral tokens, and price feeds
// from configuration, then attaches the persistent position ledger.
func buildEngine(cfg *config.Config, db storage.Database) (*dsc.Engine, map[string]*token.LedgerToken, error) {
	moduleAddr := moduleAddress()

	synth := token.NewLedgerToken(synthSymbol, 18)
	synth.SetOwner(moduleAddr)

	tokens := map[string]*token.LedgerToken{synthSymbol: synth}
	collateral := make([]token.Token, 0, len(cfg.Engine.Collateral))
	feeds := make([]dsc.PriceFeed, 0, len(cfg.Engine.Collateral))
	for _, entry := range cfg.Engine.Collateral {
		ledger := token.NewLedgerToken(entry.Symbol, entry.Decimals)
		ledger.SetOwner(moduleAddr)
		tokens[entry.Symbol] = ledger
		collateral = append(collateral, ledger)

		feed, err := buildFeed(entry)
		if err != nil {
			return nil, nil, fmt.Errorf("feed for %s: %w", entry.Symbol, err)
		}
		feeds = append(feeds, feed)
	}

	engine, err := dsc.NewEngine(moduleAddr, synth, collateral, feeds, cfg.Engine.RiskParameters())
	if err != nil {
		return nil, nil, err
	}
	engine.SetState(dsc.NewLedger(db))
	return engine, tokens, nil
}

func buildFeed(entry dsc.CollateralConfig) (dsc.PriceFeed, error) {
	if entry.FeedURL != "" {
		client := &http.Client{Timeout: 10 * time.Second}
		return dsc.NewHTTPFeed(client, entry.FeedURL, entry.FeedAPIKey), nil
	}
	feed := dsc.NewManualFeed()
	price := entry.InitialPrice
	if price == "" {
		return nil, fmt.Errorf("manual feed requires an initial price")
	}
	if err := feed.SetDecimal(price, time.Now()); err != nil {
		return nil, err
	}
	return feed, nil
}

// moduleAddress derives the engine's custody account from a fixed label so
// every deployment agrees on where locked collateral lives.
func moduleAddress() crypto.Address {
	hash := ethcrypto.Keccak256([]byte("dsc/engine/module"))
	return crypto.NewAddress(crypto.DSCPrefix, hash[12:])
}
