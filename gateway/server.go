package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bohrplanet/Defi-stablecoin/gateway/middleware"
	"github.com/bohrplanet/Defi-stablecoin/native/dsc"
	"github.com/bohrplanet/Defi-stablecoin/native/token"
)

// Config carries the knobs the HTTP surface needs beyond the engine itself.
type Config struct {
	// RateLimits maps a route class ("mutate", "query") to its budget.
	// Classes without an entry are not throttled.
	RateLimits map[string]middleware.RateLimit
	// FaucetEnabled exposes the dev-only token funding endpoint.
	FaucetEnabled bool
}

// Server exposes the engine over HTTP. Mutating routes are serialized
// behind a single mutex so concurrent requests queue instead of tripping
// the engine's reentrancy lock.
type Server struct {
	handler http.Handler
}

// New assembles the router. tokens must hold every ledger token the
// daemon owns (the synthetic plus all collateral) keyed by symbol; the
// faucet and approval endpoints operate on them directly.
func New(engine *dsc.Engine, tokens map[string]*token.LedgerToken, cfg Config) *Server {
	r := chi.NewRouter()

	limiter := middleware.NewRateLimiter(cfg.RateLimits)
	routes := newProtocolRoutes(engine, tokens, cfg.FaucetEnabled)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1/dsc", func(sr chi.Router) {
		sr.Group(func(mr chi.Router) {
			mr.Use(limiter.Middleware("mutate"))
			routes.mountMutations(mr)
		})
		sr.Group(func(qr chi.Router) {
			qr.Use(limiter.Middleware("query"))
			routes.mountQueries(qr)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return &Server{handler: r}
}

// Handler returns the assembled HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }
