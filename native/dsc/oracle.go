package dsc

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// PriceFeed resolves the latest round data for a collateral token. Feeds are
// external read-only oracle references; the engine never mutates them.
type PriceFeed interface {
	LatestRoundData() (RoundData, error)
}

// StalenessGuard wraps a price feed and rejects readings older than the
// configured window. Every USD valuation in the engine flows through a guard,
// so the whole protocol freezes rather than ever pricing with stale data.
type StalenessGuard struct {
	name   string
	feed   PriceFeed
	maxAge time.Duration
	now    func() time.Time
}

// NewStalenessGuard constructs a guard around the feed. A non-positive maxAge
// falls back to the protocol default of three hours.
func NewStalenessGuard(name string, feed PriceFeed, maxAge time.Duration) *StalenessGuard {
	if maxAge <= 0 {
		maxAge = defaultOracleMaxAge
	}
	return &StalenessGuard{
		name:   strings.TrimSpace(name),
		feed:   feed,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Name returns the feed identifier used in diagnostics.
func (g *StalenessGuard) Name() string {
	if g == nil {
		return ""
	}
	return g.name
}

// LatestRoundData returns the wrapped feed's latest round unchanged when it is
// fresh, and fails with StalePriceError otherwise. Readings with a
// non-positive answer are rejected before the staleness check.
func (g *StalenessGuard) LatestRoundData() (RoundData, error) {
	if g == nil || g.feed == nil {
		return RoundData{}, ErrNilFeed
	}
	round, err := g.feed.LatestRoundData()
	if err != nil {
		return RoundData{}, err
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return RoundData{}, fmt.Errorf("dsc oracle: feed %s returned invalid answer", g.name)
	}
	if age := g.now().Sub(round.UpdatedAt); age > g.maxAge {
		return RoundData{}, &StalePriceError{Feed: g.name, UpdatedAt: round.UpdatedAt, MaxAge: g.maxAge}
	}
	return round, nil
}

// ManualFeed provides an in-memory feed implementation used for tests and
// manual overrides during incident response.
type ManualFeed struct {
	mu    sync.RWMutex
	round RoundData
	set   bool
}

// NewManualFeed constructs an empty manual feed instance.
func NewManualFeed() *ManualFeed {
	return &ManualFeed{}
}

// Set records the supplied 8-decimal price with the given timestamp,
// advancing the round counter.
func (m *ManualFeed) Set(answer *big.Int, updatedAt time.Time) {
	if m == nil || answer == nil {
		return
	}
	m.mu.Lock()
	roundID := big.NewInt(1)
	if m.round.RoundID != nil {
		roundID = new(big.Int).Add(m.round.RoundID, big.NewInt(1))
	}
	m.round = RoundData{
		RoundID:         roundID,
		Answer:          new(big.Int).Set(answer),
		StartedAt:       updatedAt,
		UpdatedAt:       updatedAt,
		AnsweredInRound: new(big.Int).Set(roundID),
	}
	m.set = true
	m.mu.Unlock()
}

// SetDecimal parses a decimal USD price (e.g. "2000.50") into the 8-decimal
// fixed-point feed scale and records it.
func (m *ManualFeed) SetDecimal(price string, updatedAt time.Time) error {
	if m == nil {
		return fmt.Errorf("manual feed not configured")
	}
	trimmed := strings.TrimSpace(price)
	if trimmed == "" {
		return fmt.Errorf("manual feed: price required")
	}
	rat, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return fmt.Errorf("manual feed: invalid price %q", price)
	}
	if rat.Sign() <= 0 {
		return fmt.Errorf("manual feed: price must be positive")
	}
	scaled := new(big.Rat).Mul(rat, new(big.Rat).SetInt(pow10(feedDecimals)))
	answer := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	m.Set(answer, updatedAt)
	return nil
}

// LatestRoundData retrieves the stored round.
func (m *ManualFeed) LatestRoundData() (RoundData, error) {
	if m == nil {
		return RoundData{}, fmt.Errorf("manual feed not configured")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return RoundData{}, fmt.Errorf("manual feed: no round recorded")
	}
	round := m.round
	round.Answer = new(big.Int).Set(m.round.Answer)
	round.RoundID = new(big.Int).Set(m.round.RoundID)
	round.AnsweredInRound = new(big.Int).Set(m.round.AnsweredInRound)
	return round, nil
}

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFeed fetches round data from a JSON endpoint. The payload carries the
// answer as a decimal string at the 8-decimal feed scale and timestamps as
// unix seconds.
type HTTPFeed struct {
	client   HTTPDoer
	endpoint string
	apiKey   string
}

// NewHTTPFeed constructs an HTTP feed adapter. When the client is nil
// http.DefaultClient is used. The API key is optional and only added to the
// request headers when supplied.
func NewHTTPFeed(client HTTPDoer, endpoint, apiKey string) *HTTPFeed {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFeed{client: client, endpoint: strings.TrimSpace(endpoint), apiKey: strings.TrimSpace(apiKey)}
}

func (f *HTTPFeed) LatestRoundData() (RoundData, error) {
	if f == nil || f.endpoint == "" {
		return RoundData{}, fmt.Errorf("http feed not configured")
	}
	req, err := http.NewRequest(http.MethodGet, f.endpoint, nil)
	if err != nil {
		return RoundData{}, err
	}
	if f.apiKey != "" {
		req.Header.Set("x-api-key", f.apiKey)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return RoundData{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return RoundData{}, fmt.Errorf("http feed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload struct {
		RoundID         int64  `json:"round_id"`
		Answer          string `json:"answer"`
		StartedAt       int64  `json:"started_at"`
		UpdatedAt       int64  `json:"updated_at"`
		AnsweredInRound int64  `json:"answered_in_round"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return RoundData{}, fmt.Errorf("http feed: decode: %w", err)
	}
	answer, ok := new(big.Int).SetString(strings.TrimSpace(payload.Answer), 10)
	if !ok || answer.Sign() <= 0 {
		return RoundData{}, fmt.Errorf("http feed: invalid answer %q", payload.Answer)
	}
	answeredIn := payload.AnsweredInRound
	if answeredIn == 0 {
		answeredIn = payload.RoundID
	}
	return RoundData{
		RoundID:         big.NewInt(payload.RoundID),
		Answer:          answer,
		StartedAt:       time.Unix(payload.StartedAt, 0),
		UpdatedAt:       time.Unix(payload.UpdatedAt, 0),
		AnsweredInRound: big.NewInt(answeredIn),
	}, nil
}
