package dsc

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

var (
	ErrNilState                = errors.New("dsc engine: state not configured")
	ErrNilToken                = errors.New("dsc engine: synthetic token not configured")
	ErrInvalidAmount           = errors.New("dsc engine: amount must be positive")
	ErrTokenNotAllowed         = errors.New("dsc engine: collateral token not allowed")
	ErrLengthMismatch          = errors.New("dsc engine: token and feed lists must have the same length")
	ErrDuplicateToken          = errors.New("dsc engine: duplicate collateral token")
	ErrNilFeed                 = errors.New("dsc engine: collateral token requires a price feed")
	ErrInsufficientCollateral  = errors.New("dsc engine: insufficient collateral balance")
	ErrBurnExceedsDebt         = errors.New("dsc engine: burn amount exceeds outstanding debt")
	ErrTransferFailed          = errors.New("dsc engine: token transfer failed")
	ErrMintFailed              = errors.New("dsc engine: synthetic mint failed")
	ErrBurnFailed              = errors.New("dsc engine: synthetic burn failed")
	ErrHealthFactorOK          = errors.New("dsc engine: health factor above minimum, not liquidatable")
	ErrHealthFactorNotImproved = errors.New("dsc engine: liquidation did not improve health factor")
	ErrReentrancy              = errors.New("dsc engine: reentrant call rejected")

	// ErrBreaksHealthFactor is the sentinel matched by errors.Is for
	// BreaksHealthFactorError values.
	ErrBreaksHealthFactor = errors.New("dsc engine: operation breaks health factor")

	// ErrStalePrice is the sentinel matched by errors.Is for StalePriceError
	// values.
	ErrStalePrice = errors.New("dsc oracle: stale price")
)

// BreaksHealthFactorError reports a solvency violation along with the health
// factor that failed the gate so callers can assert on the computed ratio.
type BreaksHealthFactorError struct {
	HealthFactor *big.Int
}

func (e *BreaksHealthFactorError) Error() string {
	if e == nil || e.HealthFactor == nil {
		return ErrBreaksHealthFactor.Error()
	}
	return fmt.Sprintf("%s: health factor %s", ErrBreaksHealthFactor.Error(), e.HealthFactor.String())
}

func (e *BreaksHealthFactorError) Is(target error) bool {
	return target == ErrBreaksHealthFactor
}

// StalePriceError reports a price feed reading older than the configured
// freshness window. The engine fails closed: no valuation, no mutation.
type StalePriceError struct {
	Feed      string
	UpdatedAt time.Time
	MaxAge    time.Duration
}

func (e *StalePriceError) Error() string {
	if e == nil {
		return ErrStalePrice.Error()
	}
	return fmt.Sprintf("%s: feed %s last updated %s, max age %s",
		ErrStalePrice.Error(), e.Feed, e.UpdatedAt.UTC().Format(time.RFC3339), e.MaxAge)
}

func (e *StalePriceError) Is(target error) bool {
	return target == ErrStalePrice
}
