package dsc

import (
	"math/big"
	"time"

	"github.com/bohrplanet/Defi-stablecoin/crypto"
)

// RoundData mirrors the read surface of an external price feed. Answer is an
// 8-decimal fixed-point USD price; UpdatedAt drives the staleness check.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       time.Time
	UpdatedAt       time.Time
	AnsweredInRound *big.Int
}

// Position maintains the collateral and debt ledger entry for a single
// account. Collateral amounts are raw token units keyed by symbol; Debt is
// denominated in 18-decimal synthetic units. Positions are created implicitly
// on first deposit and never destroyed.
type Position struct {
	Address    crypto.Address
	Collateral map[string]*big.Int
	Debt       *big.Int
}

// Clone returns a deep copy so operations can stage mutations without
// touching persisted state.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{Address: p.Address, Collateral: make(map[string]*big.Int, len(p.Collateral))}
	for symbol, amount := range p.Collateral {
		if amount != nil {
			clone.Collateral[symbol] = new(big.Int).Set(amount)
		}
	}
	if p.Debt != nil {
		clone.Debt = new(big.Int).Set(p.Debt)
	} else {
		clone.Debt = big.NewInt(0)
	}
	return clone
}

// CollateralAmount returns the deposited balance for the symbol, treating
// missing entries as zero.
func (p *Position) CollateralAmount(symbol string) *big.Int {
	if p == nil || p.Collateral == nil {
		return big.NewInt(0)
	}
	if amount, ok := p.Collateral[symbol]; ok && amount != nil {
		return new(big.Int).Set(amount)
	}
	return big.NewInt(0)
}

// RiskParameters groups the safety limits enforced on every state-changing
// operation.
type RiskParameters struct {
	// LiquidationThreshold is the percentage of raw collateral value counted
	// toward solvency (50 means assets back debt at a 200% minimum ratio).
	LiquidationThreshold uint64
	// LiquidationBonus is the extra collateral percentage awarded to a
	// liquidator as incentive.
	LiquidationBonus uint64
	// OracleMaxAge bounds the accepted age of price feed readings.
	OracleMaxAge time.Duration
}

// Normalise applies the protocol defaults to unset parameters.
func (p RiskParameters) Normalise() RiskParameters {
	out := p
	if out.LiquidationThreshold == 0 {
		out.LiquidationThreshold = defaultLiquidationThreshold
	}
	if out.LiquidationBonus == 0 {
		out.LiquidationBonus = defaultLiquidationBonus
	}
	if out.OracleMaxAge <= 0 {
		out.OracleMaxAge = defaultOracleMaxAge
	}
	return out
}
