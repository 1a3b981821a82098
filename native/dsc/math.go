package dsc

import (
	"math/big"
	"time"
)

const (
	// liquidationPrecision is the denominator for threshold and bonus
	// percentages.
	liquidationPrecision        = 100
	defaultLiquidationThreshold = 50
	defaultLiquidationBonus     = 10
	defaultOracleMaxAge         = 3 * time.Hour

	// feedDecimals is the fixed-point scale of oracle answers; ledger amounts
	// and USD values use weiDecimals.
	feedDecimals = 8
	weiDecimals  = 18
)

var (
	// precision is the 18-decimal fixed-point scale shared by USD values,
	// synthetic debt, and health factors.
	precision = mustBigInt("1000000000000000000")
	// additionalFeedPrecision lifts 8-decimal oracle answers to 18 decimals.
	additionalFeedPrecision = mustBigInt("10000000000")
	// minHealthFactor is 1.0 at the precision scale.
	minHealthFactor = mustBigInt("1000000000000000000")
	// maxHealthFactor is the sentinel for debt-free positions, chosen as the
	// largest 256-bit value so it dominates every computable ratio.
	maxHealthFactor = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// usdValue prices a raw token amount in 18-decimal USD. All scaling is
// integer multiply-then-divide, multiplying before dividing to preserve
// precision; big.Int arithmetic is arbitrary precision, so the intermediate
// product price*1e10*amount cannot overflow for any realistic input.
func usdValue(price, amount *big.Int, decimals uint8) *big.Int {
	if price == nil || amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	usd := new(big.Int).Mul(price, additionalFeedPrecision)
	usd.Mul(usd, scaleToWei(amount, decimals))
	return usd.Quo(usd, precision)
}

// tokenAmountFromUsd is the inverse of usdValue: it converts an 18-decimal
// USD amount into raw token units at the given price. Truncation is toward
// zero, matching usdValue, so a round trip recovers the input within one
// unit of the token's smallest denomination.
func tokenAmountFromUsd(price, usd *big.Int, decimals uint8) *big.Int {
	if price == nil || price.Sign() <= 0 || usd == nil || usd.Sign() <= 0 {
		return big.NewInt(0)
	}
	denominator := new(big.Int).Mul(price, additionalFeedPrecision)
	amountWei := new(big.Int).Mul(usd, precision)
	amountWei.Quo(amountWei, denominator)
	return scaleFromWei(amountWei, decimals)
}

// healthFactorFrom computes the solvency ratio at the precision scale. A
// debt-free position is infinitely solvent and reported via the max sentinel
// to avoid division by zero.
func healthFactorFrom(collateralUsd, debt *big.Int, threshold uint64) *big.Int {
	if debt == nil || debt.Sign() == 0 {
		return new(big.Int).Set(maxHealthFactor)
	}
	adjusted := new(big.Int)
	if collateralUsd != nil {
		adjusted.Mul(collateralUsd, new(big.Int).SetUint64(threshold))
		adjusted.Quo(adjusted, big.NewInt(liquidationPrecision))
	}
	adjusted.Mul(adjusted, precision)
	return adjusted.Quo(adjusted, debt)
}

// scaleToWei normalises a raw token amount to 18 decimals.
func scaleToWei(amount *big.Int, decimals uint8) *big.Int {
	out := new(big.Int).Set(amount)
	switch {
	case decimals < weiDecimals:
		factor := pow10(weiDecimals - decimals)
		out.Mul(out, factor)
	case decimals > weiDecimals:
		factor := pow10(decimals - weiDecimals)
		out.Quo(out, factor)
	}
	return out
}

// scaleFromWei converts an 18-decimal amount back to raw token units.
func scaleFromWei(amount *big.Int, decimals uint8) *big.Int {
	out := new(big.Int).Set(amount)
	switch {
	case decimals < weiDecimals:
		factor := pow10(weiDecimals - decimals)
		out.Quo(out, factor)
	case decimals > weiDecimals:
		factor := pow10(decimals - weiDecimals)
		out.Mul(out, factor)
	}
	return out
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// MinHealthFactor returns the solvency floor at the precision scale.
func MinHealthFactor() *big.Int {
	return new(big.Int).Set(minHealthFactor)
}

// MaxHealthFactor returns the sentinel reported for debt-free positions.
func MaxHealthFactor() *big.Int {
	return new(big.Int).Set(maxHealthFactor)
}
