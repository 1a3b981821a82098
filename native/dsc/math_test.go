package dsc

import (
	"math/big"
	"testing"
)

func TestUsdValue(t *testing.T) {
	price := big.NewInt(2_000_0000_0000) // 2000 at the feed scale

	// 1.5 tokens at 18 decimals.
	amount := new(big.Int).Quo(wei(3), big.NewInt(2))
	if got := usdValue(price, amount, 18); got.Cmp(wei(3_000)) != 0 {
		t.Fatalf("unexpected 18-decimal value: %s", got)
	}

	// 0.5 tokens at 8 decimals.
	btcPrice := big.NewInt(6_000_000_000_000) // 60000 at the feed scale
	if got := usdValue(btcPrice, big.NewInt(50_000_000), 8); got.Cmp(wei(30_000)) != 0 {
		t.Fatalf("unexpected 8-decimal value: %s", got)
	}

	if got := usdValue(price, big.NewInt(0), 18); got.Sign() != 0 {
		t.Fatalf("zero amount should price to zero, got %s", got)
	}
	if got := usdValue(nil, wei(1), 18); got.Sign() != 0 {
		t.Fatalf("nil price should price to zero, got %s", got)
	}
}

func TestTokenAmountFromUsd(t *testing.T) {
	price := big.NewInt(2_000_0000_0000)

	if got := tokenAmountFromUsd(price, wei(3_000), 18); got.Cmp(new(big.Int).Quo(wei(3), big.NewInt(2))) != 0 {
		t.Fatalf("unexpected token amount: %s", got)
	}

	// Truncation is toward zero, so a round trip never gains value.
	usd := wei(12_345)
	amount := tokenAmountFromUsd(price, usd, 18)
	back := usdValue(price, amount, 18)
	if back.Cmp(usd) > 0 {
		t.Fatalf("round trip gained value: %s -> %s", usd, back)
	}
	diff := new(big.Int).Sub(usd, back)
	if diff.Cmp(big.NewInt(2_000)) > 0 {
		t.Fatalf("round trip lost more than a token wei of value: %s", diff)
	}

	if got := tokenAmountFromUsd(big.NewInt(0), usd, 18); got.Sign() != 0 {
		t.Fatalf("zero price should yield zero, got %s", got)
	}
}

func TestHealthFactorFrom(t *testing.T) {
	// 20000 of collateral at a 50% threshold backs 10000 of debt exactly.
	if got := healthFactorFrom(wei(20_000), wei(10_000), 50); got.Cmp(minHealthFactor) != 0 {
		t.Fatalf("expected health factor of exactly one, got %s", got)
	}
	if got := healthFactorFrom(wei(20_000), new(big.Int).Add(wei(10_000), big.NewInt(1)), 50); got.Cmp(minHealthFactor) >= 0 {
		t.Fatalf("expected health factor below one, got %s", got)
	}
	if got := healthFactorFrom(wei(20_000), big.NewInt(0), 50); got.Cmp(maxHealthFactor) != 0 {
		t.Fatalf("expected max sentinel for zero debt, got %s", got)
	}
	if got := healthFactorFrom(nil, wei(1), 50); got.Sign() != 0 {
		t.Fatalf("expected zero health factor without collateral, got %s", got)
	}
}

func TestScaleConversions(t *testing.T) {
	if got := scaleToWei(big.NewInt(50_000_000), 8); got.Cmp(new(big.Int).Quo(wei(1), big.NewInt(2))) != 0 {
		t.Fatalf("unexpected scale up: %s", got)
	}
	if got := scaleFromWei(new(big.Int).Quo(wei(1), big.NewInt(2)), 8); got.Cmp(big.NewInt(50_000_000)) != 0 {
		t.Fatalf("unexpected scale down: %s", got)
	}
	if got := scaleToWei(wei(7), 18); got.Cmp(wei(7)) != 0 {
		t.Fatalf("18-decimal amounts should pass through, got %s", got)
	}
}
