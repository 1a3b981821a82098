package token

import (
	"math/big"
	"testing"

	"github.com/bohrplanet/Defi-stablecoin/crypto"
)

func addr(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.DSCPrefix, raw)
}

func TestTransferMovesBalance(t *testing.T) {
	owner := addr(0x01)
	alice := addr(0x02)
	bob := addr(0x03)

	ledger := NewLedgerToken("weth", 18)
	ledger.SetOwner(owner)
	if ledger.Symbol() != "WETH" {
		t.Fatalf("symbol should be upper-cased, got %q", ledger.Symbol())
	}

	if err := ledger.Mint(owner, alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if ledger.BalanceOf(alice).Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("unexpected sender balance: %s", ledger.BalanceOf(alice))
	}
	if ledger.BalanceOf(bob).Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("unexpected recipient balance: %s", ledger.BalanceOf(bob))
	}

	if err := ledger.Transfer(alice, bob, big.NewInt(100)); err != errInsufficientBalance {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(0)); err != errInvalidAmount {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	owner := addr(0x01)
	alice := addr(0x02)
	module := addr(0x10)

	ledger := NewLedgerToken("WETH", 18)
	ledger.SetOwner(owner)
	if err := ledger.Mint(owner, alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := ledger.TransferFrom(module, alice, module, big.NewInt(10)); err != errInsufficientAllowance {
		t.Fatalf("expected allowance rejection, got %v", err)
	}
	if err := ledger.Approve(alice, module, big.NewInt(30)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom(module, alice, module, big.NewInt(20)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if ledger.Allowance(alice, module).Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("allowance not consumed: %s", ledger.Allowance(alice, module))
	}
	if err := ledger.TransferFrom(module, alice, module, big.NewInt(20)); err != errInsufficientAllowance {
		t.Fatalf("expected exhausted allowance, got %v", err)
	}

	// Spending from one's own balance bypasses the allowance table.
	if err := ledger.TransferFrom(alice, alice, module, big.NewInt(50)); err != nil {
		t.Fatalf("self transfer from: %v", err)
	}
}

func TestMintAndBurnGatedToOwner(t *testing.T) {
	owner := addr(0x01)
	alice := addr(0x02)

	ledger := NewLedgerToken("DSC", 18)
	if err := ledger.Mint(owner, alice, big.NewInt(10)); err != errNotOwner {
		t.Fatalf("mint without owner should fail, got %v", err)
	}
	ledger.SetOwner(owner)

	if err := ledger.Mint(alice, alice, big.NewInt(10)); err != errNotOwner {
		t.Fatalf("mint by non-owner should fail, got %v", err)
	}
	if err := ledger.Mint(owner, owner, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Burn(alice, big.NewInt(1)); err != errNotOwner {
		t.Fatalf("burn by non-owner should fail, got %v", err)
	}
	if err := ledger.Burn(owner, big.NewInt(4)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if ledger.TotalSupply().Cmp(big.NewInt(6)) != 0 {
		t.Fatalf("unexpected supply: %s", ledger.TotalSupply())
	}
	if err := ledger.Burn(owner, big.NewInt(100)); err != errInsufficientBalance {
		t.Fatalf("expected insufficient balance on burn, got %v", err)
	}
}
