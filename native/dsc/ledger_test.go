package dsc

import (
	"math/big"
	"testing"

	"github.com/bohrplanet/Defi-stablecoin/storage"
)

func TestLedgerRoundTrip(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	account := makeAddress(0x42)

	position := &Position{
		Address: account,
		Collateral: map[string]*big.Int{
			"WETH": wei(3),
			"WBTC": big.NewInt(25_000_000),
		},
		Debt: wei(1_200),
	}
	if err := ledger.PutPosition(position); err != nil {
		t.Fatalf("put position: %v", err)
	}

	loaded, err := ledger.GetPosition(account)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if loaded == nil {
		t.Fatalf("expected stored position")
	}
	if loaded.Address.String() != account.String() {
		t.Fatalf("address mismatch: %s", loaded.Address)
	}
	if loaded.Debt.Cmp(wei(1_200)) != 0 {
		t.Fatalf("debt mismatch: %s", loaded.Debt)
	}
	if loaded.CollateralAmount("WETH").Cmp(wei(3)) != 0 {
		t.Fatalf("weth mismatch: %s", loaded.CollateralAmount("WETH"))
	}
	if loaded.CollateralAmount("WBTC").Cmp(big.NewInt(25_000_000)) != 0 {
		t.Fatalf("wbtc mismatch: %s", loaded.CollateralAmount("WBTC"))
	}
}

func TestLedgerPersistsThroughLevelDB(t *testing.T) {
	db, err := storage.NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()

	ledger := NewLedger(db)
	account := makeAddress(0x55)
	position := &Position{
		Address:    account,
		Collateral: map[string]*big.Int{"WETH": wei(7)},
		Debt:       wei(2_500),
	}
	if err := ledger.PutPosition(position); err != nil {
		t.Fatalf("put position: %v", err)
	}

	loaded, err := ledger.GetPosition(account)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if loaded.Debt.Cmp(wei(2_500)) != 0 {
		t.Fatalf("debt mismatch: %s", loaded.Debt)
	}
	if loaded.CollateralAmount("WETH").Cmp(wei(7)) != 0 {
		t.Fatalf("collateral mismatch: %s", loaded.CollateralAmount("WETH"))
	}
}

func TestLedgerMissingPosition(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	loaded, err := ledger.GetPosition(makeAddress(0x99))
	if err != nil {
		t.Fatalf("get missing position: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil for unknown account, got %+v", loaded)
	}
}

func TestLedgerDropsZeroBalances(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	account := makeAddress(0x43)

	position := &Position{
		Address: account,
		Collateral: map[string]*big.Int{
			"WETH": wei(1),
			"WBTC": big.NewInt(0),
		},
		Debt: big.NewInt(0),
	}
	if err := ledger.PutPosition(position); err != nil {
		t.Fatalf("put position: %v", err)
	}

	loaded, err := ledger.GetPosition(account)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if _, ok := loaded.Collateral["WBTC"]; ok {
		t.Fatalf("zero balances should not be persisted")
	}
	if loaded.Debt.Sign() != 0 {
		t.Fatalf("expected zero debt, got %s", loaded.Debt)
	}
}

func TestLedgerOverwrite(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	account := makeAddress(0x44)

	first := &Position{Address: account, Collateral: map[string]*big.Int{"WETH": wei(2)}, Debt: wei(500)}
	if err := ledger.PutPosition(first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	second := &Position{Address: account, Collateral: map[string]*big.Int{"WETH": wei(1)}, Debt: wei(100)}
	if err := ledger.PutPosition(second); err != nil {
		t.Fatalf("put second: %v", err)
	}

	loaded, err := ledger.GetPosition(account)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if loaded.Debt.Cmp(wei(100)) != 0 {
		t.Fatalf("expected overwrite, got debt %s", loaded.Debt)
	}
	if loaded.CollateralAmount("WETH").Cmp(wei(1)) != 0 {
		t.Fatalf("expected overwrite, got collateral %s", loaded.CollateralAmount("WETH"))
	}
}
