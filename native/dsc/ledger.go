package dsc

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/bohrplanet/Defi-stablecoin/crypto"
	"github.com/bohrplanet/Defi-stablecoin/storage"
)

// Ledger persists account positions in the underlying key-value store. It is
// the production implementation of the engine's state interface.
type Ledger struct {
	db storage.Database
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

// Collateral entries are stored as a sorted list so the RLP encoding is
// deterministic. Amounts travel as decimal strings to survive encoding
// changes without precision loss.
type storedCollateral struct {
	Symbol string
	Amount string
}

type storedPosition struct {
	Address    [20]byte
	Collateral []storedCollateral
	Debt       string
}

// GetPosition loads the position for the address, returning nil when the
// account has never deposited.
func (l *Ledger) GetPosition(addr crypto.Address) (*Position, error) {
	if l == nil || l.db == nil {
		return nil, ErrNilState
	}
	raw, err := l.db.Get(positionKey(addr))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var stored storedPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("dsc ledger: decode position: %w", err)
	}
	position := &Position{
		Address:    crypto.NewAddress(addr.Prefix(), stored.Address[:]),
		Collateral: make(map[string]*big.Int, len(stored.Collateral)),
		Debt:       big.NewInt(0),
	}
	for _, entry := range stored.Collateral {
		amount, ok := new(big.Int).SetString(entry.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("dsc ledger: invalid collateral amount %q for %s", entry.Amount, entry.Symbol)
		}
		position.Collateral[entry.Symbol] = amount
	}
	if stored.Debt != "" {
		debt, ok := new(big.Int).SetString(stored.Debt, 10)
		if !ok {
			return nil, fmt.Errorf("dsc ledger: invalid debt amount %q", stored.Debt)
		}
		position.Debt = debt
	}
	return position, nil
}

// PutPosition writes the position back to the store.
func (l *Ledger) PutPosition(position *Position) error {
	if l == nil || l.db == nil {
		return ErrNilState
	}
	if position == nil {
		return fmt.Errorf("dsc ledger: nil position")
	}
	stored := storedPosition{Debt: "0"}
	copy(stored.Address[:], position.Address.Bytes())
	if position.Debt != nil {
		stored.Debt = position.Debt.String()
	}
	symbols := make([]string, 0, len(position.Collateral))
	for symbol, amount := range position.Collateral {
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		stored.Collateral = append(stored.Collateral, storedCollateral{
			Symbol: symbol,
			Amount: position.Collateral[symbol].String(),
		})
	}
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return fmt.Errorf("dsc ledger: encode position: %w", err)
	}
	return l.db.Put(positionKey(position.Address), raw)
}
