package token

import (
	"errors"
	"math/big"
	"strings"
	"sync"

	"github.com/bohrplanet/Defi-stablecoin/crypto"
)

var (
	errInvalidAmount         = errors.New("token: amount must be positive")
	errInsufficientBalance   = errors.New("token: insufficient balance")
	errInsufficientAllowance = errors.New("token: insufficient allowance")
	errNotOwner              = errors.New("token: mint and burn are restricted to the owner")
)

// Token models the fungible-token surface the engine consumes. Transfers carry
// an explicit sender because the engine invokes them on behalf of callers
// rather than through an ambient transaction context.
type Token interface {
	Symbol() string
	Decimals() uint8
	BalanceOf(addr crypto.Address) *big.Int
	Transfer(from, to crypto.Address, amount *big.Int) error
	TransferFrom(spender, from, to crypto.Address, amount *big.Int) error
}

// Synthetic extends Token with supply mutation. Mint and Burn are gated to the
// configured owner, which in this protocol is the engine module address.
type Synthetic interface {
	Token
	Mint(caller, to crypto.Address, amount *big.Int) error
	Burn(caller crypto.Address, amount *big.Int) error
}

// LedgerToken is an in-memory fungible token used by the daemon and tests. It
// keeps balances and allowances under a single lock so transfers observed by
// the engine are atomic.
type LedgerToken struct {
	mu         sync.Mutex
	symbol     string
	decimals   uint8
	owner      crypto.Address
	ownerSet   bool
	balances   map[string]*big.Int
	allowances map[string]map[string]*big.Int
}

// NewLedgerToken constructs an empty token ledger.
func NewLedgerToken(symbol string, decimals uint8) *LedgerToken {
	return &LedgerToken{
		symbol:     strings.ToUpper(strings.TrimSpace(symbol)),
		decimals:   decimals,
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]map[string]*big.Int),
	}
}

// SetOwner assigns the address permitted to mint and burn supply.
func (t *LedgerToken) SetOwner(owner crypto.Address) {
	t.mu.Lock()
	t.owner = owner
	t.ownerSet = true
	t.mu.Unlock()
}

func (t *LedgerToken) Symbol() string  { return t.symbol }
func (t *LedgerToken) Decimals() uint8 { return t.decimals }

func key(addr crypto.Address) string { return string(addr.Bytes()) }

func (t *LedgerToken) balance(addr crypto.Address) *big.Int {
	if bal, ok := t.balances[key(addr)]; ok {
		return bal
	}
	bal := big.NewInt(0)
	t.balances[key(addr)] = bal
	return bal
}

// BalanceOf returns a copy of the current balance for the address.
func (t *LedgerToken) BalanceOf(addr crypto.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.balance(addr))
}

// Transfer moves amount from one balance to another.
func (t *LedgerToken) Transfer(from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

// TransferFrom moves amount on behalf of the spender, consuming allowance
// unless the spender is the balance owner.
func (t *LedgerToken) TransferFrom(spender, from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if key(spender) != key(from) {
		allowance := t.allowance(from, spender)
		if allowance.Cmp(amount) < 0 {
			return errInsufficientAllowance
		}
		allowance.Sub(allowance, amount)
	}
	return t.move(from, to, amount)
}

// Approve grants the spender permission to move up to amount from the owner's
// balance.
func (t *LedgerToken) Approve(owner, spender crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowance(owner, spender).Set(amount)
	return nil
}

// Allowance reports the remaining approved amount for the owner/spender pair.
func (t *LedgerToken) Allowance(owner, spender crypto.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.allowance(owner, spender))
}

// Mint credits freshly issued supply to the recipient. Only the owner may mint.
func (t *LedgerToken) Mint(caller, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ownerSet || key(caller) != key(t.owner) {
		return errNotOwner
	}
	bal := t.balance(to)
	bal.Add(bal, amount)
	return nil
}

// Burn destroys amount from the caller's own balance. Only the owner may burn,
// so supply can shrink solely through tokens already pulled into its custody.
func (t *LedgerToken) Burn(caller crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ownerSet || key(caller) != key(t.owner) {
		return errNotOwner
	}
	bal := t.balance(caller)
	if bal.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	bal.Sub(bal, amount)
	return nil
}

// TotalSupply sums all balances. Exposed for tests asserting supply soundness.
func (t *LedgerToken) TotalSupply() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := big.NewInt(0)
	for _, bal := range t.balances {
		total.Add(total, bal)
	}
	return total
}

func (t *LedgerToken) move(from, to crypto.Address, amount *big.Int) error {
	fromBal := t.balance(from)
	if fromBal.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	fromBal.Sub(fromBal, amount)
	toBal := t.balance(to)
	toBal.Add(toBal, amount)
	return nil
}

func (t *LedgerToken) allowance(owner, spender crypto.Address) *big.Int {
	spenders, ok := t.allowances[key(owner)]
	if !ok {
		spenders = make(map[string]*big.Int)
		t.allowances[key(owner)] = spenders
	}
	allowance, ok := spenders[key(spender)]
	if !ok {
		allowance = big.NewInt(0)
		spenders[key(spender)] = allowance
	}
	return allowance
}
