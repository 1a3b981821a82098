package dsc

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/bohrplanet/Defi-stablecoin/core/events"
	"github.com/bohrplanet/Defi-stablecoin/crypto"
	nativecommon "github.com/bohrplanet/Defi-stablecoin/native/common"
	"github.com/bohrplanet/Defi-stablecoin/native/token"
)

const moduleName = "dsc"

// engineState abstracts the persistence layer holding account positions.
type engineState interface {
	GetPosition(addr crypto.Address) (*Position, error)
	PutPosition(position *Position) error
}

type collateralEntry struct {
	token token.Token
	feed  *StalenessGuard
}

// Engine owns the collateral and debt ledger and orchestrates every
// state-changing operation of the protocol: deposit, redeem, mint, burn, and
// liquidate. All USD valuation flows through per-token staleness guards and
// every mutating entry point re-validates the affected account's solvency.
//
// The engine itself is not safe for concurrent use: callers must serialize
// operations (a single coarse mutex at the transport layer is sufficient).
// The in-flight flag below is the reentrancy lock: it rejects any nested
// entry made while an operation is mid-flight, which is how a token
// collaborator calling back into the engine is caught.
type Engine struct {
	state         engineState
	moduleAddress crypto.Address
	synth         token.Synthetic
	assets        map[string]*collateralEntry
	symbols       []string
	params        RiskParameters
	emitter       events.Emitter
	pauses        nativecommon.PauseView
	busy          atomic.Bool
}

// NewEngine constructs an engine for the given synthetic token and accepted
// collateral set. Tokens and feeds are parallel lists paired index by index;
// the accepted set is fixed here and immutable afterwards.
func NewEngine(moduleAddr crypto.Address, synth token.Synthetic, tokens []token.Token, feeds []PriceFeed, params RiskParameters) (*Engine, error) {
	if synth == nil {
		return nil, ErrNilToken
	}
	if len(tokens) != len(feeds) {
		return nil, ErrLengthMismatch
	}
	params = params.Normalise()
	engine := &Engine{
		moduleAddress: moduleAddr,
		synth:         synth,
		assets:        make(map[string]*collateralEntry, len(tokens)),
		params:        params,
		emitter:       events.NoopEmitter{},
	}
	for i, tok := range tokens {
		if tok == nil {
			return nil, ErrTokenNotAllowed
		}
		if feeds[i] == nil {
			return nil, ErrNilFeed
		}
		symbol := normaliseSymbol(tok.Symbol())
		if symbol == "" {
			return nil, ErrTokenNotAllowed
		}
		if _, exists := engine.assets[symbol]; exists {
			return nil, ErrDuplicateToken
		}
		guard, ok := feeds[i].(*StalenessGuard)
		if !ok {
			guard = NewStalenessGuard(symbol, feeds[i], params.OracleMaxAge)
		}
		engine.assets[symbol] = &collateralEntry{token: tok, feed: guard}
		engine.symbols = append(engine.symbols, symbol)
	}
	sort.Strings(engine.symbols)
	return engine, nil
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter routes engine events to the provided sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// ModuleAddress returns the engine's custody account.
func (e *Engine) ModuleAddress() crypto.Address { return e.moduleAddress }

// Params returns the risk parameters the engine enforces.
func (e *Engine) Params() RiskParameters { return e.params }

// CollateralTokens lists the accepted collateral symbols in sorted order.
func (e *Engine) CollateralTokens() []string {
	if e == nil {
		return nil
	}
	return append([]string{}, e.symbols...)
}

// DepositCollateral locks amount of the given collateral token for the
// account, pulling the tokens from the caller into engine custody.
func (e *Engine) DepositCollateral(caller crypto.Address, symbol string, amount *big.Int) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	return e.depositCollateral(caller, symbol, amount)
}

// RedeemCollateral releases amount of the collateral token back to the
// caller. The solvency check observes the post-redemption position, so a
// withdrawal that would leave the account undercollateralized fails with
// BreaksHealthFactorError and no state change.
func (e *Engine) RedeemCollateral(caller crypto.Address, symbol string, amount *big.Int) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	return e.redeemCollateral(caller, caller, symbol, amount)
}

// MintDebt issues amount of synthetic debt against the caller's collateral.
func (e *Engine) MintDebt(caller crypto.Address, amount *big.Int) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	return e.mintDebt(caller, amount)
}

// BurnDebt repays amount of onBehalfOf's debt, funded by the payer. The
// synthetic tokens are pulled into engine custody and destroyed.
func (e *Engine) BurnDebt(payer, onBehalfOf crypto.Address, amount *big.Int) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	return e.burnDebt(payer, onBehalfOf, amount)
}

// DepositCollateralAndMint composes a deposit with a mint under a single
// reentrancy scope. The deposit leg commits first; it can only improve the
// account's solvency, so a failed mint leg leaves a safe position behind.
func (e *Engine) DepositCollateralAndMint(caller crypto.Address, symbol string, amount, mintAmount *big.Int) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if err := e.depositCollateral(caller, symbol, amount); err != nil {
		return err
	}
	return e.mintDebt(caller, mintAmount)
}

// RedeemCollateralForDebt composes a burn with a redemption. The burn leg
// commits first so the redemption's solvency check observes the reduced debt.
func (e *Engine) RedeemCollateralForDebt(caller crypto.Address, symbol string, amount, burnAmount *big.Int) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if err := e.burnDebt(caller, caller, burnAmount); err != nil {
		return err
	}
	return e.redeemCollateral(caller, caller, symbol, amount)
}

// Liquidate lets a third party repay debtToCover of an undercollateralized
// account's debt in exchange for the equivalent collateral plus the
// liquidation bonus. The target's health factor must strictly improve or the
// whole operation fails. The seized collateral amount is returned.
//
// When aggregate collateral value falls to or below 100% of outstanding debt
// the bonus cannot be funded and liquidation stops being economically
// incentivized; positions in that range stay frozen until prices recover.
func (e *Engine) Liquidate(liquidator, account crypto.Address, symbol string, debtToCover *big.Int) (*big.Int, error) {
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()
	return e.liquidate(liquidator, account, symbol, debtToCover)
}

func (e *Engine) depositCollateral(caller crypto.Address, symbol string, amount *big.Int) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	entry, symbol, err := e.asset(symbol)
	if err != nil {
		return err
	}
	position, err := e.ensurePosition(caller)
	if err != nil {
		return err
	}
	staged := position.Clone()
	balance := staged.Collateral[symbol]
	if balance == nil {
		balance = big.NewInt(0)
	}
	staged.Collateral[symbol] = new(big.Int).Add(balance, amount)

	// External pull happens before persisting so a failed transfer leaves no
	// observable ledger mutation. A failed persist returns the pulled tokens
	// so custody matches the unchanged ledger.
	if err := entry.token.TransferFrom(e.moduleAddress, caller, e.moduleAddress, amount); err != nil {
		return fmt.Errorf("%w: %s", ErrTransferFailed, err)
	}
	if err := e.state.PutPosition(staged); err != nil {
		if restoreErr := entry.token.Transfer(e.moduleAddress, caller, amount); restoreErr != nil {
			return fmt.Errorf("persist position: %s (restore failed: %s)", err, restoreErr)
		}
		return fmt.Errorf("persist position: %w", err)
	}
	e.emitter.Emit(events.CollateralDeposited{Account: caller, Token: symbol, Amount: new(big.Int).Set(amount)})
	return nil
}

func (e *Engine) redeemCollateral(from, to crypto.Address, symbol string, amount *big.Int) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	entry, symbol, err := e.asset(symbol)
	if err != nil {
		return err
	}
	position, err := e.ensurePosition(from)
	if err != nil {
		return err
	}
	balance := position.CollateralAmount(symbol)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientCollateral
	}
	staged := position.Clone()
	staged.Collateral[symbol] = balance.Sub(balance, amount)

	// Solvency is validated against the post-redemption position before any
	// tokens leave custody, so a breaking withdrawal never moves funds.
	if err := e.assertSolvent(staged); err != nil {
		return err
	}
	// The ledger debit lands before the outbound transfer so a persistence
	// failure never leaves the redeemer holding both the tokens and the
	// claim. A failed transfer rolls the debit back.
	if err := e.state.PutPosition(staged); err != nil {
		return fmt.Errorf("persist position: %w", err)
	}
	if err := entry.token.Transfer(e.moduleAddress, to, amount); err != nil {
		if restoreErr := e.state.PutPosition(position); restoreErr != nil {
			return fmt.Errorf("%w: %s (restore failed: %s)", ErrTransferFailed, err, restoreErr)
		}
		return fmt.Errorf("%w: %s", ErrTransferFailed, err)
	}
	e.emitter.Emit(events.CollateralRedeemed{RedeemedFrom: from, RedeemedTo: to, Token: symbol, Amount: new(big.Int).Set(amount)})
	return nil
}

func (e *Engine) mintDebt(caller crypto.Address, amount *big.Int) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	position, err := e.ensurePosition(caller)
	if err != nil {
		return err
	}
	staged := position.Clone()
	staged.Debt = new(big.Int).Add(staged.Debt, amount)
	if err := e.assertSolvent(staged); err != nil {
		return err
	}
	// Debt is recorded before the synthetic exists; a failed mint rolls the
	// record back so no unbacked supply can circulate.
	if err := e.state.PutPosition(staged); err != nil {
		return fmt.Errorf("persist position: %w", err)
	}
	if err := e.synth.Mint(e.moduleAddress, caller, amount); err != nil {
		if restoreErr := e.state.PutPosition(position); restoreErr != nil {
			return fmt.Errorf("%w: %s (restore failed: %s)", ErrMintFailed, err, restoreErr)
		}
		return fmt.Errorf("%w: %s", ErrMintFailed, err)
	}
	e.emitter.Emit(events.DebtMinted{Account: caller, Amount: new(big.Int).Set(amount)})
	return nil
}

func (e *Engine) burnDebt(payer, onBehalfOf crypto.Address, amount *big.Int) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	position, err := e.ensurePosition(onBehalfOf)
	if err != nil {
		return err
	}
	if position.Debt.Cmp(amount) < 0 {
		return ErrBurnExceedsDebt
	}
	staged := position.Clone()
	staged.Debt = new(big.Int).Sub(staged.Debt, amount)

	// Burning debt cannot worsen solvency, but the check still runs before
	// any external call so an oracle failure surfaces before tokens move.
	if err := e.assertSolvent(staged); err != nil {
		return err
	}
	if err := e.synth.TransferFrom(e.moduleAddress, payer, e.moduleAddress, amount); err != nil {
		return fmt.Errorf("%w: %s", ErrTransferFailed, err)
	}
	if err := e.state.PutPosition(staged); err != nil {
		// Return the pulled synthetic so the payer is made whole.
		if restoreErr := e.synth.Transfer(e.moduleAddress, payer, amount); restoreErr != nil {
			return fmt.Errorf("persist position: %s (restore failed: %s)", err, restoreErr)
		}
		return fmt.Errorf("persist position: %w", err)
	}
	if err := e.synth.Burn(e.moduleAddress, amount); err != nil {
		// Undo the ledger credit and return the pulled synthetic.
		restoreErr := e.state.PutPosition(position)
		if restoreErr == nil {
			restoreErr = e.synth.Transfer(e.moduleAddress, payer, amount)
		}
		if restoreErr != nil {
			return fmt.Errorf("%w: %s (restore failed: %s)", ErrBurnFailed, err, restoreErr)
		}
		return fmt.Errorf("%w: %s", ErrBurnFailed, err)
	}
	e.emitter.Emit(events.DebtBurned{Payer: payer, OnBehalfOf: onBehalfOf, Amount: new(big.Int).Set(amount)})
	return nil
}

func (e *Engine) liquidate(liquidator, account crypto.Address, symbol string, debtToCover *big.Int) (*big.Int, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	if debtToCover == nil || debtToCover.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	entry, symbol, err := e.asset(symbol)
	if err != nil {
		return nil, err
	}
	position, err := e.ensurePosition(account)
	if err != nil {
		return nil, err
	}
	startingHealth, err := e.healthFactor(position)
	if err != nil {
		return nil, err
	}
	if startingHealth.Cmp(minHealthFactor) >= 0 {
		return nil, ErrHealthFactorOK
	}
	if position.Debt.Cmp(debtToCover) < 0 {
		return nil, ErrBurnExceedsDebt
	}

	round, err := entry.feed.LatestRoundData()
	if err != nil {
		return nil, err
	}
	base := tokenAmountFromUsd(round.Answer, debtToCover, entry.token.Decimals())
	bonus := new(big.Int).Mul(base, new(big.Int).SetUint64(e.params.LiquidationBonus))
	bonus.Quo(bonus, big.NewInt(liquidationPrecision))
	seized := new(big.Int).Add(base, bonus)

	balance := position.CollateralAmount(symbol)
	if balance.Cmp(seized) < 0 {
		return nil, ErrInsufficientCollateral
	}
	staged := position.Clone()
	staged.Collateral[symbol] = balance.Sub(balance, seized)
	staged.Debt = new(big.Int).Sub(staged.Debt, debtToCover)

	endingHealth, err := e.healthFactor(staged)
	if err != nil {
		return nil, err
	}
	if endingHealth.Cmp(startingHealth) <= 0 {
		return nil, ErrHealthFactorNotImproved
	}

	// Re-check the liquidator's own position. Liquidating does not encumber
	// the liquidator's collateral, so this only fails for a liquidator that
	// was already insolvent.
	liquidatorPosition, err := e.ensurePosition(liquidator)
	if err != nil {
		return nil, err
	}
	if err := e.assertSolvent(liquidatorPosition); err != nil {
		return nil, err
	}

	// Effects ordered so every later failure can be unwound: pull the
	// synthetic, persist the staged position, burn, and release the seized
	// collateral last. The collateral only moves once the covered debt is
	// both recorded and destroyed.
	if err := e.synth.TransferFrom(e.moduleAddress, liquidator, e.moduleAddress, debtToCover); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTransferFailed, err)
	}
	if err := e.state.PutPosition(staged); err != nil {
		if restoreErr := e.synth.Transfer(e.moduleAddress, liquidator, debtToCover); restoreErr != nil {
			return nil, fmt.Errorf("persist position: %s (restore failed: %s)", err, restoreErr)
		}
		return nil, fmt.Errorf("persist position: %w", err)
	}
	if err := e.synth.Burn(e.moduleAddress, debtToCover); err != nil {
		restoreErr := e.state.PutPosition(position)
		if restoreErr == nil {
			restoreErr = e.synth.Transfer(e.moduleAddress, liquidator, debtToCover)
		}
		if restoreErr != nil {
			return nil, fmt.Errorf("%w: %s (restore failed: %s)", ErrBurnFailed, err, restoreErr)
		}
		return nil, fmt.Errorf("%w: %s", ErrBurnFailed, err)
	}
	if err := entry.token.Transfer(e.moduleAddress, liquidator, seized); err != nil {
		// The pulled synthetic is already burned, so the liquidator is made
		// whole by minting it back.
		restoreErr := e.state.PutPosition(position)
		if restoreErr == nil {
			restoreErr = e.synth.Mint(e.moduleAddress, liquidator, debtToCover)
		}
		if restoreErr != nil {
			return nil, fmt.Errorf("%w: %s (restore failed: %s)", ErrTransferFailed, err, restoreErr)
		}
		return nil, fmt.Errorf("%w: %s", ErrTransferFailed, err)
	}
	e.emitter.Emit(events.Liquidation{
		Liquidator:       liquidator,
		Account:          account,
		Token:            symbol,
		DebtCovered:      new(big.Int).Set(debtToCover),
		CollateralSeized: new(big.Int).Set(seized),
	})
	e.emitter.Emit(events.CollateralRedeemed{RedeemedFrom: account, RedeemedTo: liquidator, Token: symbol, Amount: new(big.Int).Set(seized)})
	e.emitter.Emit(events.DebtBurned{Payer: liquidator, OnBehalfOf: account, Amount: new(big.Int).Set(debtToCover)})
	return seized, nil
}

// --- Read-only queries ---

// HealthFactor reports the solvency ratio for the account at the precision
// scale; debt-free accounts report the max sentinel.
func (e *Engine) HealthFactor(account crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	position, err := e.ensurePosition(account)
	if err != nil {
		return nil, err
	}
	return e.healthFactor(position)
}

// AccountInformation returns the account's outstanding debt and total
// collateral value in 18-decimal USD.
func (e *Engine) AccountInformation(account crypto.Address) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, ErrNilState
	}
	position, err := e.ensurePosition(account)
	if err != nil {
		return nil, nil, err
	}
	collateralUsd, err := e.collateralValueUsd(position)
	if err != nil {
		return nil, nil, err
	}
	return new(big.Int).Set(position.Debt), collateralUsd, nil
}

// CollateralValueUSD totals the USD value of everything the account has
// deposited.
func (e *Engine) CollateralValueUSD(account crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	position, err := e.ensurePosition(account)
	if err != nil {
		return nil, err
	}
	return e.collateralValueUsd(position)
}

// CollateralBalance returns the raw deposited amount of one token.
func (e *Engine) CollateralBalance(account crypto.Address, symbol string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	_, symbol, err := e.asset(symbol)
	if err != nil {
		return nil, err
	}
	position, err := e.ensurePosition(account)
	if err != nil {
		return nil, err
	}
	return position.CollateralAmount(symbol), nil
}

// UsdValue prices an arbitrary (token, amount) pair in 18-decimal USD.
func (e *Engine) UsdValue(symbol string, amount *big.Int) (*big.Int, error) {
	entry, _, err := e.asset(symbol)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	round, err := entry.feed.LatestRoundData()
	if err != nil {
		return nil, err
	}
	return usdValue(round.Answer, amount, entry.token.Decimals()), nil
}

// TokenAmountFromUsd converts an 18-decimal USD amount into raw token units.
func (e *Engine) TokenAmountFromUsd(symbol string, usdAmount *big.Int) (*big.Int, error) {
	entry, _, err := e.asset(symbol)
	if err != nil {
		return nil, err
	}
	if usdAmount == nil || usdAmount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	round, err := entry.feed.LatestRoundData()
	if err != nil {
		return nil, err
	}
	return tokenAmountFromUsd(round.Answer, usdAmount, entry.token.Decimals()), nil
}

// --- Internal helpers ---

// enter acquires the reentrancy lock for the duration of one operation.
func (e *Engine) enter() (func(), error) {
	if e == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrReentrancy
	}
	return func() { e.busy.Store(false) }, nil
}

func (e *Engine) checkReady() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.synth == nil {
		return ErrNilToken
	}
	return nil
}

func (e *Engine) asset(symbol string) (*collateralEntry, string, error) {
	normalised := normaliseSymbol(symbol)
	entry, ok := e.assets[normalised]
	if !ok {
		return nil, "", ErrTokenNotAllowed
	}
	return entry, normalised, nil
}

func (e *Engine) ensurePosition(addr crypto.Address) (*Position, error) {
	position, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &Position{Address: addr}
	}
	if position.Collateral == nil {
		position.Collateral = make(map[string]*big.Int)
	}
	if position.Debt == nil {
		position.Debt = big.NewInt(0)
	}
	return position, nil
}

func (e *Engine) collateralValueUsd(position *Position) (*big.Int, error) {
	total := big.NewInt(0)
	for _, symbol := range e.symbols {
		amount := position.Collateral[symbol]
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		entry := e.assets[symbol]
		round, err := entry.feed.LatestRoundData()
		if err != nil {
			return nil, err
		}
		total.Add(total, usdValue(round.Answer, amount, entry.token.Decimals()))
	}
	return total, nil
}

func (e *Engine) healthFactor(position *Position) (*big.Int, error) {
	if position == nil || position.Debt == nil || position.Debt.Sign() == 0 {
		return new(big.Int).Set(maxHealthFactor), nil
	}
	collateralUsd, err := e.collateralValueUsd(position)
	if err != nil {
		return nil, err
	}
	return healthFactorFrom(collateralUsd, position.Debt, e.params.LiquidationThreshold), nil
}

func (e *Engine) assertSolvent(position *Position) error {
	health, err := e.healthFactor(position)
	if err != nil {
		return err
	}
	if health.Cmp(minHealthFactor) < 0 {
		return &BreaksHealthFactorError{HealthFactor: health}
	}
	return nil
}

func normaliseSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
