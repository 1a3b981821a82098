package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bohrplanet/Defi-stablecoin/crypto"
	"github.com/bohrplanet/Defi-stablecoin/native/common"
	"github.com/bohrplanet/Defi-stablecoin/native/dsc"
	"github.com/bohrplanet/Defi-stablecoin/native/token"
	"github.com/bohrplanet/Defi-stablecoin/observability"
)

const requestLimit = 1 << 20 // 1 MiB

// protocolRoutes binds the engine's operations to HTTP handlers. All
// mutating handlers share one mutex: the engine rejects overlapping
// operations outright, so the gateway queues them instead.
type protocolRoutes struct {
	engine *dsc.Engine
	tokens map[string]*token.LedgerToken
	faucet bool

	mu sync.Mutex
}

func newProtocolRoutes(engine *dsc.Engine, tokens map[string]*token.LedgerToken, faucet bool) *protocolRoutes {
	return &protocolRoutes{engine: engine, tokens: tokens, faucet: faucet}
}

func (pr *protocolRoutes) mountMutations(r chi.Router) {
	r.Post("/collateral/deposit", pr.depositCollateral)
	r.Post("/collateral/redeem", pr.redeemCollateral)
	r.Post("/debt/mint", pr.mintDebt)
	r.Post("/debt/burn", pr.burnDebt)
	r.Post("/collateral/deposit-and-mint", pr.depositAndMint)
	r.Post("/collateral/redeem-for-debt", pr.redeemForDebt)
	r.Post("/liquidate", pr.liquidate)
	r.Post("/tokens/approve", pr.approveToken)
	if pr.faucet {
		r.Post("/tokens/fund", pr.fundToken)
	}
}

func (pr *protocolRoutes) mountQueries(r chi.Router) {
	r.Get("/collateral/tokens", pr.listCollateralTokens)
	r.Post("/accounts/get", pr.accountInformation)
	r.Post("/accounts/health", pr.healthFactor)
	r.Post("/collateral/balance", pr.collateralBalance)
	r.Post("/price/value", pr.usdValue)
	r.Post("/price/amount", pr.tokenAmountFromUsd)
	r.Post("/tokens/balance", pr.tokenBalance)
}

type amountRequest struct {
	Account string `json:"account"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
}

type mintRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type burnRequest struct {
	Payer      string `json:"payer"`
	OnBehalfOf string `json:"onBehalfOf"`
	Amount     string `json:"amount"`
}

type composeRequest struct {
	Account    string `json:"account"`
	Token      string `json:"token"`
	Amount     string `json:"amount"`
	DebtAmount string `json:"debtAmount"`
}

type liquidateRequest struct {
	Liquidator  string `json:"liquidator"`
	Account     string `json:"account"`
	Token       string `json:"token"`
	DebtToCover string `json:"debtToCover"`
}

type approveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
}

type fundRequest struct {
	Account string `json:"account"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
}

type balanceRequest struct {
	Account string `json:"account"`
	Token   string `json:"token"`
}

func (pr *protocolRoutes) depositCollateral(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	account, amount, err := parseAccountAmount(req.Account, req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	pr.run(w, "deposit_collateral", func() (any, error) {
		if err := pr.engine.DepositCollateral(account, req.Token, amount); err != nil {
			return nil, err
		}
		return map[string]string{"status": "ok"}, nil
	})
}

func (pr *protocolRoutes) redeemCollateral(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	account, amount, err := parseAccountAmount(req.Account, req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	pr.run(w, "redeem_collateral", func() (any, error) {
		if err := pr.engine.RedeemCollateral(account, req.Token, amount); err != nil {
			return nil, err
		}
		return map[string]string{"status": "ok"}, nil
	})
}

func (pr *protocolRoutes) mintDebt(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	account, amount, err := parseAccountAmount(req.Account, req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	pr.run(w, "mint_debt", func() (any, error) {
		if err := pr.engine.MintDebt(account, amount); err != nil {
			return nil, err
		}
		return map[string]string{"status": "ok"}, nil
	})
}

func (pr *protocolRoutes) burnDebt(w http.ResponseWriter, r *http.Request) {
	var req burnRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	payer, err := crypto.DecodeAddress(req.Payer)
	if err != nil {
		writeBadRequest(w, fmt.Errorf("payer: %w", err))
		return
	}
	onBehalfOf := payer
	if strings.TrimSpace(req.OnBehalfOf) != "" {
		onBehalfOf, err = crypto.DecodeAddress(req.OnBehalfOf)
		if err != nil {
			writeBadRequest(w, fmt.Errorf("onBehalfOf: %w", err))
			return
		}
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	pr.run(w, "burn_debt", func() (any, error) {
		if err := pr.engine.BurnDebt(payer, onBehalfOf, amount); err != nil {
			return nil, err
		}
		return map[string]string{"status": "ok"}, nil
	})
}

func (pr *protocolRoutes) depositAndMint(w http.ResponseWriter, r *http.Request) {
	var req composeRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	account, amount, err := parseAccountAmount(req.Account, req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	debtAmount, err := parseAmount(req.DebtAmount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	pr.run(w, "deposit_and_mint", func() (any, error) {
		if err := pr.engine.DepositCollateralAndMint(account, req.Token, amount, debtAmount); err != nil {
			return nil, err
		}
		return map[string]string{"status": "ok"}, nil
	})
}

func (pr *protocolRoutes) redeemForDebt(w http.ResponseWriter, r *http.Request) {
	var req composeRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	account, amount, err := parseAccountAmount(req.Account, req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	debtAmount, err := parseAmount(req.DebtAmount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	pr.run(w, "redeem_for_debt", func() (any, error) {
		if err := pr.engine.RedeemCollateralForDebt(account, req.Token, amount, debtAmount); err != nil {
			return nil, err
		}
		return map[string]string{"status": "ok"}, nil
	})
}

func (pr *protocolRoutes) liquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	liquidator, err := crypto.DecodeAddress(req.Liquidator)
	if err != nil {
		writeBadRequest(w, fmt.Errorf("liquidator: %w", err))
		return
	}
	account, err := crypto.DecodeAddress(req.Account)
	if err != nil {
		writeBadRequest(w, fmt.Errorf("account: %w", err))
		return
	}
	debtToCover, err := parseAmount(req.DebtToCover)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	pr.run(w, "liquidate", func() (any, error) {
		seized, err := pr.engine.Liquidate(liquidator, account, req.Token, debtToCover)
		if err != nil {
			return nil, err
		}
		observability.Engine().RecordLiquidation()
		return map[string]string{"status": "ok", "collateralSeized": seized.String()}, nil
	})
}

func (pr *protocolRoutes) approveToken(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	owner, err := crypto.DecodeAddress(req.Owner)
	if err != nil {
		writeBadRequest(w, fmt.Errorf("owner: %w", err))
		return
	}
	spender := pr.engine.ModuleAddress()
	if strings.TrimSpace(req.Spender) != "" {
		spender, err = crypto.DecodeAddress(req.Spender)
		if err != nil {
			writeBadRequest(w, fmt.Errorf("spender: %w", err))
			return
		}
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	ledger, err := pr.ledgerToken(req.Token)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	pr.run(w, "approve_token", func() (any, error) {
		if err := ledger.Approve(owner, spender, amount); err != nil {
			return nil, err
		}
		return map[string]string{"status": "ok"}, nil
	})
}

// fundToken mints collateral tokens straight to an account. Dev tooling
// only; the route is absent unless the faucet is enabled in config.
func (pr *protocolRoutes) fundToken(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	account, amount, err := parseAccountAmount(req.Account, req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	ledger, err := pr.ledgerToken(req.Token)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	pr.run(w, "fund_token", func() (any, error) {
		if err := ledger.Mint(pr.engine.ModuleAddress(), account, amount); err != nil {
			return nil, err
		}
		return map[string]string{"status": "ok"}, nil
	})
}

func (pr *protocolRoutes) listCollateralTokens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"tokens": pr.engine.CollateralTokens()})
}

func (pr *protocolRoutes) accountInformation(w http.ResponseWriter, r *http.Request) {
	account, ok := pr.decodeAccount(w, r)
	if !ok {
		return
	}
	debt, collateralUsd, err := pr.engine.AccountInformation(account)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, map[string]string{
		"debt":               debt.String(),
		"collateralValueUsd": collateralUsd.String(),
	})
}

func (pr *protocolRoutes) healthFactor(w http.ResponseWriter, r *http.Request) {
	account, ok := pr.decodeAccount(w, r)
	if !ok {
		return
	}
	health, err := pr.engine.HealthFactor(account)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, map[string]string{"healthFactor": health.String()})
}

func (pr *protocolRoutes) collateralBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	account, err := crypto.DecodeAddress(req.Account)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	balance, err := pr.engine.CollateralBalance(account, req.Token)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, map[string]string{"balance": balance.String()})
}

func (pr *protocolRoutes) usdValue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token  string `json:"token"`
		Amount string `json:"amount"`
	}
	if err := decodeRequest(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	value, err := pr.engine.UsdValue(body.Token, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, map[string]string{"usdValue": value.String()})
}

func (pr *protocolRoutes) tokenAmountFromUsd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token    string `json:"token"`
		UsdValue string `json:"usdValue"`
	}
	if err := decodeRequest(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	usd, err := parseAmount(body.UsdValue)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := pr.engine.TokenAmountFromUsd(body.Token, usd)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, map[string]string{"amount": amount.String()})
}

func (pr *protocolRoutes) tokenBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	account, err := crypto.DecodeAddress(req.Account)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	ledger, err := pr.ledgerToken(req.Token)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	writeJSON(w, map[string]string{"balance": ledger.BalanceOf(account).String()})
}

// run serializes a mutating operation, records its metrics, and writes
// either the payload or the mapped engine error.
func (pr *protocolRoutes) run(w http.ResponseWriter, op string, fn func() (any, error)) {
	pr.mu.Lock()
	start := time.Now()
	payload, err := fn()
	duration := time.Since(start)
	pr.mu.Unlock()

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, dsc.ErrStalePrice) {
			observability.Engine().RecordStaleRead()
		}
	}
	observability.Engine().Observe(op, outcome, duration)

	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, payload)
}

func (pr *protocolRoutes) ledgerToken(symbol string) (*token.LedgerToken, error) {
	normalised := strings.ToUpper(strings.TrimSpace(symbol))
	ledger, ok := pr.tokens[normalised]
	if !ok {
		return nil, fmt.Errorf("unknown token %q", symbol)
	}
	return ledger, nil
}

func (pr *protocolRoutes) decodeAccount(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	var body struct {
		Account string `json:"account"`
	}
	if err := decodeRequest(r, &body); err != nil {
		writeBadRequest(w, err)
		return crypto.Address{}, false
	}
	account, err := crypto.DecodeAddress(body.Account)
	if err != nil {
		writeBadRequest(w, err)
		return crypto.Address{}, false
	}
	return account, true
}

func parseAccountAmount(account, amount string) (crypto.Address, *big.Int, error) {
	addr, err := crypto.DecodeAddress(account)
	if err != nil {
		return crypto.Address{}, nil, fmt.Errorf("account: %w", err)
	}
	value, err := parseAmount(amount)
	if err != nil {
		return crypto.Address{}, nil, err
	}
	return addr, value, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("amount is required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}

func decodeRequest(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	defer r.Body.Close()

	reader := io.LimitReader(r.Body, requestLimit)
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(data) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(payload)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Errorf("marshal response: %w", err))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

// writeEngineError translates engine sentinels into HTTP statuses:
// malformed input is 400, business-rule refusals are 409, a paused
// module or stale oracle is 503, anything else is 500.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dsc.ErrInvalidAmount),
		errors.Is(err, dsc.ErrTokenNotAllowed):
		writeJSONError(w, http.StatusBadRequest, err)
	case errors.Is(err, dsc.ErrBreaksHealthFactor),
		errors.Is(err, dsc.ErrInsufficientCollateral),
		errors.Is(err, dsc.ErrBurnExceedsDebt),
		errors.Is(err, dsc.ErrHealthFactorOK),
		errors.Is(err, dsc.ErrHealthFactorNotImproved),
		errors.Is(err, dsc.ErrTransferFailed),
		errors.Is(err, dsc.ErrReentrancy):
		writeJSONError(w, http.StatusConflict, err)
	case errors.Is(err, dsc.ErrStalePrice),
		errors.Is(err, common.ErrModulePaused):
		writeJSONError(w, http.StatusServiceUnavailable, err)
	default:
		writeJSONError(w, http.StatusInternalServerError, err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	payload, marshalErr := json.Marshal(map[string]string{"error": message})
	if marshalErr != nil {
		payload = []byte(`{"error":"internal error"}`)
	}
	_, _ = w.Write(payload)
}
