package events

import (
	"math/big"

	"github.com/bohrplanet/Defi-stablecoin/crypto"
)

const (
	// TypeCollateralDeposited is emitted when a user locks collateral.
	TypeCollateralDeposited = "dsc.collateral.deposited"
	// TypeCollateralRedeemed is emitted when collateral leaves engine custody.
	TypeCollateralRedeemed = "dsc.collateral.redeemed"
	// TypeDebtMinted is emitted when synthetic debt is issued against collateral.
	TypeDebtMinted = "dsc.debt.minted"
	// TypeDebtBurned is emitted when synthetic debt is repaid and destroyed.
	TypeDebtBurned = "dsc.debt.burned"
	// TypeLiquidation is emitted after a successful third-party liquidation.
	TypeLiquidation = "dsc.liquidation"
)

type CollateralDeposited struct {
	Account crypto.Address
	Token   string
	Amount  *big.Int
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

type CollateralRedeemed struct {
	// RedeemedFrom is the position the collateral was debited from; RedeemedTo
	// receives the tokens. The two differ during liquidation.
	RedeemedFrom crypto.Address
	RedeemedTo   crypto.Address
	Token        string
	Amount       *big.Int
}

func (CollateralRedeemed) EventType() string { return TypeCollateralRedeemed }

type DebtMinted struct {
	Account crypto.Address
	Amount  *big.Int
}

func (DebtMinted) EventType() string { return TypeDebtMinted }

type DebtBurned struct {
	Payer      crypto.Address
	OnBehalfOf crypto.Address
	Amount     *big.Int
}

func (DebtBurned) EventType() string { return TypeDebtBurned }

type Liquidation struct {
	Liquidator       crypto.Address
	Account          crypto.Address
	Token            string
	DebtCovered      *big.Int
	CollateralSeized *big.Int
}

func (Liquidation) EventType() string { return TypeLiquidation }
