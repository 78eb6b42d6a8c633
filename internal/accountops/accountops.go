// Package accountops implements the account-lifecycle and collateral
// operations that sit outside trading, liquidation, and the crank:
// standing up a market, opening user/LP accounts, depositing and
// withdrawing collateral, and closing an account once it is flat.
package accountops

import (
	"github.com/gagliardetto/solana-go"

	"percolat/internal/allocator"
	"percolat/internal/apperrors"
	"percolat/internal/fixedpoint"
	"percolat/internal/margin"
	"percolat/internal/slab"
)

// MarketConfig bundles every market and risk-parameter field InitMarket
// stamps in one call, since a real deployment supplies them all at once
// from the instruction payload.
type MarketConfig struct {
	CollateralMint     solana.PublicKey
	VaultID            solana.PublicKey
	VaultAuthorityBump uint8
	FeedIdentity       solana.PublicKey
	FeedKind           slab.FeedKind
	MaxStalenessSecs   uint64
	ConfFilterBps      uint16
	Invert             bool
	UnitScale          uint32

	WarmupPeriodSlots      uint64
	MaintenanceMarginBps   uint64
	InitialMarginBps       uint64
	TradingFeeBps          uint64
	MaxAccounts            uint64
	NewAccountFee          uint64
	RiskReductionThreshold fixedpoint.U128
	MaintenanceFeePerSlot  fixedpoint.U128
	MaxCrankStalenessSlots uint64
	LiquidationFeeBps      uint64
	LiquidationFeeCap      fixedpoint.U128
	LiquidationBufferBps   uint64
	MinLiquidationAbs      fixedpoint.U128
	FundingHorizonSlots    uint64
	FundingKBps            uint64
	FundingScaleNotional   fixedpoint.U128
	FundingMaxPremiumBps   uint64
	FundingMaxBpsPerSlot   uint64
}

// InitMarket stamps a freshly created slab (slab.New) with its admin key
// and every market/risk-parameter field. It does not touch the bitmap or
// engine counters, which are already zero in a fresh slab.
func InitMarket(v *slab.View, bump uint8, admin solana.PublicKey, cfg MarketConfig) error {
	v.SetBump(bump)
	v.SetAdmin(admin)

	v.SetCollateralMint(cfg.CollateralMint)
	v.SetVaultID(cfg.VaultID)
	v.SetVaultAuthorityBump(cfg.VaultAuthorityBump)
	v.SetPriceFeedIdentity(cfg.FeedIdentity)
	v.SetFeedKind(cfg.FeedKind)
	v.SetMaxStalenessSecs(cfg.MaxStalenessSecs)
	v.SetConfFilterBps(cfg.ConfFilterBps)
	v.SetInvert(cfg.Invert)
	v.SetUnitScale(cfg.UnitScale)

	v.SetWarmupPeriodSlots(cfg.WarmupPeriodSlots)
	v.SetMaintenanceMarginBps(cfg.MaintenanceMarginBps)
	v.SetInitialMarginBps(cfg.InitialMarginBps)
	v.SetTradingFeeBps(cfg.TradingFeeBps)
	v.SetMaxAccounts(cfg.MaxAccounts)
	v.SetNewAccountFeeU64(cfg.NewAccountFee)
	v.SetRiskReductionThreshold(cfg.RiskReductionThreshold)
	v.SetMaintenanceFeePerSlot(cfg.MaintenanceFeePerSlot)
	v.SetMaxCrankStalenessSlots(cfg.MaxCrankStalenessSlots)
	v.SetLiquidationFeeBps(cfg.LiquidationFeeBps)
	v.SetLiquidationFeeCap(cfg.LiquidationFeeCap)
	v.SetLiquidationBufferBps(cfg.LiquidationBufferBps)
	v.SetMinLiquidationAbs(cfg.MinLiquidationAbs)
	v.SetFundingHorizonSlots(cfg.FundingHorizonSlots)
	v.SetFundingKBps(cfg.FundingKBps)
	v.SetFundingScaleNotional(cfg.FundingScaleNotional)
	v.SetFundingMaxPremiumBps(cfg.FundingMaxPremiumBps)
	v.SetFundingMaxBpsPerSlot(cfg.FundingMaxBpsPerSlot)
	return nil
}

// allocAccount is the shared body of InitUser/InitLP: allocate a slot,
// charge the new-account fee from the opening deposit, and stamp owner
// and kind.
func allocAccount(v *slab.View, owner solana.PublicKey, kind slab.AccountKind, openingDeposit fixedpoint.U128) (uint32, error) {
	idx, _, err := allocator.Alloc(v)
	if err != nil {
		return 0, err
	}
	acc, err := v.Account(idx)
	if err != nil {
		return 0, err
	}
	acc.SetOwner(owner)
	acc.SetKind(kind)

	fee := fixedpoint.FromU64(v.NewAccountFee())
	if openingDeposit.Cmp(fee) < 0 {
		return 0, apperrors.ErrInsufficientCapital
	}
	capital, err := fixedpoint.SubU(openingDeposit, fee)
	if err != nil {
		return 0, err
	}
	acc.SetCapital(capital)

	newVault, err := fixedpoint.AddU(v.Vault(), openingDeposit)
	if err != nil {
		return 0, err
	}
	v.SetVault(newVault)
	newInsurance, err := fixedpoint.AddU(v.InsuranceBalance(), fee)
	if err != nil {
		return 0, err
	}
	v.SetInsuranceBalance(newInsurance)
	return idx, nil
}

// InitUser opens a user account, funding it with openingDeposit minus the
// new-account fee.
func InitUser(v *slab.View, owner solana.PublicKey, openingDeposit fixedpoint.U128) (uint32, error) {
	return allocAccount(v, owner, slab.AccountKindUser, openingDeposit)
}

// InitLP opens an LP account and wires its external matcher program and
// context key.
func InitLP(v *slab.View, owner, matcherProgram, matcherContext solana.PublicKey, openingDeposit fixedpoint.U128) (uint32, error) {
	idx, err := allocAccount(v, owner, slab.AccountKindLP, openingDeposit)
	if err != nil {
		return 0, err
	}
	acc, err := v.Account(idx)
	if err != nil {
		return 0, err
	}
	acc.SetMatcherProgram(matcherProgram)
	acc.SetMatcherContext(matcherContext)
	return idx, nil
}

// DepositCollateral credits amount to acc's capital and the market vault.
func DepositCollateral(v *slab.View, acc *slab.Account, amount fixedpoint.U128) error {
	if amount.IsZero() {
		return nil
	}
	newCapital, err := fixedpoint.AddU(acc.Capital(), amount)
	if err != nil {
		return err
	}
	acc.SetCapital(newCapital)
	newVault, err := fixedpoint.AddU(v.Vault(), amount)
	if err != nil {
		return err
	}
	v.SetVault(newVault)
	return nil
}

// WithdrawCollateral debits amount from acc's capital and the vault,
// rejecting any withdrawal that would breach the account's initial
// margin requirement at markE6.
func WithdrawCollateral(v *slab.View, acc *slab.Account, amount, markE6 fixedpoint.U128) error {
	if amount.IsZero() {
		return nil
	}
	if acc.Capital().Cmp(amount) < 0 {
		return apperrors.ErrInsufficientCapital
	}
	newCapital, err := fixedpoint.SubU(acc.Capital(), amount)
	if err != nil {
		return err
	}

	if !acc.IsFlat() {
		equity, err := projectedEquity(acc, newCapital, markE6.Uint64())
		if err != nil {
			return err
		}
		notional, err := margin.Notional(acc.PositionSize(), markE6)
		if err != nil {
			return err
		}
		im, err := margin.InitialRequirement(notional, v.InitialMarginBps())
		if err != nil {
			return err
		}
		ok, err := margin.SatisfiesInitial(equity, im)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrInsufficientMargin
		}
	}

	acc.SetCapital(newCapital)
	newVault, err := fixedpoint.SubU(v.Vault(), amount)
	if err != nil {
		return err
	}
	v.SetVault(newVault)
	return nil
}

// projectedEquity recomputes effective equity as if acc's capital were
// already newCapital, without mutating acc.
func projectedEquity(acc *slab.Account, newCapital fixedpoint.U128, markE6 uint64) (fixedpoint.I128, error) {
	capital, err := fixedpoint.ToI(newCapital)
	if err != nil {
		return fixedpoint.I128{}, err
	}
	reserved, err := fixedpoint.ToI(acc.PnlReserved())
	if err != nil {
		return fixedpoint.I128{}, err
	}
	unrealized, err := margin.UnrealizedPnL(acc.PositionSize(), markE6, acc.EntryPrice())
	if err != nil {
		return fixedpoint.I128{}, err
	}
	realized := acc.PnlRealized()
	if realized.Sign() > 0 {
		realized = fixedpoint.ZeroI()
	}
	e, err := fixedpoint.AddI(capital, reserved)
	if err != nil {
		return fixedpoint.I128{}, err
	}
	e, err = fixedpoint.AddI(e, unrealized)
	if err != nil {
		return fixedpoint.I128{}, err
	}
	return fixedpoint.AddI(e, realized)
}

// CloseAccount frees idx's slot. The account must be flat with zero
// capital and zero pending PnL — withdraw everything first.
func CloseAccount(v *slab.View, idx uint32) error {
	acc, err := v.Account(idx)
	if err != nil {
		return err
	}
	if !acc.IsFlat() || !acc.Capital().IsZero() || !acc.PnlRealized().IsZero() || !acc.PnlReserved().IsZero() {
		return apperrors.ErrInvariantViolation
	}
	return allocator.Free(v, idx)
}
