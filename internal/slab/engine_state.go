package slab

import "percolat/internal/fixedpoint"

// Engine state field offsets, relative to engineOff.
const (
	eOffCurrentSlot            = 0
	eOffLastCrankSlot          = 8
	eOffLastFullSweepStartSlot = 16
	eOffFundingIndexQpE6       = 24
	eOffLastFundingSlot        = 40
	eOffInsuranceBalance       = 48
	eOffInsuranceFeeRevenue    = 64
	eOffVault                  = 80
	eOffLossAccum              = 96
	eOffRiskReductionOnly      = 112
	eOffWarmupPaused           = 113
	eOffLifetimeLiquidations   = 120
	eOffLifetimeForceCloses    = 128
	eOffNextAccountID          = 136
	eOffNumUsedAccounts        = 144
	eOffTotalOpenInterest      = 152
	eOffLpSumAbs               = 168
	eOffLpMaxAbs               = 184
	eOffPnlPosTot              = 200
	eOffPnlNegTot              = 216
	eOffAuthorityPriceE6       = 232
	eOffAuthorityTimestamp     = 240
)

func (v *View) CurrentSlot() uint64 { return v.u64(engineOff + eOffCurrentSlot) }
func (v *View) SetCurrentSlot(x uint64) { v.putU64(engineOff+eOffCurrentSlot, x) }

func (v *View) LastCrankSlot() uint64 { return v.u64(engineOff + eOffLastCrankSlot) }
func (v *View) SetLastCrankSlot(x uint64) { v.putU64(engineOff+eOffLastCrankSlot, x) }

func (v *View) LastFullSweepStartSlot() uint64 {
	return v.u64(engineOff + eOffLastFullSweepStartSlot)
}
func (v *View) SetLastFullSweepStartSlot(x uint64) {
	v.putU64(engineOff+eOffLastFullSweepStartSlot, x)
}

func (v *View) FundingIndexQpE6() I128 { return v.i128(engineOff + eOffFundingIndexQpE6) }
func (v *View) SetFundingIndexQpE6(x I128) { v.putI128(engineOff+eOffFundingIndexQpE6, x) }

func (v *View) LastFundingSlot() uint64 { return v.u64(engineOff + eOffLastFundingSlot) }
func (v *View) SetLastFundingSlot(x uint64) { v.putU64(engineOff+eOffLastFundingSlot, x) }

func (v *View) InsuranceBalance() U128 { return v.u128(engineOff + eOffInsuranceBalance) }
func (v *View) SetInsuranceBalance(x U128) { v.putU128(engineOff+eOffInsuranceBalance, x) }

func (v *View) InsuranceFeeRevenue() U128 { return v.u128(engineOff + eOffInsuranceFeeRevenue) }
func (v *View) SetInsuranceFeeRevenue(x U128) {
	v.putU128(engineOff+eOffInsuranceFeeRevenue, x)
}

// Vault is the engine's trusted accounting image of the external vault's
// token balance, synchronized only on verified deposit/withdraw.
func (v *View) Vault() U128 { return v.u128(engineOff + eOffVault) }
func (v *View) SetVault(x U128) { v.putU128(engineOff+eOffVault, x) }

func (v *View) LossAccum() I128 { return v.i128(engineOff + eOffLossAccum) }
func (v *View) SetLossAccum(x I128) { v.putI128(engineOff+eOffLossAccum, x) }

func (v *View) RiskReductionOnly() bool { return v.u8(engineOff+eOffRiskReductionOnly) != 0 }
func (v *View) SetRiskReductionOnly(b bool) {
	var x uint8
	if b {
		x = 1
	}
	v.putU8(engineOff+eOffRiskReductionOnly, x)
}

func (v *View) WarmupPaused() bool { return v.u8(engineOff+eOffWarmupPaused) != 0 }
func (v *View) SetWarmupPaused(b bool) {
	var x uint8
	if b {
		x = 1
	}
	v.putU8(engineOff+eOffWarmupPaused, x)
}

func (v *View) LifetimeLiquidations() uint64 {
	return v.u64(engineOff + eOffLifetimeLiquidations)
}
func (v *View) IncrementLifetimeLiquidations() {
	v.putU64(engineOff+eOffLifetimeLiquidations, v.LifetimeLiquidations()+1)
}

func (v *View) LifetimeForceCloses() uint64 { return v.u64(engineOff + eOffLifetimeForceCloses) }
func (v *View) IncrementLifetimeForceCloses() {
	v.putU64(engineOff+eOffLifetimeForceCloses, v.LifetimeForceCloses()+1)
}

func (v *View) NextAccountID() uint64 { return v.u64(engineOff + eOffNextAccountID) }
func (v *View) SetNextAccountID(x uint64) { v.putU64(engineOff+eOffNextAccountID, x) }

func (v *View) NumUsedAccounts() uint16 { return v.u16(engineOff + eOffNumUsedAccounts) }
func (v *View) SetNumUsedAccounts(x uint16) { v.putU16(engineOff+eOffNumUsedAccounts, x) }

func (v *View) TotalOpenInterest() U128 { return v.u128(engineOff + eOffTotalOpenInterest) }
func (v *View) SetTotalOpenInterest(x U128) { v.putU128(engineOff+eOffTotalOpenInterest, x) }

func (v *View) LpSumAbs() U128 { return v.u128(engineOff + eOffLpSumAbs) }
func (v *View) SetLpSumAbs(x U128) { v.putU128(engineOff+eOffLpSumAbs, x) }

func (v *View) LpMaxAbs() U128 { return v.u128(engineOff + eOffLpMaxAbs) }
func (v *View) SetLpMaxAbs(x U128) { v.putU128(engineOff+eOffLpMaxAbs, x) }

func (v *View) PnlPosTot() U128 { return v.u128(engineOff + eOffPnlPosTot) }
func (v *View) SetPnlPosTot(x U128) { v.putU128(engineOff+eOffPnlPosTot, x) }

func (v *View) PnlNegTot() U128 { return v.u128(engineOff + eOffPnlNegTot) }
func (v *View) SetPnlNegTot(x U128) { v.putU128(engineOff+eOffPnlNegTot, x) }

func (v *View) AuthorityPriceE6() uint64 { return v.u64(engineOff + eOffAuthorityPriceE6) }
func (v *View) SetAuthorityPriceE6(x uint64) { v.putU64(engineOff+eOffAuthorityPriceE6, x) }

func (v *View) AuthorityTimestamp() int64 { return v.i64(engineOff + eOffAuthorityTimestamp) }
func (v *View) SetAuthorityTimestamp(x int64) { v.putI64(engineOff+eOffAuthorityTimestamp, x) }

// Residual is the collateral available to back positive PnL conversion:
// vault minus all outstanding capital minus the insurance balance. Callers
// pass the live sum of capital across used accounts since the slab does
// not track it as a standing total.
func (v *View) Residual(sumCapital U128) (I128, error) {
	vault, err := fixedpoint.ToI(v.Vault())
	if err != nil {
		return I128{}, err
	}
	capSum, err := fixedpoint.ToI(sumCapital)
	if err != nil {
		return I128{}, err
	}
	ins, err := fixedpoint.ToI(v.InsuranceBalance())
	if err != nil {
		return I128{}, err
	}
	r, err := fixedpoint.SubI(vault, capSum)
	if err != nil {
		return I128{}, err
	}
	return fixedpoint.SubI(r, ins)
}
