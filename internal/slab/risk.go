package slab

// Risk param field offsets, relative to riskOff.
const (
	rOffWarmupPeriodSlots      = 0
	rOffMaintenanceMarginBps   = 8
	rOffInitialMarginBps       = 16
	rOffTradingFeeBps          = 24
	rOffMaxAccounts            = 32
	rOffNewAccountFee          = 40
	rOffRiskReductionThreshold = 56
	rOffMaintenanceFeePerSlot  = 72
	rOffMaxCrankStalenessSlots = 88
	rOffLiquidationFeeBps      = 96
	rOffLiquidationFeeCap      = 104
	rOffLiquidationBufferBps   = 120
	rOffMinLiquidationAbs      = 128
	rOffFundingHorizonSlots    = 144
	rOffFundingKBps            = 152
	rOffFundingScaleNotional   = 160
	rOffFundingMaxPremiumBps   = 176
	rOffFundingMaxBpsPerSlot   = 184
)

func (v *View) WarmupPeriodSlots() uint64 { return v.u64(riskOff + rOffWarmupPeriodSlots) }
func (v *View) SetWarmupPeriodSlots(x uint64) { v.putU64(riskOff+rOffWarmupPeriodSlots, x) }

func (v *View) MaintenanceMarginBps() uint64 { return v.u64(riskOff + rOffMaintenanceMarginBps) }
func (v *View) SetMaintenanceMarginBps(x uint64) {
	v.putU64(riskOff+rOffMaintenanceMarginBps, x)
}

func (v *View) InitialMarginBps() uint64 { return v.u64(riskOff + rOffInitialMarginBps) }
func (v *View) SetInitialMarginBps(x uint64) { v.putU64(riskOff+rOffInitialMarginBps, x) }

func (v *View) TradingFeeBps() uint64 { return v.u64(riskOff + rOffTradingFeeBps) }
func (v *View) SetTradingFeeBps(x uint64) { v.putU64(riskOff+rOffTradingFeeBps, x) }

func (v *View) MaxAccounts() uint64 { return v.u64(riskOff + rOffMaxAccounts) }
func (v *View) SetMaxAccounts(x uint64) { v.putU64(riskOff+rOffMaxAccounts, x) }

func (v *View) NewAccountFee() uint64 { return v.u64(riskOff + rOffNewAccountFee) }

// risk params store u128s for the fee/threshold fields per the data model;
// NewAccountFee is the one exception kept narrow (u64) since fee payments
// are always small relative to collateral scale, mirroring the wire
// payload for InitMarket.
func (v *View) SetNewAccountFeeU64(x uint64) { v.putU64(riskOff+rOffNewAccountFee, x) }

func (v *View) RiskReductionThreshold() U128 { return v.u128(riskOff + rOffRiskReductionThreshold) }
func (v *View) SetRiskReductionThreshold(x U128) {
	v.putU128(riskOff+rOffRiskReductionThreshold, x)
}

func (v *View) MaintenanceFeePerSlot() U128 { return v.u128(riskOff + rOffMaintenanceFeePerSlot) }
func (v *View) SetMaintenanceFeePerSlot(x U128) {
	v.putU128(riskOff+rOffMaintenanceFeePerSlot, x)
}

func (v *View) MaxCrankStalenessSlots() uint64 {
	return v.u64(riskOff + rOffMaxCrankStalenessSlots)
}
func (v *View) SetMaxCrankStalenessSlots(x uint64) {
	v.putU64(riskOff+rOffMaxCrankStalenessSlots, x)
}

func (v *View) LiquidationFeeBps() uint64 { return v.u64(riskOff + rOffLiquidationFeeBps) }
func (v *View) SetLiquidationFeeBps(x uint64) { v.putU64(riskOff+rOffLiquidationFeeBps, x) }

func (v *View) LiquidationFeeCap() U128 { return v.u128(riskOff + rOffLiquidationFeeCap) }
func (v *View) SetLiquidationFeeCap(x U128) { v.putU128(riskOff+rOffLiquidationFeeCap, x) }

func (v *View) LiquidationBufferBps() uint64 { return v.u64(riskOff + rOffLiquidationBufferBps) }
func (v *View) SetLiquidationBufferBps(x uint64) {
	v.putU64(riskOff+rOffLiquidationBufferBps, x)
}

func (v *View) MinLiquidationAbs() U128 { return v.u128(riskOff + rOffMinLiquidationAbs) }
func (v *View) SetMinLiquidationAbs(x U128) { v.putU128(riskOff+rOffMinLiquidationAbs, x) }

func (v *View) FundingHorizonSlots() uint64 { return v.u64(riskOff + rOffFundingHorizonSlots) }
func (v *View) SetFundingHorizonSlots(x uint64) { v.putU64(riskOff+rOffFundingHorizonSlots, x) }

func (v *View) FundingKBps() uint64 { return v.u64(riskOff + rOffFundingKBps) }
func (v *View) SetFundingKBps(x uint64) { v.putU64(riskOff+rOffFundingKBps, x) }

func (v *View) FundingScaleNotional() U128 { return v.u128(riskOff + rOffFundingScaleNotional) }
func (v *View) SetFundingScaleNotional(x U128) {
	v.putU128(riskOff+rOffFundingScaleNotional, x)
}

func (v *View) FundingMaxPremiumBps() uint64 { return v.u64(riskOff + rOffFundingMaxPremiumBps) }
func (v *View) SetFundingMaxPremiumBps(x uint64) {
	v.putU64(riskOff+rOffFundingMaxPremiumBps, x)
}

func (v *View) FundingMaxBpsPerSlot() uint64 { return v.u64(riskOff + rOffFundingMaxBpsPerSlot) }
func (v *View) SetFundingMaxBpsPerSlot(x uint64) {
	v.putU64(riskOff+rOffFundingMaxBpsPerSlot, x)
}
