// Package margin computes notional, unrealized PnL, effective equity, and
// the initial/maintenance margin requirements for a single account against
// a mark price.
package margin

import (
	"percolat/internal/fixedpoint"
	"percolat/internal/slab"
)

// Health classifies an account's current margin standing.
type Health int

const (
	HealthHealthy Health = iota
	HealthAtRisk
	HealthLiquidatable
)

func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "Healthy"
	case HealthAtRisk:
		return "AtRisk"
	case HealthLiquidatable:
		return "Liquidatable"
	default:
		return "Unknown"
	}
}

// Notional returns |position| * mark / 1e6.
func Notional(position fixedpoint.I128, markE6 fixedpoint.U128) (fixedpoint.U128, error) {
	abs := fixedpoint.AbsI(position)
	return fixedpoint.MulDivFloor(abs, markE6.Uint64(), fixedpoint.PriceScale)
}

// UnrealizedPnL returns position * (mark - entry) / 1e6, signed by
// position direction.
func UnrealizedPnL(position fixedpoint.I128, markE6, entryE6 uint64) (fixedpoint.I128, error) {
	delta, err := fixedpoint.SubI(fixedpoint.FromU64(markE6), fixedpoint.FromU64(entryE6))
	if err != nil {
		return fixedpoint.I128{}, err
	}
	prod, err := fixedpoint.MulI(position, delta)
	if err != nil {
		return fixedpoint.I128{}, err
	}
	return fixedpoint.DivITrunc(prod, fixedpoint.FromI64(fixedpoint.PriceScale))
}

// EffectiveEquity computes E = capital + pnl_reserved + unrealized + min(pnl_realized, 0).
// Positive pnl_realized is excluded: it only becomes spendable once warmed
// into pnl_reserved.
func EffectiveEquity(acc *slab.Account, markE6 uint64) (fixedpoint.I128, error) {
	capital, err := fixedpoint.ToI(acc.Capital())
	if err != nil {
		return fixedpoint.I128{}, err
	}
	reserved, err := fixedpoint.ToI(acc.PnlReserved())
	if err != nil {
		return fixedpoint.I128{}, err
	}
	unrealized, err := UnrealizedPnL(acc.PositionSize(), markE6, acc.EntryPrice())
	if err != nil {
		return fixedpoint.I128{}, err
	}
	realized := acc.PnlRealized()
	negativeRealized := realized
	if realized.Sign() > 0 {
		negativeRealized = fixedpoint.ZeroI()
	}

	e, err := fixedpoint.AddI(capital, reserved)
	if err != nil {
		return fixedpoint.I128{}, err
	}
	e, err = fixedpoint.AddI(e, unrealized)
	if err != nil {
		return fixedpoint.I128{}, err
	}
	return fixedpoint.AddI(e, negativeRealized)
}

// InitialRequirement returns ceil(notional * initial_margin_bps / 10000).
func InitialRequirement(notional fixedpoint.U128, initialMarginBps uint64) (fixedpoint.U128, error) {
	return fixedpoint.BpsOfCeil(notional, initialMarginBps)
}

// MaintenanceRequirement returns ceil(notional * maintenance_margin_bps / 10000).
func MaintenanceRequirement(notional fixedpoint.U128, maintenanceMarginBps uint64) (fixedpoint.U128, error) {
	return fixedpoint.BpsOfCeil(notional, maintenanceMarginBps)
}

// CheckHealth classifies an account given its effective equity and the
// two margin requirements computed at the current mark.
func CheckHealth(equity fixedpoint.I128, im, mm fixedpoint.U128) (Health, error) {
	mmI, err := fixedpoint.ToI(mm)
	if err != nil {
		return HealthLiquidatable, err
	}
	if equity.Cmp(mmI) < 0 {
		return HealthLiquidatable, nil
	}
	imI, err := fixedpoint.ToI(im)
	if err != nil {
		return HealthAtRisk, err
	}
	if equity.Cmp(imI) < 0 {
		return HealthAtRisk, nil
	}
	return HealthHealthy, nil
}

// SatisfiesInitial reports whether equity meets the initial margin
// requirement — the gate a risk-increasing trade or account-opening
// withdrawal must clear.
func SatisfiesInitial(equity fixedpoint.I128, im fixedpoint.U128) (bool, error) {
	imI, err := fixedpoint.ToI(im)
	if err != nil {
		return false, err
	}
	return equity.Cmp(imI) >= 0, nil
}
