// Package liquidation closes enough of an undermargined account's position,
// at the oracle mark, to restore its maintenance margin with a safety
// buffer — never more than that, and never at a liquidator-supplied price.
// The close itself is just a trade against the account's LP counterparty,
// so it settles through the same fill-and-two-pass pipeline trading uses;
// what differs is how the close size is chosen, how the fee is computed,
// and the liquidation bookkeeping layered on top.
package liquidation

import (
	"math/big"

	"percolat/internal/apperrors"
	"percolat/internal/fixedpoint"
	"percolat/internal/funding"
	"percolat/internal/margin"
	"percolat/internal/position"
	"percolat/internal/slab"
	"percolat/internal/warmup"
)

// Request describes one liquidation attempt against an undermargined
// account. LP is the counterparty absorbing the closed size.
type Request struct {
	Account     *slab.Account
	LP          *slab.Account
	MarkE6      fixedpoint.U128
	CurrentSlot uint64
}

// Result reports what a successful liquidation did, for the caller's
// bookkeeping (indexer events, crank logging).
type Result struct {
	ClosedAbs  fixedpoint.U128
	FeeCharged fixedpoint.U128
	FullClose  bool
}

// Liquidate closes part or all of req.Account's position against req.LP at
// the oracle mark. It returns ErrAccountHealthy if the account does not
// currently fail its maintenance margin requirement.
func Liquidate(v *slab.View, req Request) (Result, error) {
	acc, lp := req.Account, req.LP

	if err := funding.SettleAccount(v, acc); err != nil {
		return Result{}, err
	}
	if err := funding.SettleAccount(v, lp); err != nil {
		return Result{}, err
	}

	equity, err := margin.EffectiveEquity(acc, req.MarkE6.Uint64())
	if err != nil {
		return Result{}, err
	}
	oldAbs := fixedpoint.AbsI(acc.PositionSize())
	notional, err := margin.Notional(acc.PositionSize(), req.MarkE6)
	if err != nil {
		return Result{}, err
	}
	mm, err := margin.MaintenanceRequirement(notional, v.MaintenanceMarginBps())
	if err != nil {
		return Result{}, err
	}
	mmI, err := fixedpoint.ToI(mm)
	if err != nil {
		return Result{}, err
	}
	if equity.Cmp(mmI) >= 0 {
		return Result{}, apperrors.ErrAccountHealthy
	}

	if err := transitionToInProgress(acc); err != nil {
		return Result{}, err
	}

	closeAbs, fullClose, err := closeSize(v, equity, oldAbs, req.MarkE6)
	if err != nil {
		return Result{}, err
	}
	if closeAbs.IsZero() {
		acc.SetLiquidationState(slab.LiquidationAtRisk)
		return Result{}, apperrors.ErrLiquidationTooSmall
	}

	closeSigned, err := fixedpoint.ToI(closeAbs)
	if err != nil {
		return Result{}, err
	}
	if acc.PositionSize().Sign() > 0 {
		closeSigned = fixedpoint.Neg(closeSigned)
	}
	lpSigned := fixedpoint.Neg(closeSigned)

	if err := position.ApplyFill(v, acc, closeSigned, req.MarkE6.Uint64()); err != nil {
		return Result{}, err
	}
	if err := position.ApplyFill(v, lp, lpSigned, req.MarkE6.Uint64()); err != nil {
		return Result{}, err
	}

	fee, err := chargeLiquidationFee(v, acc, closeAbs, req.MarkE6)
	if err != nil {
		return Result{}, err
	}

	if err := warmup.TwoPass(v, []*slab.Account{acc, lp}); err != nil {
		return Result{}, err
	}

	if fullClose {
		acc.SetLiquidationState(slab.LiquidationClosed)
		v.IncrementLifetimeForceCloses()
	} else {
		acc.SetLiquidationState(slab.LiquidationPartiallyLiquidated)
	}
	v.IncrementLifetimeLiquidations()

	return Result{ClosedAbs: closeAbs, FeeCharged: fee, FullClose: fullClose}, nil
}

func transitionToInProgress(acc *slab.Account) error {
	cur := acc.LiquidationState()
	if cur == slab.LiquidationInProgress {
		return nil
	}
	if cur == slab.LiquidationHealthy {
		if !cur.CanTransitionTo(slab.LiquidationAtRisk) {
			return apperrors.ErrInvariantViolation
		}
		acc.SetLiquidationState(slab.LiquidationAtRisk)
		cur = slab.LiquidationAtRisk
	}
	if !cur.CanTransitionTo(slab.LiquidationInProgress) {
		return apperrors.ErrInvariantViolation
	}
	acc.SetLiquidationState(slab.LiquidationInProgress)
	return nil
}

// closeSize picks the close amount that lands remaining notional at or
// under maintenance-plus-buffer given the account's current equity, which
// an oracle-anchored close leaves unchanged (the loss realized on the
// closed leg exactly offsets the unrealized loss it replaces). Equity is
// fixed, so only the maintenance requirement — proportional to the
// remaining position — can be brought back under it; closeSize solves for
// the largest remaining size that clears the buffered requirement and
// returns oldAbs minus that.
func closeSize(v *slab.View, equity fixedpoint.I128, oldAbs fixedpoint.U128, markE6 fixedpoint.U128) (fixedpoint.U128, bool, error) {
	if oldAbs.IsZero() {
		return fixedpoint.ZeroU(), true, nil
	}
	if equity.Sign() <= 0 {
		return oldAbs, true, nil
	}

	mmBps := v.MaintenanceMarginBps()
	bufferBps := v.LiquidationBufferBps()
	if mmBps == 0 {
		return oldAbs, true, nil
	}

	// remaining <= equity * 1e6 * 10000 * 10000 / (mark * mm_bps * (10000+buffer_bps))
	num := new(big.Int).Mul(equity.Big(), big.NewInt(fixedpoint.PriceScale))
	num.Mul(num, big.NewInt(fixedpoint.BpsDenom))
	num.Mul(num, big.NewInt(fixedpoint.BpsDenom))

	den := new(big.Int).Mul(markE6.Big(), big.NewInt(int64(mmBps)))
	den.Mul(den, big.NewInt(int64(fixedpoint.BpsDenom+bufferBps)))
	if den.Sign() <= 0 {
		return oldAbs, true, nil
	}

	remaining := new(big.Int).Div(num, den)
	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}
	remainingU, err := fixedpoint.FromBigU(remaining)
	if err != nil {
		return fixedpoint.U128{}, false, err
	}
	if remainingU.Cmp(oldAbs) >= 0 {
		return fixedpoint.ZeroU(), false, nil
	}

	closeAbs, err := fixedpoint.SubU(oldAbs, remainingU)
	if err != nil {
		return fixedpoint.U128{}, false, err
	}

	floor := v.MinLiquidationAbs()
	if closeAbs.Cmp(floor) < 0 && closeAbs.Cmp(oldAbs) != 0 {
		closeAbs = fixedpoint.MinU(floor, oldAbs)
	}
	return closeAbs, closeAbs.Cmp(oldAbs) == 0, nil
}

// chargeLiquidationFee charges min(cap, ceil(closedNotional*fee_bps/10000))
// from the liquidatee's capital into the insurance fund. Absent an external
// liquidator to pay out, the fee is kept in its entirety by the fund.
func chargeLiquidationFee(v *slab.View, acc *slab.Account, closeAbs fixedpoint.U128, markE6 fixedpoint.U128) (fixedpoint.U128, error) {
	closedNotional, err := fixedpoint.MulDivFloor(closeAbs, markE6.Uint64(), fixedpoint.PriceScale)
	if err != nil {
		return fixedpoint.U128{}, err
	}
	fee, err := fixedpoint.BpsOfCeil(closedNotional, v.LiquidationFeeBps())
	if err != nil {
		return fixedpoint.U128{}, err
	}
	feeCap := v.LiquidationFeeCap()
	if !feeCap.IsZero() {
		fee = fixedpoint.MinU(fee, feeCap)
	}
	if fee.IsZero() {
		return fixedpoint.ZeroU(), nil
	}

	charged := fee
	if acc.Capital().Cmp(fee) < 0 {
		charged = acc.Capital()
	}
	newCapital, err := fixedpoint.SubU(acc.Capital(), charged)
	if err != nil {
		return fixedpoint.U128{}, err
	}
	acc.SetCapital(newCapital)

	newInsurance, err := fixedpoint.AddU(v.InsuranceBalance(), charged)
	if err != nil {
		return fixedpoint.U128{}, err
	}
	v.SetInsuranceBalance(newInsurance)
	newRevenue, err := fixedpoint.AddU(v.InsuranceFeeRevenue(), charged)
	if err != nil {
		return fixedpoint.U128{}, err
	}
	v.SetInsuranceFeeRevenue(newRevenue)
	return charged, nil
}
