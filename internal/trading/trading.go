// Package trading executes a single trade between a user account and its
// LP counterparty: a size and a mark price go in, and on success both
// accounts' positions, capital, and the market's aggregate counters come
// out settled and margin-checked. The only difference between the two
// operations that reach here is where the fill price comes from — the
// oracle mark directly, or a round trip through an external matcher.
package trading

import (
	"percolat/internal/apperrors"
	"percolat/internal/fixedpoint"
	"percolat/internal/funding"
	"percolat/internal/margin"
	"percolat/internal/matcher"
	"percolat/internal/position"
	"percolat/internal/slab"
	"percolat/internal/warmup"
)

// Request describes one proposed trade. Size is signed from the user's
// point of view; the LP always takes the opposite side.
type Request struct {
	LP          *slab.Account
	User        *slab.Account
	Size        fixedpoint.I128
	MarkE6      fixedpoint.U128
	CurrentSlot uint64
}

// ExecuteNoCpi fills a trade at the oracle mark with no matcher call.
func ExecuteNoCpi(v *slab.View, req Request) error {
	if err := checkCrankFresh(v, req.CurrentSlot); err != nil {
		return err
	}
	if req.Size.IsZero() {
		return apperrors.ErrZeroSize
	}
	return settle(v, req, req.MarkE6.Uint64())
}

// ExecuteCpi fills a trade by invoking the LP's external matcher under g,
// then settling at whatever price it returns.
func ExecuteCpi(v *slab.View, g *matcher.Guard, inv matcher.Invoker, req Request) error {
	if err := checkCrankFresh(v, req.CurrentSlot); err != nil {
		return err
	}
	if req.Size.IsZero() {
		return apperrors.ErrZeroSize
	}

	ctx := matcher.Context{
		MarkE6:         req.MarkE6,
		MatcherContext: req.LP.MatcherContext(),
		LPAccount:      req.LP.Owner(),
		Size:           req.Size,
	}
	fill, err := matcher.Call(g, inv, req.LP.MatcherProgram(), ctx)
	if err != nil {
		return err
	}
	return settle(v, req, fill.PriceE6.Uint64())
}

func checkCrankFresh(v *slab.View, currentSlot uint64) error {
	start := v.LastFullSweepStartSlot()
	if currentSlot < start {
		return nil
	}
	if currentSlot-start > v.MaxCrankStalenessSlots() {
		return apperrors.ErrStaleCrank
	}
	return nil
}

func settle(v *slab.View, req Request, fillPriceE6 uint64) error {
	lp, user := req.LP, req.User

	if err := funding.SettleAccount(v, lp); err != nil {
		return err
	}
	if err := funding.SettleAccount(v, user); err != nil {
		return err
	}

	oldUserAbs := fixedpoint.AbsI(user.PositionSize())
	oldLPAbs := fixedpoint.AbsI(lp.PositionSize())

	lpDelta := fixedpoint.Neg(req.Size)
	newUserSize, err := fixedpoint.AddI(user.PositionSize(), req.Size)
	if err != nil {
		return err
	}
	newLPSize, err := fixedpoint.AddI(lp.PositionSize(), lpDelta)
	if err != nil {
		return err
	}
	if err := enforceRiskReduction(v, oldUserAbs, fixedpoint.AbsI(newUserSize)); err != nil {
		return err
	}
	if err := enforceRiskReduction(v, oldLPAbs, fixedpoint.AbsI(newLPSize)); err != nil {
		return err
	}

	if err := position.ApplyFill(v, user, req.Size, fillPriceE6); err != nil {
		return err
	}
	if err := position.ApplyFill(v, lp, lpDelta, fillPriceE6); err != nil {
		return err
	}

	if err := chargeTradingFee(v, user, fixedpoint.AbsI(req.Size), fillPriceE6); err != nil {
		return err
	}
	if err := chargeTradingFee(v, lp, fixedpoint.AbsI(lpDelta), fillPriceE6); err != nil {
		return err
	}

	if err := updateAggregates(v, oldUserAbs, user.PositionSize(), oldLPAbs, lp.PositionSize()); err != nil {
		return err
	}

	if err := checkMarginIfRiskIncreasing(v, user, oldUserAbs, req.MarkE6); err != nil {
		return err
	}
	if err := checkMarginIfRiskIncreasing(v, lp, oldLPAbs, req.MarkE6); err != nil {
		return err
	}

	return warmup.TwoPass(v, []*slab.Account{lp, user})
}

func enforceRiskReduction(v *slab.View, oldAbs, newAbs fixedpoint.U128) error {
	if !v.RiskReductionOnly() {
		return nil
	}
	if newAbs.Cmp(oldAbs) > 0 {
		return apperrors.ErrRiskReductionOnly
	}
	return nil
}

// chargeTradingFee charges trading_fee_bps on acc's own traded notional.
// The caller charges it once for the user leg and once for the LP leg of
// the same fill, per spec's "from both sides".
func chargeTradingFee(v *slab.View, acc *slab.Account, sizeAbs fixedpoint.U128, fillPriceE6 uint64) error {
	notional, err := fixedpoint.MulDivFloor(sizeAbs, fillPriceE6, fixedpoint.PriceScale)
	if err != nil {
		return err
	}
	fee, err := fixedpoint.BpsOfCeil(notional, v.TradingFeeBps())
	if err != nil {
		return err
	}
	if fee.IsZero() {
		return nil
	}
	if acc.Capital().Cmp(fee) < 0 {
		return apperrors.ErrInsufficientCapital
	}
	newCapital, err := fixedpoint.SubU(acc.Capital(), fee)
	if err != nil {
		return err
	}
	acc.SetCapital(newCapital)

	newInsurance, err := fixedpoint.AddU(v.InsuranceBalance(), fee)
	if err != nil {
		return err
	}
	v.SetInsuranceBalance(newInsurance)
	newRevenue, err := fixedpoint.AddU(v.InsuranceFeeRevenue(), fee)
	if err != nil {
		return err
	}
	v.SetInsuranceFeeRevenue(newRevenue)
	return nil
}

func updateAggregates(v *slab.View, oldUserAbs fixedpoint.U128, newUser fixedpoint.I128, oldLPAbs fixedpoint.U128, newLP fixedpoint.I128) error {
	newUserAbs := fixedpoint.AbsI(newUser)
	oi, err := adjustByDelta(v.TotalOpenInterest(), oldUserAbs, newUserAbs)
	if err != nil {
		return err
	}
	v.SetTotalOpenInterest(oi)

	newLPAbs := fixedpoint.AbsI(newLP)
	lpSum, err := adjustByDelta(v.LpSumAbs(), oldLPAbs, newLPAbs)
	if err != nil {
		return err
	}
	v.SetLpSumAbs(lpSum)
	v.SetLpMaxAbs(fixedpoint.MaxU(v.LpMaxAbs(), newLPAbs))
	return nil
}

// adjustByDelta returns base + (newAbs - oldAbs), floored at zero.
func adjustByDelta(base, oldAbs, newAbs fixedpoint.U128) (fixedpoint.U128, error) {
	if newAbs.Cmp(oldAbs) >= 0 {
		grown, err := fixedpoint.SubU(newAbs, oldAbs)
		if err != nil {
			return fixedpoint.U128{}, err
		}
		return fixedpoint.AddU(base, grown)
	}
	shrunk, err := fixedpoint.SubU(oldAbs, newAbs)
	if err != nil {
		return fixedpoint.U128{}, err
	}
	if base.Cmp(shrunk) < 0 {
		return fixedpoint.ZeroU(), nil
	}
	return fixedpoint.SubU(base, shrunk)
}

func checkMarginIfRiskIncreasing(v *slab.View, acc *slab.Account, oldAbs fixedpoint.U128, markE6 fixedpoint.U128) error {
	newAbs := fixedpoint.AbsI(acc.PositionSize())
	if newAbs.Cmp(oldAbs) <= 0 {
		return nil
	}
	equity, err := margin.EffectiveEquity(acc, markE6.Uint64())
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
	return nil
}
