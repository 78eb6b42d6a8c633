// Package warmup implements positive-PnL warmup and the two-pass
// loss-then-profit settlement algorithm that keeps the haircut computed
// against a fresh residual instead of a stale one.
package warmup

import (
	"percolat/internal/fixedpoint"
	"percolat/internal/slab"
)

// SumCapital walks every allocated slot and totals capital, the global
// figure the residual/haircut computation needs.
func SumCapital(v *slab.View) (fixedpoint.U128, error) {
	total := fixedpoint.ZeroU()
	for idx := uint32(0); idx < slab.MaxAccountsCapacity; idx++ {
		if !v.TestBit(idx) {
			continue
		}
		acc, err := v.Account(idx)
		if err != nil {
			return fixedpoint.U128{}, err
		}
		total, err = fixedpoint.AddU(total, acc.Capital())
		if err != nil {
			return fixedpoint.U128{}, err
		}
	}
	return total, nil
}

// AdvanceOne moves min(elapsed*slope, pnl_realized_positive) from
// pnl_realized into pnl_reserved for a single account. A no-op while
// warmup_paused is set.
func AdvanceOne(v *slab.View, acc *slab.Account, currentSlot uint64) error {
	if v.WarmupPaused() {
		return nil
	}
	realized := acc.PnlRealized()
	if realized.Sign() <= 0 {
		acc.SetWarmupStartedAtSlot(currentSlot)
		return nil
	}
	elapsed := currentSlot - acc.WarmupStartedAtSlot()
	capacity, err := fixedpoint.MulU(acc.WarmupSlopePerStep(), fixedpoint.FromU64(elapsed))
	if err != nil {
		return err
	}
	realizedU, err := fixedpoint.ToU(realized)
	if err != nil {
		return err
	}
	move := fixedpoint.MinU(capacity, realizedU)
	if move.IsZero() {
		return nil
	}
	moveI, err := fixedpoint.ToI(move)
	if err != nil {
		return err
	}
	newRealized, err := fixedpoint.SubI(realized, moveI)
	if err != nil {
		return err
	}
	newReserved, err := fixedpoint.AddU(acc.PnlReserved(), move)
	if err != nil {
		return err
	}
	acc.SetPnlRealized(newRealized)
	acc.SetPnlReserved(newReserved)
	acc.SetWarmupStartedAtSlot(currentSlot)
	return nil
}

// LossesPass is pass A of the two-pass settlement: charge every touched
// account's negative pnl_realized against its own capital first, then
// loss_accum, then insurance.balance, then — as a last resort — shrink
// pnl_pos_tot (the socialization step).
func LossesPass(v *slab.View, touched []*slab.Account) error {
	for _, acc := range touched {
		if err := settleAccountLoss(v, acc); err != nil {
			return err
		}
	}
	return nil
}

func settleAccountLoss(v *slab.View, acc *slab.Account) error {
	realized := acc.PnlRealized()
	if realized.Sign() >= 0 {
		return nil
	}
	need := fixedpoint.AbsI(realized)
	capital := acc.Capital()
	covered := fixedpoint.MinU(need, capital)

	newCapital, err := fixedpoint.SubU(capital, covered)
	if err != nil {
		return err
	}
	acc.SetCapital(newCapital)
	acc.SetPnlRealized(fixedpoint.ZeroI())

	uncovered, err := fixedpoint.SubU(need, covered)
	if err != nil {
		return err
	}
	if uncovered.IsZero() {
		return nil
	}
	return socializeLoss(v, uncovered)
}

// socializeLoss records an uncovered loss against loss_accum, draws down
// insurance.balance, and shrinks pnl_pos_tot for whatever remains
// uncovered by insurance.
func socializeLoss(v *slab.View, uncovered fixedpoint.U128) error {
	uncoveredI, err := fixedpoint.ToI(uncovered)
	if err != nil {
		return err
	}
	newLossAccum, err := fixedpoint.AddI(v.LossAccum(), uncoveredI)
	if err != nil {
		return err
	}
	v.SetLossAccum(newLossAccum)

	insurance := v.InsuranceBalance()
	fromInsurance := fixedpoint.MinU(uncovered, insurance)
	newInsurance, err := fixedpoint.SubU(insurance, fromInsurance)
	if err != nil {
		return err
	}
	v.SetInsuranceBalance(newInsurance)

	remaining, err := fixedpoint.SubU(uncovered, fromInsurance)
	if err != nil {
		return err
	}
	if remaining.IsZero() {
		return nil
	}
	pnlPosTot := v.PnlPosTot()
	shrinkBy := fixedpoint.MinU(remaining, pnlPosTot)
	newPnlPosTot, err := fixedpoint.SubU(pnlPosTot, shrinkBy)
	if err != nil {
		return err
	}
	v.SetPnlPosTot(newPnlPosTot)
	return nil
}

// HaircutRatio is min(residual, pnl_pos_tot) / pnl_pos_tot, kept as a
// numerator/denominator pair so conversions round with MulDivFloor instead
// of losing precision to an intermediate float or truncated fraction.
type HaircutRatio struct {
	Num, Den fixedpoint.U128
}

// IsFull reports haircut == 1, the case where no scarcity forces
// socialization.
func (h HaircutRatio) IsFull() bool {
	return h.Den.IsZero() || h.Num.Cmp(h.Den) >= 0
}

// ComputeHaircut computes the haircut ratio from v's current residual
// (using sumCapital, the freshly recomputed global capital total) against
// pnl_pos_tot.
func ComputeHaircut(v *slab.View, sumCapital fixedpoint.U128) (HaircutRatio, error) {
	pnlPosTot := v.PnlPosTot()
	if pnlPosTot.IsZero() {
		return HaircutRatio{Num: fixedpoint.ZeroU(), Den: fixedpoint.ZeroU()}, nil
	}
	residual, err := v.Residual(sumCapital)
	if err != nil {
		return HaircutRatio{}, err
	}
	residualU := fixedpoint.ZeroU()
	if residual.Sign() > 0 {
		residualU, err = fixedpoint.ToU(residual)
		if err != nil {
			return HaircutRatio{}, err
		}
	}
	num := fixedpoint.MinU(residualU, pnlPosTot)
	return HaircutRatio{Num: num, Den: pnlPosTot}, nil
}

// Apply returns floor(x * haircut).
func (h HaircutRatio) Apply(x fixedpoint.U128) (fixedpoint.U128, error) {
	if h.Den.IsZero() {
		return fixedpoint.ZeroU(), nil
	}
	return fixedpoint.MulDivFloor(x, h.Num.Uint64(), h.Den.Uint64())
}

// ProfitsPass is pass B of the two-pass settlement: compute the haircut
// from the fresh residual and convert each touched account's warmed
// pnl_reserved to capital. Whatever the haircut doesn't credit is
// destroyed — that is the socialization of residual bad debt onto
// winners.
func ProfitsPass(v *slab.View, touched []*slab.Account) error {
	sumCapital, err := SumCapital(v)
	if err != nil {
		return err
	}
	haircut, err := ComputeHaircut(v, sumCapital)
	if err != nil {
		return err
	}
	for _, acc := range touched {
		reserved := acc.PnlReserved()
		if reserved.IsZero() {
			continue
		}
		credited, err := haircut.Apply(reserved)
		if err != nil {
			return err
		}
		newCapital, err := fixedpoint.AddU(acc.Capital(), credited)
		if err != nil {
			return err
		}
		acc.SetCapital(newCapital)
		acc.SetPnlReserved(fixedpoint.ZeroU())

		pnlPosTot := v.PnlPosTot()
		shrink := fixedpoint.MinU(reserved, pnlPosTot)
		newPnlPosTot, err := fixedpoint.SubU(pnlPosTot, shrink)
		if err != nil {
			return err
		}
		v.SetPnlPosTot(newPnlPosTot)
	}
	return nil
}

// TwoPass runs the full algorithm over touched: losses first, then
// profits against the recomputed residual.
func TwoPass(v *slab.View, touched []*slab.Account) error {
	if err := LossesPass(v, touched); err != nil {
		return err
	}
	return ProfitsPass(v, touched)
}
