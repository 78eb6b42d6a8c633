// Package position implements the entry-price averaging and realized-PnL
// booking rule shared by every fill path: trades, matcher fills, and
// liquidation closes.
package position

import (
	"percolat/internal/fixedpoint"
	"percolat/internal/slab"
)

// ApplyFill updates acc's position_size, entry_price, and pnl_realized for
// a signed fill of deltaSize units at fillPriceE6. A fill that grows or
// opens a position writes the notional-weighted average of the old and
// new entry prices. A fill that reduces or crosses through zero books
// realized PnL on the portion of the old leg it closes; crossing through
// zero resets entry_price to the fill price for the new leg that opens on
// the other side. Any change to the positive share of pnl_realized is
// mirrored into v's pnl_pos_tot aggregate, which the warmup/haircut
// computation depends on.
func ApplyFill(v *slab.View, acc *slab.Account, deltaSize fixedpoint.I128, fillPriceE6 uint64) error {
	old := acc.PositionSize()
	newSize, err := fixedpoint.AddI(old, deltaSize)
	if err != nil {
		return err
	}

	switch {
	case old.IsZero() || old.Sign() == deltaSize.Sign():
		if err := openOrIncrease(acc, old, deltaSize, fillPriceE6); err != nil {
			return err
		}
	default:
		if err := reduceOrCross(v, acc, old, deltaSize, fillPriceE6); err != nil {
			return err
		}
	}

	acc.SetPositionSize(newSize)
	return nil
}

// CreditRealized adds delta to acc's pnl_realized and keeps v's
// pnl_pos_tot aggregate consistent with the change in the account's
// positive share of pnl_realized. Every write to pnl_realized outside of
// warmup's realized-to-reserved transfer (which doesn't change the
// aggregate) must go through this so pnl_pos_tot keeps tracking
// Σ max(pnl_realized, 0) + pnl_reserved across every account.
func CreditRealized(v *slab.View, acc *slab.Account, delta fixedpoint.I128) error {
	old := acc.PnlRealized()
	newRealized, err := fixedpoint.AddI(old, delta)
	if err != nil {
		return err
	}
	acc.SetPnlRealized(newRealized)
	return adjustPnlPosTot(v, old, newRealized)
}

// adjustPnlPosTot moves pnl_pos_tot by the change in max(realized, 0)
// between old and new.
func adjustPnlPosTot(v *slab.View, oldRealized, newRealized fixedpoint.I128) error {
	oldPos := fixedpoint.ZeroI()
	if oldRealized.Sign() > 0 {
		oldPos = oldRealized
	}
	newPos := fixedpoint.ZeroI()
	if newRealized.Sign() > 0 {
		newPos = newRealized
	}
	if oldPos.Cmp(newPos) == 0 {
		return nil
	}
	if newPos.Cmp(oldPos) > 0 {
		grown, err := fixedpoint.SubI(newPos, oldPos)
		if err != nil {
			return err
		}
		grownU, err := fixedpoint.ToU(grown)
		if err != nil {
			return err
		}
		total, err := fixedpoint.AddU(v.PnlPosTot(), grownU)
		if err != nil {
			return err
		}
		v.SetPnlPosTot(total)
		return nil
	}
	shrunk, err := fixedpoint.SubI(oldPos, newPos)
	if err != nil {
		return err
	}
	shrunkU, err := fixedpoint.ToU(shrunk)
	if err != nil {
		return err
	}
	total := v.PnlPosTot()
	shrunkU = fixedpoint.MinU(shrunkU, total)
	newTotal, err := fixedpoint.SubU(total, shrunkU)
	if err != nil {
		return err
	}
	v.SetPnlPosTot(newTotal)
	return nil
}

func openOrIncrease(acc *slab.Account, old, delta fixedpoint.I128, fillPriceE6 uint64) error {
	oldAbs := fixedpoint.AbsI(old)
	deltaAbs := fixedpoint.AbsI(delta)
	totalAbs, err := fixedpoint.AddU(oldAbs, deltaAbs)
	if err != nil {
		return err
	}
	if totalAbs.IsZero() {
		return nil
	}
	oldNotional, err := fixedpoint.MulU(oldAbs, fixedpoint.FromU64(acc.EntryPrice()))
	if err != nil {
		return err
	}
	deltaNotional, err := fixedpoint.MulU(deltaAbs, fixedpoint.FromU64(fillPriceE6))
	if err != nil {
		return err
	}
	sumNotional, err := fixedpoint.AddU(oldNotional, deltaNotional)
	if err != nil {
		return err
	}
	weighted, err := fixedpoint.DivUFloor(sumNotional, totalAbs)
	if err != nil {
		return err
	}
	acc.SetEntryPrice(weighted.Uint64())
	return nil
}

func reduceOrCross(v *slab.View, acc *slab.Account, old, delta fixedpoint.I128, fillPriceE6 uint64) error {
	oldAbs := fixedpoint.AbsI(old)
	deltaAbs := fixedpoint.AbsI(delta)
	closedAbs := fixedpoint.MinU(oldAbs, deltaAbs)

	pnl, err := closedLegPnL(old, closedAbs, acc.EntryPrice(), fillPriceE6)
	if err != nil {
		return err
	}
	if err := CreditRealized(v, acc, pnl); err != nil {
		return err
	}

	switch {
	case deltaAbs.Cmp(oldAbs) > 0:
		acc.SetEntryPrice(fillPriceE6)
	case deltaAbs.Cmp(oldAbs) == 0:
		acc.SetEntryPrice(0)
	}
	return nil
}

// closedLegPnL returns sign(old) * closedAbs * (fill - entry) / 1e6: a
// long position realizes (fill-entry), a short realizes (entry-fill).
func closedLegPnL(old fixedpoint.I128, closedAbs fixedpoint.U128, entryE6, fillE6 uint64) (fixedpoint.I128, error) {
	delta, err := fixedpoint.SubI(fixedpoint.FromU64(fillE6), fixedpoint.FromU64(entryE6))
	if err != nil {
		return fixedpoint.I128{}, err
	}
	closedI, err := fixedpoint.ToI(closedAbs)
	if err != nil {
		return fixedpoint.I128{}, err
	}
	prod, err := fixedpoint.MulI(closedI, delta)
	if err != nil {
		return fixedpoint.I128{}, err
	}
	pnl, err := fixedpoint.DivITrunc(prod, fixedpoint.FromI64(fixedpoint.PriceScale))
	if err != nil {
		return fixedpoint.I128{}, err
	}
	if old.Sign() < 0 {
		pnl = fixedpoint.Neg(pnl)
	}
	return pnl, nil
}
