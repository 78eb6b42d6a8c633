// Package funding derives the per-crank funding index update from LP
// inventory imbalance and applies the per-account funding settlement
// against pnl_realized.
package funding

import (
	"percolat/internal/fixedpoint"
	"percolat/internal/position"
	"percolat/internal/slab"
)

// bpsToE6 converts a bps rate to the Q6 scale funding_index_qp_e6 is
// carried in: bps is parts-per-10000, Q6 is parts-per-1000000, so the
// conversion factor is 1e6/1e4 = 100.
const bpsToE6 = 100

// UpdateIndex advances v's funding index by one crank step. lpNetNotional
// is the signed sum of LP-side notional (long LP inventory positive, short
// negative), supplied by the crank after it has walked the used accounts.
func UpdateIndex(v *slab.View, currentSlot uint64, lpNetNotional fixedpoint.I128) error {
	last := v.LastFundingSlot()
	if currentSlot <= last {
		return nil
	}
	elapsed := currentSlot - last
	horizon := v.FundingHorizonSlots()
	if horizon == 0 {
		v.SetLastFundingSlot(currentSlot)
		return nil
	}
	delta := elapsed
	if delta > horizon {
		delta = horizon
	}

	premiumBps, err := premiumBps(v, lpNetNotional)
	if err != nil {
		return err
	}
	ratePerSlotBps := premiumBps / int64(horizon)
	maxPerSlot := int64(v.FundingMaxBpsPerSlot())
	if ratePerSlotBps > maxPerSlot {
		ratePerSlotBps = maxPerSlot
	}
	if ratePerSlotBps < -maxPerSlot {
		ratePerSlotBps = -maxPerSlot
	}

	rateE6 := fixedpoint.FromI64(ratePerSlotBps * bpsToE6)
	step, err := fixedpoint.MulI(rateE6, fixedpoint.FromI64(int64(delta)))
	if err != nil {
		return err
	}
	newIndex, err := fixedpoint.AddI(v.FundingIndexQpE6(), step)
	if err != nil {
		return err
	}
	v.SetFundingIndexQpE6(newIndex)
	v.SetLastFundingSlot(currentSlot)
	return nil
}

// premiumBps computes clamp(k_bps * lp_net_notional / scale_notional,
// -max_premium_bps, +max_premium_bps).
func premiumBps(v *slab.View, lpNetNotional fixedpoint.I128) (int64, error) {
	scale := v.FundingScaleNotional()
	if scale.IsZero() {
		return 0, nil
	}
	k := fixedpoint.FromI64(int64(v.FundingKBps()))
	prod, err := fixedpoint.MulI(k, lpNetNotional)
	if err != nil {
		return 0, err
	}
	scaleI, err := fixedpoint.ToI(scale)
	if err != nil {
		return 0, err
	}
	premium, err := fixedpoint.DivITrunc(prod, scaleI)
	if err != nil {
		return 0, err
	}
	maxPremium := int64(v.FundingMaxPremiumBps())
	p := premium.Int64()
	if p > maxPremium {
		p = maxPremium
	}
	if p < -maxPremium {
		p = -maxPremium
	}
	return p, nil
}

// SettleAccount applies the pending funding leg to acc: delta =
// position_size * (engine.funding_index - account.funding_index_snapshot)
// / 1e6, added to pnl_realized; the snapshot advances to the current
// index regardless of position size so a later position pays from a clean
// baseline.
func SettleAccount(v *slab.View, acc *slab.Account) error {
	index := v.FundingIndexQpE6()
	snapshot := acc.FundingIndexSnapshot()
	diff, err := fixedpoint.SubI(index, snapshot)
	if err != nil {
		return err
	}
	if !acc.IsFlat() {
		prod, err := fixedpoint.MulI(acc.PositionSize(), diff)
		if err != nil {
			return err
		}
		delta, err := fixedpoint.DivITrunc(prod, fixedpoint.FromI64(fixedpoint.PriceScale))
		if err != nil {
			return err
		}
		if err := position.CreditRealized(v, acc, delta); err != nil {
			return err
		}
	}
	acc.SetFundingIndexSnapshot(index)
	return nil
}
