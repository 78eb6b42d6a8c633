package funding

import (
	"testing"

	"percolat/internal/fixedpoint"
	"percolat/internal/slab"
)

func newMarket(t *testing.T) *slab.View {
	t.Helper()
	v := slab.New()
	v.SetFundingHorizonSlots(100)
	v.SetFundingKBps(500)
	v.SetFundingScaleNotional(fixedpoint.FromU64(1_000_000))
	v.SetFundingMaxPremiumBps(200)
	v.SetFundingMaxBpsPerSlot(5)
	return v
}

func TestUpdateIndexNoElapsedSlotsIsNoop(t *testing.T) {
	v := newMarket(t)
	v.SetCurrentSlot(10)
	v.SetLastFundingSlot(10)
	if err := UpdateIndex(v, 10, fixedpoint.ZeroI()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.FundingIndexQpE6().IsZero() {
		t.Fatalf("expected unchanged index")
	}
}

func TestUpdateIndexAdvancesLastFundingSlot(t *testing.T) {
	v := newMarket(t)
	v.SetLastFundingSlot(0)
	if err := UpdateIndex(v, 10, fixedpoint.ZeroI()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.LastFundingSlot() != 10 {
		t.Fatalf("expected last_funding_slot advanced to 10, got %d", v.LastFundingSlot())
	}
}

func TestUpdateIndexClampsToMaxPremium(t *testing.T) {
	v := newMarket(t)
	v.SetLastFundingSlot(0)
	// huge positive imbalance should clamp premium to +200bps => rate
	// per slot = 200/100=2bps, clamped under max_bps_per_slot=5 => 2bps => 200 e6 per slot
	huge := fixedpoint.FromI64(1_000_000_000)
	if err := UpdateIndex(v, 1, huge); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.FundingIndexQpE6().Int64() <= 0 {
		t.Fatalf("expected positive funding index after positive imbalance, got %d", v.FundingIndexQpE6().Int64())
	}
}

func TestSettleAccountAppliesFundingDelta(t *testing.T) {
	v := newMarket(t)
	v.SetFundingIndexQpE6(fixedpoint.FromI64(1_000_000)) // index = 1.0 Q6
	acc, _ := v.Account(0)
	acc.SetPositionSize(fixedpoint.FromI64(1000))
	acc.SetFundingIndexSnapshot(fixedpoint.ZeroI())

	if err := SettleAccount(v, acc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// delta = 1000 * (1_000_000 - 0) / 1_000_000 = 1000
	if acc.PnlRealized().Int64() != 1000 {
		t.Fatalf("expected pnl_realized 1000, got %d", acc.PnlRealized().Int64())
	}
	if acc.FundingIndexSnapshot().Int64() != 1_000_000 {
		t.Fatalf("expected snapshot advanced to current index")
	}
	// a positive funding delta is realized pnl like any other and must be
	// mirrored into the engine's pnl_pos_tot.
	if v.PnlPosTot().Uint64() != 1000 {
		t.Fatalf("expected pnl_pos_tot 1000, got %d", v.PnlPosTot().Uint64())
	}
}

func TestSettleAccountFlatPositionOnlyAdvancesSnapshot(t *testing.T) {
	v := newMarket(t)
	v.SetFundingIndexQpE6(fixedpoint.FromI64(500_000))
	acc, _ := v.Account(0)
	if err := SettleAccount(v, acc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acc.PnlRealized().IsZero() {
		t.Fatalf("expected no pnl change for flat account")
	}
	if acc.FundingIndexSnapshot().Int64() != 500_000 {
		t.Fatalf("expected snapshot advanced")
	}
}
