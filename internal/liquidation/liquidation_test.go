package liquidation

import (
	"errors"
	"testing"

	"percolat/internal/allocator"
	"percolat/internal/apperrors"
	"percolat/internal/fixedpoint"
	"percolat/internal/slab"
)

func newMarket(t *testing.T) (*slab.View, *slab.Account, *slab.Account) {
	t.Helper()
	v := slab.New()
	v.SetMaxAccounts(8)
	v.SetMaintenanceMarginBps(500)
	v.SetLiquidationBufferBps(1000)
	v.SetLiquidationFeeBps(100)
	v.SetLiquidationFeeCap(fixedpoint.FromU64(1_000_000))

	lpIdx, _, _ := allocator.Alloc(v)
	accIdx, _, _ := allocator.Alloc(v)
	lp, _ := v.Account(lpIdx)
	acc, _ := v.Account(accIdx)
	lp.SetKind(slab.AccountKindLP)
	acc.SetKind(slab.AccountKindUser)
	return v, lp, acc
}

func TestLiquidateRejectsHealthyAccount(t *testing.T) {
	v, lp, acc := newMarket(t)
	acc.SetCapital(fixedpoint.FromU64(10_000_000))
	acc.SetPositionSize(fixedpoint.FromI64(10))
	acc.SetEntryPrice(100_000_000)
	lp.SetCapital(fixedpoint.FromU64(10_000_000))
	lp.SetPositionSize(fixedpoint.FromI64(-10))
	lp.SetEntryPrice(100_000_000)

	req := Request{Account: acc, LP: lp, MarkE6: fixedpoint.FromU64(100_000_000)}
	if _, err := Liquidate(v, req); !errors.Is(err, apperrors.ErrAccountHealthy) {
		t.Fatalf("expected ErrAccountHealthy, got %v", err)
	}
}

func TestLiquidatePartiallyClosesUndermarginedAccount(t *testing.T) {
	v, lp, acc := newMarket(t)
	acc.SetCapital(fixedpoint.FromU64(53_000))
	acc.SetPositionSize(fixedpoint.FromI64(1000))
	acc.SetEntryPrice(150_000_000)
	lp.SetCapital(fixedpoint.FromU64(1_000_000))
	lp.SetPositionSize(fixedpoint.FromI64(-1000))
	lp.SetEntryPrice(150_000_000)

	req := Request{Account: acc, LP: lp, MarkE6: fixedpoint.FromU64(100_000_000)}
	res, err := Liquidate(v, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FullClose {
		t.Fatalf("expected a partial close")
	}
	if res.ClosedAbs.Uint64() != 455 {
		t.Fatalf("expected close amount 455, got %d", res.ClosedAbs.Uint64())
	}
	if acc.PositionSize().Int64() != 545 {
		t.Fatalf("expected remaining position 545, got %d", acc.PositionSize().Int64())
	}
	if acc.EntryPrice() != 150_000_000 {
		t.Fatalf("expected entry price unchanged on partial close, got %d", acc.EntryPrice())
	}
	if acc.LiquidationState() != slab.LiquidationPartiallyLiquidated {
		t.Fatalf("expected state PartiallyLiquidated, got %v", acc.LiquidationState())
	}
	// fee: closedNotional = 455*100_000_000/1e6 = 45_500; fee = ceil(1%) = 455
	// loss booked: 455 * (100M-150M)/1e6 = -22_750
	// capital: 53_000 - 455(fee) - 22_750(loss) = 29_795
	if acc.Capital().Uint64() != 29_795 {
		t.Fatalf("expected capital 29_795 after fee and loss settlement, got %d", acc.Capital().Uint64())
	}
	if v.LifetimeLiquidations() != 1 {
		t.Fatalf("expected lifetime_liquidations incremented")
	}
	if lp.PnlRealized().Int64() != 22_750 {
		t.Fatalf("expected lp to realize the mirrored gain 22_750, got %d", lp.PnlRealized().Int64())
	}
	// two-pass settlement leaves the lp's gain in pnl_realized (only warmup
	// moves it into reserved), and the engine aggregate must count it.
	if v.PnlPosTot().Uint64() != 22_750 {
		t.Fatalf("expected pnl_pos_tot 22_750, got %d", v.PnlPosTot().Uint64())
	}
}

func TestLiquidateFullClosesWhenEquityNonPositive(t *testing.T) {
	v, lp, acc := newMarket(t)
	acc.SetCapital(fixedpoint.FromU64(4_000))
	acc.SetPositionSize(fixedpoint.FromI64(1000))
	acc.SetEntryPrice(150_000_000)
	lp.SetCapital(fixedpoint.FromU64(1_000_000))
	lp.SetPositionSize(fixedpoint.FromI64(-1000))
	lp.SetEntryPrice(150_000_000)

	req := Request{Account: acc, LP: lp, MarkE6: fixedpoint.FromU64(100_000_000)}
	res, err := Liquidate(v, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.FullClose {
		t.Fatalf("expected a full close when equity is non-positive")
	}
	if !acc.PositionSize().IsZero() {
		t.Fatalf("expected flat position after full close")
	}
	if acc.LiquidationState() != slab.LiquidationClosed {
		t.Fatalf("expected state Closed, got %v", acc.LiquidationState())
	}
	if v.LifetimeForceCloses() != 1 {
		t.Fatalf("expected lifetime_force_closes incremented")
	}
}
