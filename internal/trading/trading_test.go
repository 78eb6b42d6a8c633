package trading

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"percolat/internal/allocator"
	"percolat/internal/apperrors"
	"percolat/internal/fixedpoint"
	"percolat/internal/matcher"
	"percolat/internal/slab"
)

func newMarket(t *testing.T) (*slab.View, *slab.Account, *slab.Account) {
	t.Helper()
	v := slab.New()
	v.SetMaxAccounts(8)
	v.SetMaxCrankStalenessSlots(1000)
	v.SetInitialMarginBps(1000)
	v.SetMaintenanceMarginBps(500)

	lpIdx, _, err := allocator.Alloc(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	userIdx, _, err := allocator.Alloc(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lp, _ := v.Account(lpIdx)
	user, _ := v.Account(userIdx)
	lp.SetKind(slab.AccountKindLP)
	user.SetKind(slab.AccountKindUser)
	return v, lp, user
}

func TestExecuteNoCpiAppliesSymmetricFill(t *testing.T) {
	v, lp, user := newMarket(t)
	lp.SetCapital(fixedpoint.FromU64(10_000_000))
	user.SetCapital(fixedpoint.FromU64(10_000_000))

	req := Request{LP: lp, User: user, Size: fixedpoint.FromI64(10), MarkE6: fixedpoint.FromU64(100_000_000)}
	if err := ExecuteNoCpi(v, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if user.PositionSize().Int64() != 10 {
		t.Fatalf("expected user position 10, got %d", user.PositionSize().Int64())
	}
	if lp.PositionSize().Int64() != -10 {
		t.Fatalf("expected lp position -10, got %d", lp.PositionSize().Int64())
	}
	if user.EntryPrice() != 100_000_000 || lp.EntryPrice() != 100_000_000 {
		t.Fatalf("expected both legs to open at the fill price")
	}
	if v.TotalOpenInterest().Uint64() != 10 {
		t.Fatalf("expected open interest 10, got %d", v.TotalOpenInterest().Uint64())
	}
	if v.LpSumAbs().Uint64() != 10 || v.LpMaxAbs().Uint64() != 10 {
		t.Fatalf("expected lp imbalance counters updated, got sum=%d max=%d", v.LpSumAbs().Uint64(), v.LpMaxAbs().Uint64())
	}
}

func TestExecuteNoCpiChargesFeeToInsurance(t *testing.T) {
	v, lp, user := newMarket(t)
	v.SetTradingFeeBps(100) // 1%
	lp.SetCapital(fixedpoint.FromU64(10_000_000))
	user.SetCapital(fixedpoint.FromU64(20_000))

	req := Request{LP: lp, User: user, Size: fixedpoint.FromI64(1000), MarkE6: fixedpoint.FromU64(100_000_000)}
	if err := ExecuteNoCpi(v, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// notional = 1000 * 100_000_000 / 1e6 = 100_000; fee = 1% -> 1000, charged
	// on both the user leg and the lp leg of the same fill.
	if user.Capital().Uint64() != 19_000 {
		t.Fatalf("expected user capital debited by fee to 19000, got %d", user.Capital().Uint64())
	}
	if lp.Capital().Uint64() != 9_999_000 {
		t.Fatalf("expected lp capital debited by fee to 9999000, got %d", lp.Capital().Uint64())
	}
	if v.InsuranceBalance().Uint64() != 2_000 {
		t.Fatalf("expected insurance balance credited 2000, got %d", v.InsuranceBalance().Uint64())
	}
	if v.InsuranceFeeRevenue().Uint64() != 2_000 {
		t.Fatalf("expected insurance fee revenue 2000, got %d", v.InsuranceFeeRevenue().Uint64())
	}
}

func TestExecuteNoCpiRealizedProfitCreditsPnlPosTot(t *testing.T) {
	v, lp, user := newMarket(t)
	lp.SetCapital(fixedpoint.FromU64(10_000_000))
	user.SetCapital(fixedpoint.FromU64(10_000_000))
	user.SetPositionSize(fixedpoint.FromI64(1000))
	user.SetEntryPrice(100_000_000)
	lp.SetPositionSize(fixedpoint.FromI64(-1000))
	lp.SetEntryPrice(100_000_000)

	// user reduces 400 at a higher mark -> realizes a profit that must be
	// mirrored into the engine's pnl_pos_tot through the real trade path.
	req := Request{LP: lp, User: user, Size: fixedpoint.FromI64(-400), MarkE6: fixedpoint.FromU64(120_000_000)}
	if err := ExecuteNoCpi(v, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 400 * (120M-100M)/1e6 = 8000
	if user.PnlRealized().Int64() != 8000 {
		t.Fatalf("expected user realized pnl 8000, got %d", user.PnlRealized().Int64())
	}
	if v.PnlPosTot().Uint64() != 8000 {
		t.Fatalf("expected pnl_pos_tot 8000, got %d", v.PnlPosTot().Uint64())
	}
}

func TestExecuteNoCpiRejectsZeroSize(t *testing.T) {
	v, lp, user := newMarket(t)
	req := Request{LP: lp, User: user, Size: fixedpoint.ZeroI(), MarkE6: fixedpoint.FromU64(100_000_000)}
	if err := ExecuteNoCpi(v, req); !errors.Is(err, apperrors.ErrZeroSize) {
		t.Fatalf("expected ErrZeroSize, got %v", err)
	}
}

func TestExecuteNoCpiRejectsStaleCrank(t *testing.T) {
	v, lp, user := newMarket(t)
	v.SetMaxCrankStalenessSlots(10)
	v.SetLastFullSweepStartSlot(0)
	req := Request{LP: lp, User: user, Size: fixedpoint.FromI64(1), MarkE6: fixedpoint.FromU64(100_000_000), CurrentSlot: 100}
	if err := ExecuteNoCpi(v, req); !errors.Is(err, apperrors.ErrStaleCrank) {
		t.Fatalf("expected ErrStaleCrank, got %v", err)
	}
}

func TestExecuteNoCpiEnforcesRiskReductionOnly(t *testing.T) {
	v, lp, user := newMarket(t)
	v.SetRiskReductionOnly(true)
	user.SetPositionSize(fixedpoint.FromI64(500))
	user.SetEntryPrice(100_000_000)
	lp.SetPositionSize(fixedpoint.FromI64(-500))
	lp.SetEntryPrice(100_000_000)
	lp.SetCapital(fixedpoint.FromU64(10_000_000))
	user.SetCapital(fixedpoint.FromU64(10_000_000))

	req := Request{LP: lp, User: user, Size: fixedpoint.FromI64(100), MarkE6: fixedpoint.FromU64(100_000_000)}
	if err := ExecuteNoCpi(v, req); !errors.Is(err, apperrors.ErrRiskReductionOnly) {
		t.Fatalf("expected ErrRiskReductionOnly, got %v", err)
	}
}

func TestExecuteNoCpiAllowsReductionUnderRiskReductionOnly(t *testing.T) {
	v, lp, user := newMarket(t)
	v.SetRiskReductionOnly(true)
	user.SetPositionSize(fixedpoint.FromI64(500))
	user.SetEntryPrice(100_000_000)
	lp.SetPositionSize(fixedpoint.FromI64(-500))
	lp.SetEntryPrice(100_000_000)
	lp.SetCapital(fixedpoint.FromU64(10_000_000))
	user.SetCapital(fixedpoint.FromU64(10_000_000))

	req := Request{LP: lp, User: user, Size: fixedpoint.FromI64(-100), MarkE6: fixedpoint.FromU64(100_000_000)}
	if err := ExecuteNoCpi(v, req); err != nil {
		t.Fatalf("expected reduction to be allowed under risk-reduction-only, got %v", err)
	}
	if user.PositionSize().Int64() != 400 {
		t.Fatalf("expected user position reduced to 400, got %d", user.PositionSize().Int64())
	}
}

func TestExecuteNoCpiRejectsInsufficientMargin(t *testing.T) {
	v, lp, user := newMarket(t)
	v.SetInitialMarginBps(2000) // 20%
	lp.SetCapital(fixedpoint.FromU64(10_000_000))
	user.SetCapital(fixedpoint.FromU64(1_000))

	req := Request{LP: lp, User: user, Size: fixedpoint.FromI64(1000), MarkE6: fixedpoint.FromU64(100_000_000)}
	if err := ExecuteNoCpi(v, req); !errors.Is(err, apperrors.ErrInsufficientMargin) {
		t.Fatalf("expected ErrInsufficientMargin, got %v", err)
	}
}

type stubInvoker struct {
	fill matcher.Fill
	err  error
}

func (s stubInvoker) Invoke(program solana.PublicKey, ctx matcher.Context) (matcher.Fill, error) {
	return s.fill, s.err
}

func TestExecuteCpiUsesMatcherFillPrice(t *testing.T) {
	v, lp, user := newMarket(t)
	lp.SetCapital(fixedpoint.FromU64(10_000_000))
	user.SetCapital(fixedpoint.FromU64(10_000_000))

	g := matcher.NewGuard()
	inv := stubInvoker{fill: matcher.Fill{PriceE6: fixedpoint.FromU64(105_000_000)}}
	req := Request{LP: lp, User: user, Size: fixedpoint.FromI64(10), MarkE6: fixedpoint.FromU64(100_000_000)}
	if err := ExecuteCpi(v, g, inv, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.EntryPrice() != 105_000_000 {
		t.Fatalf("expected entry price from matcher fill 105_000_000, got %d", user.EntryPrice())
	}
}

func TestExecuteCpiPropagatesMatcherRejection(t *testing.T) {
	v, lp, user := newMarket(t)
	lp.SetCapital(fixedpoint.FromU64(10_000_000))
	user.SetCapital(fixedpoint.FromU64(10_000_000))

	g := matcher.NewGuard()
	inv := stubInvoker{err: apperrors.ErrMatcherRejected}
	req := Request{LP: lp, User: user, Size: fixedpoint.FromI64(10), MarkE6: fixedpoint.FromU64(100_000_000)}
	if err := ExecuteCpi(v, g, inv, req); !errors.Is(err, apperrors.ErrMatcherRejected) {
		t.Fatalf("expected ErrMatcherRejected to propagate, got %v", err)
	}
}
