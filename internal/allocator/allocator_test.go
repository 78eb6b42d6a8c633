package allocator

import (
	"testing"

	"percolat/internal/slab"
)

func newMarket(t *testing.T, maxAccounts uint64) *slab.View {
	t.Helper()
	v := slab.New()
	v.SetMaxAccounts(maxAccounts)
	return v
}

func TestAllocSequentialIDs(t *testing.T) {
	v := newMarket(t, 64)
	for i := uint64(0); i < 10; i++ {
		idx, id, err := Alloc(v)
		if err != nil {
			t.Fatalf("unexpected error at i=%d: %v", i, err)
		}
		if idx != uint32(i) || id != i {
			t.Fatalf("expected idx=%d id=%d, got idx=%d id=%d", i, i, idx, id)
		}
	}
	if v.NumUsedAccounts() != 10 {
		t.Fatalf("expected 10 used accounts, got %d", v.NumUsedAccounts())
	}
	if err := CheckBitmapIntegrity(v); err != nil {
		t.Fatalf("unexpected integrity error: %v", err)
	}
}

func TestAllocFailsWhenMarketFull(t *testing.T) {
	v := newMarket(t, 4)
	for i := 0; i < 4; i++ {
		if _, _, err := Alloc(v); err != nil {
			t.Fatalf("unexpected error filling market: %v", err)
		}
	}
	if _, _, err := Alloc(v); err == nil {
		t.Fatalf("expected MarketFull error on 5th alloc")
	}
}

func TestFreeDoesNotReuseAccountID(t *testing.T) {
	v := newMarket(t, 4)
	idx0, id0, _ := Alloc(v)
	_, id1, _ := Alloc(v)
	if err := Free(v, idx0); err != nil {
		t.Fatalf("unexpected error freeing slot: %v", err)
	}
	idxReused, idNext, err := Alloc(v)
	if err != nil {
		t.Fatalf("unexpected error re-allocating: %v", err)
	}
	if idxReused != idx0 {
		t.Fatalf("expected freed slot index %d to be reused, got %d", idx0, idxReused)
	}
	if idNext == id0 || idNext <= id1 {
		t.Fatalf("expected fresh account id greater than all previously minted ids, got %d (id0=%d id1=%d)", idNext, id0, id1)
	}
}

func TestFreeZeroesRecord(t *testing.T) {
	v := newMarket(t, 4)
	idx, _, _ := Alloc(v)
	acc, _ := v.Account(idx)
	acc.SetCapital(acc.Capital())
	if err := Free(v, idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	acc, _ = v.Account(idx)
	if acc.AccountID() != 0 {
		t.Fatalf("expected zeroed record after free")
	}
	if v.TestBit(idx) {
		t.Fatalf("expected bit cleared after free")
	}
}

func TestFreeUnallocatedSlotErrors(t *testing.T) {
	v := newMarket(t, 4)
	if err := Free(v, 2); err == nil {
		t.Fatalf("expected error freeing an unallocated slot")
	}
}
