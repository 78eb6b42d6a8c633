package oracle

import (
	"testing"

	"github.com/gagliardetto/solana-go"

	"percolat/internal/slab"
)

func newMarketWithFeed(t *testing.T, feedID solana.PublicKey) *slab.View {
	t.Helper()
	v := slab.New()
	v.SetPriceFeedIdentity(feedID)
	v.SetFeedKind(slab.FeedKindPull)
	v.SetMaxStalenessSecs(60)
	v.SetConfFilterBps(100) // 1%
	return v
}

func TestReadAcceptsFreshValidFeed(t *testing.T) {
	feedID := solana.NewWallet().PublicKey()
	v := newMarketWithFeed(t, feedID)
	r := Reading{FeedIdentity: feedID, Price: 88_000, Conf: 10, Expo: -3, PublishTime: 1000}
	p, err := Read(v, 1010, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// mantissa 88_000 * 10^(6-3) = 88_000_000 (Q6 for 88.000)
	if p.PriceE6.Uint64() != 88_000_000 {
		t.Fatalf("expected 88_000_000, got %d", p.PriceE6.Uint64())
	}
}

func TestReadRejectsStaleFeed(t *testing.T) {
	feedID := solana.NewWallet().PublicKey()
	v := newMarketWithFeed(t, feedID)
	r := Reading{FeedIdentity: feedID, Price: 1000, Expo: 0, PublishTime: 0}
	if _, err := Read(v, 61, r); err == nil {
		t.Fatalf("expected stale error")
	}
	if _, err := Read(v, 60, r); err != nil {
		t.Fatalf("expected exactly-at-boundary to be accepted, got %v", err)
	}
}

func TestReadRejectsWrongFeedID(t *testing.T) {
	feedID := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()
	v := newMarketWithFeed(t, feedID)
	r := Reading{FeedIdentity: other, Price: 1000, Expo: 0, PublishTime: 0}
	if _, err := Read(v, 0, r); err == nil {
		t.Fatalf("expected invalid feed id error")
	}
}

func TestReadRejectsNonPositivePrice(t *testing.T) {
	feedID := solana.NewWallet().PublicKey()
	v := newMarketWithFeed(t, feedID)
	r := Reading{FeedIdentity: feedID, Price: 0, Expo: 0, PublishTime: 0}
	if _, err := Read(v, 0, r); err == nil {
		t.Fatalf("expected oracle price invalid error")
	}
}

func TestReadRejectsWideConfidence(t *testing.T) {
	feedID := solana.NewWallet().PublicKey()
	v := newMarketWithFeed(t, feedID)
	r := Reading{FeedIdentity: feedID, Price: 1000, Conf: 50, Expo: 0, PublishTime: 0} // 5% conf > 1% filter
	if _, err := Read(v, 0, r); err == nil {
		t.Fatalf("expected confidence too wide error")
	}
}

func TestAuthorityOverrideTakesPrecedence(t *testing.T) {
	feedID := solana.NewWallet().PublicKey()
	v := newMarketWithFeed(t, feedID)
	v.SetAuthorityPriceE6(42_000_000)
	v.SetAuthorityTimestamp(1000)
	r := Reading{FeedIdentity: feedID, Price: 1, Expo: 0, PublishTime: 1000} // valid but distinct feed price
	p, err := Read(v, 1030, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.PriceE6.Uint64() != 42_000_000 {
		t.Fatalf("expected authority price to win, got %d", p.PriceE6.Uint64())
	}
}

func TestAuthorityOverrideExpiresBackToFeed(t *testing.T) {
	feedID := solana.NewWallet().PublicKey()
	v := newMarketWithFeed(t, feedID)
	v.SetAuthorityPriceE6(42_000_000)
	v.SetAuthorityTimestamp(0)
	r := Reading{FeedIdentity: feedID, Price: 88_000_000, Expo: -6, PublishTime: 1000}
	p, err := Read(v, 1000, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.PriceE6.Uint64() != 88_000_000 {
		t.Fatalf("expected feed price once authority is stale, got %d", p.PriceE6.Uint64())
	}
}

func TestInvertFlips(t *testing.T) {
	feedID := solana.NewWallet().PublicKey()
	v := newMarketWithFeed(t, feedID)
	v.SetInvert(true)
	r := Reading{FeedIdentity: feedID, Price: 2_000_000, Expo: -6, PublishTime: 0} // 2.0 Q6
	p, err := Read(v, 0, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 10^12 / 2_000_000 = 500_000 (0.5 Q6)
	if p.PriceE6.Uint64() != 500_000 {
		t.Fatalf("expected 500_000, got %d", p.PriceE6.Uint64())
	}
}
