package slab

import "github.com/gagliardetto/solana-go"

// FeedKind tags how PriceFeedIdentity is interpreted by the oracle gate.
type FeedKind uint8

const (
	// FeedKindPull identifies a Pyth-style feed keyed by a 32-byte feed id.
	FeedKindPull FeedKind = 0
	// FeedKindPush identifies a Chainlink-style feed keyed by an account.
	FeedKindPush FeedKind = 1
)

// Market config field offsets, relative to marketOff.
const (
	mOffCollateralMint      = 0
	mOffVault               = 32
	mOffVaultAuthorityBump  = 64
	mOffFeedID              = 72
	mOffFeedKind            = 104
	mOffMaxStalenessSecs    = 112
	mOffConfFilterBps       = 120
	mOffInvert              = 122
	mOffUnitScale           = 124
	mOffOracleAuthoritySet  = 128
	mOffOracleAuthority     = 136
)

func (v *View) CollateralMint() solana.PublicKey { return v.pubkey(marketOff + mOffCollateralMint) }
func (v *View) SetCollateralMint(pk solana.PublicKey) {
	v.putPubkey(marketOff+mOffCollateralMint, pk)
}

func (v *View) VaultID() solana.PublicKey { return v.pubkey(marketOff + mOffVault) }
func (v *View) SetVaultID(pk solana.PublicKey) { v.putPubkey(marketOff+mOffVault, pk) }

func (v *View) VaultAuthorityBump() uint8 { return v.u8(marketOff + mOffVaultAuthorityBump) }
func (v *View) SetVaultAuthorityBump(b uint8) { v.putU8(marketOff+mOffVaultAuthorityBump, b) }

// PriceFeedIdentity returns the raw 32 bytes of the configured feed
// identity: a feed id under FeedKindPull, an account key under
// FeedKindPush.
func (v *View) PriceFeedIdentity() solana.PublicKey { return v.pubkey(marketOff + mOffFeedID) }
func (v *View) SetPriceFeedIdentity(pk solana.PublicKey) {
	v.putPubkey(marketOff+mOffFeedID, pk)
}

func (v *View) FeedKind() FeedKind { return FeedKind(v.u8(marketOff + mOffFeedKind)) }
func (v *View) SetFeedKind(k FeedKind) { v.putU8(marketOff+mOffFeedKind, uint8(k)) }

func (v *View) MaxStalenessSecs() uint64 { return v.u64(marketOff + mOffMaxStalenessSecs) }
func (v *View) SetMaxStalenessSecs(x uint64) { v.putU64(marketOff+mOffMaxStalenessSecs, x) }

func (v *View) ConfFilterBps() uint16 { return v.u16(marketOff + mOffConfFilterBps) }
func (v *View) SetConfFilterBps(x uint16) { v.putU16(marketOff+mOffConfFilterBps, x) }

func (v *View) Invert() bool { return v.u8(marketOff+mOffInvert) != 0 }
func (v *View) SetInvert(b bool) {
	var x uint8
	if b {
		x = 1
	}
	v.putU8(marketOff+mOffInvert, x)
}

func (v *View) UnitScale() uint32 { return v.u32(marketOff + mOffUnitScale) }
func (v *View) SetUnitScale(x uint32) { v.putU32(marketOff+mOffUnitScale, x) }

func (v *View) OracleAuthoritySet() bool { return v.u8(marketOff+mOffOracleAuthoritySet) != 0 }
func (v *View) SetOracleAuthoritySet(b bool) {
	var x uint8
	if b {
		x = 1
	}
	v.putU8(marketOff+mOffOracleAuthoritySet, x)
}

func (v *View) OracleAuthority() solana.PublicKey { return v.pubkey(marketOff + mOffOracleAuthority) }
func (v *View) SetOracleAuthority(pk solana.PublicKey) {
	v.putPubkey(marketOff+mOffOracleAuthority, pk)
}
