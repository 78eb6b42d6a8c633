package slab

import "github.com/gagliardetto/solana-go"

// Header field offsets, absolute from byte 0.
const (
	offMagic   = 0
	offVersion = 8
	offBump    = 12
	// 3 bytes padding at 13 to align Admin to offset 16.
	offAdmin                    = 16
	offNonce                    = 48
	offLastThresholdUpdateSlot  = 56
)

// Bump returns the PDA bump seed stored at slab init.
func (v *View) Bump() uint8 { return v.u8(offBump) }

// SetBump stores the PDA bump seed.
func (v *View) SetBump(b uint8) { v.putU8(offBump, b) }

// Admin returns the current admin identity.
func (v *View) Admin() solana.PublicKey { return v.pubkey(offAdmin) }

// SetAdmin stores a new admin identity.
func (v *View) SetAdmin(pk solana.PublicKey) { v.putPubkey(offAdmin, pk) }

// Nonce returns the monotonic operation nonce.
func (v *View) Nonce() uint64 { return v.u64(offNonce) }

// SetNonce stores the operation nonce.
func (v *View) SetNonce(n uint64) { v.putU64(offNonce, n) }

// IncrementNonce bumps the nonce by one and returns the new value.
func (v *View) IncrementNonce() uint64 {
	n := v.Nonce() + 1
	v.SetNonce(n)
	return n
}

// LastThresholdUpdateSlot returns the slot at which risk_reduction_threshold
// was last adjusted by the crank's EWMA step.
func (v *View) LastThresholdUpdateSlot() uint64 { return v.u64(offLastThresholdUpdateSlot) }

// SetLastThresholdUpdateSlot stores the slot of the last threshold update.
func (v *View) SetLastThresholdUpdateSlot(slot uint64) {
	v.putU64(offLastThresholdUpdateSlot, slot)
}
