package slab

import "math/bits"

// bitmapWordOffset returns the byte offset of bitmap word i.
func bitmapWordOffset(i int) int { return bitmapOff + i*8 }

// BitmapWord returns word i of the allocator bitmap.
func (v *View) BitmapWord(i int) uint64 { return v.u64(bitmapWordOffset(i)) }

// SetBitmapWord overwrites word i of the allocator bitmap.
func (v *View) SetBitmapWord(i int, w uint64) { v.putU64(bitmapWordOffset(i), w) }

// TestBit reports whether slot idx is allocated.
func (v *View) TestBit(idx uint32) bool {
	word := v.BitmapWord(int(idx / 64))
	return word&(1<<(idx%64)) != 0
}

// SetBit marks slot idx allocated.
func (v *View) SetBit(idx uint32) {
	i := int(idx / 64)
	v.SetBitmapWord(i, v.BitmapWord(i)|(1<<(idx%64)))
}

// ClearBit marks slot idx free.
func (v *View) ClearBit(idx uint32) {
	i := int(idx / 64)
	v.SetBitmapWord(i, v.BitmapWord(i)&^(1<<(idx%64)))
}

// PopCount returns the number of allocated slots across the whole bitmap.
func (v *View) PopCount() int {
	n := 0
	for i := 0; i < BitmapWords; i++ {
		n += bits.OnesCount64(v.BitmapWord(i))
	}
	return n
}

// FirstClearBit scans the bitmap for the first unset bit below limit and
// returns its index. ok is false if the bitmap has no free slot below
// limit.
func (v *View) FirstClearBit(limit uint64) (idx uint32, ok bool) {
	words := int((limit + 63) / 64)
	for i := 0; i < words && i < BitmapWords; i++ {
		w := v.BitmapWord(i)
		if w == ^uint64(0) {
			continue
		}
		bit := bits.TrailingZeros64(^w)
		candidate := uint32(i*64 + bit)
		if uint64(candidate) >= limit {
			return 0, false
		}
		return candidate, true
	}
	return 0, false
}
