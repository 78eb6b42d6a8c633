package slab

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"percolat/internal/apperrors"
	"percolat/internal/fixedpoint"
)

// U128 and I128 alias the fixedpoint package's checked integers so field
// accessors in this package can read naturally as slab.U128/slab.I128.
type U128 = fixedpoint.U128
type I128 = fixedpoint.I128

// View is a zero-copy borrow over a slab's backing bytes. It never
// allocates a copy of the buffer; every field accessor reads or writes
// directly into Bytes at a fixed offset.
type View struct {
	Bytes []byte
}

// New zero-initializes a fresh buffer of the correct physical size and
// stamps the header magic and version, ready for InitMarket to populate.
func New() *View {
	v := &View{Bytes: make([]byte, Size)}
	copy(v.Bytes[0:8], Magic[:])
	binary.LittleEndian.PutUint32(v.Bytes[8:12], CurrentVersion)
	return v
}

// Open wraps an existing byte buffer without copying it, validating magic,
// version, and length before returning.
func Open(buf []byte) (*View, error) {
	if len(buf) != Size {
		return nil, apperrors.ErrSlabSizeMismatch
	}
	v := &View{Bytes: buf}
	var magic [8]byte
	copy(magic[:], buf[0:8])
	if magic != Magic {
		return nil, apperrors.ErrInvalidMagic
	}
	if v.Version() != CurrentVersion {
		return nil, apperrors.ErrUnsupportedVersion
	}
	return v, nil
}

func (v *View) u8(off int) uint8    { return v.Bytes[off] }
func (v *View) putU8(off int, x uint8) { v.Bytes[off] = x }

func (v *View) u16(off int) uint16 { return binary.LittleEndian.Uint16(v.Bytes[off : off+2]) }
func (v *View) putU16(off int, x uint16) {
	binary.LittleEndian.PutUint16(v.Bytes[off:off+2], x)
}

func (v *View) u32(off int) uint32 { return binary.LittleEndian.Uint32(v.Bytes[off : off+4]) }
func (v *View) putU32(off int, x uint32) {
	binary.LittleEndian.PutUint32(v.Bytes[off:off+4], x)
}

func (v *View) u64(off int) uint64 { return binary.LittleEndian.Uint64(v.Bytes[off : off+8]) }
func (v *View) putU64(off int, x uint64) {
	binary.LittleEndian.PutUint64(v.Bytes[off:off+8], x)
}

func (v *View) i64(off int) int64 { return int64(v.u64(off)) }
func (v *View) putI64(off int, x int64) { v.putU64(off, uint64(x)) }

func (v *View) pubkey(off int) solana.PublicKey {
	var pk solana.PublicKey
	copy(pk[:], v.Bytes[off:off+32])
	return pk
}
func (v *View) putPubkey(off int, pk solana.PublicKey) { copy(v.Bytes[off:off+32], pk[:]) }

func (v *View) u128(off int) fixedpoint.U128 {
	var b [16]byte
	copy(b[:], v.Bytes[off:off+16])
	return fixedpoint.U128FromLE(b)
}
func (v *View) putU128(off int, x fixedpoint.U128) {
	b := x.LE()
	copy(v.Bytes[off:off+16], b[:])
}

func (v *View) i128(off int) fixedpoint.I128 {
	var b [16]byte
	copy(b[:], v.Bytes[off:off+16])
	return fixedpoint.I128FromLE(b)
}
func (v *View) putI128(off int, x fixedpoint.I128) {
	b := x.LE()
	copy(v.Bytes[off:off+16], b[:])
}

// Version returns the slab's stamped codec version.
func (v *View) Version() uint32 { return v.u32(8) }
