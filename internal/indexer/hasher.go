package indexer

import (
	"crypto/sha256"
	"encoding/binary"
)

const genesisHashSeed = "percolat:genesis:v1"

// StateHasher chains each archived snapshot onto the previous one, the way
// an audit log proves no entry was altered or dropped after the fact.
type StateHasher struct {
	prevHash [32]byte
}

// NewStateHasher seeds the chain from a fixed genesis constant.
func NewStateHasher() *StateHasher {
	return &StateHasher{prevHash: sha256.Sum256([]byte(genesisHashSeed))}
}

// ComputeHash returns SHA-256(prev_hash || slot || digest) and advances the
// chain tip to it.
func (h *StateHasher) ComputeHash(slot int64, digest []byte) [32]byte {
	hasher := sha256.New()
	hasher.Write(h.prevHash[:])

	var slotBuf [8]byte
	binary.LittleEndian.PutUint64(slotBuf[:], uint64(slot))
	hasher.Write(slotBuf[:])

	hasher.Write(digest)

	var hash [32]byte
	copy(hash[:], hasher.Sum(nil))
	h.prevHash = hash
	return hash
}

// PrevHash returns the current chain tip.
func (h *StateHasher) PrevHash() [32]byte { return h.prevHash }
