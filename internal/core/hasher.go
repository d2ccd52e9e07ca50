package core

import (
	"crypto/sha256"
	"encoding/binary"
)

// genesisSeed anchors the hash chain: the tip before any event is
// SHA-256 of this string, so two ledgers with identical histories
// produce identical chains.
const genesisSeed = "WrapLedger:genesis:v1"

// StateHasher maintains the chain tip. Each applied event commits to
// SHA-256(tip || sequence || payload); VerifyIntegrity on the query
// side walks the same construction over the persisted log.
type StateHasher struct {
	tip [32]byte
}

func NewStateHasher() *StateHasher {
	return &StateHasher{tip: sha256.Sum256([]byte(genesisSeed))}
}

// Advance folds an event into the chain and returns the new state hash
// together with the previous tip it chains from.
func (h *StateHasher) Advance(sequence int64, payload []byte) (stateHash, prevHash [32]byte) {
	prevHash = h.tip

	d := sha256.New()
	d.Write(prevHash[:])
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], uint64(sequence))
	d.Write(seq[:])
	d.Write(payload)

	copy(stateHash[:], d.Sum(nil))
	h.tip = stateHash
	return stateHash, prevHash
}

// Tip returns the current chain head.
func (h *StateHasher) Tip() [32]byte {
	return h.tip
}

// Reset installs a persisted chain head, used on startup restore.
func (h *StateHasher) Reset(tip [32]byte) {
	h.tip = tip
}
