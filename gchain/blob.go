// Package gchain implements the hash-linked move log.
//
// Every move is wrapped in a MoveBlob committing to the move, the
// resulting game state, and the hash of the preceding blob. A
// MoveChain accepts blobs only in strict sequence with intact
// linkage, so any replica can audit a received chain without
// trusting the sender.
package gchain

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"github.com/goban-engine/goban/ggame"
)

// GameID identifies one game across all replicas.
type GameID string

// NewGameID mints a fresh random game identifier.
func NewGameID() GameID {
	return GameID(uuid.NewString())
}

// HashSize is the byte length of a blob hash.
const HashSize = 32

// blobEnc is the deterministic encoding used for blob hashing.
// Both sides of a game must byte-agree on the encoding or
// their chain hashes diverge.
var blobEnc cbor.EncMode

func init() {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeUnix

	var err error
	blobEnc, err = opts.EncMode()
	if err != nil {
		panic(fmt.Errorf("building canonical encoder: %w", err))
	}
}

// MoveBlob is one link of a game's move log: a move record, the
// state it produced, and the hash of the preceding blob.
// Sequence 0 is the genesis link and carries no previous hash.
type MoveBlob struct {
	GameID   GameID           `json:"game_id"`
	Record   ggame.MoveRecord `json:"record"`
	PrevHash []byte           `json:"prev_hash,omitempty"`
	State    ggame.Snapshot   `json:"state"`
	Sequence uint32           `json:"seq"`
}

// NewMoveBlob constructs an unverified blob.
func NewMoveBlob(
	gameID GameID,
	rec ggame.MoveRecord,
	prevHash []byte,
	state ggame.Snapshot,
	sequence uint32,
) MoveBlob {
	return MoveBlob{
		GameID:   gameID,
		Record:   rec,
		PrevHash: prevHash,
		State:    state,
		Sequence: sequence,
	}
}

// Hash is the blob's BLAKE3 digest over its canonical encoding.
// It commits to every field, so any mutation of the blob is
// detectable by whoever holds the hash.
func (b MoveBlob) Hash() ([]byte, error) {
	enc, err := blobEnc.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encoding blob for hashing: %w", err)
	}

	sum := blake3.Sum256(enc)
	return sum[:], nil
}

// Verify checks the blob's internal consistency in isolation:
// the sequence/prev-hash pairing and a sane board size.
func (b MoveBlob) Verify() error {
	if b.Sequence == 0 && len(b.PrevHash) != 0 {
		return fmt.Errorf("genesis blob must not carry a previous hash")
	}
	if b.Sequence > 0 && len(b.PrevHash) != HashSize {
		return fmt.Errorf(
			"blob at sequence %d has previous hash of %d bytes, want %d",
			b.Sequence, len(b.PrevHash), HashSize,
		)
	}
	if b.State.Size < 1 || b.State.Size > 25 {
		return fmt.Errorf("invalid board size %d", b.State.Size)
	}
	return nil
}

// ValidateContinuation checks that the blob legally extends the
// given prior state and chain tail: the previous hash must match,
// and replaying the blob's move on the prior state must produce
// exactly the state the blob claims.
func (b MoveBlob) ValidateContinuation(prior *ggame.State, priorHash []byte) error {
	if prior == nil {
		return fmt.Errorf("missing prior state")
	}

	if len(b.PrevHash) != 0 || len(priorHash) != 0 {
		if !bytes.Equal(b.PrevHash, priorHash) {
			return fmt.Errorf("previous hash mismatch")
		}
	}

	replayed := prior.Clone()
	if err := replayed.ApplyMove(b.Record); err != nil {
		return fmt.Errorf("replaying move: %w", err)
	}

	got, err := blobEnc.Marshal(replayed.Snapshot())
	if err != nil {
		return fmt.Errorf("encoding replayed state: %w", err)
	}
	claimed, err := blobEnc.Marshal(b.State)
	if err != nil {
		return fmt.Errorf("encoding claimed state: %w", err)
	}
	if !bytes.Equal(got, claimed) {
		return fmt.Errorf("replaying move produced a different state")
	}

	return nil
}
