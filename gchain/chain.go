package gchain

import (
	"fmt"

	"github.com/goban-engine/goban/gassert"
	"github.com/goban-engine/goban/ggame"
)

// WrongGameError indicates a blob addressed to a different game.
type WrongGameError struct {
	Want, Got GameID
}

func (e WrongGameError) Error() string {
	return fmt.Sprintf("blob belongs to game %s, chain holds game %s", e.Got, e.Want)
}

// SequenceGapError indicates a blob whose sequence number is not
// exactly the next expected one. Covers both skips and duplicates.
type SequenceGapError struct {
	Want, Got uint32
}

func (e SequenceGapError) Error() string {
	return fmt.Sprintf("expected blob sequence %d, got %d", e.Want, e.Got)
}

// BrokenLinkError indicates a blob whose previous-hash does not
// match the chain tail, or which failed replay verification.
type BrokenLinkError struct {
	Sequence uint32
	Reason   error
}

func (e BrokenLinkError) Error() string {
	return fmt.Sprintf("blob at sequence %d does not extend the chain: %v", e.Sequence, e.Reason)
}

func (e BrokenLinkError) Unwrap() error { return e.Reason }

// MoveChain is the append-only verified move log for one game.
// Blobs are accepted strictly in sequence order with intact
// hash linkage; a rejected blob leaves the chain untouched.
type MoveChain struct {
	gameID GameID

	blobs  []MoveBlob
	byHash map[[HashSize]byte]int

	tipHash []byte

	// tipState is the replayed state as of the tail blob,
	// cached so continuation checks do not replay from genesis.
	tipState *ggame.State

	assertEnv gassert.Env
}

// NewMoveChain returns an empty chain for one game.
func NewMoveChain(gameID GameID) *MoveChain {
	return &MoveChain{
		gameID: gameID,
		byHash: make(map[[HashSize]byte]int),
	}
}

// GameID returns the game this chain logs.
func (mc *MoveChain) GameID() GameID {
	return mc.gameID
}

// Len returns the number of accepted blobs.
func (mc *MoveChain) Len() int {
	return len(mc.blobs)
}

// CurrentSequence returns the sequence number of the tail blob
// and false if the chain is still empty.
func (mc *MoveChain) CurrentSequence() (uint32, bool) {
	if len(mc.blobs) == 0 {
		return 0, false
	}
	return mc.blobs[len(mc.blobs)-1].Sequence, true
}

// TipHash returns the hash of the tail blob, nil when empty.
func (mc *MoveChain) TipHash() []byte {
	if mc.tipHash == nil {
		return nil
	}
	out := make([]byte, len(mc.tipHash))
	copy(out, mc.tipHash)
	return out
}

// TipState returns a copy of the game state as of the tail blob
// and false if the chain is still empty.
func (mc *MoveChain) TipState() (*ggame.State, bool) {
	if mc.tipState == nil {
		return nil, false
	}
	return mc.tipState.Clone(), true
}

// AddBlob verifies a blob as the next link and appends it.
// The first accepted blob must have sequence 0 and is replayed
// against a fresh state at the blob's own board size.
func (mc *MoveChain) AddBlob(blob MoveBlob) error {
	if blob.GameID != mc.gameID {
		return WrongGameError{Want: mc.gameID, Got: blob.GameID}
	}

	wantSeq := uint32(0)
	if seq, ok := mc.CurrentSequence(); ok {
		wantSeq = seq + 1
	}
	if blob.Sequence != wantSeq {
		return SequenceGapError{Want: wantSeq, Got: blob.Sequence}
	}

	if err := blob.Verify(); err != nil {
		return BrokenLinkError{Sequence: blob.Sequence, Reason: err}
	}

	prior := mc.tipState
	if prior == nil {
		prior = ggame.NewState(blob.State.Size)
	}
	if err := blob.ValidateContinuation(prior, mc.tipHash); err != nil {
		return BrokenLinkError{Sequence: blob.Sequence, Reason: err}
	}

	hash, err := blob.Hash()
	if err != nil {
		return fmt.Errorf("hashing blob: %w", err)
	}

	next := prior.Clone()
	if err := next.ApplyMove(blob.Record); err != nil {
		// ValidateContinuation already replayed this move.
		return BrokenLinkError{Sequence: blob.Sequence, Reason: err}
	}

	mc.byHash[[HashSize]byte(hash)] = len(mc.blobs)
	mc.blobs = append(mc.blobs, blob)
	mc.tipHash = hash
	mc.tipState = next

	invariantChainReverifies(mc.assertEnv, mc)

	return nil
}

// UseAssertEnv enables runtime invariant checks on the chain.
// Only effective in debug builds.
func (mc *MoveChain) UseAssertEnv(env gassert.Env) {
	mc.assertEnv = env
}

// GetBlob returns the blob with the given hash.
func (mc *MoveChain) GetBlob(hash []byte) (MoveBlob, bool) {
	if len(hash) != HashSize {
		return MoveBlob{}, false
	}
	i, ok := mc.byHash[[HashSize]byte(hash)]
	if !ok {
		return MoveBlob{}, false
	}
	return mc.blobs[i], true
}

// CurrentBlob returns the tail blob and false if the chain is empty.
func (mc *MoveChain) CurrentBlob() (MoveBlob, bool) {
	if len(mc.blobs) == 0 {
		return MoveBlob{}, false
	}
	return mc.blobs[len(mc.blobs)-1], true
}

// Blobs returns all accepted blobs in sequence order,
// starting at the given sequence number.
func (mc *MoveChain) Blobs(fromSequence uint32) []MoveBlob {
	if int(fromSequence) >= len(mc.blobs) {
		return nil
	}
	out := make([]MoveBlob, len(mc.blobs)-int(fromSequence))
	copy(out, mc.blobs[fromSequence:])
	return out
}

// Verify re-walks the full chain, rechecking every blob and link.
func (mc *MoveChain) Verify() error {
	var (
		prior     *ggame.State
		priorHash []byte
	)
	for i, blob := range mc.blobs {
		if blob.Sequence != uint32(i) {
			return SequenceGapError{Want: uint32(i), Got: blob.Sequence}
		}
		if err := blob.Verify(); err != nil {
			return BrokenLinkError{Sequence: blob.Sequence, Reason: err}
		}

		if prior == nil {
			prior = ggame.NewState(blob.State.Size)
		}
		if err := blob.ValidateContinuation(prior, priorHash); err != nil {
			return BrokenLinkError{Sequence: blob.Sequence, Reason: err}
		}

		next := prior.Clone()
		if err := next.ApplyMove(blob.Record); err != nil {
			return BrokenLinkError{Sequence: blob.Sequence, Reason: err}
		}

		hash, err := blob.Hash()
		if err != nil {
			return fmt.Errorf("hashing blob at sequence %d: %w", blob.Sequence, err)
		}
		prior = next
		priorHash = hash
	}
	return nil
}
