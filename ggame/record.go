package ggame

import "bytes"

// MoveRecord is a move plus the metadata that travels with it:
// a proposer-assigned timestamp, an optional annotation tag,
// the chain linkage hashes, and an optional signature.
//
// Absent optional fields are nil slices (or a nil Tag pointer);
// codecs must preserve the absent/present distinction exactly.
//
// The record's timestamp is assigned once by the proposing peer
// and never rewritten, so replaying the same records on any replica
// reconstructs an identical state.
type MoveRecord struct {
	Move Move `json:"mv"`

	Tag *Tag `json:"tag,omitempty"`

	// Timestamp is unix seconds at the proposer.
	Timestamp uint64 `json:"ts"`

	// Sequence is the move's position in the chain, starting at 0.
	Sequence uint32 `json:"seq"`

	// BroadcastHash is the blob hash the proposer computed
	// before broadcasting, if any.
	BroadcastHash []byte `json:"broadcast_hash,omitempty"`

	// PrevHash is the hash of the preceding blob,
	// nil only for the first move of a game.
	PrevHash []byte `json:"prev_hash,omitempty"`

	// Signature and Signer carry an optional ed25519 signature
	// over the record's canonical bytes and the signer's public key.
	Signature []byte `json:"sig,omitempty"`
	Signer    []byte `json:"signer,omitempty"`
}

// Equal reports whether r and o are identical, including metadata.
func (r MoveRecord) Equal(o MoveRecord) bool {
	if r.Move != o.Move || r.Timestamp != o.Timestamp || r.Sequence != o.Sequence {
		return false
	}
	if (r.Tag == nil) != (o.Tag == nil) {
		return false
	}
	if r.Tag != nil && *r.Tag != *o.Tag {
		return false
	}
	return bytes.Equal(r.BroadcastHash, o.BroadcastHash) &&
		bytes.Equal(r.PrevHash, o.PrevHash) &&
		bytes.Equal(r.Signature, o.Signature) &&
		bytes.Equal(r.Signer, o.Signer)
}
