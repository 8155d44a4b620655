// Package gwire defines the wire types exchanged between peers on a
// game topic, and the codec interfaces for translating them to and
// from bytes. Concrete codecs live in subpackages; see gwirecbor.
package gwire

import (
	"github.com/goban-engine/goban/gchain"
	"github.com/goban-engine/goban/ggame"
)

// Marshaler serializes game wire values to byte slices.
type Marshaler interface {
	MarshalGameMessage(GameMessage) ([]byte, error)

	MarshalMoveBlob(gchain.MoveBlob) ([]byte, error)
	MarshalMoveRecord(ggame.MoveRecord) ([]byte, error)
}

// Unmarshaler deserializes byte slices into game wire values.
//
// Malformed input must surface as an error; it must never panic,
// since every byte slice here may come from an untrusted peer.
type Unmarshaler interface {
	UnmarshalGameMessage([]byte, *GameMessage) error

	UnmarshalMoveBlob([]byte, *gchain.MoveBlob) error
	UnmarshalMoveRecord([]byte, *ggame.MoveRecord) error
}

// MarshalCodec marshals and unmarshals game wire values,
// producing byte slices.
type MarshalCodec interface {
	Marshaler
	Unmarshaler
}

// GameMessage is a wrapper around the message types sent on a game
// topic. Exactly one of the fields must be set.
// If zero or multiple fields are set, behavior is undefined.
type GameMessage struct {
	MoveBlob *gchain.MoveBlob `json:"move_blob,omitempty"`

	Ack *MoveAck `json:"ack,omitempty"`

	SyncRequest  *SyncRequest  `json:"sync_request,omitempty"`
	SyncResponse *SyncResponse `json:"sync_response,omitempty"`

	Chat *ChatMessage `json:"chat,omitempty"`
}

// GameID returns the game the set message field addresses,
// empty if no field is set.
func (m GameMessage) GameID() gchain.GameID {
	switch {
	case m.MoveBlob != nil:
		return m.MoveBlob.GameID
	case m.Ack != nil:
		return m.Ack.GameID
	case m.SyncRequest != nil:
		return m.SyncRequest.GameID
	case m.SyncResponse != nil:
		return m.SyncResponse.GameID
	case m.Chat != nil:
		return m.Chat.GameID
	}
	return ""
}

// MoveAck acknowledges the acceptance of one move blob.
type MoveAck struct {
	GameID gchain.GameID `json:"game_id"`

	// Sequence of the acknowledged blob.
	Sequence uint32 `json:"seq"`

	// BlobHash is the hash of the acknowledged blob, so a stale
	// ack after a resync cannot be confused with a current one.
	BlobHash []byte `json:"blob_hash"`

	// Timestamp is unix seconds at the acknowledging peer.
	Timestamp uint64 `json:"ts"`
}

// SyncRequest asks peers for the chain tail of one game.
type SyncRequest struct {
	GameID gchain.GameID `json:"game_id"`

	// FromSequence is the first sequence number the requester
	// is missing.
	FromSequence uint32 `json:"from_seq"`

	Timestamp uint64 `json:"ts"`
}

// SyncResponse carries a contiguous run of blobs answering a
// SyncRequest. The receiver re-verifies every blob before use.
type SyncResponse struct {
	GameID gchain.GameID `json:"game_id"`

	Blobs []gchain.MoveBlob `json:"blobs"`

	Timestamp uint64 `json:"ts"`
}

// ChatMessage is an in-game text message between the players.
type ChatMessage struct {
	GameID gchain.GameID `json:"game_id"`

	From    string `json:"from"`
	Message string `json:"message"`

	Timestamp uint64 `json:"ts"`
}
