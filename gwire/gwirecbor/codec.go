// Package gwirecbor provides a [gwire.MarshalCodec] backed by CBOR
// in core deterministic encoding, so that two peers serializing the
// same value always produce the same bytes.
package gwirecbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/goban-engine/goban/gchain"
	"github.com/goban-engine/goban/ggame"
	"github.com/goban-engine/goban/gwire"
)

// MarshalCodec is a [gwire.MarshalCodec] translating game wire
// values to and from deterministic CBOR. The zero value is not
// usable; construct with [NewMarshalCodec].
type MarshalCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewMarshalCodec returns a ready CBOR codec.
func NewMarshalCodec() (MarshalCodec, error) {
	encOpts := cbor.CanonicalEncOptions()
	encOpts.Time = cbor.TimeUnix
	enc, err := encOpts.EncMode()
	if err != nil {
		return MarshalCodec{}, fmt.Errorf("building encode mode: %w", err)
	}

	// Peers send arbitrary bytes; reject duplicate map keys and
	// cap nesting instead of trusting the input.
	decOpts := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		IndefLength:      cbor.IndefLengthForbidden,
		MaxNestedLevels:  16,
		MaxArrayElements: 1 << 20,
		MaxMapPairs:      1 << 20,
	}
	dec, err := decOpts.DecMode()
	if err != nil {
		return MarshalCodec{}, fmt.Errorf("building decode mode: %w", err)
	}

	return MarshalCodec{enc: enc, dec: dec}, nil
}

func (c MarshalCodec) MarshalGameMessage(m gwire.GameMessage) ([]byte, error) {
	return c.enc.Marshal(m)
}

func (c MarshalCodec) UnmarshalGameMessage(b []byte, m *gwire.GameMessage) error {
	return c.dec.Unmarshal(b, m)
}

func (c MarshalCodec) MarshalMoveBlob(blob gchain.MoveBlob) ([]byte, error) {
	return c.enc.Marshal(blob)
}

func (c MarshalCodec) UnmarshalMoveBlob(b []byte, blob *gchain.MoveBlob) error {
	return c.dec.Unmarshal(b, blob)
}

func (c MarshalCodec) MarshalMoveRecord(rec ggame.MoveRecord) ([]byte, error) {
	return c.enc.Marshal(rec)
}

func (c MarshalCodec) UnmarshalMoveRecord(b []byte, rec *ggame.MoveRecord) error {
	return c.dec.Unmarshal(b, rec)
}
