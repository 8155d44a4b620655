// Package gwiretest provides a compliance suite that any
// [gwire.MarshalCodec] implementation is expected to pass.
package gwiretest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goban-engine/goban/gboard"
	"github.com/goban-engine/goban/gchain"
	"github.com/goban-engine/goban/ggame"
	"github.com/goban-engine/goban/gwire"
)

const determinismTries = 50

// In case there is any state in the codec,
// providing a factory function allows a clean start for every subtest.
type MarshalCodecFactory func() gwire.MarshalCodec

// TestMarshalCodecCompliance ensures the codec in mcf follows all
// expected properties of a [gwire.MarshalCodec].
func TestMarshalCodecCompliance(t *testing.T, mcf MarshalCodecFactory) {
	t.Run("move records", func(t *testing.T) {
		for name, rec := range moveRecordFixtures() {
			rec := rec
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				mc := mcf()

				b, err := mc.MarshalMoveRecord(rec)
				require.NoError(t, err)

				var got ggame.MoveRecord
				require.NoError(t, mc.UnmarshalMoveRecord(b, &got))
				require.True(t, rec.Equal(got), "round-tripped record differs: %#v vs %#v", rec, got)
			})
		}

		t.Run("deterministic output", func(t *testing.T) {
			t.Parallel()

			mc := mcf()
			for name, rec := range moveRecordFixtures() {
				want, err := mc.MarshalMoveRecord(rec)
				require.NoError(t, err)
				for i := 0; i < determinismTries; i++ {
					got, err := mc.MarshalMoveRecord(rec)
					require.NoError(t, err)
					require.Equalf(t, want, got, "non-deterministic encoding of %s on try %d", name, i)
				}
			}
		})
	})

	t.Run("move blobs", func(t *testing.T) {
		t.Parallel()

		mc := mcf()

		blob, tail := blobFixtures(t)

		for _, b := range []gchain.MoveBlob{blob, tail} {
			raw, err := mc.MarshalMoveBlob(b)
			require.NoError(t, err)

			var got gchain.MoveBlob
			require.NoError(t, mc.UnmarshalMoveBlob(raw, &got))

			wantHash, err := b.Hash()
			require.NoError(t, err)
			gotHash, err := got.Hash()
			require.NoError(t, err)
			require.Equal(t, wantHash, gotHash, "blob hash changed across round trip")
		}
	})

	t.Run("game messages", func(t *testing.T) {
		blob, _ := blobFixtures(t)
		gameID := blob.GameID

		msgs := map[string]gwire.GameMessage{
			"move blob": {MoveBlob: &blob},
			"ack": {Ack: &gwire.MoveAck{
				GameID:    gameID,
				Sequence:  3,
				BlobHash:  []byte("0123456789abcdef0123456789abcdef"),
				Timestamp: 1700000000,
			}},
			"sync request": {SyncRequest: &gwire.SyncRequest{
				GameID:       gameID,
				FromSequence: 4,
				Timestamp:    1700000001,
			}},
			"sync response": {SyncResponse: &gwire.SyncResponse{
				GameID:    gameID,
				Blobs:     []gchain.MoveBlob{blob},
				Timestamp: 1700000002,
			}},
			"chat": {Chat: &gwire.ChatMessage{
				GameID:    gameID,
				From:      "opponent",
				Message:   "good game",
				Timestamp: 1700000003,
			}},
		}

		for name, msg := range msgs {
			msg := msg
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				mc := mcf()

				b, err := mc.MarshalGameMessage(msg)
				require.NoError(t, err)

				var got gwire.GameMessage
				require.NoError(t, mc.UnmarshalGameMessage(b, &got))
				require.Equal(t, msg.GameID(), got.GameID())
				require.Equal(t, msg, got)
			})
		}
	})

	t.Run("malformed input returns an error without panicking", func(t *testing.T) {
		t.Parallel()

		mc := mcf()

		for _, raw := range [][]byte{
			nil,
			{},
			[]byte("not cbor at all"),
			{0xff, 0xff, 0xff, 0xff},
		} {
			var msg gwire.GameMessage
			require.Error(t, mc.UnmarshalGameMessage(raw, &msg))

			var rec ggame.MoveRecord
			require.Error(t, mc.UnmarshalMoveRecord(raw, &rec))
		}
	})
}

// moveRecordFixtures covers every move variant and every
// optional-field combination.
func moveRecordFixtures() map[string]ggame.MoveRecord {
	tag := ggame.TagReactivity
	hash := func(fill byte) []byte {
		b := make([]byte, 32)
		for i := range b {
			b[i] = fill
		}
		return b
	}

	fixtures := map[string]ggame.MoveRecord{
		"bare place": {
			Move:      ggame.Place(gboard.Coord{X: 3, Y: 4}),
			Timestamp: 1700000000,
			Sequence:  0,
		},
		"bare pass": {
			Move:      ggame.Pass(),
			Timestamp: 1700000001,
			Sequence:  1,
		},
		"bare resign": {
			Move:      ggame.Resign(),
			Timestamp: 1700000002,
			Sequence:  2,
		},
		"fully populated": {
			Move:          ggame.Place(gboard.Coord{X: 0, Y: 8}),
			Tag:           &tag,
			Timestamp:     1700000003,
			Sequence:      7,
			BroadcastHash: hash(0xaa),
			PrevHash:      hash(0xbb),
			Signature:     hash(0xcc),
			Signer:        hash(0xdd),
		},
	}

	// One fixture per single optional field present.
	opts := map[string]func(*ggame.MoveRecord){
		"only tag":            func(r *ggame.MoveRecord) { r.Tag = &tag },
		"only broadcast hash": func(r *ggame.MoveRecord) { r.BroadcastHash = hash(0x11) },
		"only prev hash":      func(r *ggame.MoveRecord) { r.PrevHash = hash(0x22) },
		"only signature":      func(r *ggame.MoveRecord) { r.Signature = hash(0x33); r.Signer = hash(0x44) },
	}
	for name, apply := range opts {
		rec := ggame.MoveRecord{
			Move:      ggame.Place(gboard.Coord{X: 5, Y: 5}),
			Timestamp: 1700000004,
			Sequence:  9,
		}
		apply(&rec)
		fixtures[name] = rec
	}

	return fixtures
}

// blobFixtures returns a genesis blob and a linked second blob
// from a short real game.
func blobFixtures(t *testing.T) (genesis, tail gchain.MoveBlob) {
	t.Helper()

	gameID := gchain.GameID("codec-compliance-game")

	state := ggame.NewState(9)
	rec0 := ggame.MoveRecord{
		Move:      ggame.Place(gboard.Coord{X: 2, Y: 2}),
		Timestamp: 1700000000,
		Sequence:  0,
	}
	require.NoError(t, state.ApplyMove(rec0))
	genesis = gchain.NewMoveBlob(gameID, rec0, nil, state.Snapshot(), 0)

	genesisHash, err := genesis.Hash()
	require.NoError(t, err)

	rec1 := ggame.MoveRecord{
		Move:      ggame.Place(gboard.Coord{X: 6, Y: 6}),
		Timestamp: 1700000001,
		Sequence:  1,
		PrevHash:  genesisHash,
	}
	require.NoError(t, state.ApplyMove(rec1))
	tail = gchain.NewMoveBlob(gameID, rec1, genesisHash, state.Snapshot(), 1)

	return genesis, tail
}
