package gchain_test

import (
	"testing"

	"github.com/goban-engine/goban/gassert/gasserttest"
	"github.com/goban-engine/goban/gboard"
	"github.com/goban-engine/goban/gchain"
	"github.com/goban-engine/goban/ggame"
	"github.com/stretchr/testify/require"
)

// buildBlobs plays the given moves from a fresh 9x9 state and
// returns a correctly linked blob per move.
func buildBlobs(t *testing.T, gameID gchain.GameID, moves []ggame.Move) []gchain.MoveBlob {
	t.Helper()

	state := ggame.NewState(9)
	var (
		blobs    []gchain.MoveBlob
		prevHash []byte
	)
	for i, mv := range moves {
		rec := ggame.MoveRecord{
			Move:      mv,
			Timestamp: uint64(1000 + i),
			Sequence:  uint32(i),
		}
		require.NoError(t, state.ApplyMove(rec))

		blob := gchain.NewMoveBlob(gameID, rec, prevHash, state.Snapshot(), uint32(i))
		blobs = append(blobs, blob)

		hash, err := blob.Hash()
		require.NoError(t, err)
		prevHash = hash
	}
	return blobs
}

func place(x, y int) ggame.Move {
	return ggame.Place(gboard.Coord{X: x, Y: y})
}

// newChain builds a chain with all debug assertions enabled,
// when built with the debug tag.
func newChain(gameID gchain.GameID) *gchain.MoveChain {
	chain := gchain.NewMoveChain(gameID)
	chain.UseAssertEnv(gasserttest.DefaultEnv())
	return chain
}

func TestMoveChain_AcceptsLinkedBlobs(t *testing.T) {
	t.Parallel()

	gameID := gchain.NewGameID()
	blobs := buildBlobs(t, gameID, []ggame.Move{
		place(2, 2), place(6, 6), place(3, 3), ggame.Pass(),
	})

	chain := newChain(gameID)
	for _, blob := range blobs {
		require.NoError(t, chain.AddBlob(blob))
	}

	require.Equal(t, 4, chain.Len())
	seq, ok := chain.CurrentSequence()
	require.True(t, ok)
	require.Equal(t, uint32(3), seq)

	require.NoError(t, chain.Verify())

	tip, ok := chain.CurrentBlob()
	require.True(t, ok)
	tipHash, err := tip.Hash()
	require.NoError(t, err)
	require.Equal(t, tipHash, chain.TipHash())

	state, ok := chain.TipState()
	require.True(t, ok)
	require.Equal(t, 4, state.MoveCount())
}

func TestMoveChain_RejectsWrongGame(t *testing.T) {
	t.Parallel()

	gameID := gchain.NewGameID()
	blobs := buildBlobs(t, gameID, []ggame.Move{place(2, 2)})

	other := newChain(gchain.NewGameID())
	err := other.AddBlob(blobs[0])

	var wrongGame gchain.WrongGameError
	require.ErrorAs(t, err, &wrongGame)
	require.Equal(t, gameID, wrongGame.Got)
	require.Zero(t, other.Len())
}

func TestMoveChain_SequenceErrors(t *testing.T) {
	t.Parallel()

	gameID := gchain.NewGameID()
	blobs := buildBlobs(t, gameID, []ggame.Move{
		place(2, 2), place(6, 6), place(3, 3),
	})

	t.Run("genesis twice", func(t *testing.T) {
		t.Parallel()

		chain := newChain(gameID)
		require.NoError(t, chain.AddBlob(blobs[0]))

		err := chain.AddBlob(blobs[0])
		var gap gchain.SequenceGapError
		require.ErrorAs(t, err, &gap)
		require.Equal(t, uint32(1), gap.Want)
		require.Equal(t, uint32(0), gap.Got)
	})

	t.Run("skipped sequence", func(t *testing.T) {
		t.Parallel()

		chain := newChain(gameID)
		require.NoError(t, chain.AddBlob(blobs[0]))

		err := chain.AddBlob(blobs[2])
		var gap gchain.SequenceGapError
		require.ErrorAs(t, err, &gap)
		require.Equal(t, uint32(1), gap.Want)
		require.Equal(t, uint32(2), gap.Got)
	})

	t.Run("non-zero first blob", func(t *testing.T) {
		t.Parallel()

		chain := newChain(gameID)
		err := chain.AddBlob(blobs[1])
		var gap gchain.SequenceGapError
		require.ErrorAs(t, err, &gap)
		require.Equal(t, uint32(0), gap.Want)
	})
}

func TestMoveChain_RejectsBrokenLink(t *testing.T) {
	t.Parallel()

	gameID := gchain.NewGameID()
	blobs := buildBlobs(t, gameID, []ggame.Move{place(2, 2), place(6, 6)})

	chain := newChain(gameID)
	require.NoError(t, chain.AddBlob(blobs[0]))

	tampered := blobs[1]
	tampered.PrevHash = make([]byte, gchain.HashSize)

	var broken gchain.BrokenLinkError
	require.ErrorAs(t, chain.AddBlob(tampered), &broken)
	require.Equal(t, 1, chain.Len())

	// The untampered blob still links.
	require.NoError(t, chain.AddBlob(blobs[1]))
}

func TestMoveChain_RejectsMisstatedState(t *testing.T) {
	t.Parallel()

	gameID := gchain.NewGameID()
	blobs := buildBlobs(t, gameID, []ggame.Move{place(2, 2), place(6, 6)})

	// Claim a resulting state with the stone somewhere else.
	lying := blobs[1]
	lying.State.Cells[0] = uint8(gboard.White)

	chain := newChain(gameID)
	require.NoError(t, chain.AddBlob(blobs[0]))

	var broken gchain.BrokenLinkError
	require.ErrorAs(t, chain.AddBlob(lying), &broken)
}

func TestMoveBlob_Verify(t *testing.T) {
	t.Parallel()

	gameID := gchain.NewGameID()
	blobs := buildBlobs(t, gameID, []ggame.Move{place(2, 2), place(6, 6)})

	require.NoError(t, blobs[0].Verify())
	require.NoError(t, blobs[1].Verify())

	genesisWithPrev := blobs[0]
	genesisWithPrev.PrevHash = make([]byte, gchain.HashSize)
	require.Error(t, genesisWithPrev.Verify())

	laterWithoutPrev := blobs[1]
	laterWithoutPrev.PrevHash = nil
	require.Error(t, laterWithoutPrev.Verify())
}

func TestMoveBlob_HashCommitsToContent(t *testing.T) {
	t.Parallel()

	gameID := gchain.NewGameID()
	blobs := buildBlobs(t, gameID, []ggame.Move{place(2, 2)})

	h1, err := blobs[0].Hash()
	require.NoError(t, err)

	// Hashing is deterministic.
	h2, err := blobs[0].Hash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	mutated := blobs[0]
	mutated.Record.Timestamp++
	h3, err := mutated.Hash()
	require.NoError(t, err)
	require.NotEqual(t, h1, h3)
}

func TestMoveChain_BlobsFromSequence(t *testing.T) {
	t.Parallel()

	gameID := gchain.NewGameID()
	blobs := buildBlobs(t, gameID, []ggame.Move{
		place(2, 2), place(6, 6), place(3, 3),
	})

	chain := newChain(gameID)
	for _, blob := range blobs {
		require.NoError(t, chain.AddBlob(blob))
	}

	tail := chain.Blobs(1)
	require.Len(t, tail, 2)
	require.Equal(t, uint32(1), tail[0].Sequence)
	require.Equal(t, uint32(2), tail[1].Sequence)

	require.Empty(t, chain.Blobs(3))
}
