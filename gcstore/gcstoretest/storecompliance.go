package gcstoretest

import (
	"context"
	"testing"

	"github.com/goban-engine/goban/gcstore"
	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"
)

// StoreFactory returns a fresh, empty store for one test.
type StoreFactory func(t *testing.T) gcstore.ArchiveStore

// TestArchiveStoreCompliance runs the suite of tests
// that any [gcstore.ArchiveStore] implementation must pass.
func TestArchiveStoreCompliance(t *testing.T, newStore StoreFactory) {
	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := newStore(t)

		data := []byte("finished game chain snapshot")
		hash := blake3.Sum256(data)

		require.NoError(t, s.SaveBlob(ctx, hash[:], data))

		got, err := s.LoadBlob(ctx, hash[:])
		require.NoError(t, err)
		require.Equal(t, data, got)
	})

	t.Run("unknown hash", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := newStore(t)

		hash := blake3.Sum256([]byte("never saved"))

		_, err := s.LoadBlob(ctx, hash[:])
		var unknown gcstore.UnknownBlobError
		require.ErrorAs(t, err, &unknown)
		require.Equal(t, hash[:], unknown.Hash)
	})

	t.Run("invalid hash length", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := newStore(t)

		require.Error(t, s.SaveBlob(ctx, []byte("short"), []byte("data")))

		_, err := s.LoadBlob(ctx, []byte("short"))
		require.Error(t, err)
	})

	t.Run("resave is idempotent", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := newStore(t)

		data := []byte("content addressed")
		hash := blake3.Sum256(data)

		require.NoError(t, s.SaveBlob(ctx, hash[:], data))
		require.NoError(t, s.SaveBlob(ctx, hash[:], data))

		got, err := s.LoadBlob(ctx, hash[:])
		require.NoError(t, err)
		require.Equal(t, data, got)
	})

	t.Run("independent hashes", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := newStore(t)

		d1 := []byte("game one")
		d2 := []byte("game two")
		h1 := blake3.Sum256(d1)
		h2 := blake3.Sum256(d2)

		require.NoError(t, s.SaveBlob(ctx, h1[:], d1))
		require.NoError(t, s.SaveBlob(ctx, h2[:], d2))

		got, err := s.LoadBlob(ctx, h1[:])
		require.NoError(t, err)
		require.Equal(t, d1, got)

		got, err = s.LoadBlob(ctx, h2[:])
		require.NoError(t, err)
		require.Equal(t, d2, got)
	})
}
