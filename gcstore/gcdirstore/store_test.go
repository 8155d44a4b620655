package gcdirstore_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/goban-engine/goban/gcstore"
	"github.com/goban-engine/goban/gcstore/gcdirstore"
	"github.com/goban-engine/goban/gcstore/gcstoretest"
	"github.com/goban-engine/goban/internal/gtest"
	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"
)

func TestDirStore_Compliance(t *testing.T) {
	gcstoretest.TestArchiveStoreCompliance(t, func(t *testing.T) gcstore.ArchiveStore {
		s, err := gcdirstore.NewStore(gtest.NewLogger(t), t.TempDir(), gcdirstore.DefaultMaxFiles)
		require.NoError(t, err)
		return s
	})
}

func TestDirStore_rotationMovesOldestQuarter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	s, err := gcdirstore.NewStore(gtest.NewLogger(t), dir, 8)
	require.NoError(t, err)

	hashes := make([][32]byte, 9)
	for i := range hashes {
		data := []byte(fmt.Sprintf("game %d", i))
		hashes[i] = blake3.Sum256(data)
		require.NoError(t, s.SaveBlob(ctx, hashes[i][:], data))
	}

	// 9 live files exceeded the limit of 8,
	// so the oldest quarter (9/4 = 2) must have been rotated out.
	require.Equal(t, 7, s.LiveCount())

	archived, err := os.ReadDir(filepath.Join(dir, "archive"))
	require.NoError(t, err)
	require.Len(t, archived, 2)

	// The two earliest saves are the ones rotated,
	// and they must still be loadable.
	for i, h := range hashes {
		data, err := s.LoadBlob(ctx, h[:])
		require.NoError(t, err)
		require.Equal(t, []byte(fmt.Sprintf("game %d", i)), data)
	}
}

func TestDirStore_reopenPreservesBlobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	s, err := gcdirstore.NewStore(gtest.NewLogger(t), dir, gcdirstore.DefaultMaxFiles)
	require.NoError(t, err)

	data := []byte("persisted across restarts")
	hash := blake3.Sum256(data)
	require.NoError(t, s.SaveBlob(ctx, hash[:], data))

	reopened, err := gcdirstore.NewStore(gtest.NewLogger(t), dir, gcdirstore.DefaultMaxFiles)
	require.NoError(t, err)
	require.Equal(t, 1, reopened.LiveCount())

	got, err := reopened.LoadBlob(ctx, hash[:])
	require.NoError(t, err)
	require.Equal(t, data, got)
}
