package gcsqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/goban-engine/goban/gcstore"
	"github.com/goban-engine/goban/gcstore/gcsqlitestore"
	"github.com/goban-engine/goban/gcstore/gcstoretest"
	"github.com/goban-engine/goban/internal/gtest"
	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"
)

func TestSqliteStore_InMem_Compliance(t *testing.T) {
	t.Parallel()

	gcstoretest.TestArchiveStoreCompliance(t, func(t *testing.T) gcstore.ArchiveStore {
		s, err := gcsqlitestore.NewInMemStore(context.Background(), gtest.NewLogger(t))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSqliteStore_OnDisk_Compliance(t *testing.T) {
	t.Parallel()

	gcstoretest.TestArchiveStoreCompliance(t, func(t *testing.T) gcstore.ArchiveStore {
		s, err := gcsqlitestore.NewOnDiskStore(
			context.Background(),
			gtest.NewLogger(t),
			filepath.Join(t.TempDir(), "archive.sqlite"),
		)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSqliteStore_reopenPreservesBlobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "archive.sqlite")

	data := []byte("finished game")
	hash := blake3.Sum256(data)

	s, err := gcsqlitestore.NewOnDiskStore(ctx, gtest.NewLogger(t), dbPath)
	require.NoError(t, err)
	require.NoError(t, s.SaveBlob(ctx, hash[:], data))
	require.NoError(t, s.Close())

	s, err = gcsqlitestore.NewOnDiskStore(ctx, gtest.NewLogger(t), dbPath)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.LoadBlob(ctx, hash[:])
	require.NoError(t, err)
	require.Equal(t, data, got)
}
