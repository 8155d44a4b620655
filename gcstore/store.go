package gcstore

import (
	"context"
	"encoding/hex"
)

// ArchiveStore persists finished games as content-addressed blobs.
//
// The hash key is the 32-byte chain tip hash of the finished game,
// so two peers archiving the same game produce the same key.
type ArchiveStore interface {
	// SaveBlob stores data under hash.
	// Saving the same hash again overwrites with identical content,
	// which is a no-op for a content-addressed key.
	SaveBlob(ctx context.Context, hash []byte, data []byte) error

	// LoadBlob returns the data stored under hash.
	// An unknown hash is reported with [UnknownBlobError].
	LoadBlob(ctx context.Context, hash []byte) ([]byte, error)
}

// UnknownBlobError indicates a load for a hash that was never saved.
type UnknownBlobError struct {
	Hash []byte
}

func (e UnknownBlobError) Error() string {
	return "no archived blob with hash " + hex.EncodeToString(e.Hash)
}
