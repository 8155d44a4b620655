package gcmemstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/goban-engine/goban/gcstore"
)

// Store is an in-memory [gcstore.ArchiveStore],
// suitable for tests and throwaway processes.
type Store struct {
	log *slog.Logger

	mu          sync.Mutex
	blobsByHash map[[32]byte][]byte
}

var _ gcstore.ArchiveStore = (*Store)(nil)

func NewStore(log *slog.Logger) *Store {
	return &Store{
		log: log,

		blobsByHash: make(map[[32]byte][]byte),
	}
}

func (s *Store) SaveBlob(_ context.Context, hash []byte, data []byte) error {
	ha, err := hashKey(hash)
	if err != nil {
		return err
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobsByHash[ha] = cp
	return nil
}

func (s *Store) LoadBlob(_ context.Context, hash []byte) ([]byte, error) {
	ha, err := hashKey(hash)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.blobsByHash[ha]
	if !ok {
		return nil, gcstore.UnknownBlobError{Hash: hash}
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func hashKey(hash []byte) ([32]byte, error) {
	var ha [32]byte
	if len(hash) != len(ha) {
		return ha, fmt.Errorf("invalid hash length (want %d, got %d)", len(ha), len(hash))
	}
	copy(ha[:], hash)
	return ha, nil
}
