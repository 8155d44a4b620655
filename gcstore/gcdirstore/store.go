package gcdirstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/goban-engine/goban/gcstore"
)

// DefaultMaxFiles is the live-file threshold that triggers rotation.
const DefaultMaxFiles = 2000

// archiveSubdir is where rotated-out files land, relative to the store root.
const archiveSubdir = "archive"

const blobExt = ".cbor"

// Store is a directory-backed [gcstore.ArchiveStore].
//
// Each blob is one file named by its hex hash. When the live file
// count exceeds the configured maximum, the oldest quarter of the
// files are moved into an archive/ subdirectory rather than deleted.
// Loads fall back to the archive subdirectory, so rotation never
// loses data.
type Store struct {
	log *slog.Logger

	dir        string
	archiveDir string

	maxFiles int

	mu sync.Mutex
	// Filenames of live blobs in save order, oldest first.
	// Rebuilt from file modification times on startup.
	order []string
}

var _ gcstore.ArchiveStore = (*Store)(nil)

// NewStore opens (creating if necessary) a store rooted at dir.
// Pass [DefaultMaxFiles] as maxFiles outside of tests.
func NewStore(log *slog.Logger, dir string, maxFiles int) (*Store, error) {
	if maxFiles < 1 {
		return nil, fmt.Errorf("maxFiles must be positive (got %d)", maxFiles)
	}

	archiveDir := filepath.Join(dir, archiveSubdir)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directories: %w", err)
	}

	order, err := scanLiveBlobs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan existing blobs: %w", err)
	}

	return &Store{
		log: log,

		dir:        dir,
		archiveDir: archiveDir,

		maxFiles: maxFiles,

		order: order,
	}, nil
}

// scanLiveBlobs lists blob files directly under dir,
// oldest modification time first, ties broken by name.
func scanLiveBlobs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	type aged struct {
		name string
		mod  int64
	}
	var found []aged
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), blobExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		found = append(found, aged{name: e.Name(), mod: info.ModTime().UnixNano()})
	}

	slices.SortFunc(found, func(a, b aged) int {
		if a.mod != b.mod {
			if a.mod < b.mod {
				return -1
			}
			return 1
		}
		return strings.Compare(a.name, b.name)
	})

	names := make([]string, len(found))
	for i, f := range found {
		names[i] = f.name
	}
	return names, nil
}

func (s *Store) SaveBlob(_ context.Context, hash []byte, data []byte) error {
	name, err := blobFilename(hash)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write-then-rename so a crash mid-write never leaves
	// a torn blob under a valid name.
	dst := filepath.Join(s.dir, name)
	tmp := filepath.Join(s.dir, ".tmp_"+name)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("failed to finalize blob: %w", err)
	}

	if !slices.Contains(s.order, name) {
		s.order = append(s.order, name)
	}

	return s.rotateLocked()
}

// rotateLocked moves the oldest quarter of live files into the
// archive subdirectory once the live count exceeds the maximum.
func (s *Store) rotateLocked() error {
	if len(s.order) <= s.maxFiles {
		return nil
	}

	n := len(s.order) / 4
	if n == 0 {
		n = 1
	}

	for _, name := range s.order[:n] {
		src := filepath.Join(s.dir, name)
		dst := filepath.Join(s.archiveDir, name)
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("failed to rotate blob %s: %w", name, err)
		}
	}

	s.log.Info("Rotated oldest blobs into archive", "moved", n, "remaining", len(s.order)-n)
	s.order = slices.Delete(s.order, 0, n)
	return nil
}

func (s *Store) LoadBlob(_ context.Context, hash []byte) ([]byte, error) {
	name, err := blobFilename(hash)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	// Rotated-out blobs are still readable from the archive.
	data, err = os.ReadFile(filepath.Join(s.archiveDir, name))
	if err == nil {
		return data, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, gcstore.UnknownBlobError{Hash: hash}
	}
	return nil, fmt.Errorf("failed to read archived blob: %w", err)
}

// LiveCount reports how many blobs have not been rotated out.
func (s *Store) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func blobFilename(hash []byte) (string, error) {
	if len(hash) != 32 {
		return "", fmt.Errorf("invalid hash length (want 32, got %d)", len(hash))
	}
	return hex.EncodeToString(hash) + blobExt, nil
}
