package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"reelforge/internal/logging"
	"reelforge/internal/services"
)

// Store is a content-addressable artifact cache over a shared directory.
// Writes are idempotent per content hash and safe under concurrent Put calls
// from multiple goroutines or processes.
type Store struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// PutOptions carries metadata persisted alongside the payload.
type PutOptions struct {
	Kind   Kind
	Ext    string
	Width  int
	Height int
}

// Stats describes current store usage.
type Stats struct {
	Entries    int     `json:"entries"`
	TotalBytes int64   `json:"total_bytes"`
	FreeBytes  uint64  `json:"free_bytes"`
	FreeRatio  float64 `json:"free_ratio"`
}

// NewStore opens (creating if necessary) an artifact store rooted at dir.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "artifact-store", "open", "store directory is empty", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrStorage, "artifact-store", "open", "create store directory", err)
	}
	return &Store{
		root:   dir,
		logger: logging.NewComponentLogger(logger, "artifact-store"),
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// Put persists a payload under its content hash. A payload already present is
// a cache hit: the existing record is returned unchanged and nothing is
// rewritten. Only storage I/O can fail.
func (s *Store) Put(ctx context.Context, payload []byte, opts PutOptions) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, services.Wrap(services.ErrStorage, "artifact-store", "put", "context done", err)
	}
	id := HashPayload(payload)

	unlock := s.lockID(id)
	defer unlock()

	fileLock := flock.New(s.lockPath(id))
	if err := fileLock.Lock(); err != nil {
		return Artifact{}, services.Wrap(services.ErrStorage, "artifact-store", "put", "acquire write lock", err)
	}
	defer func() {
		_ = fileLock.Unlock()
	}()

	if existing, err := s.loadMetadata(id); err == nil {
		return existing, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Artifact{}, services.Wrap(services.ErrStorage, "artifact-store", "put", "read existing metadata", err)
	}

	ext := normalizeExt(opts.Ext)
	record := Artifact{
		ID:        id,
		Kind:      opts.Kind,
		Bytes:     int64(len(payload)),
		Width:     opts.Width,
		Height:    opts.Height,
		Ext:       ext,
		Path:      filepath.Join(s.root, id+"."+ext),
		CreatedAt: time.Now().UTC(),
	}

	if err := atomicWrite(record.Path, payload, 0o644); err != nil {
		return Artifact{}, services.Wrap(services.ErrStorage, "artifact-store", "put", "write payload", err)
	}
	if err := s.writeMetadata(record); err != nil {
		return Artifact{}, services.Wrap(services.ErrStorage, "artifact-store", "put", "write metadata", err)
	}

	s.logger.Debug("artifact stored",
		logging.String(logging.FieldArtifactID, id),
		logging.String("kind", string(record.Kind)),
		logging.Int64("bytes", record.Bytes),
	)
	return record, nil
}

// Get returns the record for a stored artifact.
func (s *Store) Get(ctx context.Context, id string) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, services.Wrap(services.ErrStorage, "artifact-store", "get", "context done", err)
	}
	record, err := s.loadMetadata(id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Artifact{}, services.Wrap(services.ErrNotFound, "artifact-store", "get", id, nil)
		}
		return Artifact{}, services.Wrap(services.ErrStorage, "artifact-store", "get", "read metadata", err)
	}
	return record, nil
}

// ResolvePath returns a stable filesystem location for a stored payload,
// valid for the remainder of the run.
func (s *Store) ResolvePath(id string) (string, error) {
	record, err := s.loadMetadata(id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "artifact-store", "resolve", id, nil)
		}
		return "", services.Wrap(services.ErrStorage, "artifact-store", "resolve", "read metadata", err)
	}
	return record.Path, nil
}

// Stats reports entry counts and free-space headroom on the store volume.
func (s *Store) Stats() (Stats, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return Stats{}, services.Wrap(services.ErrStorage, "artifact-store", "stats", "read store directory", err)
	}
	stats := Stats{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, metadataSuffix):
			stats.Entries++
		case strings.HasSuffix(name, lockSuffix):
		default:
			if info, err := entry.Info(); err == nil {
				stats.TotalBytes += info.Size()
			}
		}
	}
	total, free, err := statfs(s.root)
	if err == nil && total > 0 {
		stats.FreeBytes = free
		stats.FreeRatio = float64(free) / float64(total)
	}
	return stats, nil
}

const (
	metadataSuffix = ".json"
	lockSuffix     = ".lock"
)

func (s *Store) lockID(id string) func() {
	s.mu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func (s *Store) metadataPath(id string) string {
	return filepath.Join(s.root, id+metadataSuffix)
}

func (s *Store) lockPath(id string) string {
	return filepath.Join(s.root, id+lockSuffix)
}

func (s *Store) loadMetadata(id string) (Artifact, error) {
	data, err := os.ReadFile(s.metadataPath(id))
	if err != nil {
		return Artifact{}, err
	}
	var record Artifact
	if err := json.Unmarshal(data, &record); err != nil {
		return Artifact{}, fmt.Errorf("decode metadata for %s: %w", id, err)
	}
	return record, nil
}

func (s *Store) writeMetadata(record Artifact) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return atomicWrite(s.metadataPath(record.ID), payload, 0o644)
}

func atomicWrite(target string, payload []byte, perm os.FileMode) error {
	tmp := fmt.Sprintf("%s.tmp-%d", target, time.Now().UnixNano())
	if err := os.WriteFile(tmp, payload, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func normalizeExt(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		return "bin"
	}
	return ext
}
