package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileStore keeps each document as <dir>/<identifier>.json with its Meta in
// a sibling .meta.json file. Writes go through a temp file and a rename.
//
// The data file is authoritative. A meta file that cannot be decoded is
// reported and treated as empty, and the next Save rewrites it.
type FileStore struct {
	dir    string
	now    func() time.Time
	logger Logger
}

// Logger receives recoverable backend problems.
type Logger interface {
	Warn(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...any) {}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

func WithFileLogger(logger Logger) FileStoreOption {
	return func(s *FileStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFileStore creates dir when missing.
func NewFileStore(dir string, opts ...FileStoreOption) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("state: file store directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("state: create %s: %w", dir, err)
	}
	s := &FileStore{dir: dir, now: time.Now, logger: nopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) paths(ref Ref) (string, string, error) {
	key, err := ref.Identifier()
	if err != nil {
		return "", "", err
	}
	base := filepath.Join(s.dir, filepath.FromSlash(key))
	return base + ".json", base + ".meta.json", nil
}

func (s *FileStore) Load(ctx context.Context, ref Ref) ([]byte, Meta, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, Meta{}, false, err
	}
	dataPath, metaPath, err := s.paths(ref)
	if err != nil {
		return nil, Meta{}, false, err
	}
	data, err := os.ReadFile(dataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Meta{}, false, nil
	}
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: read %s: %w", dataPath, err)
	}
	return data, s.readMeta(metaPath), true, nil
}

func (s *FileStore) Save(ctx context.Context, ref Ref, data []byte, meta Meta) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	dataPath, metaPath, err := s.paths(ref)
	if err != nil {
		return Meta{}, err
	}
	existing := s.readMeta(metaPath)
	if err := CheckETag(meta.ETag, existing.ETag); err != nil {
		return Meta{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o700); err != nil {
		return Meta{}, fmt.Errorf("state: create %s: %w", filepath.Dir(dataPath), err)
	}

	saved := Stamp(meta, data, s.now())
	encoded, err := json.Marshal(saved)
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode meta: %w", err)
	}
	if err := writeAtomic(dataPath, data); err != nil {
		return Meta{}, err
	}
	if err := writeAtomic(metaPath, encoded); err != nil {
		return Meta{}, err
	}
	return cloneMeta(saved), nil
}

func (s *FileStore) Delete(ctx context.Context, ref Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dataPath, metaPath, err := s.paths(ref)
	if err != nil {
		return err
	}
	for _, path := range []string{dataPath, metaPath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("state: remove %s: %w", path, err)
		}
	}
	return nil
}

// readMeta never fails: a missing or unreadable meta file yields Meta{}.
func (s *FileStore) readMeta(path string) Meta {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Meta{}
	}
	if err != nil {
		s.logger.Warn("meta file unreadable, ignoring", "path", path, "error", err)
		return Meta{}
	}
	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		s.logger.Warn("meta file corrupt, ignoring", "path", path, "error", err)
		return Meta{}
	}
	return meta
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("state: write %s: %w", path, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("state: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("state: write %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("state: write %s: %w", path, err)
	}
	return nil
}
