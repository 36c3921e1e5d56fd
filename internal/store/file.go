package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// FileStore keeps the document in one JSON file. Hand edits with comments or
// trailing commas still load; saves rewrite plain JSON.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: filepath.Clean(path)}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (AppDocument, error) {
	if err := ctx.Err(); err != nil {
		return AppDocument{}, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return AppDocument{}, unavailable("%s does not exist", s.path)
		}
		return AppDocument{}, readFailed("read %s: %v", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewDocument(), nil
	}
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return AppDocument{}, fmt.Errorf("%w: %s: %v", ErrCorruptDocument, s.path, err)
	}
	return Decode(standardized)
}

func (s *FileStore) Save(ctx context.Context, doc AppDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := Encode(doc)
	if err != nil {
		return writeFailed("%v", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return writeFailed("create data dir: %v", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(payload)); err != nil {
		return writeFailed("write %s: %v", s.path, err)
	}
	return nil
}
