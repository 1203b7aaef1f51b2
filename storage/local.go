package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore writes attachments below a directory served as static files.
type LocalStore struct {
	dir          string
	publicPrefix string
}

func NewLocalStore(dir, publicPrefix string) (*LocalStore, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalStore{dir: dir, publicPrefix: "/" + strings.Trim(publicPrefix, "/")}, nil
}

// Dir is the filesystem root of stored objects.
func (s *LocalStore) Dir() string { return s.dir }

// PublicPrefix is the URL path the directory is served under.
func (s *LocalStore) PublicPrefix() string { return s.publicPrefix }

func (s *LocalStore) Save(ctx context.Context, obj Object) (Stored, error) {
	key := objectKey(obj.Name, time.Now())
	dst := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Stored{}, err
	}

	out, err := os.Create(dst)
	if err != nil {
		return Stored{}, err
	}
	if _, err := io.Copy(out, obj.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return Stored{}, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return Stored{}, err
	}

	return Stored{Key: key, URL: path.Join(s.publicPrefix, key)}, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return fmt.Errorf("invalid storage key %q", key)
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(clean)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
