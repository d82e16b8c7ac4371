package kv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// FileStore keeps one file per key under Dir. Writes go to a temp file in the
// same directory and are renamed over the target, so a reader never sees a
// half-written blob.
type FileStore struct {
	Dir      string
	ReadOnly bool
}

func NewFileStore(dir string, readOnly bool) (*FileStore, error) {
	dir = filepath.Clean(strings.TrimSpace(dir))
	if dir == "" || dir == "." {
		return nil, errors.New("kv: file backend requires a directory")
	}
	if !readOnly {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("kv file mkdir %q: %w", dir, err)
		}
	}
	return &FileStore{Dir: dir, ReadOnly: readOnly}, nil
}

var plainKeyRE = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// fileName maps a key to a file name inside Dir. Keys such as
// "@frameio_comments" keep a readable name; anything else is encoded.
func fileName(key string) (string, error) {
	if key == "" {
		return "", errors.New("kv: empty key")
	}
	name := strings.TrimPrefix(key, "@")
	if plainKeyRE.MatchString(name) && !strings.HasPrefix(name, ".") {
		return name + ".json", nil
	}
	return "k_" + base64.RawURLEncoding.EncodeToString([]byte(key)) + ".json", nil
}

func (s *FileStore) path(key string) (string, error) {
	name, err := fileName(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, name), nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("kv file get %q: %w", key, err)
	}
	return b, true, nil
}

func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := fileName(key)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.Dir, name, value); err != nil {
		return fmt.Errorf("kv file set %q: %w", key, err)
	}
	return nil
}

func (s *FileStore) Remove(_ context.Context, key string) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("kv file remove %q: %w", key, err)
	}
	return nil
}

func writeFileAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return err
	}

	// Directory fsync is best-effort; semantics differ across platforms.
	_ = syncDir(dir)
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
