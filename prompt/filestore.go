package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type fileStore struct {
	root        string
	defaultPath string
	mu          sync.Mutex
}

// NewFileStore creates a Store with one JSON file per identity under root
// plus a single default-prompt file. A relative defaultFile is resolved
// under root. Writes are atomic via a temp file and rename.
func NewFileStore(root, defaultFile string) Store {
	defaultPath := defaultFile
	if !filepath.IsAbs(defaultPath) {
		defaultPath = filepath.Join(root, defaultFile)
	}
	return &fileStore{root: root, defaultPath: defaultPath}
}

func (s *fileStore) Get(_ context.Context, identity string) (Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(s.path(identity), identity)
}

func (s *fileStore) Set(_ context.Context, identity string, p Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(s.path(identity), identity, p)
}

func (s *fileStore) Delete(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(identity)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, identity, err)
	}
	return nil
}

func (s *fileStore) Default(_ context.Context) (Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(s.defaultPath, "default")
}

// SetDefault installs the process-wide default prompt. Used by explicit
// loads only; there is no implicit refresh.
func (s *fileStore) SetDefault(_ context.Context, p Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(s.defaultPath, "default", p)
}

func (s *fileStore) path(identity string) string {
	return filepath.Join(s.root, identity+".json")
}

func (s *fileStore) read(path, key string) (Prompt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Prompt{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return Prompt{}, fmt.Errorf("read prompt %s: %w", key, err)
	}

	var p Prompt
	if err := json.Unmarshal(data, &p); err != nil {
		return Prompt{}, fmt.Errorf("parse prompt %s: %w", key, err)
	}
	return p, nil
}

func (s *fileStore) write(path, key string, p Prompt) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}

	return nil
}
