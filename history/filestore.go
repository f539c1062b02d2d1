package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/tailored-agentic-units/gateway/core/chat"
)

type fileStore struct {
	root string

	mu   sync.Mutex
	logs map[string][]chat.Turn // loaded identities; presence means loaded
}

// NewFileStore creates a Store that persists one JSON file per identity
// under root. Files are read lazily on first access and written atomically
// via a temp file and rename. Memory stays authoritative: a failed write
// surfaces ErrSaveFailed without rolling back the in-memory log.
func NewFileStore(root string) Store {
	return &fileStore{
		root: root,
		logs: make(map[string][]chat.Turn),
	}
}

func (s *fileStore) Turns(_ context.Context, identity string) ([]chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, err := s.loadLocked(identity)
	if err != nil {
		return nil, err
	}
	return slices.Clone(turns), nil
}

func (s *fileStore) Append(_ context.Context, identity string, turn chat.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, err := s.loadLocked(identity)
	if err != nil {
		return err
	}

	if n := len(turns); n > 0 && turns[n-1].Same(turn) {
		return nil
	}

	turns = append(turns, turn)
	s.logs[identity] = turns

	return s.persistLocked(identity, turns)
}

func (s *fileStore) Clear(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.logs, identity)

	if err := os.Remove(s.path(identity)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, identity, err)
	}
	return nil
}

func (s *fileStore) path(identity string) string {
	return filepath.Join(s.root, identity+".json")
}

func (s *fileStore) loadLocked(identity string) ([]chat.Turn, error) {
	if turns, loaded := s.logs[identity]; loaded {
		return turns, nil
	}

	data, err := os.ReadFile(s.path(identity))
	if err != nil {
		if os.IsNotExist(err) {
			s.logs[identity] = nil
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, identity, err)
	}

	var turns []chat.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, identity, err)
	}

	s.logs[identity] = turns
	return turns, nil
}

func (s *fileStore) persistLocked(identity string, turns []chat.Turn) error {
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, identity, err)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, identity, err)
	}

	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, identity, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, identity, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, identity, err)
	}

	if err := os.Rename(tmpName, s.path(identity)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, identity, err)
	}

	return nil
}
