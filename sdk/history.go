package engage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/meridianfx/engage/pkg/core/transcript"
)

// HistoryStore persists the finalized chat history. Each Save replaces the
// whole serialized history atomically from the store's perspective.
// Implementations must be safe for concurrent use.
type HistoryStore interface {
	Load() ([]transcript.ChatMessage, error)
	Save(messages []transcript.ChatMessage) error
	Clear() error
}

// FileHistoryStore keeps the history as a single JSON array on disk,
// written via a temp file and rename so readers never observe a torn write.
type FileHistoryStore struct {
	path string
	mu   sync.Mutex
}

// NewFileHistoryStore stores history at the given path.
func NewFileHistoryStore(path string) *FileHistoryStore {
	return &FileHistoryStore{path: path}
}

func (s *FileHistoryStore) Load() ([]transcript.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	var messages []transcript.ChatMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return messages, nil
}

func (s *FileHistoryStore) Save(messages []transcript.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if messages == nil {
		messages = []transcript.ChatMessage{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".history-*")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func (s *FileHistoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// MemoryHistoryStore keeps the history in memory. Used in tests and as the
// default when no durable path is configured.
type MemoryHistoryStore struct {
	mu       sync.Mutex
	messages []transcript.ChatMessage
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{}
}

func (s *MemoryHistoryStore) Load() ([]transcript.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]transcript.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (s *MemoryHistoryStore) Save(messages []transcript.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make([]transcript.ChatMessage, len(messages))
	copy(s.messages, messages)
	return nil
}

func (s *MemoryHistoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	return nil
}
