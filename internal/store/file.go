package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tverenko/flowboard/internal/model"
)

// FileStore persists the collection as a single pretty-printed JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save writes the collection keyed by task id. The write goes through a temp
// file and rename so a crash mid-write never truncates the previous snapshot.
func (s *FileStore) Save(_ context.Context, tasks []model.Task) error {
	byID := make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	data, err := json.MarshalIndent(byID, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal board: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create board dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write board snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace board snapshot: %w", err)
	}
	return nil
}

// Load reads the collection back. A missing file is an empty board, not an
// error.
func (s *FileStore) Load(_ context.Context) ([]model.Task, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read board snapshot: %w", err)
	}
	var byID map[string]model.Task
	if err := json.Unmarshal(data, &byID); err != nil {
		return nil, fmt.Errorf("parse board snapshot: %w", err)
	}
	out := make([]model.Task, 0, len(byID))
	for _, t := range byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
