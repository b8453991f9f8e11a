package rag

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// IndexStore persists one RagIndexFile per document under dir, named
// rag_index_<docId>.json. Corrupt or unreadable files are treated as
// "unindexed" by Load rather than surfaced as an error, matching spec.md
// §4.9 ("Corrupt files: load returns none and does not throw").
type IndexStore struct {
	dir string
}

func NewIndexStore(dir string) (*IndexStore, error) {
	if dir == "" {
		return nil, errors.New("index store: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("index store: create dir: %w", err)
	}
	return &IndexStore{dir: dir}, nil
}

func (s *IndexStore) path(docID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("rag_index_%s.json", docID))
}

// Exists reports whether an index file is present for docID.
func (s *IndexStore) Exists(docID string) bool {
	_, err := os.Stat(s.path(docID))
	return err == nil
}

// Remove deletes the index file for docID, if any. Removing a file that
// does not exist is not an error.
func (s *IndexStore) Remove(docID string) error {
	err := os.Remove(s.path(docID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("index store: remove %s: %w", docID, err)
	}
	return nil
}

// Save serializes file to disk. The write goes to a temp file in the same
// directory and is renamed into place, so a failure partway through a write
// leaves the prior file (if any) untouched.
func (s *IndexStore) Save(docID string, file *RagIndexFile) error {
	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("index store: marshal %s: %w", docID, err)
	}

	tmp, err := os.CreateTemp(s.dir, "rag_index_*.tmp")
	if err != nil {
		return fmt.Errorf("index store: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("index store: write %s: %w", docID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("index store: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path(docID)); err != nil {
		return fmt.Errorf("index store: rename into place %s: %w", docID, err)
	}
	return nil
}

// Load reads and deserializes the index file for docID. It returns
// (nil, false) — not an error — if the file is missing, unreadable,
// corrupt, or carries an unsupported version, since the caller's only
// recourse in all of those cases is to treat the document as unindexed.
func (s *IndexStore) Load(docID string) (*RagIndexFile, bool) {
	data, err := os.ReadFile(s.path(docID))
	if err != nil {
		return nil, false
	}

	var file RagIndexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, false
	}
	if file.Version != IndexFileVersion {
		return nil, false
	}
	return &file, true
}
