package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/dtnitsch/tululu-parser/models"
	"github.com/dtnitsch/tululu-parser/pkg/storage"
)

// Marshal encodes entries as an indented JSON array. A nil slice encodes as
// an empty array.
func Marshal(entries []models.ManifestEntry) ([]byte, error) {
	if entries == nil {
		entries = []models.ManifestEntry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("error marshalling manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Read loads a manifest file. A missing file is an empty manifest.
func Read(path string, s *storage.Storage) ([]models.ManifestEntry, error) {
	data, err := s.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var entries []models.ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("existing manifest %s is not a JSON array: %w", path, err)
	}
	return entries, nil
}

// Write stores entries at path. The file is written once, after all books
// have been processed.
func Write(path string, entries []models.ManifestEntry, mode models.ManifestMode, s *storage.Storage) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := s.EnsureDir(dir); err != nil {
			return err
		}
	}

	switch mode {
	case models.ManifestMerge:
		existing, err := Read(path, s)
		if err != nil {
			return err
		}
		data, err := Marshal(append(existing, entries...))
		if err != nil {
			return err
		}
		return s.SaveFile(path, data)

	case models.ManifestAppend:
		data, err := Marshal(entries)
		if err != nil {
			return err
		}
		return s.AppendFile(path, data)

	default:
		data, err := Marshal(entries)
		if err != nil {
			return err
		}
		return s.SaveFile(path, data)
	}
}
