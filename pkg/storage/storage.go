package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// maxFilenameBytes keeps names under common filesystem limits with room for
// an extension.
const maxFilenameBytes = 240

type Storage struct{}

// FileStats holds metadata about a file without reading its contents.
type FileStats struct {
	SizeBytes int64
	ModTime   time.Time
}

// EnsureDir creates dir and its parents if missing.
func (s *Storage) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory %s: %w", dir, err)
	}
	return nil
}

// SaveFile writes content to filePath, replacing any existing file.
func (s *Storage) SaveFile(filePath string, content []byte) error {
	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return fmt.Errorf("error saving file: %w", err)
	}
	return nil
}

// AppendFile appends content to filePath, creating it if needed.
func (s *Storage) AppendFile(filePath string, content []byte) error {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("error appending file: %w", err)
	}
	return f.Close()
}

func (s *Storage) ReadFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return data, nil
}

// HasFile reports whether a regular file exists at fn.
func (s *Storage) HasFile(fn string) bool {
	info, err := os.Stat(fn)
	return err == nil && info.Mode().IsRegular()
}

// GetFileStats returns metadata about a file using os.Stat (no I/O overhead).
func (s *Storage) GetFileStats(filePath string) (*FileStats, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("error getting file stats: %w", err)
	}

	return &FileStats{
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}, nil
}

var invalidFilenameChar = regexp.MustCompile(`[/\\:*?"<>|]+`)

var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFilename makes name safe to use as a single path element on common
// filesystems. Letters in any script are kept; separators, reserved
// punctuation and control characters are dropped.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = invalidFilenameChar.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	name = strings.TrimRight(name, ". ")

	for len(name) > maxFilenameBytes {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	name = strings.TrimRight(name, ". ")

	if name == "" || name == "." || name == ".." {
		return "_"
	}
	base := strings.ToUpper(strings.SplitN(name, ".", 2)[0])
	if _, reserved := reservedNames[base]; reserved {
		return "_" + name
	}
	return name
}

// SafePath joins dir with the sanitized name and extension.
func SafePath(dir, name, ext string) string {
	return filepath.Join(dir, SanitizeFilename(name)+ext)
}
