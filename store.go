package main

// SPDX-License-Identifier: GPL-3.0-only

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// Directory permissions when creating the store directory.
	storeDirPermissions = 0750

	// Safe filenames are truncated to this many runes.
	maxFilenameLength = 100
)

var (
	ErrInvalidFilePath = errors.New("invalid file path")

	// Regex matching characters that are unsafe in filenames on at least
	// one supported platform.
	unsafeFilenameRegexp = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// Store persists one JSON file per comic under a single directory.  The
// file name is derived from the comic's title; the identity URL lives inside
// the file, which is why LoadAll has to read every file to build its index.
type Store struct {
	logger *slog.Logger
	dir    string
}

// NewStore creates a Store rooted at the given directory.  The directory is
// created lazily on the first Save.
//
// Parameters:
//   - logger: Logger instance
//   - dir: Directory holding the per-comic JSON files
//
// Returns:
//   - *Store: A new Store ready for use
func NewStore(logger *slog.Logger, dir string) *Store {
	return &Store{logger: logger, dir: dir}
}

// LoadAll scans the store directory and returns every readable comic record
// indexed by its identity URL.  Files that cannot be parsed, or whose stored
// record has no URL, are skipped with a warning; they never abort the scan.
// A missing store directory is an empty store, not an error.
//
// Returns:
//   - map[string]*Comic: Records keyed by identity URL
//   - error: Any error listing the directory
func (s *Store) LoadAll() (map[string]*Comic, error) {
	comics := make(map[string]*Comic)

	files, err := os.ReadDir(s.dir)
	switch {
	case err == nil:
		// continue
	case errors.Is(err, os.ErrNotExist):
		return comics, nil
	default:
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, file.Name())

		//#nosec G304: path is constrained to the store directory
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable store file", "path", path, "error", err)
			continue
		}

		var comic Comic
		if err := json.Unmarshal(data, &comic); err != nil {
			s.logger.Warn("skipping corrupt store file", "path", path, "error", err)
			continue
		}
		if comic.URL == "" {
			s.logger.Warn("skipping store file without identity URL", "path", path)
			continue
		}

		comics[comic.URL] = &comic
	}

	return comics, nil
}

// Save writes the full record to its title-derived file, replacing any
// previous contents.  The write goes to a temp file in the same directory
// which is fsynced and then renamed into place, so an interrupted run can
// leave a stale file but never a half-written one.  Saving the same record
// twice is a harmless overwrite.
//
// Two different titles can normalize to the same safe name; when that
// happens the later save wins.  Known weakness, kept for on-disk
// compatibility.
//
// Parameters:
//   - comic: The record to persist
//
// Returns:
//   - error: Any error encountered creating, writing, or renaming the file
func (s *Store) Save(comic *Comic) error {
	if err := os.MkdirAll(s.dir, storeDirPermissions); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := json.MarshalIndent(comic, "", "  ")
	if err != nil {
		// Comic contains only strings, numbers and slices of those, which
		// always marshal.
		fatalInvariant(err)
	}

	path := filepath.Join(s.dir, SanitizeFilename(comic.Title)+".json")
	// Prevent directory traversal attacks.  SanitizeFilename strips every
	// path separator, so this should never trigger, but check anyway.
	if path != filepath.Clean(path) {
		return fmt.Errorf("%w: %s", ErrInvalidFilePath, path)
	}

	if err := writeFileAtomic(s.dir, path, data); err != nil {
		return err
	}

	s.logger.Info("saved comic", "path", path, "chapters", len(comic.Chapters))
	return nil
}

// writeFileAtomic writes data to path via a temp file in dir: write, fsync,
// close, rename.  Rename within one directory is atomic on POSIX
// filesystems, so readers see either the old complete file or the new one.
func writeFileAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// SanitizeFilename derives a filesystem-safe name from a comic title:
// whitespace is normalized, unsafe characters become underscores, spaces
// become dashes, and the result is length-bounded.
//
// Parameters:
//   - name: The display title
//
// Returns:
//   - string: The safe filename stem (no extension)
func SanitizeFilename(name string) string {
	name = whitespaceRegexp.ReplaceAllString(name, " ")
	name = unsafeFilenameRegexp.ReplaceAllString(name, "_")
	name = strings.Trim(name, ". ")
	name = strings.ReplaceAll(name, " ", "-")

	runes := []rune(name)
	if len(runes) > maxFilenameLength {
		name = string(runes[:maxFilenameLength])
	}
	return name
}
