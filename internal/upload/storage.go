// Package upload stores lab submission artifacts on the local filesystem.
package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Storage writes uploaded artifacts under a base directory. Files are
// named by a generated id so two students uploading "report.pdf" never
// collide; the original name survives as a suffix for admins browsing
// the directory.
type Storage struct {
	baseDir string
}

// NewStorage creates the base directory if needed.
func NewStorage(baseDir string) (*Storage, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Storage{baseDir: baseDir}, nil
}

// Save writes the artifact and returns its path relative to the base
// directory, which becomes the submission's artifact reference.
func (s *Storage) Save(filename string, r io.Reader) (string, error) {
	name := uuid.NewString()
	if base := sanitizeName(filename); base != "" {
		name += "_" + base
	}
	dst := filepath.Join(s.baseDir, name)

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create artifact file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return name, nil
}

// Open returns a reader for a previously saved artifact.
func (s *Storage) Open(ref string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.baseDir, filepath.Base(ref)))
}

// sanitizeName strips any path components from a client-supplied filename.
func sanitizeName(filename string) string {
	base := filepath.Base(filepath.Clean(filename))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return base
}
