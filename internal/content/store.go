// Package content persists extracted image bytes on the local file system.
package content

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Store writes image files under a single directory.
type Store struct {
	dir string
}

// NewStore creates the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create content dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory images are written to.
func (s *Store) Dir() string { return s.dir }

// ImageName returns "{document}_p{page}_img{index}", the base name of an
// image file.
func ImageName(document string, page, index int) string {
	return fmt.Sprintf("%s_p%d_img%d", document, page, index)
}

// Save writes data as {ImageName}.{ext} and returns the file path.
// An existing file with the same name is overwritten.
func (s *Store) Save(document string, page, index int, ext string, data []byte) (string, error) {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "bin"
	}
	path := filepath.Join(s.dir, ImageName(document, page, index)+"."+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image %s: %w", path, err)
	}
	return path, nil
}

// Load reads a previously saved file.
func (s *Store) Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return data, nil
}

// DataURI returns the file inlined as a base64 data URI.
func (s *Store) DataURI(path string) (string, error) {
	data, err := s.Load(path)
	if err != nil {
		return "", err
	}
	mediaType := mime.TypeByExtension(filepath.Ext(path))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
