// Package document reads study material into pages of text, word
// geometry and embedded images, and tags each page with a subject.
package document

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrUnsupportedImage  = errors.New("unsupported image encoding")
)

// Word is a positioned token on a page, origin at the top-left corner.
type Word struct {
	X0, Y0, X1, Y1 float64
	Text           string
}

// Image is an embedded picture. Err is set when its bytes could not be
// decoded; the other images on the page are unaffected.
type Image struct {
	Index int // 1-based, in order of first placement on the page
	Ext   string
	Data  []byte
	Box   storage.BoundingBox
	Err   error
}

// Page is the extracted content of one page.
type Page struct {
	Number int
	Text   string
	Words  []Word
	Images []Image
}

// Document is a paged source of study material.
type Document interface {
	// Name is the file name, used in record identifiers.
	Name() string
	NumPages() int
	// Page returns the 1-based page n.
	Page(n int) (*Page, error)
	Close() error
}

// Supported reports whether Open can read the file at path.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".md", ".markdown":
		return true
	}
	return false
}

// Open picks a reader from the file extension.
func Open(path string) (Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return OpenPDF(path)
	case ".md", ".markdown":
		return OpenMarkdown(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}
