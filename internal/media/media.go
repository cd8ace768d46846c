// Package media checks user-selected images and uploads them to the CDN.
package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	// Decoders the upload preset accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultMaxBytes is the upload ceiling when none is configured.
const DefaultMaxBytes int64 = 5 << 20

// Problem classifies a rejected selection.
type Problem int

const (
	Empty Problem = iota + 1
	TooLarge
	NotImage
)

// SelectionError explains why a file cannot be attached.
type SelectionError struct {
	Name    string
	Problem Problem
	Size    int64
	Limit   int64
	Err     error
}

func (e *SelectionError) Error() string {
	switch e.Problem {
	case Empty:
		return fmt.Sprintf("%s: file is empty", e.Name)
	case TooLarge:
		return fmt.Sprintf("%s: %d bytes exceeds limit of %d", e.Name, e.Size, e.Limit)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: not an image: %v", e.Name, e.Err)
		}
		return fmt.Sprintf("%s: not an image", e.Name)
	}
}

func (e *SelectionError) Unwrap() error { return e.Err }

// AsSelection returns the SelectionError in err's chain, if any.
func AsSelection(err error) (*SelectionError, bool) {
	var se *SelectionError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Selection is an accepted image held in memory until upload.
type Selection struct {
	Name        string
	ContentType string
	Format      string
	Width       int
	Height      int
	Data        []byte
}

// Size returns the byte length of the image.
func (s *Selection) Size() int64 { return int64(len(s.Data)) }

// PreviewDataURI renders the selection as a data URI for local preview.
func (s *Selection) PreviewDataURI() string {
	return PreviewDataURI(s.ContentType, s.Data)
}

// Validate accepts data as an image no larger than maxBytes. maxBytes <= 0
// uses DefaultMaxBytes.
func Validate(name string, data []byte, maxBytes int64) (*Selection, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	size := int64(len(data))
	if size == 0 {
		return nil, &SelectionError{Name: name, Problem: Empty}
	}
	if size > maxBytes {
		return nil, &SelectionError{Name: name, Problem: TooLarge, Size: size, Limit: maxBytes}
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, &SelectionError{Name: name, Problem: NotImage, Size: size, Limit: maxBytes}
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &SelectionError{Name: name, Problem: NotImage, Size: size, Limit: maxBytes, Err: err}
	}

	return &Selection{
		Name:        filepath.Base(name),
		ContentType: contentType,
		Format:      format,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Data:        data,
	}, nil
}

// LoadFile reads and validates the image at path. Oversized files are
// rejected from their stat size before being read.
func LoadFile(path string, maxBytes int64) (*Selection, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	if info.IsDir() {
		return nil, &SelectionError{Name: path, Problem: NotImage}
	}
	if info.Size() > maxBytes {
		return nil, &SelectionError{Name: path, Problem: TooLarge, Size: info.Size(), Limit: maxBytes}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return Validate(path, data, maxBytes)
}

// PreviewDataURI encodes data as a base64 data URI.
func PreviewDataURI(contentType string, data []byte) string {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
