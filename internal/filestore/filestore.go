// Package filestore keeps evidence payloads on local disk.
package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"resolvex/backend/internal/apperr"
	"resolvex/backend/internal/models"

	"github.com/gabriel-vasile/mimetype"
)

// Allowed lists the accepted content types, detected from file content
// rather than trusted from the client.
var Allowed = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// Saved describes a stored payload.
type Saved struct {
	StoredName  string
	ContentType string
	Size        int64
}

type Store struct {
	dir      string
	maxBytes int64
}

// New creates dir if needed. maxBytes bounds every payload.
func New(dir string, maxBytes int64) (*Store, error) {
	if maxBytes <= 0 {
		return nil, errors.New("filestore: max size must be positive")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("filestore: create %s: %w", dir, err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// MaxBytes is the configured payload limit.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save validates and writes the payload. Oversized, empty or disallowed
// payloads are rejected with a validation error before anything touches
// the disk.
func (s *Store) Save(ctx context.Context, r io.Reader) (Saved, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return Saved{}, apperr.Internal("read upload", err)
	}
	if n == 0 {
		return Saved{}, apperr.Validation("file is empty")
	}
	if n > s.maxBytes {
		return Saved{}, apperr.Validationf("file size exceeds %d MB", s.maxBytes>>20)
	}
	if err := ctx.Err(); err != nil {
		return Saved{}, err
	}

	mt := mimetype.Detect(buf.Bytes())
	ct := baseType(mt.String())
	if !Allowed[ct] {
		return Saved{}, apperr.Validationf("file type %s is not allowed, use JPG, PNG, GIF, WebP or PDF", ct)
	}

	name := models.NewStoredName(mt.Extension())
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return Saved{}, apperr.Internal("create upload", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return Saved{}, apperr.Internal("write upload", err)
	}
	if err := tmp.Close(); err != nil {
		return Saved{}, apperr.Internal("write upload", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return Saved{}, apperr.Internal("store upload", err)
	}
	return Saved{StoredName: name, ContentType: ct, Size: n}, nil
}

// Open returns the payload stored under name.
func (s *Store) Open(name string) (*os.File, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, apperr.NotFound("file not found")
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.NotFound("file not found")
	}
	if err != nil {
		return nil, apperr.Internal("open file", err)
	}
	return f, nil
}

// Remove deletes a stored payload, used to roll back when the metadata
// insert fails.
func (s *Store) Remove(name string) error {
	if name == "" || name != filepath.Base(name) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func baseType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}
