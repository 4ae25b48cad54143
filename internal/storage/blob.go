// Package storage keeps uploaded images and hands back the URL they are
// served from.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cartalks/backend/internal/apperror"
)

// BlobStore turns uploaded bytes into a URL. Callers treat the URL as
// opaque.
type BlobStore interface {
	Upload(ctx context.Context, r io.Reader, filename string) (string, error)
}

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".heic": true,
}

// DiskStore writes blobs under dir and serves them below baseURL.
type DiskStore struct {
	dir      string
	baseURL  string
	maxBytes int64
}

func NewDiskStore(dir, baseURL string, maxBytes int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), maxBytes: maxBytes}, nil
}

// Dir is the directory blobs are written to
func (s *DiskStore) Dir() string {
	return s.dir
}

// Upload stores r under a fresh name that keeps filename's extension.
func (s *DiskStore) Upload(ctx context.Context, r io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", apperror.InvalidArg("unsupported file type")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create blob: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		os.Remove(path)
		return "", apperror.InvalidArg("file too large")
	}

	return s.baseURL + "/" + name, nil
}
