package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StoredFile identifies a blob held by the storage collaborator.
type StoredFile struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Store accepts a binary blob and returns a public URL plus an identifier.
// Used for generated lab reports and patient uploads.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) (*StoredFile, error)
	Delete(ctx context.Context, id string) error
}

// fsStore keeps blobs on a mounted volume and serves them under a base URL.
// Swapping in a cloud object store only requires another Store implementation.
type fsStore struct {
	dir     string
	baseURL string
}

func NewFSStore(dir, baseURL string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &fsStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *fsStore) Put(ctx context.Context, name string, r io.Reader) (*StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.New().String() + filepath.Ext(name)
	path := filepath.Join(s.dir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &StoredFile{
		ID:  id,
		URL: s.baseURL + "/" + id,
	}, nil
}

func (s *fsStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, id)); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
