// Package storage keeps uploaded work order attachments on the local filesystem
package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// LocalStore stores files under a root directory and serves them under a URL prefix
type LocalStore struct {
	root   string
	prefix string
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(dir, publicPrefix string) (*LocalStore, error) {
	root := filepath.Clean(dir)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{root: root, prefix: strings.TrimRight(publicPrefix, "/")}, nil
}

// Root returns the directory files are stored in
func (s *LocalStore) Root() string {
	return s.root
}

// AttachmentKey builds a unique storage key for a work order upload
func AttachmentKey(workOrderID, fileName string) string {
	name := unsafeChars.ReplaceAllString(filepath.Base(fileName), "_")
	if name == "" || name == "." || name == "_" {
		name = "file"
	}
	return path.Join("work-orders", workOrderID, uuid.NewString()[:8]+"-"+name)
}

func (s *LocalStore) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// Save writes r to key and returns the number of bytes written
func (s *LocalStore) Save(key string, r io.Reader) (int64, error) {
	full, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return 0, fmt.Errorf("failed to create attachment directory: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return 0, fmt.Errorf("failed to create attachment file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(full)
		return 0, fmt.Errorf("failed to write attachment file: %w", err)
	}
	return n, nil
}

// Open opens a stored file for reading
func (s *LocalStore) Open(key string) (io.ReadCloser, error) {
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Delete removes a stored file. Missing files are not an error.
func (s *LocalStore) Delete(key string) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete attachment file: %w", err)
	}
	return nil
}

// URL returns the public URL path of a stored file
func (s *LocalStore) URL(key string) string {
	return s.prefix + "/" + strings.TrimLeft(filepath.ToSlash(key), "/")
}
