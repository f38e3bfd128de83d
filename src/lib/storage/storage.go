// Package storage keeps rendered ticket documents, addressed by key.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	awslib "ticketing/src/lib/aws"
	"time"
)

var ErrNotFound = errors.New("object not found")

type ObjectStore interface {
	// Put overwrites any object already stored under key.
	Put(ctx context.Context, key, contentType string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// LocalStore writes objects below a directory on the local filesystem.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(key, "..") || clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStore) Put(ctx context.Context, key, _ string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	// Write to a sibling file first so readers never see a partial document.
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

// S3Store keeps objects in an S3 bucket.
type S3Store struct {
	bucket *awslib.S3Bucket
}

func NewS3Store(bucket *awslib.S3Bucket) *S3Store {
	return &S3Store{bucket: bucket}
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body []byte) error {
	return s.bucket.Put(ctx, key, contentType, body)
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.bucket.Get(ctx, key)
	if errors.Is(err, awslib.ErrNoSuchKey) {
		return nil, ErrNotFound
	}
	return b, err
}

// WithTimeout bounds every call on store by d.
func WithTimeout(store ObjectStore, d time.Duration) ObjectStore {
	if d <= 0 {
		return store
	}
	return &timeoutStore{inner: store, d: d}
}

type timeoutStore struct {
	inner ObjectStore
	d     time.Duration
}

func (s *timeoutStore) Put(ctx context.Context, key, contentType string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return s.inner.Put(ctx, key, contentType, body)
}

func (s *timeoutStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return s.inner.Get(ctx, key)
}

// Linker hands out temporary download URLs for stored objects.
type Linker interface {
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func (s *S3Store) URL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return s.bucket.PresignGet(ctx, key, ttl)
}
