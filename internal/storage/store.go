// Package storage is the blob store behind unsigned and signed contracts.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the requested key does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrExists is returned by an if-absent Put when the key is already taken.
	ErrExists = errors.New("object already exists")
)

// PutOptions modify a single write.
type PutOptions struct {
	IfAbsent    bool
	ContentType string
}

// ObjectInfo is one entry returned by List.
type ObjectInfo struct {
	Key     string
	Size    int64
	Updated time.Time
}

// Store is a flat key/value blob store. Keys use forward slashes; the segment
// before the first slash acts as a directory.
type Store interface {
	Put(ctx context.Context, key string, data []byte, opts PutOptions) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// List returns every object whose key starts with prefix. A prefix with
	// no objects yields an empty slice and no error.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// URL returns a link the applicant can open to download key.
	URL(ctx context.Context, key string) (string, error)
}
