package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/contractsigning/internal/gcp"
	"google.golang.org/api/iterator"
)

const (
	maxUploadRetries = 4
	initialBackoff   = time.Second
	uploadTimeout    = 50 * time.Second
)

// GCS stores objects in a single Cloud Storage bucket.
type GCS struct {
	bucket       *storage.BucketHandle
	bucketName   string
	signedURLTTL time.Duration
}

var _ Store = (*GCS)(nil)

// NewGCS wraps bucket of client. Download links are V4 signed URLs valid for ttl.
func NewGCS(client *storage.Client, bucket string, ttl time.Duration) *GCS {
	return &GCS{
		bucket:       client.Bucket(bucket),
		bucketName:   bucket,
		signedURLTTL: ttl,
	}
}

// Put uploads data, retrying transient failures with exponential backoff.
// With IfAbsent the write carries a DoesNotExist precondition and a 412 is
// reported as ErrExists without retrying.
func (g *GCS) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	backoff := initialBackoff
	var lastErr error

	for i := 0; i < maxUploadRetries; i++ {
		err := g.write(ctx, key, data, opts)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrExists) {
			return err
		}

		lastErr = err
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", key,
			"attempt", i+1,
			"maxRetries", maxUploadRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", key, "error", ctx.Err())
			return ctx.Err()
		}
	}
	slog.Error("Upload failed after all retries.", "gcsObject", key, "error", lastErr)
	return fmt.Errorf("upload for %s failed after all retries: %w", key, lastErr)
}

func (g *GCS) write(ctx context.Context, key string, data []byte, opts PutOptions) error {
	writeCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	obj := g.bucket.Object(key)
	if opts.IfAbsent {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	w := obj.NewWriter(writeCtx)
	if opts.ContentType != "" {
		w.ContentType = opts.ContentType
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		if gcp.IsPreconditionFailed(err) {
			return fmt.Errorf("%w: %s", ErrExists, key)
		}
		return fmt.Errorf("io.Copy to GCS failed: %w", err)
	}
	if err := w.Close(); err != nil {
		if gcp.IsPreconditionFailed(err) {
			return fmt.Errorf("%w: %s", ErrExists, key)
		}
		return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
	}
	return nil
}

func (g *GCS) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := g.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", g.bucketName, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", g.bucketName, key, err)
	}
	return data, nil
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	err := g.bucket.Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("failed to delete gs://%s/%s: %w", g.bucketName, key, err)
	}
	return nil
}

func (g *GCS) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	objects := []ObjectInfo{}
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", g.bucketName, prefix, err)
		}
		objects = append(objects, ObjectInfo{Key: attrs.Name, Size: attrs.Size, Updated: attrs.Updated})
	}
	return objects, nil
}

func (g *GCS) URL(ctx context.Context, key string) (string, error) {
	u, err := g.bucket.SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(g.signedURLTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for gs://%s/%s: %w", g.bucketName, key, err)
	}
	return u, nil
}
