package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/contractsigning/internal/models"
	"github.com/Lllllllleong/contractsigning/internal/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MetadataStore persists SigningDocument records. Get returns ErrNotFound
// for unknown ids.
type MetadataStore interface {
	Put(ctx context.Context, rec models.SigningDocument) error
	Get(ctx context.Context, id string) (models.SigningDocument, error)
}

// SidecarStore keeps each record as JSON next to the unsigned PDF, so the
// cleanup sweep retires both together.
type SidecarStore struct {
	store storage.Store
}

func NewSidecarStore(store storage.Store) *SidecarStore {
	return &SidecarStore{store: store}
}

func sidecarKey(id string) string {
	return "unsigned/" + id + ".json"
}

func (s *SidecarStore) Put(ctx context.Context, rec models.SigningDocument) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", rec.ID, err)
	}
	return s.store.Put(ctx, sidecarKey(rec.ID), data, storage.PutOptions{ContentType: "application/json"})
}

func (s *SidecarStore) Get(ctx context.Context, id string) (models.SigningDocument, error) {
	var rec models.SigningDocument
	data, err := s.store.Get(ctx, sidecarKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return rec, fmt.Errorf("%w: metadata for %s", ErrNotFound, id)
	}
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode metadata for %s: %w", id, err)
	}
	return rec, nil
}

// FirestoreStore keeps records in a Firestore collection keyed by document id.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) Put(ctx context.Context, rec models.SigningDocument) error {
	if _, err := s.client.Collection(s.collection).Doc(rec.ID).Set(ctx, rec); err != nil {
		return fmt.Errorf("failed to write document %s: %w", rec.ID, err)
	}
	return nil
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (models.SigningDocument, error) {
	var rec models.SigningDocument
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return rec, fmt.Errorf("%w: metadata for %s", ErrNotFound, id)
	}
	if err != nil {
		return rec, fmt.Errorf("failed to read document %s: %w", id, err)
	}
	if err := snap.DataTo(&rec); err != nil {
		return rec, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return rec, nil
}
