// Package lifecycle moves a contract from its unsigned to its signed state.
//
// A document is pending while unsigned/<id>.pdf exists. Finalize stamps it,
// writes the signed artifact, and only then deletes the unsigned one, all
// under a per-document lock. A document is finalized at most once.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/contractsigning/internal/models"
	"github.com/Lllllllleong/contractsigning/internal/stamper"
	"github.com/Lllllllleong/contractsigning/internal/storage"
	"github.com/google/uuid"
)

var (
	// ErrNotFound means there is no pending document with the given id, or
	// it is being finalized right now.
	ErrNotFound = errors.New("document not found")
	// ErrStorage wraps failures of the blob store, metadata store or lock.
	ErrStorage = errors.New("storage failure")
)

// Stamper draws both signatures onto a contract.
type Stamper interface {
	Stamp(pdfBytes, userSig, autoSig []byte, signedDateLabel string) ([]byte, error)
}

// Applicant is who the contract is for.
type Applicant struct {
	Name  string
	Phone string
	Email string
}

// FinalizeOptions carry client-side overrides. Non-empty fields replace the
// stored values for naming and delivery.
type FinalizeOptions struct {
	Name     string
	Phone    string
	SignedAt time.Time
}

// Result describes a finalized document.
type Result struct {
	SignedKey string
	SignedURL string
	Record    models.SigningDocument
}

// Manager owns the unsigned/signed lifecycle.
type Manager struct {
	store    storage.Store
	meta     MetadataStore
	locker   Locker
	stamper  Stamper
	autoSig  []byte
	location *time.Location
	now      func() time.Time
}

// NewManager wires the lifecycle dependencies. autoSig is the institutional
// signature PNG stamped next to every applicant signature.
func NewManager(store storage.Store, meta MetadataStore, locker Locker, st Stamper, autoSig []byte, loc *time.Location) *Manager {
	if loc == nil {
		loc = time.UTC
	}
	return &Manager{
		store:    store,
		meta:     meta,
		locker:   locker,
		stamper:  st,
		autoSig:  autoSig,
		location: loc,
		now:      time.Now,
	}
}

// Create stores unsigned and records a pending document. It returns the new id.
func (m *Manager) Create(ctx context.Context, unsigned []byte, a Applicant) (string, error) {
	id := uuid.NewString()
	key := UnsignedKey(id)

	if err := m.store.Put(ctx, key, unsigned, storage.PutOptions{IfAbsent: true, ContentType: "application/pdf"}); err != nil {
		return "", fmt.Errorf("%w: failed to store unsigned document: %v", ErrStorage, err)
	}

	rec := models.SigningDocument{
		ID:            id,
		ApplicantName: a.Name,
		Phone:         a.Phone,
		Email:         a.Email,
		State:         models.StatePending,
		UnsignedKey:   key,
		CreatedAt:     m.now().UTC(),
	}
	if err := m.meta.Put(ctx, rec); err != nil {
		if derr := m.store.Delete(ctx, key); derr != nil {
			slog.Error("Failed to roll back unsigned document.", "documentId", id, "error", derr)
		}
		return "", fmt.Errorf("%w: failed to record metadata: %v", ErrStorage, err)
	}
	return id, nil
}

// FetchUnsigned returns the unsigned PDF of a pending document.
func (m *Manager) FetchUnsigned(ctx context.Context, id string) ([]byte, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	data, err := m.store.Get(ctx, UnsignedKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return data, nil
}

// Finalize stamps signature onto the pending document id and stores the
// signed contract. Any failure before the signed artifact is durable leaves
// the document pending.
func (m *Manager) Finalize(ctx context.Context, id string, signature []byte, opts FinalizeOptions) (*Result, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	logCtx := slog.With("documentId", id)

	unlock, ok, err := m.locker.TryLock(ctx, "finalize:"+id)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to acquire lock: %v", ErrStorage, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: finalize already in progress", ErrNotFound)
	}
	defer unlock()

	unsignedKey := UnsignedKey(id)
	unsigned, err := m.store.Get(ctx, unsignedKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	rec, err := m.meta.Get(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		logCtx.Warn("No metadata for pending document, continuing with request data.")
		rec = models.SigningDocument{ID: id, State: models.StatePending, UnsignedKey: unsignedKey}
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if opts.Name != "" {
		rec.ApplicantName = opts.Name
	}
	if opts.Phone != "" {
		rec.Phone = opts.Phone
	}

	signedAt := opts.SignedAt
	if signedAt.IsZero() {
		signedAt = m.now()
	}
	final, err := m.stamper.Stamp(unsigned, signature, m.autoSig, stamper.SignedDateLabel(signedAt, m.location))
	if err != nil {
		return nil, fmt.Errorf("failed to stamp document %s: %w", id, err)
	}

	signedKey := SignedKey(rec.ApplicantName, id)
	if err := m.store.Put(ctx, signedKey, final, storage.PutOptions{ContentType: "application/pdf"}); err != nil {
		return nil, fmt.Errorf("%w: failed to store signed document: %v", ErrStorage, err)
	}
	signedURL, err := m.store.URL(ctx, signedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if err := m.store.Delete(ctx, unsignedKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: failed to retire unsigned document: %v", ErrStorage, err)
	}

	rec.State = models.StateSigned
	rec.SignedKey = signedKey
	rec.SignedURL = signedURL
	rec.SignedAt = signedAt.UTC()
	if err := m.meta.Put(ctx, rec); err != nil {
		// The signed artifact is already durable; only the record is stale.
		logCtx.Error("Failed to mark document signed.", "error", err)
	}

	logCtx.Info("Document finalized.", "signedKey", signedKey)
	return &Result{SignedKey: signedKey, SignedURL: signedURL, Record: rec}, nil
}

// UnsignedKey is where the unsigned PDF of id lives.
func UnsignedKey(id string) string {
	return "unsigned/" + id + ".pdf"
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}
