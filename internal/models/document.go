package models

import "time"

// Document states.
const (
	StatePending = "pending"
	StateSigned  = "signed"
)

// SigningDocument is the metadata record of one contract. It is stored as a
// Firestore document or as a JSON sidecar next to the unsigned PDF.
type SigningDocument struct {
	ID            string    `firestore:"id" json:"id"`
	ApplicantName string    `firestore:"applicantName,omitempty" json:"name"`
	Phone         string    `firestore:"phone,omitempty" json:"phone"`
	Email         string    `firestore:"email,omitempty" json:"email,omitempty"`
	State         string    `firestore:"state" json:"state"`
	UnsignedKey   string    `firestore:"unsignedKey,omitempty" json:"unsignedKey,omitempty"`
	SignedKey     string    `firestore:"signedKey,omitempty" json:"signedKey,omitempty"`
	SignedURL     string    `firestore:"signedUrl,omitempty" json:"signedUrl,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt" json:"createdAt"`
	SignedAt      time.Time `firestore:"signedAt,omitempty" json:"signedAt,omitempty"`
}
