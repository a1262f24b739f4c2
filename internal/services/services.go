// Package services orchestrates enrollment, signing and cleanup on top of
// the template, conversion, lifecycle and notification packages.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/Lllllllleong/contractsigning/internal/lifecycle"
	"github.com/Lllllllleong/contractsigning/internal/models"
	"github.com/Lllllllleong/contractsigning/internal/sweeper"
)

// ErrValidation is returned when a request lacks required fields.
var ErrValidation = errors.New("validation error")

// Renderer fills the contract template.
type Renderer interface {
	Render(values map[int]string) ([]byte, error)
}

// Converter turns a DOCX into a PDF.
type Converter interface {
	ToPDF(ctx context.Context, docx []byte, filename string) ([]byte, error)
}

// Documents is the lifecycle of a contract.
type Documents interface {
	Create(ctx context.Context, unsigned []byte, a lifecycle.Applicant) (string, error)
	FetchUnsigned(ctx context.Context, id string) ([]byte, error)
	Finalize(ctx context.Context, id string, signature []byte, opts lifecycle.FinalizeOptions) (*lifecycle.Result, error)
}

// IntakeForwarder copies enrollments to the registration API.
type IntakeForwarder interface {
	Enabled() bool
	Forward(ctx context.Context, r models.EnrollRequest) error
}

// Spawner runs work that must not delay the response.
type Spawner interface {
	Go(name string, fn func(ctx context.Context) error)
}

// Sweeper deletes expired contracts.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (*sweeper.Report, error)
}
