package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/contractsigning/internal/lifecycle"
	"github.com/Lllllllleong/contractsigning/internal/models"
	"github.com/Lllllllleong/contractsigning/internal/notify"
	"github.com/Lllllllleong/contractsigning/internal/template"
)

const contractFileName = "contrato.docx"

// EnrollFunction turns an enrollment form into a pending contract and sends
// the applicant a signing link.
type EnrollFunction struct {
	renderer   Renderer
	converter  Converter
	documents  Documents
	messenger  notify.Messenger
	intake     IntakeForwarder
	spawner    Spawner
	signingURL func(id string) string
	location   *time.Location
	now        func() time.Time
}

// EnrollDeps are the collaborators of an EnrollFunction. Intake may be nil.
type EnrollDeps struct {
	Renderer   Renderer
	Converter  Converter
	Documents  Documents
	Messenger  notify.Messenger
	Intake     IntakeForwarder
	Spawner    Spawner
	SigningURL func(id string) string
	Location   *time.Location
}

func NewEnroll(d EnrollDeps) *EnrollFunction {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	return &EnrollFunction{
		renderer:   d.Renderer,
		converter:  d.Converter,
		documents:  d.Documents,
		messenger:  d.Messenger,
		intake:     d.Intake,
		spawner:    d.Spawner,
		signingURL: d.SigningURL,
		location:   loc,
		now:        time.Now,
	}
}

func (f *EnrollFunction) Process(ctx context.Context, req *models.EnrollRequest) (*models.EnrollResponse, error) {
	if err := validateEnroll(req); err != nil {
		return nil, err
	}
	logCtx := slog.With("applicant", req.FullName())
	logCtx.Info("Processing enrollment.")

	if f.intake != nil && f.intake.Enabled() {
		r := *req
		f.spawner.Go("intake-forward", func(ctx context.Context) error {
			return f.intake.Forward(ctx, r)
		})
	}

	docx, err := f.renderer.Render(template.Values(*req, f.now().In(f.location)))
	if err != nil {
		logCtx.Error("Failed to render contract", "error", err)
		return nil, err
	}
	pdf, err := f.converter.ToPDF(ctx, docx, contractFileName)
	if err != nil {
		logCtx.Error("Failed to convert contract", "error", err)
		return nil, err
	}

	id, err := f.documents.Create(ctx, pdf, lifecycle.Applicant{
		Name:  req.FullName(),
		Phone: req.Phone,
		Email: req.Email,
	})
	if err != nil {
		logCtx.Error("Failed to store pending contract", "error", err)
		return nil, err
	}
	logCtx = logCtx.With("documentId", id)

	link := f.signingURL(id)
	if err := f.messenger.SendText(ctx, req.Phone, notify.SigningLinkMessage(req.FirstName, link)); err != nil {
		logCtx.Error("Failed to send signing link", "error", err)
	} else {
		logCtx.Info("Signing link sent.")
	}

	return &models.EnrollResponse{Message: "Enlace de firma generado y enviado correctamente.", DocumentID: id}, nil
}

func validateEnroll(req *models.EnrollRequest) error {
	var missing []string
	if strings.TrimSpace(req.FirstName) == "" {
		missing = append(missing, "firstName")
	}
	if strings.TrimSpace(req.LastName) == "" {
		missing = append(missing, "lastName")
	}
	if strings.TrimSpace(req.Phone) == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}
