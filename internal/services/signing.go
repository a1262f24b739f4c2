package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/contractsigning/internal/lifecycle"
	"github.com/Lllllllleong/contractsigning/internal/models"
	"github.com/Lllllllleong/contractsigning/internal/notify"
	"github.com/Lllllllleong/contractsigning/internal/stamper"
)

// SigningFunction serves pending contracts and finalizes them.
type SigningFunction struct {
	documents Documents
	deliverer notify.Deliverer
}

func NewSigning(documents Documents, deliverer notify.Deliverer) *SigningFunction {
	return &SigningFunction{documents: documents, deliverer: deliverer}
}

// Document returns the unsigned PDF of a pending contract.
func (f *SigningFunction) Document(ctx context.Context, id string) ([]byte, error) {
	return f.documents.FetchUnsigned(ctx, id)
}

func (f *SigningFunction) Process(ctx context.Context, req *models.FinalizeRequest) (*models.FinalizeResponse, error) {
	id := req.DocumentID()
	if id == "" || req.Signature() == "" {
		return nil, fmt.Errorf("%w: id and signature image are required", ErrValidation)
	}
	logCtx := slog.With("documentId", id)
	logCtx.Info("Finalizing contract.")

	sig, err := DecodeSignature(req.Signature())
	if err != nil {
		logCtx.Warn("Signature is not valid base64", "error", err)
		return nil, err
	}

	res, err := f.documents.Finalize(ctx, id, sig, lifecycle.FinalizeOptions{Name: req.Name, Phone: req.Phone})
	if err != nil {
		logCtx.Error("Failed to finalize contract", "error", err)
		return nil, err
	}

	delivery := models.DeliveryRequest{
		DocumentID: id,
		Name:       res.Record.ApplicantName,
		Phone:      res.Record.Phone,
		Email:      res.Record.Email,
		SignedURL:  res.SignedURL,
		FileName:   lifecycle.SignedFileName(res.SignedKey),
	}
	msg := "¡Documento firmado con éxito! Se ha enviado una copia por WhatsApp."
	if err := f.deliverer.Deliver(ctx, delivery); err != nil {
		logCtx.Error("Failed to deliver signed contract", "error", err)
		msg = "¡Documento firmado con éxito!"
	}

	return &models.FinalizeResponse{Message: msg, SignedURL: res.SignedURL}, nil
}

// DecodeSignature accepts raw base64 or a data URL.
func DecodeSignature(s string) ([]byte, error) {
	if _, payload, ok := strings.Cut(s, "base64,"); ok {
		s = payload
	}
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stamper.ErrImageDecode, err)
	}
	return data, nil
}
