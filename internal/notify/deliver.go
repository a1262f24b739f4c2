package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/Lllllllleong/contractsigning/internal/models"
	"github.com/googleapis/gax-go/v2"
)

// Deliverer hands a signed contract to the applicant.
type Deliverer interface {
	Deliver(ctx context.Context, req models.DeliveryRequest) error
}

// DirectDeliverer sends the WhatsApp message, the document and, when both a
// mailer and an address are present, an email. Every channel is attempted;
// failures are joined.
type DirectDeliverer struct {
	messenger Messenger
	mailer    Mailer
}

// NewDirectDeliverer returns a deliverer. mailer may be nil.
func NewDirectDeliverer(messenger Messenger, mailer Mailer) *DirectDeliverer {
	return &DirectDeliverer{messenger: messenger, mailer: mailer}
}

func (d *DirectDeliverer) Deliver(ctx context.Context, req models.DeliveryRequest) error {
	var errs []error
	if err := d.messenger.SendText(ctx, req.Phone, SignedMessage(req.Name)); err != nil {
		errs = append(errs, err)
	} else if err := d.messenger.SendDocument(ctx, req.Phone, req.SignedURL, req.FileName); err != nil {
		errs = append(errs, err)
	}
	if d.mailer != nil && req.Email != "" {
		if err := d.mailer.SendSignedLink(ctx, req.Email, req.Name, req.SignedURL); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExecutionCreator is the part of the Workflows Executions client used here.
type ExecutionCreator interface {
	CreateExecution(ctx context.Context, req *executionspb.CreateExecutionRequest, opts ...gax.CallOption) (*executionspb.Execution, error)
}

// WorkflowDeliverer starts a Cloud Workflows execution that performs the
// delivery, so retries and fan-out live outside the request.
type WorkflowDeliverer struct {
	client ExecutionCreator
	parent string
}

// NewWorkflowDeliverer returns a deliverer that creates executions under parent
// ("projects/<p>/locations/<l>/workflows/<w>").
func NewWorkflowDeliverer(client ExecutionCreator, parent string) *WorkflowDeliverer {
	return &WorkflowDeliverer{client: client, parent: parent}
}

func (d *WorkflowDeliverer) Deliver(ctx context.Context, req models.DeliveryRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	exec, err := d.client.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
		Parent:    d.parent,
		Execution: &executionspb.Execution{Argument: string(payload)},
	})
	if err != nil {
		return fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	slog.Info("Delivery workflow started.", "documentId", req.DocumentID, "execution", exec.GetName())
	return nil
}
