// Package intake forwards enrollments to the institution's registration API.
package intake

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Lllllllleong/contractsigning/internal/models"
	"github.com/Lllllllleong/contractsigning/internal/outbound"
)

// Forwarder posts enrollment data to the intake endpoint.
type Forwarder struct {
	http           *outbound.Client
	url            string
	businessUnitID string
	itemServiceID  string
}

func NewForwarder(client *outbound.Client, url, businessUnitID, itemServiceID string) *Forwarder {
	return &Forwarder{http: client, url: url, businessUnitID: businessUnitID, itemServiceID: itemServiceID}
}

// Enabled reports whether an intake URL is configured.
func (f *Forwarder) Enabled() bool {
	return f != nil && f.url != ""
}

// Forward sends r. The response body is ignored.
func (f *Forwarder) Forward(ctx context.Context, r models.EnrollRequest) error {
	body := models.IntakeRequest{
		BusinessUnitID: f.businessUnitID,
		ItemServiceID:  f.itemServiceID,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		LastNameMother: r.LastNameMother,
		CURP:           r.CURP,
		DateBirth:      r.DateBirth,
		Age:            r.Age,
		PlaceBirth:     r.PlaceBirth,
		LevelEducation: r.LevelEducation,
		LastSchool:     r.LastSchool,
		Phone:          r.Phone,
		PhoneFamily:    r.PhoneFamily,
		PhoneOther:     r.PhoneOther,
		Email:          r.Email,
	}
	if err := f.http.DoJSON(ctx, http.MethodPost, f.url, nil, body, nil); err != nil {
		return fmt.Errorf("intake API rejected enrollment: %w", err)
	}
	return nil
}
