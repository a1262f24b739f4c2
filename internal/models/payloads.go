package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// These structs define the JSON bodies exchanged with the signing front end
// and the intake API.

// FlexString accepts either a JSON string or a JSON number.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = FlexString(n.String())
	return nil
}

// EnrollRequest is the enrollment form submitted by the landing page.
type EnrollRequest struct {
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	LastNameMother string     `json:"lastNameMother"`
	CURP           string     `json:"curp"`
	DateBirth      string     `json:"dateBirth"`
	Age            FlexString `json:"age"`
	PlaceBirth     string     `json:"placeBirth"`
	LevelEducation string     `json:"levelEducation"`
	LastSchool     string     `json:"lastSchool"`
	Phone          string     `json:"phone"`
	PhoneFamily    string     `json:"phoneFamily"`
	PhoneOther     string     `json:"phoneOther"`
	Email          string     `json:"email"`
	SocialNetwork  string     `json:"socialNetwork"`
}

// FullName joins the non-empty name parts.
func (r EnrollRequest) FullName() string {
	return strings.Join(strings.Fields(strings.Join([]string{r.FirstName, r.LastName, r.LastNameMother}, " ")), " ")
}

// EnrollResponse is returned once the signing link has been generated.
type EnrollResponse struct {
	Message    string `json:"message"`
	DocumentID string `json:"documentId"`
}

// FinalizeRequest carries the drawn signature. Both field spellings used by
// the signing page are accepted.
type FinalizeRequest struct {
	ID                   string `json:"id"`
	DocID                string `json:"docId"`
	SignatureImageBase64 string `json:"signatureImageBase64"`
	SignatureImage       string `json:"signatureImage"`
	Phone                string `json:"phone,omitempty"`
	Name                 string `json:"name,omitempty"`
}

// DocumentID returns whichever id field was sent.
func (r FinalizeRequest) DocumentID() string {
	if r.ID != "" {
		return r.ID
	}
	return r.DocID
}

// Signature returns whichever signature field was sent.
func (r FinalizeRequest) Signature() string {
	if r.SignatureImageBase64 != "" {
		return r.SignatureImageBase64
	}
	return r.SignatureImage
}

// FinalizeResponse is returned after the signed contract has been stored.
type FinalizeResponse struct {
	Message   string `json:"message"`
	SignedURL string `json:"signedUrl"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// CleanupResult reports one swept directory.
type CleanupResult struct {
	Directory    string `json:"directory"`
	DeletedCount int    `json:"deleted_count"`
}

// CleanupResponse is the body of a successful cleanup run.
type CleanupResponse struct {
	Success      bool            `json:"success"`
	DeletedCount int             `json:"deleted_count"`
	Results      []CleanupResult `json:"results"`
}

// IntakeRequest is forwarded to the institution's registration API.
type IntakeRequest struct {
	BusinessUnitID string     `json:"businessUnitId"`
	ItemServiceID  string     `json:"itemServiceId"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	LastNameMother string     `json:"lastNameMother"`
	CURP           string     `json:"curp"`
	DateBirth      string     `json:"dateBirth"`
	Age            FlexString `json:"age"`
	PlaceBirth     string     `json:"placeBirth"`
	LevelEducation string     `json:"levelEducation"`
	LastSchool     string     `json:"lastSchool"`
	Phone          string     `json:"phone"`
	PhoneFamily    string     `json:"phoneFamily"`
	PhoneOther     string     `json:"phoneOther"`
	Email          string     `json:"email"`
}

// DeliveryRequest is the argument of a delivery workflow execution.
type DeliveryRequest struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	SignedURL  string `json:"signedUrl"`
	FileName   string `json:"fileName"`
}
