package services

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Lllllllleong/contractsigning/internal/convert"
	"github.com/Lllllllleong/contractsigning/internal/lifecycle"
	"github.com/Lllllllleong/contractsigning/internal/models"
	"github.com/Lllllllleong/contractsigning/internal/stamper"
	"github.com/Lllllllleong/contractsigning/internal/sweeper"
	"github.com/Lllllllleong/contractsigning/internal/template"
)

type fakeRenderer struct {
	renderFn func(values map[int]string) ([]byte, error)
}

func (f *fakeRenderer) Render(values map[int]string) ([]byte, error) { return f.renderFn(values) }

type fakeConverter struct {
	toPDFFn func(ctx context.Context, docx []byte, filename string) ([]byte, error)
}

func (f *fakeConverter) ToPDF(ctx context.Context, docx []byte, filename string) ([]byte, error) {
	return f.toPDFFn(ctx, docx, filename)
}

type fakeDocuments struct {
	createFn   func(ctx context.Context, unsigned []byte, a lifecycle.Applicant) (string, error)
	fetchFn    func(ctx context.Context, id string) ([]byte, error)
	finalizeFn func(ctx context.Context, id string, sig []byte, opts lifecycle.FinalizeOptions) (*lifecycle.Result, error)
}

func (f *fakeDocuments) Create(ctx context.Context, unsigned []byte, a lifecycle.Applicant) (string, error) {
	return f.createFn(ctx, unsigned, a)
}

func (f *fakeDocuments) FetchUnsigned(ctx context.Context, id string) ([]byte, error) {
	return f.fetchFn(ctx, id)
}

func (f *fakeDocuments) Finalize(ctx context.Context, id string, sig []byte, opts lifecycle.FinalizeOptions) (*lifecycle.Result, error) {
	return f.finalizeFn(ctx, id, sig, opts)
}

type fakeMessenger struct {
	sendTextFn func(ctx context.Context, phone, text string) error
}

func (f *fakeMessenger) SendText(ctx context.Context, phone, text string) error {
	return f.sendTextFn(ctx, phone, text)
}

func (f *fakeMessenger) SendDocument(context.Context, string, string, string) error { return nil }

type fakeIntake struct {
	forwardFn func(ctx context.Context, r models.EnrollRequest) error
}

func (f *fakeIntake) Enabled() bool { return true }

func (f *fakeIntake) Forward(ctx context.Context, r models.EnrollRequest) error {
	return f.forwardFn(ctx, r)
}

// inlineSpawner runs tasks synchronously so tests can observe them.
type inlineSpawner struct{}

func (inlineSpawner) Go(_ string, fn func(ctx context.Context) error) { _ = fn(context.Background()) }

type fakeDeliverer struct {
	deliverFn func(ctx context.Context, req models.DeliveryRequest) error
}

func (f *fakeDeliverer) Deliver(ctx context.Context, req models.DeliveryRequest) error {
	return f.deliverFn(ctx, req)
}

const docID = "0b6f3c52-4a8e-4d2a-9a43-5f0f3d2b9c11"

func newEnroll(t *testing.T) (*EnrollFunction, *fakeMessenger, *fakeConverter, *[]string) {
	t.Helper()
	var forwarded []string
	conv := &fakeConverter{toPDFFn: func(_ context.Context, docx []byte, filename string) ([]byte, error) {
		return append([]byte("pdf:"), docx...), nil
	}}
	msgr := &fakeMessenger{sendTextFn: func(context.Context, string, string) error { return nil }}
	f := NewEnroll(EnrollDeps{
		Renderer: &fakeRenderer{renderFn: func(values map[int]string) ([]byte, error) {
			return []byte(values[template.SlotFirstName] + "|" + values[template.SlotEnrollDate]), nil
		}},
		Converter: conv,
		Documents: &fakeDocuments{createFn: func(_ context.Context, unsigned []byte, a lifecycle.Applicant) (string, error) {
			if string(unsigned) != "pdf:Ana|16/10/2026" {
				t.Errorf("unsigned = %q", unsigned)
			}
			if a.Name != "Ana López Ruiz" || a.Phone != "5512345678" {
				t.Errorf("applicant = %+v", a)
			}
			return docID, nil
		}},
		Messenger: msgr,
		Intake: &fakeIntake{forwardFn: func(_ context.Context, r models.EnrollRequest) error {
			forwarded = append(forwarded, r.CURP)
			return errors.New("intake down")
		}},
		Spawner:    inlineSpawner{},
		SigningURL: func(id string) string { return "https://sign.example.com/sign/" + id },
	})
	f.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }
	return f, msgr, conv, &forwarded
}

func enrollment() *models.EnrollRequest {
	return &models.EnrollRequest{
		FirstName:      "Ana",
		LastName:       "López",
		LastNameMother: "Ruiz",
		CURP:           "LORA000101MDFPZN09",
		Phone:          "5512345678",
		Email:          "ana@example.com",
	}
}

func TestEnroll_SendsSigningLink(t *testing.T) {
	f, msgr, _, forwarded := newEnroll(t)
	var sent []string
	msgr.sendTextFn = func(_ context.Context, phone, text string) error {
		sent = append(sent, phone+"|"+text)
		return nil
	}

	res, err := f.Process(context.Background(), enrollment())
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.DocumentID != docID {
		t.Errorf("DocumentID = %q", res.DocumentID)
	}
	if len(sent) != 1 || !strings.Contains(sent[0], "https://sign.example.com/sign/"+docID) || !strings.HasPrefix(sent[0], "5512345678|") {
		t.Errorf("sent = %v", sent)
	}
	if len(*forwarded) != 1 || (*forwarded)[0] != "LORA000101MDFPZN09" {
		t.Errorf("intake forwarded = %v", *forwarded)
	}
}

func TestEnroll_MessageFailureIsNotFatal(t *testing.T) {
	f, msgr, _, _ := newEnroll(t)
	msgr.sendTextFn = func(context.Context, string, string) error { return errors.New("whatsapp down") }

	if _, err := f.Process(context.Background(), enrollment()); err != nil {
		t.Errorf("Process() error = %v, want nil", err)
	}
}

func TestEnroll_ConversionFailure(t *testing.T) {
	f, _, conv, _ := newEnroll(t)
	conv.toPDFFn = func(context.Context, []byte, string) ([]byte, error) {
		return nil, convert.ErrConversion
	}
	if _, err := f.Process(context.Background(), enrollment()); !errors.Is(err, convert.ErrConversion) {
		t.Errorf("Process() error = %v, want ErrConversion", err)
	}
}

func TestEnroll_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.EnrollRequest)
	}{
		{"missing first name", func(r *models.EnrollRequest) { r.FirstName = "" }},
		{"blank last name", func(r *models.EnrollRequest) { r.LastName = "  " }},
		{"missing phone", func(r *models.EnrollRequest) { r.Phone = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _, _, forwarded := newEnroll(t)
			req := enrollment()
			tt.mutate(req)
			if _, err := f.Process(context.Background(), req); !errors.Is(err, ErrValidation) {
				t.Errorf("Process() error = %v, want ErrValidation", err)
			}
			if len(*forwarded) != 0 {
				t.Error("invalid enrollment was forwarded")
			}
		})
	}
}

func TestDecodeSignature(t *testing.T) {
	raw := []byte("\x89PNG\r\n\x1a\nsignature")
	enc := base64.StdEncoding.EncodeToString(raw)
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"raw base64", enc, false},
		{"data url", "data:image/png;base64," + enc, false},
		{"unpadded", strings.TrimRight(enc, "="), false},
		{"garbage", "not*base64!", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSignature(tt.in)
			if tt.wantErr {
				if !errors.Is(err, stamper.ErrImageDecode) {
					t.Errorf("DecodeSignature() error = %v, want ErrImageDecode", err)
				}
				return
			}
			if err != nil || string(got) != string(raw) {
				t.Errorf("DecodeSignature() = %q, %v", got, err)
			}
		})
	}
}

func TestSigning_Process(t *testing.T) {
	sig := base64.StdEncoding.EncodeToString([]byte("png"))
	signedKey := "signed/contrato-firmado-Ana-Lopez-0b6f3c52.pdf"
	docs := &fakeDocuments{finalizeFn: func(_ context.Context, id string, s []byte, opts lifecycle.FinalizeOptions) (*lifecycle.Result, error) {
		if id != docID || string(s) != "png" || opts.Phone != "5599999999" {
			t.Errorf("Finalize(%q, %q, %+v)", id, s, opts)
		}
		return &lifecycle.Result{
			SignedKey: signedKey,
			SignedURL: "https://files/" + signedKey,
			Record:    models.SigningDocument{ID: id, ApplicantName: "Ana Lopez", Phone: opts.Phone},
		}, nil
	}}
	var delivered []models.DeliveryRequest
	deliverer := &fakeDeliverer{deliverFn: func(_ context.Context, req models.DeliveryRequest) error {
		delivered = append(delivered, req)
		return nil
	}}
	f := NewSigning(docs, deliverer)

	res, err := f.Process(context.Background(), &models.FinalizeRequest{DocID: docID, SignatureImage: sig, Phone: "5599999999"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.SignedURL != "https://files/"+signedKey || !strings.Contains(res.Message, "WhatsApp") {
		t.Errorf("response = %+v", res)
	}
	if len(delivered) != 1 || delivered[0].FileName != "contrato-firmado-Ana-Lopez-0b6f3c52.pdf" || delivered[0].Phone != "5599999999" {
		t.Errorf("delivered = %+v", delivered)
	}

	deliverer.deliverFn = func(context.Context, models.DeliveryRequest) error { return errors.New("whatsapp down") }
	res, err = f.Process(context.Background(), &models.FinalizeRequest{ID: docID, SignatureImageBase64: sig, Phone: "5599999999"})
	if err != nil {
		t.Fatalf("Process() with failed delivery error = %v", err)
	}
	if strings.Contains(res.Message, "WhatsApp") {
		t.Errorf("message = %q claims delivery", res.Message)
	}
}

func TestSigning_Errors(t *testing.T) {
	docs := &fakeDocuments{finalizeFn: func(context.Context, string, []byte, lifecycle.FinalizeOptions) (*lifecycle.Result, error) {
		return nil, lifecycle.ErrNotFound
	}}
	f := NewSigning(docs, &fakeDeliverer{deliverFn: func(context.Context, models.DeliveryRequest) error {
		t.Error("delivery attempted after failure")
		return nil
	}})
	sig := base64.StdEncoding.EncodeToString([]byte("png"))

	tests := []struct {
		name string
		req  models.FinalizeRequest
		want error
	}{
		{"missing id", models.FinalizeRequest{SignatureImageBase64: sig}, ErrValidation},
		{"missing signature", models.FinalizeRequest{ID: docID}, ErrValidation},
		{"bad signature", models.FinalizeRequest{ID: docID, SignatureImageBase64: "%%%"}, stamper.ErrImageDecode},
		{"unknown document", models.FinalizeRequest{ID: docID, SignatureImageBase64: sig}, lifecycle.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.Process(context.Background(), &tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Process() error = %v, want %v", err, tt.want)
			}
		})
	}
}

type fakeSweeper struct {
	sweepFn func(ctx context.Context, now time.Time) (*sweeper.Report, error)
}

func (f *fakeSweeper) Sweep(ctx context.Context, now time.Time) (*sweeper.Report, error) {
	return f.sweepFn(ctx, now)
}

func TestCleanup_Process(t *testing.T) {
	f := NewCleanup(&fakeSweeper{sweepFn: func(context.Context, time.Time) (*sweeper.Report, error) {
		return &sweeper.Report{
			Results:      []models.CleanupResult{{Directory: "unsigned", DeletedCount: 2}, {Directory: "signed", DeletedCount: 1}},
			DeletedCount: 3,
		}, nil
	}})
	res, err := f.Process(context.Background())
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !res.Success || res.DeletedCount != 3 || len(res.Results) != 2 {
		t.Errorf("response = %+v", res)
	}
}
