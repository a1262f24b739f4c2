package template

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Lllllllleong/contractsigning/internal/models"
	"github.com/Lllllllleong/contractsigning/internal/testutil"
)

func para(text string) string {
	return `<w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
}

func TestRender_SubstitutesPlaceholders(t *testing.T) {
	body := para("Nombre: @3@ @4@") +
		// @12@ split by Word across three runs.
		`<w:p><w:r><w:t>Tel: @1</w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>2</w:t></w:r><w:r><w:t>@ fin</w:t></w:r></w:p>` +
		para("Desconocido: [@99@]")
	footer := `<?xml version="1.0" encoding="UTF-8"?><w:ftr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		para("Fecha @19@") + `</w:ftr>`

	r, err := New(testutil.DOCX(t, body, map[string]string{"word/footer1.xml": footer}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	out, err := r.Render(map[int]string{3: "Ana", 4: "Ruiz & Cía <SA>", 12: "5512345678", 19: "16/10/2026"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	doc := testutil.ReadZipPart(t, out, "word/document.xml")
	for _, want := range []string{"Nombre: Ana Ruiz &amp; Cía &lt;SA&gt;", "Tel: 5512345678", "[]"} {
		if !strings.Contains(doc, want) {
			t.Errorf("document.xml missing %q:\n%s", want, doc)
		}
	}
	if strings.Contains(doc, "@") {
		t.Errorf("document.xml still has a delimiter:\n%s", doc)
	}
	if got := testutil.ReadZipPart(t, out, "word/footer1.xml"); !strings.Contains(got, "Fecha 16/10/2026") {
		t.Errorf("footer not filled:\n%s", got)
	}
	if got := testutil.ReadZipPart(t, out, "[Content_Types].xml"); !strings.Contains(got, "Override") {
		t.Errorf("content types part not copied")
	}
}

func TestRender_NewlinesBecomeBreaks(t *testing.T) {
	r, err := New(testutil.DOCX(t, para("@8@"), nil))
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Render(map[int]string{8: "Ciudad\nEstado"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	doc := testutil.ReadZipPart(t, out, "word/document.xml")
	if !strings.Contains(doc, `Ciudad</w:t><w:br/><w:t xml:space="preserve">Estado`) {
		t.Errorf("newline not converted:\n%s", doc)
	}
}

func TestRender_ValuesContainingDelimiters(t *testing.T) {
	r, err := New(testutil.DOCX(t, para("Correo: @15@"), nil))
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Render(map[int]string{15: "ana@123.mx"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if doc := testutil.ReadZipPart(t, out, "word/document.xml"); !strings.Contains(doc, "Correo: ana@123.mx") {
		t.Errorf("email not rendered:\n%s", doc)
	}
}

func TestRenderErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T) ([]byte, error)
	}{
		{"not a zip", func(t *testing.T) ([]byte, error) {
			_, err := New([]byte("plain text"))
			return nil, err
		}},
		{"no document part", func(t *testing.T) ([]byte, error) {
			_, err := New(zipOf(t, map[string]string{"word/styles.xml": "<w:styles/>"}))
			return nil, err
		}},
		{"missing file", func(t *testing.T) ([]byte, error) {
			_, err := Load(filepath.Join(t.TempDir(), "missing.docx"))
			return nil, err
		}},
		{"unterminated placeholder", func(t *testing.T) ([]byte, error) {
			r, err := New(testutil.DOCX(t, para("Nombre: @3 sin cierre"), nil))
			if err != nil {
				return nil, err
			}
			return r.Render(map[int]string{3: "Ana"})
		}},
		{"malformed xml", func(t *testing.T) ([]byte, error) {
			r, err := New(testutil.DOCX(t, `<w:p><w:r><w:t>@3@</w:r></w:p>`, nil))
			if err != nil {
				return nil, err
			}
			return r.Render(map[int]string{3: "Ana"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.build(t); !errors.Is(err, ErrTemplateRender) {
				t.Errorf("error = %v, want ErrTemplateRender", err)
			}
		})
	}
}

func zipOf(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contrato.docx")
	if err := os.WriteFile(path, testutil.DOCX(t, para("@3@"), nil), 0o600); err != nil {
		t.Fatal(err)
	}
	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	out, err := r.Render(map[int]string{3: "Luis"})
	if err != nil {
		t.Fatal(err)
	}
	if doc := testutil.ReadZipPart(t, out, "word/document.xml"); !strings.Contains(doc, ">Luis<") {
		t.Errorf("document.xml = %s", doc)
	}
}

func TestValues(t *testing.T) {
	now := time.Date(2026, 10, 31, 9, 0, 0, 0, time.UTC)
	req := models.EnrollRequest{
		FirstName: "Ana", LastName: "Ruiz", LastNameMother: "Soto",
		DateBirth: "2001-03-09", Age: "25", Phone: "5512345678",
	}
	v := Values(req, now)

	want := map[int]string{
		SlotSocialNetwork: "N/A",
		SlotFirstName:     "Ana",
		SlotDateBirth:     "09/03/2001",
		SlotAge:           "25",
		SlotPhone:         "5512345678",
		SlotEnrollDate:    "31/10/2026",
		SlotSignDate:      "31/10/2026",
		SlotTermEndMonth:  "Febrero",
		SlotEmail:         "",
	}
	for slot, w := range want {
		if v[slot] != w {
			t.Errorf("slot %d = %q, want %q", slot, v[slot], w)
		}
	}
}

func TestFormatDate(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"1999-12-31": "31/12/1999",
		"31/12/1999": "31/12/1999",
		"ayer":       "ayer",
	}
	for in, want := range tests {
		if got := FormatDate(in); got != want {
			t.Errorf("FormatDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTermEndMonth(t *testing.T) {
	tests := []struct {
		month time.Month
		want  string
	}{
		{time.January, "Mayo"},
		{time.August, "Diciembre"},
		{time.September, "Enero"},
		{time.December, "Abril"},
	}
	for _, tt := range tests {
		now := time.Date(2026, tt.month, 15, 0, 0, 0, 0, time.UTC)
		if got := TermEndMonth(now); got != tt.want {
			t.Errorf("TermEndMonth(%s) = %q, want %q", tt.month, got, tt.want)
		}
	}
}
