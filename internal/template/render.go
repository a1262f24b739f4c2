// Package template fills the enrollment contract DOCX.
//
// Placeholders are slot numbers between '@' delimiters ("@12@") anywhere in
// the text of document.xml, headers or footers. Word frequently splits such a
// token across runs; the renderer tolerates run markup between the
// delimiters and the digits.
package template

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ErrTemplateRender is returned for any failure to produce the filled DOCX.
var ErrTemplateRender = errors.New("template render error")

// markup matches run-level tags that may sit inside a split placeholder.
const markup = `(?:<[^>]*>)*`

var (
	placeholderRegex = regexp.MustCompile(`@` + markup + `((?:\d` + markup + `)+)@`)
	tagRegex         = regexp.MustCompile(`<[^>]*>`)
	// textRegex captures the character data between tags.
	textRegex = regexp.MustCompile(`>([^<]*)<`)
)

// Renderer loads a template once and renders it for many applicants.
type Renderer struct {
	template []byte
}

// Load reads the template at path and checks that it is a usable DOCX.
func Load(path string) (*Renderer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read template %s: %v", ErrTemplateRender, path, err)
	}
	return New(data)
}

// New wraps an in-memory template.
func New(docx []byte) (*Renderer, error) {
	zr, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	if err != nil {
		return nil, fmt.Errorf("%w: template is not a zip archive: %v", ErrTemplateRender, err)
	}
	if !hasPart(zr, "word/document.xml") {
		return nil, fmt.Errorf("%w: template has no word/document.xml", ErrTemplateRender)
	}
	return &Renderer{template: docx}, nil
}

// Render returns a copy of the template with every placeholder replaced by
// its slot value. Unknown slots render empty.
func (r *Renderer) Render(values map[int]string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(r.template), int64(len(r.template)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, f := range zr.File {
		content, err := readPart(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTemplateRender, f.Name, err)
		}
		if isTextPart(f.Name) {
			if content, err = fill(content, values); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrTemplateRender, f.Name, err)
			}
		}

		header := f.FileHeader
		w, err := zw.CreateHeader(&header)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTemplateRender, f.Name, err)
		}
		if _, err := w.Write(content); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTemplateRender, f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return out.Bytes(), nil
}

func fill(content []byte, values map[int]string) ([]byte, error) {
	if err := checkUnterminated(placeholderRegex.ReplaceAll(content, nil)); err != nil {
		return nil, err
	}

	var firstErr error
	filled := placeholderRegex.ReplaceAllFunc(content, func(match []byte) []byte {
		digits := tagRegex.ReplaceAll(placeholderRegex.FindSubmatch(match)[1], nil)
		slot, err := strconv.Atoi(string(digits))
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("bad placeholder %q", match)
		}
		// Keep the run structure the placeholder was split across; the value
		// lands where the opening '@' was.
		var b bytes.Buffer
		b.WriteString(escapeValue(values[slot]))
		for _, t := range tagRegex.FindAll(match, -1) {
			b.Write(t)
		}
		return b.Bytes()
	})
	if firstErr != nil {
		return nil, firstErr
	}
	if err := wellFormed(filled); err != nil {
		return nil, err
	}
	return filled, nil
}

// checkUnterminated reports an '@' followed by digits with no closing '@'.
// content must already have its complete placeholders removed.
func checkUnterminated(content []byte) error {
	for _, m := range textRegex.FindAllSubmatch(content, -1) {
		text := m[1]
		for i := bytes.IndexByte(text, '@'); i >= 0; i = bytes.IndexByte(text, '@') {
			rest := text[i+1:]
			if len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9' {
				return fmt.Errorf("unterminated placeholder near %q", text[i:min(len(text), i+8)])
			}
			text = rest
		}
	}
	return nil
}

func wellFormed(content []byte) error {
	d := xml.NewDecoder(bytes.NewReader(content))
	for {
		_, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("output is not well-formed XML: %w", err)
		}
	}
}

// escapeValue XML-escapes v and turns newlines into Word line breaks.
func escapeValue(v string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(v))
	escaped := strings.ReplaceAll(b.String(), "&#xA;", "\n")
	escaped = strings.ReplaceAll(escaped, "&#xD;", "")
	return strings.ReplaceAll(escaped, "\n", `</w:t><w:br/><w:t xml:space="preserve">`)
}

func isTextPart(name string) bool {
	if name == "word/document.xml" {
		return true
	}
	if !strings.HasPrefix(name, "word/") || !strings.HasSuffix(name, ".xml") {
		return false
	}
	base := strings.TrimPrefix(name, "word/")
	return !strings.Contains(base, "/") && (strings.HasPrefix(base, "header") || strings.HasPrefix(base, "footer"))
}

func hasPart(zr *zip.Reader, name string) bool {
	for _, f := range zr.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
