package stamper_test

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/Lllllllleong/contractsigning/internal/stamper"
	"github.com/Lllllllleong/contractsigning/internal/testutil"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// stampedDoc is a stamped PDF read back with pdfcpu.
type stampedDoc struct {
	ctx *model.Context
	// forms holds the decoded content of every form XObject keyed by object number.
	forms map[int]types.StreamDict
	// images counts image XObjects, soft masks included.
	images int
}

func readStamped(t *testing.T, pdf []byte) *stampedDoc {
	t.Helper()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(bytes.NewReader(pdf), conf)
	if err != nil {
		t.Fatalf("ReadContext() error = %v", err)
	}
	doc := &stampedDoc{ctx: ctx, forms: map[int]types.StreamDict{}}
	for nr, entry := range ctx.XRefTable.Table {
		if entry == nil || entry.Free {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		switch st := sd.Subtype(); {
		case st == nil:
		case *st == "Image":
			doc.images++
		case *st == "Form":
			if err := sd.Decode(); err != nil {
				t.Fatalf("form %d: Decode() error = %v", nr, err)
			}
			doc.forms[nr] = sd
		}
	}
	return doc
}

func (d *stampedDoc) pageContent(t *testing.T, pageNr int) string {
	t.Helper()
	pd, _, _, err := d.ctx.PageDict(pageNr, false)
	if err != nil {
		t.Fatalf("PageDict(%d) error = %v", pageNr, err)
	}
	content, err := d.ctx.PageContent(pd, pageNr)
	if err != nil {
		t.Fatalf("PageContent(%d) error = %v", pageNr, err)
	}
	return string(content)
}

// formContaining returns the content of the first form whose stream contains s.
func (d *stampedDoc) formContaining(s string) (string, bool) {
	for _, sd := range d.forms {
		if c := string(sd.Content); strings.Contains(c, s) {
			return c, true
		}
	}
	return "", false
}

func (d *stampedDoc) hasFormBBox(w, h float64) bool {
	for _, sd := range d.forms {
		bb := sd.ArrayEntry("BBox")
		if len(bb) == 4 && number(bb[0]) == 0 && number(bb[1]) == 0 && number(bb[2]) == w && number(bb[3]) == h {
			return true
		}
	}
	return false
}

func number(o types.Object) float64 {
	switch v := o.(type) {
	case types.Float:
		return float64(v)
	case types.Integer:
		return float64(v)
	}
	return -1
}

// placedAt matches a transformation whose translation is (x, y).
func placedAt(x, y float64) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?:-?[\d.]+ ){4}%s %s cm`,
		regexp.QuoteMeta(fmt.Sprintf("%.5f", x)), regexp.QuoteMeta(fmt.Sprintf("%.5f", y))))
}

func TestStamp_EmbedsEachImageOnce(t *testing.T) {
	s := newStamper(t, stamper.DefaultLayout())
	userSig, autoSig := testutil.PNG(t, 400, 120), testutil.PNG(t, 300, 90)

	count := func(pages int) int {
		out, err := s.Stamp(testutil.PDF(t, pages), userSig, autoSig, "16 de octubre de 2026")
		if err != nil {
			t.Fatalf("Stamp() error = %v", err)
		}
		return readStamped(t, out).images
	}

	eight, three := count(8), count(3)
	// Two signatures, each possibly with a soft mask.
	if eight < 2 || eight > 4 {
		t.Errorf("8 pages: %d image objects, want between 2 and 4", eight)
	}
	if eight != three {
		t.Errorf("image objects grow with page count: 3 pages = %d, 8 pages = %d", three, eight)
	}
}

func TestStamp_PlacementAndCaptions(t *testing.T) {
	layout := stamper.DefaultLayout()
	s := newStamper(t, layout)
	out, err := s.Stamp(testutil.PDF(t, 8), testutil.PNG(t, 400, 120), testutil.PNG(t, 300, 90), "16 de octubre de 2026")
	if err != nil {
		t.Fatalf("Stamp() error = %v", err)
	}
	doc := readStamped(t, out)

	if !doc.hasFormBBox(layout.User.Spec.Width, layout.User.Spec.Height) {
		t.Errorf("no form with BBox [0 0 %v %v]", layout.User.Spec.Width, layout.User.Spec.Height)
	}

	caption, ok := doc.formContaining("(Firmado el: 16 de octubre de 2026) Tj")
	if !ok {
		t.Fatal("signed-date caption not found verbatim in any form")
	}
	if _, ok := doc.formContaining("en Plataforma) Tj"); !ok {
		t.Error("legend caption not found")
	}

	// The caption baseline is the form offset plus the Td inside the form.
	m := regexp.MustCompile(`(-?[\d.]+) (-?[\d.]+) Td \d+ Tr \(Firmado el:`).FindStringSubmatch(caption)
	if m == nil {
		t.Fatalf("no Td before the caption in %q", caption)
	}
	tdY, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		t.Fatal(err)
	}

	page1 := doc.pageContent(t, 1)
	user, auto := layout.User.Locations[0], layout.Auto.Locations[0]
	for _, want := range []struct {
		what string
		x, y float64
	}{
		{"user signature", user.SigX, user.SigY},
		{"automatic signature", auto.SigX, auto.SigY},
		{"date caption baseline", user.TextX, user.TextY - tdY},
		{"legend baseline", auto.TextX, auto.TextY - tdY},
	} {
		if !placedAt(want.x, want.y).MatchString(page1) {
			t.Errorf("%s: no placement at %v %v in page 1 content %q", want.what, want.x, want.y, page1)
		}
	}
}
