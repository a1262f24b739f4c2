// Package stamper draws the applicant's signature, the institutional
// auto-signature and their captions onto a contract PDF.
//
// Placement is driven by static per-page tables (see Layout). Table entries
// pointing past the last page of the document are skipped, so one layout
// serves contracts of any length.
package stamper

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var (
	// ErrMalformedDocument is returned when the input does not parse as a PDF.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrImageDecode is returned when a signature image is not a decodable PNG.
	ErrImageDecode = errors.New("image decode error")
)

// Stamper applies a Layout to PDF documents. It holds no per-document state
// and is safe for concurrent use.
type Stamper struct {
	layout Layout
}

// New validates layout and returns a Stamper for it.
func New(layout Layout) (*Stamper, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stamp layout: %w", err)
	}
	// pdfcpu otherwise creates a config dir under $HOME, which is read-only on Cloud Functions.
	api.DisableConfigDir()
	return &Stamper{layout: layout}, nil
}

// Layout returns the layout the stamper was built with.
func (s *Stamper) Layout() Layout {
	return s.layout
}

// Stamp draws userSig with the signed-date caption and autoSig with the
// legend on every in-range page of the tables, and returns the re-serialized
// document. The input slice is never modified.
func (s *Stamper) Stamp(pdfBytes, userSig, autoSig []byte, signedDateLabel string) ([]byte, error) {
	pageCount, err := api.PageCount(bytes.NewReader(pdfBytes), newConfiguration())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	// Both images are decoded and resampled exactly once; every placement
	// below shares the same normalized bytes.
	userImg, err := normalizeImage(userSig, s.layout.User.Spec)
	if err != nil {
		return nil, fmt.Errorf("user signature: %w", err)
	}
	autoImg, err := normalizeImage(autoSig, s.layout.Auto.Spec)
	if err != nil {
		return nil, fmt.Errorf("automatic signature: %w", err)
	}

	placements := make(map[int][]*model.Watermark)
	if err := s.place(placements, pageCount, s.layout.User, userImg, s.layout.DatePrefix+signedDateLabel); err != nil {
		return nil, err
	}
	if err := s.place(placements, pageCount, s.layout.Auto, autoImg, s.layout.Legend); err != nil {
		return nil, err
	}
	if len(placements) == 0 {
		return append([]byte(nil), pdfBytes...), nil
	}

	var stamped bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(pdfBytes), &stamped, placements, newConfiguration()); err != nil {
		return nil, fmt.Errorf("%w: failed to write stamps: %v", ErrMalformedDocument, err)
	}

	// Every placement carries its own copy of the image; optimizing merges
	// identical image streams so each signature is embedded once.
	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(stamped.Bytes()), &out, newConfiguration()); err != nil {
		return nil, fmt.Errorf("%w: failed to optimize stamped document: %v", ErrMalformedDocument, err)
	}
	return out.Bytes(), nil
}

// place appends an image and a caption watermark for every location of kind
// that falls inside the document. pdfcpu keys pages from 1.
func (s *Stamper) place(m map[int][]*model.Watermark, pageCount int, kind StampKind, img []byte, caption string) error {
	imgDesc := imageDescriptor()
	for _, loc := range kind.Locations {
		if loc.Page >= pageCount {
			continue
		}
		wmImg, err := api.ImageWatermarkForReader(bytes.NewReader(img), fmt.Sprintf(imgDesc, num(loc.SigX), num(loc.SigY)), true, false, types.POINTS)
		if err != nil {
			return fmt.Errorf("%w: page %d: %v", ErrImageDecode, loc.Page, err)
		}
		wmText, err := api.TextWatermark(caption, s.textDescriptor(loc), true, false, types.POINTS)
		if err != nil {
			return fmt.Errorf("failed to build caption for page %d: %w", loc.Page, err)
		}
		m[loc.Page+1] = append(m[loc.Page+1], wmImg, wmText)
	}
	return nil
}

// imageDescriptor returns a pdfcpu watermark description with the offset left
// as two %s verbs.
func imageDescriptor() string {
	return "position:bl, offset:%s %s, scalefactor:" + num(1.0/renderScale) + " abs, rotation:0, opacity:1"
}

// textDescriptor positions the caption box so the text baseline, which pdfcpu
// draws one descent above the box bottom, lands on (TextX, TextY).
func (s *Stamper) textDescriptor(loc SignatureLocation) string {
	y := loc.TextY - math.Ceil(font.Descent(s.layout.Font, s.layout.FontSize))
	return fmt.Sprintf("fontname:%s, points:%d, fillcolor:%s, position:bl, offset:%s %s, scalefactor:1 abs, rotation:0, opacity:1",
		s.layout.Font, s.layout.FontSize, s.layout.TextColor, num(loc.TextX), num(y))
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
