package stamper

import (
	"bytes"
	"fmt"

	"github.com/digitorus/pdf"
)

// PageSummary describes one page of an inspected document.
type PageSummary struct {
	Index    int      `json:"index"`
	XObjects []string `json:"xobjects"`
	// Images counts image XObjects reachable from the page, including those
	// nested inside form XObjects.
	Images int `json:"images"`
}

// Summary is the result of Inspect.
type Summary struct {
	Pages []PageSummary `json:"pages"`
}

// PageCount returns the number of pages in the summary.
func (s *Summary) PageCount() int {
	return len(s.Pages)
}

// Inspect parses pdfBytes with an independent reader and lists the XObject
// resources of every page. Stamps show up as additional XObjects.
func Inspect(pdfBytes []byte) (summary *Summary, err error) {
	// The reader panics on some corrupt inputs instead of returning an error.
	defer func() {
		if r := recover(); r != nil {
			summary, err = nil, fmt.Errorf("%w: %v", ErrMalformedDocument, r)
		}
	}()

	rdr, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	n := rdr.NumPage()
	summary = &Summary{Pages: make([]PageSummary, 0, n)}
	for i := 1; i <= n; i++ {
		page := rdr.Page(i)
		xobjects := page.Resources().Key("XObject")
		summary.Pages = append(summary.Pages, PageSummary{
			Index:    i - 1,
			XObjects: xobjects.Keys(),
			Images:   countImages(xobjects, 0),
		})
	}
	return summary, nil
}

const maxFormDepth = 8

func countImages(xobjects pdf.Value, depth int) int {
	if depth > maxFormDepth {
		return 0
	}
	n := 0
	for _, name := range xobjects.Keys() {
		xo := xobjects.Key(name)
		switch xo.Key("Subtype").Name() {
		case "Image":
			n++
		case "Form":
			n += countImages(xo.Key("Resources").Key("XObject"), depth+1)
		}
	}
	return n
}
