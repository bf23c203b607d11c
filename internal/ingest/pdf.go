package ingest

import (
	"bytes"
	"context"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

type pdfSource struct {
	r *pdf.Reader
}

// OpenPDF parses data in-process with github.com/ledongthuc/pdf.
func OpenPDF(_ context.Context, data []byte) (PageSource, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open pdf")
	}
	return &pdfSource{r: r}, nil
}

func (s *pdfSource) NumPages() int { return s.r.NumPage() }

func (s *pdfSource) PageText(_ context.Context, n int) (string, error) {
	page := s.r.Page(n)
	if page.V.IsNull() {
		return "", eris.Errorf("ingest: page %d missing", n)
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", eris.Wrapf(err, "ingest: page %d text", n)
	}
	return text, nil
}

func (s *pdfSource) Close() error { return nil }
