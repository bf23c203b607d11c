// Package ingest extracts plain text from uploaded PDF documents, one page
// at a time, so a single corrupt page never loses the rest of the document.
package ingest

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-assistant/internal/config"
	"github.com/sells-group/sales-assistant/internal/model"
)

// PageSeparator joins page texts in DocumentText.Text.
const PageSeparator = "\n\f\n"

// DefaultMaxBytes caps the size of an accepted document.
const DefaultMaxBytes = 20 << 20

// PageSource gives access to the pages of one opened document.
type PageSource interface {
	NumPages() int
	// PageText returns the text of page n (1-based).
	PageText(ctx context.Context, n int) (string, error)
	Close() error
}

// Opener opens raw document bytes as a PageSource.
type Opener func(ctx context.Context, data []byte) (PageSource, error)

// Ingestor turns PDF bytes into DocumentText.
type Ingestor struct {
	open     Opener
	maxBytes int64
}

// New returns an Ingestor using open. A maxBytes of zero uses DefaultMaxBytes.
func New(open Opener, maxBytes int64) *Ingestor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Ingestor{open: open, maxBytes: maxBytes}
}

// NewFromConfig creates an Ingestor based on config.
func NewFromConfig(cfg config.IngestConfig) (*Ingestor, error) {
	switch cfg.Provider {
	case "local", "":
		return New(OpenPDF, cfg.MaxBytes), nil
	case "pdftotext":
		return New(NewPdfToText(cfg.PdfToTextPath).Open, cfg.MaxBytes), nil
	default:
		return nil, eris.Errorf("ingest: unknown provider %q", cfg.Provider)
	}
}

// ExtractText extracts every page in order. A page that fails contributes an
// empty segment and is recorded in Pages; the document is never aborted
// because of one page.
func (in *Ingestor) ExtractText(ctx context.Context, name string, data []byte) model.DocumentText {
	doc := model.DocumentText{Name: name, Pages: []model.PageText{}}
	if len(data) == 0 {
		doc.Status = model.DocumentAbsent
		return doc
	}
	if int64(len(data)) > in.maxBytes {
		zap.L().Warn("ingest: document too large",
			zap.String("name", name),
			zap.Int("bytes", len(data)),
			zap.Int64("max_bytes", in.maxBytes),
		)
		doc.Status = model.DocumentNoText
		return doc
	}

	src, err := in.openSafe(ctx, data)
	if err != nil {
		zap.L().Warn("ingest: open document", zap.String("name", name), zap.Error(err))
		doc.Status = model.DocumentNoText
		return doc
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			zap.L().Debug("ingest: close document", zap.Error(cerr))
		}
	}()

	n := src.NumPages()
	texts := make([]string, 0, n)
	failed := 0
	for i := 1; i <= n; i++ {
		text, perr := pageTextSafe(ctx, src, i)
		page := model.PageText{Number: i, Text: strings.TrimSpace(text)}
		if perr != nil {
			failed++
			page.Text = ""
			page.Error = perr.Error()
			zap.L().Debug("ingest: page failed",
				zap.String("name", name),
				zap.Int("page", i),
				zap.Error(perr),
			)
		}
		doc.Pages = append(doc.Pages, page)
		texts = append(texts, page.Text)
	}

	doc.Text = strings.Join(texts, PageSeparator)
	blank := strings.TrimSpace(strings.ReplaceAll(doc.Text, "\f", "")) == ""
	switch {
	case n > 0 && failed == n:
		doc.Status = model.DocumentNoText
		doc.Text = ""
	case failed > 0 && blank:
		doc.Status = model.DocumentNoText
	case failed > 0:
		doc.Status = model.DocumentPartial
	case blank:
		doc.Status = model.DocumentEmpty
	default:
		doc.Status = model.DocumentOK
	}

	zap.L().Debug("ingest: document extracted",
		zap.String("name", name),
		zap.Int("pages", n),
		zap.Int("failed", failed),
		zap.String("status", string(doc.Status)),
	)
	return doc
}

func (in *Ingestor) openSafe(ctx context.Context, data []byte) (src PageSource, err error) {
	defer func() {
		if r := recover(); r != nil {
			src = nil
			err = eris.Errorf("ingest: panic opening document: %v", r)
		}
	}()
	return in.open(ctx, data)
}

// pageTextSafe recovers panics raised by parsers on corrupt page streams.
func pageTextSafe(ctx context.Context, src PageSource, n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = eris.Errorf("ingest: panic extracting page %d: %v", n, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return src.PageText(ctx, n)
}
