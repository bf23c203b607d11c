package ingest

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToText extracts text using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// Open writes data to a temp file, runs pdftotext -layout once and splits the
// output into pages on form feeds.
func (p *PdfToText) Open(ctx context.Context, data []byte) (PageSource, error) {
	f, err := os.CreateTemp("", "sales-doc-*.pdf")
	if err != nil {
		return nil, eris.Wrap(err, "ingest: create temp file")
	}
	path := f.Name()
	defer os.Remove(path) //nolint:errcheck

	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "ingest: write temp file")
	}
	if err := f.Close(); err != nil {
		return nil, eris.Wrap(err, "ingest: close temp file")
	}

	cmd := exec.CommandContext(ctx, p.binPath, "-layout", path, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "ingest: pdftotext failed: %s", stderr.String())
	}

	pages := strings.Split(stdout.String(), "\f")
	// pdftotext ends every page, including the last, with a form feed.
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return textPages(pages), nil
}

type textPages []string

func (t textPages) NumPages() int { return len(t) }

func (t textPages) PageText(_ context.Context, n int) (string, error) {
	if n < 1 || n > len(t) {
		return "", eris.Errorf("ingest: page %d out of range", n)
	}
	return t[n-1], nil
}

func (t textPages) Close() error { return nil }
