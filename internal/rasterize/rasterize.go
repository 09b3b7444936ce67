// Package rasterize renders PDF pages to in-memory bitmaps for region
// cropping. Region extraction needs complete page coverage, so any failure
// here is fatal to the extraction run.
package rasterize

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sirupsen/logrus"
)

// DPI is the fixed rendering resolution. 200 DPI keeps cropped regions
// legible for the vision model without blowing up memory on long documents.
const DPI = 200

// Page is one rendered PDF page. PageNumber is 1-indexed, matching the page
// numbers reported by the layout backend.
type Page struct {
	PageNumber int
	Image      *image.RGBA
}

// Bounds returns the pixel dimensions of the rendered page.
func (p Page) Bounds() (width, height int) {
	b := p.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Rasterizer renders every page of a PDF at a fixed DPI.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string) ([]Page, error)
}

// Renderer is the production Rasterizer, backed by MuPDF via go-fitz.
type Renderer struct {
	logger *logrus.Logger
}

// NewRenderer creates a page renderer that logs through the given logger.
func NewRenderer(logger *logrus.Logger) *Renderer {
	return &Renderer{logger: logger}
}

// Rasterize validates the PDF and renders all pages in order. The returned
// slice is 0-indexed; page N lives at index N-1.
func (r *Renderer) Rasterize(ctx context.Context, pdfPath string) ([]Page, error) {
	if err := validatePDF(pdfPath); err != nil {
		return nil, err
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", filepath.Base(pdfPath), err)
	}
	defer func() { _ = doc.Close() }()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, fmt.Errorf("PDF %s has no pages", filepath.Base(pdfPath))
	}

	r.logger.WithFields(logrus.Fields{
		"file":  filepath.Base(pdfPath),
		"pages": pageCount,
		"dpi":   DPI,
	}).Info("Rasterizing PDF pages")

	pages := make([]Page, 0, pageCount)
	for pageIdx := 0; pageIdx < pageCount; pageIdx++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(pageIdx, DPI)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", pageIdx+1, err)
		}
		pages = append(pages, Page{PageNumber: pageIdx + 1, Image: img})
	}

	return pages, nil
}

// validatePDF rejects paths that cannot possibly rasterize before handing
// them to MuPDF: missing files, directories, wrong extensions, and documents
// that fail pdfcpu's structural validation.
func validatePDF(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("PDF path cannot be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("PDF does not exist: %s", path)
		}
		return fmt.Errorf("cannot access PDF %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a PDF: %s", path)
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".pdf" {
		return fmt.Errorf("file is not a PDF (extension %q): %s", ext, path)
	}

	if _, err := api.PageCountFile(path); err != nil {
		return fmt.Errorf("invalid or corrupt PDF %s: %w", filepath.Base(path), err)
	}
	return nil
}
