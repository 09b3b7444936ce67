// Package region crops image and formula regions out of rasterized PDF pages
// and prepares them for the vision model: padding, enhancement, and upscaling
// of regions too small to describe reliably.
package region

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/docuvision/docuvision/internal/partition"
	"github.com/docuvision/docuvision/internal/rasterize"
)

const (
	// cropPadding is added on every side of the element's bounding box so
	// the vision model sees a little surrounding context.
	cropPadding = 10

	// minCropSize rejects regions whose padded box is 50px or smaller on
	// either side; below this, vision output is unreliable noise.
	minCropSize = 50

	// minArtifactSize is the minimum side length of a persisted artifact.
	// Smaller crops are upscaled to this before encoding.
	minArtifactSize = 200

	sharpnessFactor = 2.0
	contrastFactor  = 1.5
)

// Artifact is a cropped, enhanced region image persisted as a temporary PNG.
// The caller owns its lifetime and must Remove it after use, on both success
// and failure paths.
type Artifact struct {
	Path   string
	Width  int
	Height int
}

// Remove deletes the artifact file. Safe to call on a nil artifact.
func (a *Artifact) Remove() {
	if a == nil || a.Path == "" {
		return
	}
	_ = os.Remove(a.Path)
}

// Extractor produces region artifacts from layout elements and rasterized
// pages. Extraction is best-effort: every failure is absorbed into a nil
// artifact so one bad region never aborts the run.
type Extractor struct {
	logger  *logrus.Logger
	tempDir string
}

// NewExtractor creates an extractor that writes artifacts under tempDir, or
// the system temp directory when tempDir is empty.
func NewExtractor(logger *logrus.Logger, tempDir string) *Extractor {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Extractor{logger: logger, tempDir: tempDir}
}

// Extract crops the element's region from its page, enhances it, and persists
// it as a PNG artifact. Returns nil when the element has no usable geometry,
// the page is out of range, the crop is too small, or any processing step
// fails. regionID is a run-scoped identifier used only for logging and file
// naming.
func (e *Extractor) Extract(element partition.Element, pages []rasterize.Page, regionID int) *Artifact {
	if !element.HasCoordinates() {
		e.logger.WithField("region", regionID).Warn("No coordinates for visual element, skipping")
		return nil
	}

	pageIdx := element.PageNumber - 1
	if pageIdx < 0 || pageIdx >= len(pages) {
		e.logger.WithFields(logrus.Fields{
			"region": regionID,
			"page":   element.PageNumber,
		}).Warn("Page not found in rasterized pages, skipping")
		return nil
	}
	page := pages[pageIdx]

	e.logger.WithFields(logrus.Fields{
		"region": regionID,
		"page":   element.PageNumber,
		"type":   element.Type,
	}).Info("Extracting region")

	box, ok := paddedBox(element.Coordinates, page)
	if !ok {
		e.logger.WithField("region", regionID).Warn("Crop dimensions too small, skipping")
		return nil
	}

	cropped := crop(page.Image, box)
	enhanced := enhanceContrast(enhanceSharpness(cropped, sharpnessFactor), contrastFactor)
	final := upscaleIfSmall(enhanced, minArtifactSize)

	path := filepath.Join(e.tempDir, fmt.Sprintf("region-%d-%s.png", regionID, uuid.NewString()))
	if err := writePNG(path, final); err != nil {
		e.logger.WithFields(logrus.Fields{
			"region": regionID,
			"error":  err,
		}).Error("Failed to persist region artifact")
		return nil
	}

	b := final.Bounds()
	return &Artifact{Path: path, Width: b.Dx(), Height: b.Dy()}
}

// paddedBox computes the axis-aligned bounding box of the polygon, pads it,
// clamps it to the page, and rejects boxes at or below the minimum crop size.
func paddedBox(points []partition.Point, page rasterize.Page) (image.Rectangle, bool) {
	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, pt := range points[1:] {
		if pt.X < minX {
			minX = pt.X
		}
		if pt.X > maxX {
			maxX = pt.X
		}
		if pt.Y < minY {
			minY = pt.Y
		}
		if pt.Y > maxY {
			maxY = pt.Y
		}
	}

	width, height := page.Bounds()
	left := clampInt(int(minX)-cropPadding, 0, width)
	right := clampInt(int(maxX)+cropPadding, 0, width)
	top := clampInt(int(minY)-cropPadding, 0, height)
	bottom := clampInt(int(maxY)+cropPadding, 0, height)

	if right-left <= minCropSize || bottom-top <= minCropSize {
		return image.Rectangle{}, false
	}
	return image.Rect(left, top, right, bottom), true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}
