// Package pipeline orchestrates PDF content extraction: rasterize the pages,
// partition the document into typed layout elements, crop and describe visual
// regions, and assemble an ordered list of content records.
//
// Processing is strictly sequential. Elements are handled one at a time in
// partitioner order: the vision backend may rate-limit, sequential calls keep
// progress reporting naturally ordered, and concurrent request count stays
// bounded at one.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/docuvision/docuvision/internal/partition"
	"github.com/docuvision/docuvision/internal/rasterize"
	"github.com/docuvision/docuvision/internal/region"
	"github.com/docuvision/docuvision/internal/vision"
)

// Pipeline wires the extraction stages together. Construct once, run many
// times; all mutable state lives in a per-run context so concurrent runs stay
// safe if ever parallelized.
type Pipeline struct {
	logger      *logrus.Logger
	rasterizer  rasterize.Rasterizer
	partitioner partition.Partitioner
	extractor   *region.Extractor
	describer   vision.Describer
}

// New assembles a pipeline from its collaborators.
func New(logger *logrus.Logger, rasterizer rasterize.Rasterizer, partitioner partition.Partitioner, extractor *region.Extractor, describer vision.Describer) *Pipeline {
	return &Pipeline{
		logger:      logger,
		rasterizer:  rasterizer,
		partitioner: partitioner,
		extractor:   extractor,
		describer:   describer,
	}
}

// run holds the mutable state of one extraction: the rasterized pages, the
// shared image/formula counter, and the temporary artifacts still on disk.
type run struct {
	id            string
	pages         []rasterize.Page
	regionCounter int
	tempFiles     map[string]struct{}
}

func (r *run) track(path string) { r.tempFiles[path] = struct{}{} }
func (r *run) untrack(path string) { delete(r.tempFiles, path) }

// cleanup removes any artifact that was not already released on its element's
// own success/failure path, so an abandoned run never leaks files.
func (r *run) cleanup() {
	for path := range r.tempFiles {
		_ = os.Remove(path)
	}
	r.tempFiles = map[string]struct{}{}
}

// Process extracts all content from the PDF at pdfPath. Rasterization and
// partitioning failures are fatal and propagate; every per-element failure is
// absorbed into a sentinel content string so one bad element never affects
// its siblings. The returned records keep partitioner order with
// empty-content items dropped.
func (p *Pipeline) Process(ctx context.Context, pdfPath string, opts Options) ([]ContentRecord, error) {
	r := &run{id: uuid.NewString(), tempFiles: map[string]struct{}{}}
	defer r.cleanup()

	log := p.logger.WithFields(logrus.Fields{"run": r.id, "file": pdfPath})

	report(opts.Progress, "Converting PDF to images...", 10)
	pages, err := p.rasterizer.Rasterize(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("rasterization failed: %w", err)
	}
	r.pages = pages

	report(opts.Progress, "Extracting PDF elements...", 20)
	elements, err := p.partitioner.Partition(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("partitioning failed: %w", err)
	}

	report(opts.Progress, "Processing elements...", 30)

	records := make([]ContentRecord, 0, len(elements))
	total := len(elements)
	for idx, element := range elements {
		report(opts.Progress, "Processing elements...", 30+float64(idx)/float64(total)*60)

		rec := p.processElement(ctx, r, element, opts)
		if strings.TrimSpace(rec.Content) != "" {
			records = append(records, rec)
		}
	}

	report(opts.Progress, "Finalizing results...", 100)
	log.WithField("records", len(records)).Info("Extraction complete")
	return records, nil
}

// processElement builds the content record for one element, branching on its
// declared type and the run's feature toggles.
func (p *Pipeline) processElement(ctx context.Context, r *run, element partition.Element, opts Options) ContentRecord {
	rec := ContentRecord{
		Type:     string(element.Type),
		Page:     element.PageNumber,
		Metadata: map[string]any{},
	}

	switch {
	case element.Type == partition.ElementTitle:
		rec.Content = strings.TrimSpace(element.Text)
		rec.Metadata["level"] = "title"

	case element.Type == partition.ElementTable && opts.ProcessTables:
		// The partitioner's HTML rendering passes through verbatim.
		rec.Content = element.TableHTML
		rec.Metadata["format"] = "html"

	case element.Type == partition.ElementImage && opts.ProcessImages:
		rec.Content = p.describeRegion(ctx, r, element, vision.KindImage, &rec)

	case element.Type == partition.ElementFormula && opts.ProcessFormulas:
		rec.Content = p.describeRegion(ctx, r, element, vision.KindFormula, &rec)

	default:
		rec.Content = strings.TrimSpace(element.Text)
	}

	return rec
}

// describeRegion crops the element's region and sends it to the vision model.
// The shared counter advances for every image/formula element routed here,
// whether or not an artifact was produced; the id metadata is only assigned
// when a description was actually attempted.
func (p *Pipeline) describeRegion(ctx context.Context, r *run, element partition.Element, kind vision.Kind, rec *ContentRecord) string {
	regionID := r.regionCounter
	r.regionCounter++

	artifact := p.extractor.Extract(element, r.pages, regionID)
	if artifact == nil {
		return vision.ExtractionFailedSentinel(kind)
	}
	r.track(artifact.Path)
	// Release the artifact as soon as the description returns; disk usage
	// must stay bounded across multi-hundred-element documents.
	defer func() {
		artifact.Remove()
		r.untrack(artifact.Path)
	}()

	description := p.describer.Describe(ctx, artifact.Path, kind)

	switch kind {
	case vision.KindFormula:
		rec.Metadata["formula_id"] = regionID
	default:
		rec.Metadata["image_id"] = regionID
	}
	return description
}

func report(progress ProgressFunc, message string, percent float64) {
	if progress != nil {
		progress(message, percent)
	}
}
