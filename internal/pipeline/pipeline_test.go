package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuvision/docuvision/internal/partition"
	"github.com/docuvision/docuvision/internal/rasterize"
	"github.com/docuvision/docuvision/internal/region"
	"github.com/docuvision/docuvision/internal/vision"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type stubRasterizer struct {
	pages []rasterize.Page
	err   error
}

func (s stubRasterizer) Rasterize(_ context.Context, _ string) ([]rasterize.Page, error) {
	return s.pages, s.err
}

type stubPartitioner struct {
	elements []partition.Element
	err      error
}

func (s stubPartitioner) Partition(_ context.Context, _ string) ([]partition.Element, error) {
	return s.elements, s.err
}

// stubDescriber returns fixed text per kind and records how it was called.
type stubDescriber struct {
	calls []vision.Kind
}

func (s *stubDescriber) Describe(_ context.Context, imagePath string, kind vision.Kind) string {
	s.calls = append(s.calls, kind)
	if kind == vision.KindFormula {
		return "Equation: stub\n$x$\nDescription:\nstub formula."
	}
	return "Figure: stub\nA -> B\nDescription:\nstub diagram."
}

func testPage(number int) rasterize.Page {
	img := image.NewRGBA(image.Rect(0, 0, 1000, 800))
	for y := 0; y < 800; y++ {
		for x := 0; x < 1000; x++ {
			img.Set(x, y, color.RGBA{R: 180, G: 180, B: 180, A: 255})
		}
	}
	return rasterize.Page{PageNumber: number, Image: img}
}

func visualRect() []partition.Point {
	return []partition.Point{{X: 100, Y: 100}, {X: 400, Y: 100}, {X: 400, Y: 380}, {X: 100, Y: 380}}
}

// newTestPipeline wires stubs around a real region extractor that writes into
// tempDir, so temp artifact lifecycle is exercised for real.
func newTestPipeline(t *testing.T, pages []rasterize.Page, elements []partition.Element, describer vision.Describer) (*Pipeline, string) {
	t.Helper()
	tempDir := t.TempDir()
	p := New(
		testLogger(),
		stubRasterizer{pages: pages},
		stubPartitioner{elements: elements},
		region.NewExtractor(testLogger(), tempDir),
		describer,
	)
	return p, tempDir
}

func assertNoLeftoverArtifacts(t *testing.T, tempDir string) {
	t.Helper()
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary region artifacts must not outlive the run")
}

func TestProcessTitleTableImageScenario(t *testing.T) {
	pages := []rasterize.Page{testPage(1), testPage(2), testPage(3)}
	elements := []partition.Element{
		{Type: partition.ElementTitle, PageNumber: 1, Text: "  Introduction  "},
		{Type: partition.ElementTable, PageNumber: 2, TableHTML: "<table><tr><td>1</td></tr></table>"},
		{Type: partition.ElementImage, PageNumber: 3, Coordinates: visualRect()},
	}
	describer := &stubDescriber{}
	p, tempDir := newTestPipeline(t, pages, elements, describer)

	records, err := p.Process(context.Background(), "doc.pdf", Options{
		ProcessImages: true,
		ProcessTables: true,
	})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "Title", records[0].Type)
	assert.Equal(t, "Introduction", records[0].Content)
	assert.Equal(t, "title", records[0].Metadata["level"])

	assert.Equal(t, "Table", records[1].Type)
	assert.Equal(t, "<table><tr><td>1</td></tr></table>", records[1].Content)
	assert.Equal(t, "html", records[1].Metadata["format"])

	assert.Equal(t, "Image", records[2].Type)
	assert.Equal(t, 3, records[2].Page)
	assert.True(t, len(records[2].Content) > 0 && records[2].Content[:7] == "Figure:")
	assert.Equal(t, 0, records[2].Metadata["image_id"])

	assert.Equal(t, []vision.Kind{vision.KindImage}, describer.calls)
	assertNoLeftoverArtifacts(t, tempDir)
}

func TestProcessSharedCounterAcrossKinds(t *testing.T) {
	pages := []rasterize.Page{testPage(1)}
	elements := []partition.Element{
		{Type: partition.ElementImage, PageNumber: 1, Coordinates: visualRect()},
		{Type: partition.ElementFormula, PageNumber: 1, Coordinates: visualRect()},
		{Type: partition.ElementImage, PageNumber: 1, Coordinates: visualRect()},
	}
	describer := &stubDescriber{}
	p, tempDir := newTestPipeline(t, pages, elements, describer)

	records, err := p.Process(context.Background(), "doc.pdf", Options{
		ProcessImages:   true,
		ProcessFormulas: true,
	})
	require.NoError(t, err)
	require.Len(t, records, 3)

	// One counter across both kinds, not two.
	assert.Equal(t, 0, records[0].Metadata["image_id"])
	assert.Equal(t, 1, records[1].Metadata["formula_id"])
	assert.Equal(t, 2, records[2].Metadata["image_id"])
	assert.Equal(t, []vision.Kind{vision.KindImage, vision.KindFormula, vision.KindImage}, describer.calls)
	assertNoLeftoverArtifacts(t, tempDir)
}

func TestProcessDisabledImagesFallThrough(t *testing.T) {
	pages := []rasterize.Page{testPage(1)}
	elements := []partition.Element{
		{Type: partition.ElementImage, PageNumber: 1, Coordinates: visualRect()},
		{Type: partition.ElementNarrativeText, PageNumber: 1, Text: "Body."},
	}
	describer := &stubDescriber{}
	p, tempDir := newTestPipeline(t, pages, elements, describer)

	records, err := p.Process(context.Background(), "doc.pdf", Options{})
	require.NoError(t, err)

	// The image element has no text, so it drops out entirely and no id is
	// ever assigned.
	require.Len(t, records, 1)
	assert.Equal(t, "NarrativeText", records[0].Type)
	assert.Empty(t, describer.calls)
	assertNoLeftoverArtifacts(t, tempDir)
}

func TestProcessDisabledTablesFallThrough(t *testing.T) {
	pages := []rasterize.Page{testPage(1)}
	elements := []partition.Element{
		{Type: partition.ElementTable, PageNumber: 1, Text: "raw table text", TableHTML: "<table></table>"},
	}
	p, _ := newTestPipeline(t, pages, elements, &stubDescriber{})

	records, err := p.Process(context.Background(), "doc.pdf", Options{ProcessTables: false})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "raw table text", records[0].Content)
	assert.NotContains(t, records[0].Metadata, "format")
}

func TestProcessExtractionFailureSentinels(t *testing.T) {
	pages := []rasterize.Page{testPage(1)}
	elements := []partition.Element{
		// No coordinates at all.
		{Type: partition.ElementImage, PageNumber: 1},
		// Page index out of range.
		{Type: partition.ElementFormula, PageNumber: 9, Coordinates: visualRect()},
		// Crop below the minimum size.
		{Type: partition.ElementImage, PageNumber: 1, Coordinates: []partition.Point{
			{X: 100, Y: 100}, {X: 120, Y: 100}, {X: 120, Y: 120}, {X: 100, Y: 120},
		}},
	}
	describer := &stubDescriber{}
	p, tempDir := newTestPipeline(t, pages, elements, describer)

	records, err := p.Process(context.Background(), "doc.pdf", Options{
		ProcessImages:   true,
		ProcessFormulas: true,
	})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "Image description: [Extraction failed]", records[0].Content)
	assert.Equal(t, "Formula description: [Extraction failed]", records[1].Content)
	assert.Equal(t, "Image description: [Extraction failed]", records[2].Content)

	// Failed extractions still consume counter slots but never assign ids.
	for _, rec := range records {
		assert.NotContains(t, rec.Metadata, "image_id")
		assert.NotContains(t, rec.Metadata, "formula_id")
	}
	assert.Empty(t, describer.calls)
	assertNoLeftoverArtifacts(t, tempDir)
}

func TestProcessDropsEmptyContent(t *testing.T) {
	pages := []rasterize.Page{testPage(1)}
	elements := []partition.Element{
		{Type: partition.ElementNarrativeText, PageNumber: 1, Text: "   \n\t "},
		{Type: partition.ElementNarrativeText, PageNumber: 1, Text: "kept"},
		{Type: partition.ElementHeader, PageNumber: 1, Text: ""},
		{Type: partition.ElementListItem, PageNumber: 1, Text: "also kept"},
	}
	p, _ := newTestPipeline(t, pages, elements, &stubDescriber{})

	records, err := p.Process(context.Background(), "doc.pdf", Options{})
	require.NoError(t, err)

	// Order is a subsequence of partitioner order with blanks removed.
	require.Len(t, records, 2)
	assert.Equal(t, "kept", records[0].Content)
	assert.Equal(t, "also kept", records[1].Content)
}

func TestProcessProgressIsMonotonic(t *testing.T) {
	pages := []rasterize.Page{testPage(1)}
	var elements []partition.Element
	for i := 0; i < 7; i++ {
		elements = append(elements, partition.Element{
			Type: partition.ElementNarrativeText, PageNumber: 1, Text: fmt.Sprintf("paragraph %d", i),
		})
	}
	p, _ := newTestPipeline(t, pages, elements, &stubDescriber{})

	var percents []float64
	_, err := p.Process(context.Background(), "doc.pdf", Options{
		Progress: func(_ string, percent float64) { percents = append(percents, percent) },
	})
	require.NoError(t, err)

	require.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1], "progress must never decrease")
	}
	assert.Equal(t, 10.0, percents[0])
	assert.Equal(t, 100.0, percents[len(percents)-1])
	for _, pct := range percents {
		assert.GreaterOrEqual(t, pct, 0.0)
		assert.LessOrEqual(t, pct, 100.0)
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	pages := []rasterize.Page{testPage(1), testPage(2)}
	elements := []partition.Element{
		{Type: partition.ElementTitle, PageNumber: 1, Text: "Title"},
		{Type: partition.ElementImage, PageNumber: 2, Coordinates: visualRect()},
		{Type: partition.ElementFormula, PageNumber: 2, Coordinates: visualRect()},
	}
	p, _ := newTestPipeline(t, pages, elements, &stubDescriber{})
	opts := Options{ProcessImages: true, ProcessFormulas: true, ProcessTables: true}

	first, err := p.Process(context.Background(), "doc.pdf", opts)
	require.NoError(t, err)
	second, err := p.Process(context.Background(), "doc.pdf", opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestProcessRasterizationFailureIsFatal(t *testing.T) {
	p := New(
		testLogger(),
		stubRasterizer{err: errors.New("corrupt file")},
		stubPartitioner{},
		region.NewExtractor(testLogger(), t.TempDir()),
		&stubDescriber{},
	)

	records, err := p.Process(context.Background(), "doc.pdf", Options{})
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Contains(t, err.Error(), "rasterization failed")
}

func TestProcessPartitioningFailureIsFatal(t *testing.T) {
	p := New(
		testLogger(),
		stubRasterizer{pages: []rasterize.Page{testPage(1)}},
		stubPartitioner{err: errors.New("backend down")},
		region.NewExtractor(testLogger(), t.TempDir()),
		&stubDescriber{},
	)

	records, err := p.Process(context.Background(), "doc.pdf", Options{})
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Contains(t, err.Error(), "partitioning failed")
}

func TestProcessNoElements(t *testing.T) {
	p, _ := newTestPipeline(t, []rasterize.Page{testPage(1)}, nil, &stubDescriber{})

	var percents []float64
	records, err := p.Process(context.Background(), "doc.pdf", Options{
		Progress: func(_ string, percent float64) { percents = append(percents, percent) },
	})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 100.0, percents[len(percents)-1])
}
