// Package partition segments a PDF into an ordered sequence of typed layout
// elements (titles, tables, images, formulas, narrative text) by calling an
// external layout-analysis backend. The rest of the pipeline depends only on
// the Partitioner interface and the Element shape, so the backend can be
// swapped or stubbed.
package partition

import "context"

// ElementType identifies the layout class assigned to an element by the
// layout-analysis model.
type ElementType string

const (
	ElementTitle         ElementType = "Title"
	ElementTable         ElementType = "Table"
	ElementImage         ElementType = "Image"
	ElementFormula       ElementType = "Formula"
	ElementNarrativeText ElementType = "NarrativeText"
	ElementListItem      ElementType = "ListItem"
	ElementHeader        ElementType = "Header"
	ElementFooter        ElementType = "Footer"
)

// Point is a single vertex of an element's bounding polygon, in the raster
// coordinate space of the page the element belongs to.
type Point struct {
	X float64
	Y float64
}

// Element is one typed, positioned unit of document content as returned by
// the layout backend. Immutable once produced.
type Element struct {
	Type        ElementType
	PageNumber  int     // 1-indexed
	Text        string  // plain text content, may be empty
	Coordinates []Point // bounding polygon, nil when the backend supplied none
	TableHTML   string  // HTML rendering of the table structure, tables only
}

// HasCoordinates reports whether the element carries usable geometry.
func (e Element) HasCoordinates() bool {
	return len(e.Coordinates) > 0
}

// Partitioner segments a PDF file into ordered layout elements. A failure is
// fatal to the extraction run: without the element sequence there is nothing
// to process.
type Partitioner interface {
	Partition(ctx context.Context, pdfPath string) ([]Element, error)
}
