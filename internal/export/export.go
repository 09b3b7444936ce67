// Package export renders an extraction result into the supported download
// formats: page-grouped plain text, page-grouped markdown, and pretty-printed
// JSON with document-level metadata.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docuvision/docuvision/internal/pipeline"
)

// Format identifies an output rendering.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Render produces the named format for the given records. originalFilename is
// only used by the JSON format's metadata block.
func Render(format Format, records []pipeline.ContentRecord, originalFilename string) (string, error) {
	switch format {
	case FormatText:
		return Text(records), nil
	case FormatMarkdown:
		return Markdown(records), nil
	case FormatJSON:
		return JSON(records, originalFilename)
	default:
		return "", fmt.Errorf("unsupported export format: %q", format)
	}
}

// Text renders page-grouped, type-tagged plain text. Table content stays raw
// HTML inline.
func Text(records []pipeline.ContentRecord) string {
	lines := []string{
		"PDF CONTENT EXTRACTION RESULTS",
		strings.Repeat("=", 50),
		"",
	}

	currentPage := 1
	for _, rec := range records {
		if rec.Page != currentPage {
			lines = append(lines, fmt.Sprintf("\n--- PAGE %d ---\n", rec.Page))
			currentPage = rec.Page
		}

		lines = append(lines, fmt.Sprintf("[%s]", strings.ToUpper(rec.Type)))
		if rec.Type == "Table" {
			lines = append(lines, "TABLE CONTENT (HTML):")
		}
		lines = append(lines, rec.Content, "")
	}

	return strings.Join(lines, "\n")
}

// Markdown renders page-grouped markdown with type-specific prefixes.
func Markdown(records []pipeline.ContentRecord) string {
	lines := []string{"# PDF Content Extraction Results", ""}

	currentPage := 1
	for _, rec := range records {
		if rec.Page != currentPage {
			lines = append(lines, fmt.Sprintf("## Page %d", rec.Page), "")
			currentPage = rec.Page
		}

		switch rec.Type {
		case "Title":
			lines = append(lines, "### "+rec.Content)
		case "Table":
			lines = append(lines, "**Table:**", "", rec.Content)
		case "Image":
			lines = append(lines, "**Image Description:**", "", rec.Content)
		case "Formula":
			lines = append(lines, "**Formula:**", "", rec.Content)
		default:
			lines = append(lines, rec.Content)
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

type jsonExtractionInfo struct {
	TotalPages   int      `json:"total_pages"`
	ContentTypes []string `json:"content_types"`
}

type jsonMetadata struct {
	OriginalFilename string             `json:"original_filename"`
	TotalItems       int                `json:"total_items"`
	ExtractionInfo   jsonExtractionInfo `json:"extraction_info"`
}

type jsonDocument struct {
	Metadata jsonMetadata             `json:"metadata"`
	Content  []pipeline.ContentRecord `json:"content"`
}

// JSON renders the full result with document metadata, two-space indented,
// with non-ASCII and HTML characters preserved as-is.
func JSON(records []pipeline.ContentRecord, originalFilename string) (string, error) {
	totalPages := 0
	var types []string
	seen := map[string]bool{}
	for _, rec := range records {
		if rec.Page > totalPages {
			totalPages = rec.Page
		}
		if !seen[rec.Type] {
			seen[rec.Type] = true
			types = append(types, rec.Type)
		}
	}
	if types == nil {
		types = []string{}
	}
	if records == nil {
		records = []pipeline.ContentRecord{}
	}

	doc := jsonDocument{
		Metadata: jsonMetadata{
			OriginalFilename: originalFilename,
			TotalItems:       len(records),
			ExtractionInfo: jsonExtractionInfo{
				TotalPages:   totalPages,
				ContentTypes: types,
			},
		},
		Content: records,
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to encode JSON export: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
