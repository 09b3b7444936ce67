package pipeline

// ContentRecord is the normalized unit of extracted document content. One
// record derives from exactly one layout element; records keep the
// partitioner's order.
type ContentRecord struct {
	Type     string         `json:"type"`
	Page     int            `json:"page"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// ProgressFunc receives advisory progress updates as a message plus a
// monotonically non-decreasing percentage in [0,100]. It must not be relied
// on for control flow; a nil callback is valid.
type ProgressFunc func(message string, percent float64)

// Options are the per-run feature toggles supplied by the caller. Each switch
// is independent; a disabled type falls through to the generic text branch.
type Options struct {
	ProcessImages   bool
	ProcessFormulas bool
	ProcessTables   bool
	Progress        ProgressFunc
}
