package store

// BulkAction is the kind of one bulk item operation.
type BulkAction string

// Bulk actions.
const (
	ActionIndex  BulkAction = "index"
	ActionUpdate BulkAction = "update"
	ActionDelete BulkAction = "delete"
)

// Script is a server-side update script with parameters.
type Script struct {
	Source string         `json:"source"`
	Params map[string]any `json:"params,omitempty"`
}

// DocumentOp describes one single-document write.
type DocumentOp struct {
	ID  string
	Doc map[string]any
	// Script, when set, turns the write into a scripted update.
	Script *Script
	// DocAsUpsert merges Doc into an existing document, creating it when
	// absent.
	DocAsUpsert bool
}

// BulkOp is one item of a bulk call.
type BulkOp struct {
	Action      BulkAction
	ID          string
	Doc         map[string]any
	Script      *Script
	DocAsUpsert bool
}

// BulkItemOutcome is the backend's per-item bulk result.
type BulkItemOutcome struct {
	ID     string
	OK     bool
	Status int
	// Reason is the flattened structured error for failed items.
	Reason string
}

// SortField orders results by one field.
type SortField struct {
	Field     string
	Ascending bool
}

// SearchRequest is the query DSL input plus windowing and presentation.
type SearchRequest struct {
	// Query is the compiled query DSL fragment.
	Query map[string]any
	Size  int
	// From is the zero-based backend offset (direct windowing only).
	From int
	Sort []SortField
	// Highlight lists field patterns to highlight; empty disables it.
	Highlight []string
	MinScore  float64
}

// Hit is one scored search hit.
type Hit struct {
	ID        string
	Score     float64
	Source    map[string]any
	Highlight map[string][]string
}

// SearchResponse carries scored hits, the backend total, and, for scrolled
// queries, the cursor token.
type SearchResponse struct {
	Total    int
	Hits     []Hit
	ScrollID string
}

// IndexMeta is the settings/mappings snapshot of one index, including the
// internal identity used to detect drop-and-recreate under the same name.
type IndexMeta struct {
	Name string
	// UUID is the internal index identity.
	UUID string
	// MaxResultWindow is the index's configured maximum direct page size;
	// zero when not reported.
	MaxResultWindow int
	Settings        map[string]any
	Mappings        map[string]any
}
