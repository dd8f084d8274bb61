package types

// Completion statuses for Metadata.CompletionStatus. A run starts
// in_progress (checkpoint writes) and ends in exactly one of the
// terminal states.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusPartial    = "partial"
	StatusFailed     = "failed"
)

type Metadata struct {
	GeneratedAt      string `json:"generated_at"`
	Directory        string `json:"directory"`
	TotalFiles       int    `json:"total_files"`
	TotalSizeBytes   int64  `json:"total_codebase_size_bytes"`
	MaxTokenLimit    int    `json:"max_token_limit"`
	CompletionStatus string `json:"completion_status"`
	TotalBatches     int    `json:"total_batches"`
	CompletedBatches int    `json:"completed_batches"`
	FilesAnalyzed    int    `json:"files_analyzed"`
	CompletionTime   string `json:"completion_time,omitempty"`
	Optimized        bool   `json:"optimized,omitempty"`
	OptimizerModel   string `json:"optimizer_model,omitempty"`
}

// RunDocument is the one growing output document. Only the merger and
// the document builder mutate it; it is frozen after finalize.
type RunDocument struct {
	Metadata     Metadata                `json:"metadata"`
	FileTree     string                  `json:"file_tree"`
	FileAnalyses map[string]FileAnalysis `json:"file_analyses"`
}
