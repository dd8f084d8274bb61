package types

// Pipeline inputs ----------------------------------------------------------------

// CandidateFile is one discovered source file. Immutable once scanned.
type CandidateFile struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Content   string `json:"-"`
}

// AllocatedFile is a candidate plus its token allowance and the excerpt
// that will actually be sent to the backend. Excerpt is always a prefix
// of Content, cut at a rune boundary.
type AllocatedFile struct {
	CandidateFile
	TokenBudget int
	Truncated   bool
	Excerpt     string
}

// Batch is a fixed-size, order-preserving group of allocated files
// dispatched to the backend in one call. Ordinals are 0-based and dense.
type Batch struct {
	Ordinal int
	Members []AllocatedFile
}

// TokenBudget is the batch's aggregate allowance: the sum of its members'.
func (b Batch) TokenBudget() int {
	total := 0
	for _, m := range b.Members {
		total += m.TokenBudget
	}
	return total
}

func (b Batch) Paths() []string {
	paths := make([]string, len(b.Members))
	for i, m := range b.Members {
		paths[i] = m.Path
	}
	return paths
}

// Run accounting ------------------------------------------------------------------

// BatchError records one failed batch. The run keeps going; the error is
// kept so the caller can report what was downgraded to placeholders.
type BatchError struct {
	Ordinal int
	Paths   []string
	Kind    string // "backend" or "malformed"
	Err     error
}

// Reasons a run halts before visiting every batch. An early halt is a
// normal outcome, not a fault; it finalizes as "partial".
const (
	HaltBudgetExceeded = "budget exceeded"
	HaltCanceled       = "canceled"
)

// RunState holds the counters for one invocation. It is threaded through
// the dispatcher and returned, never shared, and discarded after the
// document is serialized.
type RunState struct {
	FilesProcessed   int
	EstimatedTokens  int
	BatchesCompleted int
	Halted           bool
	HaltReason       string // empty unless Halted
	Errors           []BatchError
}
