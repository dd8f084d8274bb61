// Package budget turns a global token ceiling into per-file allowances.
//
// Every file gets a share of the ceiling proportional to its byte size,
// and an excerpt of its content sized to that share. Allowances left
// unused by small files are not redistributed.
package budget

import (
	"fmt"
	"unicode/utf8"

	t "codebrief/internal/types"
)

// BytesPerToken approximates how many bytes of source one model token
// covers. Fixed by convention; nothing downstream may assume exact
// token accounting, only rough proportionality.
const BytesPerToken = 4

// TruncationLimit caps any single excerpt, whatever its allowance says.
// Keeps one huge file from dominating a batch prompt.
const TruncationLimit = 35000

// AllocationError reports degenerate discovery input. It fails the whole
// run before any batch is dispatched.
type AllocationError struct {
	Path   string
	Reason string
}

func (e *AllocationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("allocate %s: %s", e.Path, e.Reason)
	}
	return "allocate: " + e.Reason
}

// Allocate computes each file's token allowance and the content excerpt
// that fits it. Order-preserving, one output per input. An empty input
// allocates nothing. Zero-size files stay in the output with a zero
// allowance so they are never silently dropped downstream.
func Allocate(files []t.CandidateFile, maxTokenLimit int) ([]t.AllocatedFile, error) {
	if maxTokenLimit <= 0 {
		return nil, &AllocationError{Reason: fmt.Sprintf("max token limit %d, want > 0", maxTokenLimit)}
	}
	var total int64
	for _, f := range files {
		if f.SizeBytes < 0 {
			return nil, &AllocationError{Path: f.Path, Reason: fmt.Sprintf("negative size %d", f.SizeBytes)}
		}
		total += f.SizeBytes
	}
	if len(files) == 0 {
		return nil, nil
	}

	out := make([]t.AllocatedFile, 0, len(files))
	for _, f := range files {
		share := 0
		if total > 0 {
			share = int(int64(maxTokenLimit) * f.SizeBytes / total)
		}
		limit := share * BytesPerToken
		if limit > TruncationLimit {
			limit = TruncationLimit
		}
		af := t.AllocatedFile{CandidateFile: f, TokenBudget: share}
		af.Excerpt, af.Truncated = cutPrefix(f.Content, limit)
		out = append(out, af)
	}
	return out, nil
}

// cutPrefix returns at most limit bytes of s, backing off so a multi-byte
// rune is never split. The second return reports whether anything was cut.
func cutPrefix(s string, limit int) (string, bool) {
	if limit < 0 {
		limit = 0
	}
	if len(s) <= limit {
		return s, false
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}
