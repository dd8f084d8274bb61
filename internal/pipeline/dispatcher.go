package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"codebrief/internal/document"
	"codebrief/internal/llm"
	t "codebrief/internal/types"
)

// AnalysisCache persists finished per-file analyses across runs, keyed
// by path, excerpt and model. Implementations never store placeholders.
type AnalysisCache interface {
	Get(path, excerpt, model string) (t.FileAnalysis, bool)
	Put(path, excerpt, model string, a t.FileAnalysis)
}

// Dispatcher drives batches through the backend strictly one at a time,
// in ordinal order, merging every outcome into the run document. Batch
// failures become placeholders, never aborts; only the cumulative size
// guard (or caller cancellation) stops a run early.
type Dispatcher struct {
	Analyzer  *Analyzer
	SizeGuard int           // cumulative estimated-token ceiling; 0 disables
	Pause     time.Duration // delay between consecutive backend calls
	Cache     AnalysisCache // optional
	OnBatch   func(doc *t.RunDocument, state t.RunState) error
	Log       *log.Logger
	Verbose   bool
}

// Run processes batches in order and reports the final counters. The
// document accumulates one entry per file across all batches, real or
// placeholder. Cancellation is honored between batches, never mid-merge.
func (d *Dispatcher) Run(ctx context.Context, doc *t.RunDocument, batches []t.Batch) t.RunState {
	logger := d.Log
	if logger == nil {
		logger = log.Default()
	}
	var state t.RunState
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			logger.Printf("run canceled before batch %d/%d: %v", i+1, len(batches), err)
			state.Halted = true
			state.HaltReason = t.HaltCanceled
			skipRemaining(doc, batches[i:], "Skipped: run canceled")
			document.Checkpoint(doc, state)
			break
		}

		logger.Printf("processing batch %d/%d (%d files)", i+1, len(batches), len(b.Members))
		if d.Verbose {
			logger.Printf("batch %d budget: %d tokens across %v", b.Ordinal, b.TokenBudget(), b.Paths())
		}

		if d.serveFromCache(doc, b) {
			logger.Printf("batch %d/%d served from cache", i+1, len(batches))
			state.FilesProcessed += len(b.Members)
			state.EstimatedTokens += b.TokenBudget()
			state.BatchesCompleted++
		} else {
			bctx := llm.WithStage(ctx, fmt.Sprintf("batch %d/%d", i+1, len(batches)))
			results, err := d.Analyzer.Analyze(bctx, b)
			if err != nil {
				d.recordFailure(doc, &state, b, err, logger)
			} else {
				model := d.Analyzer.LLM.Name()
				for _, m := range b.Members {
					a, ok := results[m.Path]
					if !ok {
						a = t.NewPlaceholder("No analysis returned for this file", "")
					}
					document.Merge(doc, m.Path, a)
					if ok && d.Cache != nil && !a.Placeholder() {
						d.Cache.Put(m.Path, m.Excerpt, model, a)
					}
				}
				state.FilesProcessed += len(b.Members)
				state.EstimatedTokens += b.TokenBudget()
			}
			state.BatchesCompleted++
		}

		d.checkpoint(doc, state, logger)

		if d.SizeGuard > 0 && state.EstimatedTokens >= d.SizeGuard && i+1 < len(batches) {
			logger.Printf("size guard tripped at %d tokens (ceiling %d); skipping %d remaining batches",
				state.EstimatedTokens, d.SizeGuard, len(batches)-i-1)
			state.Halted = true
			state.HaltReason = t.HaltBudgetExceeded
			skipRemaining(doc, batches[i+1:], "Skipped: cumulative token budget exhausted")
			d.checkpoint(doc, state, logger)
			break
		}

		if d.Pause > 0 && i+1 < len(batches) {
			logger.Printf("pausing %s before next batch", d.Pause)
			select {
			case <-ctx.Done():
			case <-time.After(d.Pause):
			}
		}
	}
	return state
}

func (d *Dispatcher) recordFailure(doc *t.RunDocument, state *t.RunState, b t.Batch, err error, logger *log.Logger) {
	kind := "backend"
	note := fmt.Sprintf("Analysis failed: %v", err)
	raw := ""
	var mErr *MalformedResponseError
	if errors.As(err, &mErr) {
		kind = "malformed"
		note = "Failed to parse analysis"
		raw = string(mErr.Raw)
	}
	logger.Printf("batch %d failed (%s): %v", b.Ordinal, kind, err)
	state.Errors = append(state.Errors, t.BatchError{Ordinal: b.Ordinal, Paths: b.Paths(), Kind: kind, Err: err})
	for _, m := range b.Members {
		document.Merge(doc, m.Path, t.NewPlaceholder(note, raw))
	}
}

// serveFromCache merges cached analyses for the whole batch, or leaves
// the document untouched when any member misses.
func (d *Dispatcher) serveFromCache(doc *t.RunDocument, b t.Batch) bool {
	if d.Cache == nil {
		return false
	}
	model := d.Analyzer.LLM.Name()
	hits := make([]t.FileAnalysis, len(b.Members))
	for i, m := range b.Members {
		a, ok := d.Cache.Get(m.Path, m.Excerpt, model)
		if !ok {
			return false
		}
		hits[i] = a
	}
	for i, m := range b.Members {
		document.Merge(doc, m.Path, hits[i])
	}
	return true
}

func (d *Dispatcher) checkpoint(doc *t.RunDocument, state t.RunState, logger *log.Logger) {
	document.Checkpoint(doc, state)
	if d.OnBatch == nil {
		return
	}
	if err := d.OnBatch(doc, state); err != nil {
		logger.Printf("checkpoint: %v", err)
	}
}

// skipRemaining records a placeholder for every file in the batches that
// will never be dispatched, so the document still covers each discovered
// path.
func skipRemaining(doc *t.RunDocument, rest []t.Batch, note string) {
	for _, b := range rest {
		for _, m := range b.Members {
			if _, ok := doc.FileAnalyses[m.Path]; ok {
				continue
			}
			document.Merge(doc, m.Path, t.NewPlaceholder(note, ""))
		}
	}
}
