package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"codebrief/internal/batch"
	"codebrief/internal/budget"
	"codebrief/internal/jsonutil"
	"codebrief/internal/llm"
	t "codebrief/internal/types"
)

const optimizePrompt = `You are compacting per-file analyses of one codebase.

Input JSON provides:
- token_budget: hard ceiling for your ENTIRE response, in tokens
- entries: list of {path, analysis}; analysis is the JSON analysis of that
  file as a string, possibly cut short when the entry was oversized

Task:
Return STRICT JSON with the same paths and compacted analyses:
{"files": {"<path>": { ...compacted analysis... }}}

Rules:
- Keep EVERY input path; never drop or rename an entry.
- Shorten wording and drop redundancy; keep all keys that still carry meaning.
- Never invent information that is not in the input.
- JSON only; double quotes; no comments, markdown or trailing commas.
`

// Optimizer re-submits collected analyses for compaction, chunked under
// the same budget discipline as the first pass. Strictly best-effort:
// every failure path returns the original document untouched.
type Optimizer struct {
	LLM       llm.Client
	MaxTokens int
	BatchSize int
	Log       *log.Logger
	DumpPath  string // where an unparseable reply is saved; "" disables
}

// Run returns the compacted document and true, or doc unchanged and
// false when any chunk failed or the result did not shrink.
func (o *Optimizer) Run(ctx context.Context, doc *t.RunDocument) (*t.RunDocument, bool) {
	logger := o.Log
	if logger == nil {
		logger = log.Default()
	}
	if len(doc.FileAnalyses) == 0 {
		logger.Printf("nothing to optimize; keeping original document")
		return doc, false
	}

	originalJSON, err := jsonutil.MarshalNoEscape(doc)
	if err != nil {
		logger.Printf("optimize: encode original: %v; keeping original document", err)
		return doc, false
	}

	sections, err := analysisSections(doc)
	if err != nil {
		logger.Printf("optimize: %v; keeping original document", err)
		return doc, false
	}
	allocated, err := budget.Allocate(sections, o.MaxTokens)
	if err != nil {
		logger.Printf("optimize: %v; keeping original document", err)
		return doc, false
	}
	size := o.BatchSize
	if size <= 0 {
		size = len(allocated)
	}
	chunks, err := batch.Split(allocated, size)
	if err != nil {
		logger.Printf("optimize: %v; keeping original document", err)
		return doc, false
	}
	logger.Printf("optimizing %d entries in %d chunks with %s", len(sections), len(chunks), o.LLM.Name())

	optimized := cloneDocument(doc)
	for i, c := range chunks {
		if err := o.compactChunk(ctx, c, i, len(chunks), doc, optimized); err != nil {
			logger.Printf("optimize chunk %d/%d failed: %v; keeping original document", i+1, len(chunks), err)
			return doc, false
		}
	}

	optimizedJSON, err := jsonutil.MarshalNoEscape(optimized)
	if err != nil {
		logger.Printf("optimize: encode result: %v; keeping original document", err)
		return doc, false
	}
	var reparsed t.RunDocument
	if err := jsonutil.Decode(optimizedJSON, &reparsed); err != nil {
		logger.Printf("optimize: result does not round-trip: %v; keeping original document", err)
		return doc, false
	}
	if len(optimizedJSON) >= len(originalJSON) {
		logger.Printf("optimization did not reduce size (%d -> %d bytes); keeping original document",
			len(originalJSON), len(optimizedJSON))
		return doc, false
	}

	optimized.Metadata.Optimized = true
	optimized.Metadata.OptimizerModel = o.LLM.Name()
	reduction := float64(len(originalJSON)-len(optimizedJSON)) / float64(len(originalJSON)) * 100
	logger.Printf("optimization complete: %d -> %d bytes (%.2f%% reduction)",
		len(originalJSON), len(optimizedJSON), reduction)
	return optimized, true
}

type optimizeEntry struct {
	Path     string `json:"path"`
	Analysis string `json:"analysis"`
}

func (o *Optimizer) compactChunk(ctx context.Context, c t.Batch, i, total int, doc, optimized *t.RunDocument) error {
	entries := make([]optimizeEntry, len(c.Members))
	for j, m := range c.Members {
		entries[j] = optimizeEntry{Path: m.Path, Analysis: m.Excerpt}
	}
	tokens := c.TokenBudget()
	if tokens < minBatchTokens {
		tokens = minBatchTokens
	}
	input := map[string]any{
		"token_budget": tokens,
		"entries":      entries,
	}
	cctx := llm.WithStage(ctx, fmt.Sprintf("optimize chunk %d/%d", i+1, total))
	raw, err := o.LLM.GenerateJSON(cctx, optimizePrompt, input)
	if err != nil {
		return err
	}
	results, err := parseReply(raw)
	if err != nil {
		o.dump(raw)
		return err
	}
	for _, m := range c.Members {
		a, ok := results[m.Path]
		if !ok {
			// Compacting an entry away loses analysis; keep the original.
			optimized.FileAnalyses[m.Path] = doc.FileAnalyses[m.Path]
			continue
		}
		optimized.FileAnalyses[m.Path] = a
	}
	return nil
}

// analysisSections turns each per-file analysis into a synthetic
// candidate so the allocator and batcher can chunk the document the same
// way they chunk source files.
func analysisSections(doc *t.RunDocument) ([]t.CandidateFile, error) {
	paths := make([]string, 0, len(doc.FileAnalyses))
	for p := range doc.FileAnalyses {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	sections := make([]t.CandidateFile, len(paths))
	for i, p := range paths {
		a := doc.FileAnalyses[p]
		b, err := jsonutil.MarshalNoEscape(a)
		if err != nil {
			return nil, fmt.Errorf("encode analysis for %s: %w", p, err)
		}
		sections[i] = t.CandidateFile{Path: p, SizeBytes: int64(len(b)), Content: string(b)}
	}
	return sections, nil
}

func cloneDocument(doc *t.RunDocument) *t.RunDocument {
	out := *doc
	out.FileAnalyses = make(map[string]t.FileAnalysis, len(doc.FileAnalyses))
	for k, v := range doc.FileAnalyses {
		out.FileAnalyses[k] = v
	}
	return &out
}

func (o *Optimizer) dump(raw []byte) {
	if o.DumpPath == "" {
		return
	}
	logger := o.Log
	if logger == nil {
		logger = log.Default()
	}
	if err := os.WriteFile(o.DumpPath, raw, 0o644); err != nil {
		logger.Printf("optimize: save bad reply: %v", err)
		return
	}
	logger.Printf("optimize: saved unparseable reply to %s", o.DumpPath)
}
