// Package document builds, finalizes and persists the run document: the
// single JSON artifact holding run metadata, the rendered file tree and
// one analysis entry per discovered file.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codebrief/internal/jsonutil"
	t "codebrief/internal/types"
)

// New returns the initial in_progress document for a run over dir.
func New(dir, tree string, totalFiles int, totalSize int64, maxTokenLimit, totalBatches int) *t.RunDocument {
	return &t.RunDocument{
		Metadata: t.Metadata{
			GeneratedAt:      time.Now().UTC().Format(time.RFC3339),
			Directory:        dir,
			TotalFiles:       totalFiles,
			TotalSizeBytes:   totalSize,
			MaxTokenLimit:    maxTokenLimit,
			CompletionStatus: t.StatusInProgress,
			TotalBatches:     totalBatches,
		},
		FileTree:     tree,
		FileAnalyses: map[string]t.FileAnalysis{},
	}
}

// Merge records the analysis for path. A later call for the same path
// overwrites the earlier one.
func Merge(doc *t.RunDocument, path string, a t.FileAnalysis) {
	if doc.FileAnalyses == nil {
		doc.FileAnalyses = map[string]t.FileAnalysis{}
	}
	doc.FileAnalyses[path] = a
}

// Checkpoint refreshes the progress counters after a batch so that a
// document written mid-run reflects how far dispatch got.
func Checkpoint(doc *t.RunDocument, state t.RunState) {
	doc.Metadata.CompletedBatches = state.BatchesCompleted
	doc.Metadata.FilesAnalyzed = len(doc.FileAnalyses)
}

// Finalize stamps the completion metadata. The status is partial only
// when dispatch halted with batches still pending; attempted-but-failed
// batches leave the run completed.
func Finalize(doc *t.RunDocument, state t.RunState) {
	Checkpoint(doc, state)
	if doc.Metadata.GeneratedAt == "" {
		doc.Metadata.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	}
	doc.Metadata.CompletionTime = time.Now().UTC().Format(time.RFC3339)
	if state.Halted {
		doc.Metadata.CompletionStatus = t.StatusPartial
	} else {
		doc.Metadata.CompletionStatus = t.StatusCompleted
	}
}

// MarkFailed stamps a document for a run that aborted before any batch
// was dispatched.
func MarkFailed(doc *t.RunDocument) {
	doc.Metadata.CompletionStatus = t.StatusFailed
	doc.Metadata.CompletionTime = time.Now().UTC().Format(time.RFC3339)
}

// Load reads a document previously written by Write.
func Load(path string) (*t.RunDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	var doc t.RunDocument
	if err := jsonutil.Decode(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse document %s: %w", path, err)
	}
	if doc.FileAnalyses == nil {
		doc.FileAnalyses = map[string]t.FileAnalysis{}
	}
	return &doc, nil
}

// Write persists doc to path as indented JSON via a temp file rename, so
// a crash mid-write never leaves a torn document behind.
func Write(path string, doc *t.RunDocument) error {
	b, err := jsonutil.MarshalNoEscapeIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}
