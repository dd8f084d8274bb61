// Package pipeline contains the token-budgeted batch analysis pipeline:
// the analyzer that turns one batch into per-file results, the
// dispatcher that drives batches sequentially under a cumulative size
// guard, and the best-effort document optimizer.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"

	"codebrief/internal/jsonutil"
	"codebrief/internal/llm"
	t "codebrief/internal/types"
)

const analyzePrompt = `You are analyzing source files from one codebase.

Input JSON provides:
- directory: the codebase root name
- token_budget: hard ceiling for your ENTIRE response, in tokens
- files: list of {path, content, truncated}; truncated content is a prefix of the real file

Task:
Return STRICT JSON with one analysis per input path:
{
  "files": {
    "<path>": {
      "file_type":          "string",   // e.g. "model", "service", "utility", "config"
      "file_purpose":       "string",   // what the file is for
      "dependencies":       ["string"], // key imports
      "classes":            [{"name": "string", "purpose": "string", "methods": ["string"]}],
      "functions":          [{"name": "string", "purpose": "string"}],
      "api_endpoints":      [{"path": "string", "method": "string"}],
      "design_patterns":    ["string"],
      "integration_points": ["string"],
      "relationships":      ["string"]
    }
  }
}

Rules:
- "files" is an object keyed by path, never an array.
- Include an entry for EVERY input path, even when content is empty or cut short.
- Omit fields you cannot determine; never emit empty strings, arrays or objects.
- Stay under token_budget: reduce detail before dropping files; breadth over depth.
- JSON only; double quotes; no comments, markdown or trailing commas.
`

// minBatchTokens keeps tiny proportional allowances from starving the
// reply entirely. Applied at request time only; the allocation itself
// is never inflated.
const minBatchTokens = 500

// Analyzer sends one batch to the backend and maps the reply onto
// per-file analyses.
type Analyzer struct {
	LLM       llm.Client
	Directory string
}

type batchFile struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Analyze returns one FileAnalysis per path the backend covered. Paths
// the reply omits are absent from the map; the dispatcher fills those
// with placeholders. Failures are *BackendError or
// *MalformedResponseError.
func (a *Analyzer) Analyze(ctx context.Context, b t.Batch) (map[string]t.FileAnalysis, error) {
	files := make([]batchFile, len(b.Members))
	for i, m := range b.Members {
		files[i] = batchFile{Path: m.Path, Content: m.Excerpt, Truncated: m.Truncated}
	}
	budget := b.TokenBudget()
	if budget < minBatchTokens {
		budget = minBatchTokens
	}
	input := map[string]any{
		"directory":    a.Directory,
		"token_budget": budget,
		"files":        files,
	}
	raw, err := a.LLM.GenerateJSON(ctx, analyzePrompt, input)
	if err != nil {
		if errors.Is(err, llm.ErrInvalidJSON) {
			return nil, &MalformedResponseError{Raw: raw, Err: err}
		}
		return nil, &BackendError{Err: err}
	}
	return parseReply(raw)
}

func parseReply(raw json.RawMessage) (map[string]t.FileAnalysis, error) {
	var env struct {
		Files map[string]map[string]any `json:"files"`
	}
	if err := jsonutil.Decode(raw, &env); err != nil {
		return nil, &MalformedResponseError{Raw: raw, Err: err}
	}
	if env.Files == nil {
		return nil, &MalformedResponseError{Raw: raw, Err: errors.New(`missing "files" object`)}
	}
	out := make(map[string]t.FileAnalysis, len(env.Files))
	for path, fields := range env.Files {
		cleaned, _ := jsonutil.Clean(fields).(map[string]any)
		if len(cleaned) == 0 {
			continue
		}
		out[path] = t.DecodeAnalysis(cleaned)
	}
	return out, nil
}
