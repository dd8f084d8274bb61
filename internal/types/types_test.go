package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAnalysisKnownAndExtra(t *testing.T) {
	raw := map[string]any{
		"file_type":    "source",
		"file_purpose": "http handlers",
		"dependencies": []any{"net/http", "encoding/json"},
		"classes": []any{
			map[string]any{"name": "Server", "purpose": "routing", "methods": []any{"Start", "Stop"}},
		},
		"functions":  []any{map[string]any{"name": "main", "purpose": "entry"}},
		"confidence": 0.9,
		"languages":  []any{"go"},
	}
	a := DecodeAnalysis(raw)

	assert.Equal(t, "source", a.FileType)
	assert.Equal(t, []string{"net/http", "encoding/json"}, a.Dependencies)
	require.Len(t, a.Classes, 1)
	assert.Equal(t, "Server", a.Classes[0].Name)
	assert.Equal(t, []string{"Start", "Stop"}, a.Classes[0].Methods)

	// Unknown keys survive in the extension bag.
	assert.Contains(t, a.Extra, "confidence")
	assert.Contains(t, a.Extra, "languages")
	assert.NotContains(t, a.Extra, "file_type")
}

func TestDecodeAnalysisShapeDrift(t *testing.T) {
	// A known key with an incompatible shape must not lose the entry.
	raw := map[string]any{
		"file_type": []any{"source", "test"},
		"note":      "still here",
	}
	a := DecodeAnalysis(raw)
	assert.Empty(t, a.FileType)
	assert.Equal(t, raw, a.Extra)
}

func TestAnalysisMarshalInlinesExtra(t *testing.T) {
	a := FileAnalysis{
		FileType: "source",
		Extra: map[string]any{
			"confidence": 0.5,
			"file_type":  "shadowed",
		},
	}
	b, err := json.Marshal(a)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "source", out["file_type"], "known field must win")
	assert.Equal(t, 0.5, out["confidence"])
}

func TestAnalysisRoundTrip(t *testing.T) {
	in := FileAnalysis{
		FileType:     "config",
		FilePurpose:  "build settings",
		Dependencies: []string{"yaml"},
		Functions:    []FunctionInfo{{Name: "Load", Purpose: "parse"}},
		Extra:        map[string]any{"lines": float64(42)},
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out FileAnalysis
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in.FileType, out.FileType)
	assert.Equal(t, in.Dependencies, out.Dependencies)
	assert.Equal(t, in.Functions, out.Functions)
	assert.Equal(t, in.Extra, out.Extra)
}

func TestPlaceholder(t *testing.T) {
	p := NewPlaceholder("failed to parse analysis", `{"broken`)
	assert.Equal(t, "unknown", p.FileType)
	assert.True(t, p.Placeholder())
	assert.False(t, FileAnalysis{FileType: "source"}.Placeholder())
}

func TestBatchPaths(t *testing.T) {
	b := Batch{Members: []AllocatedFile{
		{CandidateFile: CandidateFile{Path: "a.go"}},
		{CandidateFile: CandidateFile{Path: "b.go"}},
	}}
	assert.Equal(t, []string{"a.go", "b.go"}, b.Paths())
}
