package llm

import (
	"context"
	"encoding/json"
)

// FakeClient scripts backend replies for tests and offline runs. Calls
// past the end of the script synthesize a minimal per-file analysis from
// whatever paths appear in the input payload, so a full run works with no
// network at all.
type FakeClient struct {
	Script  []FakeReply
	Prompts []string
	Inputs  []any
	calls   int
}

type FakeReply struct {
	Raw json.RawMessage
	Err error
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

// Calls reports how many requests the fake has served.
func (f *FakeClient) Calls() int { return f.calls }

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	f.Prompts = append(f.Prompts, prompt)
	f.Inputs = append(f.Inputs, input)
	if f.calls < len(f.Script) {
		r := f.Script[f.calls]
		f.calls++
		return r.Raw, r.Err
	}
	f.calls++
	return synthesize(input), nil
}

func synthesize(input any) json.RawMessage {
	b, err := json.Marshal(input)
	if err != nil {
		return json.RawMessage(`{"files":{}}`)
	}
	var payload struct {
		Files []struct {
			Path string `json:"path"`
		} `json:"files"`
	}
	_ = json.Unmarshal(b, &payload)

	files := make(map[string]any, len(payload.Files))
	for _, pf := range payload.Files {
		if pf.Path == "" {
			continue
		}
		files[pf.Path] = map[string]any{
			"file_type":    "source",
			"file_purpose": "fake analysis",
		}
	}
	out, _ := json.Marshal(map[string]any{"files": files})
	return out
}
