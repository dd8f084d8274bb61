package llm

import (
	"context"
	"encoding/json"
	"testing"

	"codebrief/internal/tester"
)

func TestFakeClientScript(t *testing.T) {
	fake := &FakeClient{Script: []FakeReply{okReply(`{"a":1}`), errReply("down")}}

	raw, err := fake.GenerateJSON(context.Background(), "first", nil)
	tester.NoErr(t, err)
	tester.Eq(t, string(raw), `{"a":1}`)

	_, err = fake.GenerateJSON(context.Background(), "second", nil)
	tester.True(t, err != nil, "want scripted error")

	tester.Eq(t, fake.Calls(), 2)
	tester.Eq(t, fake.Prompts, []string{"first", "second"})
}

func TestFakeClientSynthesizesFromInput(t *testing.T) {
	fake := &FakeClient{}
	input := map[string]any{
		"directory": "proj",
		"files": []map[string]any{
			{"path": "main.go", "content": "package main"},
			{"path": "util/io.go", "content": "package util"},
		},
	}

	raw, err := fake.GenerateJSON(context.Background(), "analyze", input)
	tester.NoErr(t, err)

	var resp struct {
		Files map[string]map[string]any `json:"files"`
	}
	tester.NoErr(t, json.Unmarshal(raw, &resp))
	tester.Eq(t, len(resp.Files), 2)
	tester.Eq(t, resp.Files["main.go"]["file_type"], any("source"))
	tester.True(t, resp.Files["util/io.go"] != nil, "want entry for util/io.go")
}

func TestFakeClientSynthesizesEmptyWithoutPaths(t *testing.T) {
	fake := &FakeClient{}
	raw, err := fake.GenerateJSON(context.Background(), "p", "not a payload")
	tester.NoErr(t, err)
	tester.True(t, json.Valid(raw), "reply must be valid JSON")
}
