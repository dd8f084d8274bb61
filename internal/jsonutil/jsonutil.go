package jsonutil

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var (
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	bareKey       = regexp.MustCompile(`([{,]\s*)([A-Za-z0-9_]+)(\s*:)`)
)

// MarshalNoEscape encodes v into JSON without HTML-escaping <, > and &.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encoder.Encode appends a newline.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalNoEscapeIndent is MarshalNoEscape with indentation, for documents
// meant to be read by people.
func MarshalNoEscapeIndent(v any, prefix, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(prefix, indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// StripFences removes a surrounding Markdown code fence, with or without a
// language tag, leaving the body untouched.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	} else {
		t = strings.TrimSpace(t)
	}
	if j := strings.LastIndex(t, "```"); j >= 0 {
		t = t[:j]
	}
	return strings.TrimSpace(t)
}

// Repair applies the common syntax fixes seen in model output: surrounding
// code fences, trailing commas before } or ], and unquoted object keys.
// The result is not guaranteed valid; callers revalidate by parsing.
func Repair(s string) string {
	s = StripFences(s)
	s = trailingComma.ReplaceAllString(s, "$1")
	s = bareKey.ReplaceAllString(s, `$1"$2"$3`)
	return s
}

// Decode unmarshals leniently: a direct parse first, then one retry after
// Repair. The error from the repaired attempt is returned when both fail.
func Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err == nil {
		return nil
	}
	return json.Unmarshal([]byte(Repair(string(data))), v)
}

// Clean recursively removes nils, empty strings, and empty collections from
// decoded JSON values. Zero numbers and false survive; only emptiness is
// pruned.
func Clean(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			cv := Clean(vv)
			if !isEmpty(cv) {
				out[k] = cv
			}
		}
		return out
	case []any:
		out := make([]any, 0, len(x))
		for _, vv := range x {
			cv := Clean(vv)
			if !isEmpty(cv) {
				out = append(out, cv)
			}
		}
		return out
	default:
		return v
	}
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}
