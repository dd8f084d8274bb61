package types

import (
	"encoding/json"

	"github.com/mitchellh/mapstructure"
)

// Per-file analysis ----------------------------------------------------------------

type ClassInfo struct {
	Name    string   `json:"name,omitempty" mapstructure:"name"`
	Purpose string   `json:"purpose,omitempty" mapstructure:"purpose"`
	Methods []string `json:"methods,omitempty" mapstructure:"methods"`
}

type FunctionInfo struct {
	Name    string `json:"name,omitempty" mapstructure:"name"`
	Purpose string `json:"purpose,omitempty" mapstructure:"purpose"`
}

type EndpointInfo struct {
	Path   string `json:"path,omitempty" mapstructure:"path"`
	Method string `json:"method,omitempty" mapstructure:"method"`
}

// FileAnalysis is the backend's structured record for one file. The named
// fields are the known schema; anything else the backend sends lands in
// Extra and survives serialization, so schema drift never breaks a merge.
type FileAnalysis struct {
	FileType          string         `json:"file_type,omitempty" mapstructure:"file_type"`
	FilePurpose       string         `json:"file_purpose,omitempty" mapstructure:"file_purpose"`
	Dependencies      []string       `json:"dependencies,omitempty" mapstructure:"dependencies"`
	Classes           []ClassInfo    `json:"classes,omitempty" mapstructure:"classes"`
	Functions         []FunctionInfo `json:"functions,omitempty" mapstructure:"functions"`
	APIEndpoints      []EndpointInfo `json:"api_endpoints,omitempty" mapstructure:"api_endpoints"`
	DesignPatterns    []string       `json:"design_patterns,omitempty" mapstructure:"design_patterns"`
	IntegrationPoints []string       `json:"integration_points,omitempty" mapstructure:"integration_points"`
	Relationships     []string       `json:"relationships,omitempty" mapstructure:"relationships"`
	Error             string         `json:"error,omitempty" mapstructure:"error"`
	RawResponse       string         `json:"raw_response,omitempty" mapstructure:"raw_response"`
	Extra             map[string]any `json:"-" mapstructure:",remain"`
}

// NewPlaceholder marks a file whose real analysis could not be obtained.
// The raw backend reply is kept so nothing is lost silently.
func NewPlaceholder(note, raw string) FileAnalysis {
	return FileAnalysis{FileType: "unknown", Error: note, RawResponse: raw}
}

// Placeholder reports whether this entry is synthesized rather than
// backend-produced.
func (a FileAnalysis) Placeholder() bool {
	return a.Error != ""
}

// DecodeAnalysis maps one decoded JSON object onto FileAnalysis. If a known
// field arrives with an incompatible shape the whole object is preserved in
// Extra instead of being dropped.
func DecodeAnalysis(raw map[string]any) FileAnalysis {
	var a FileAnalysis
	if err := mapstructure.Decode(raw, &a); err != nil {
		return FileAnalysis{Extra: raw}
	}
	return a
}

// MarshalJSON inlines Extra next to the known fields. Known fields win on
// key collisions.
func (a FileAnalysis) MarshalJSON() ([]byte, error) {
	type plain FileAnalysis
	base, err := json.Marshal(plain(a))
	if err != nil {
		return nil, err
	}
	if len(a.Extra) == 0 {
		return base, nil
	}
	merged := make(map[string]any, len(a.Extra)+8)
	for k, v := range a.Extra {
		merged[k] = v
	}
	var known map[string]any
	if err := json.Unmarshal(base, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func (a *FileAnalysis) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = DecodeAnalysis(raw)
	return nil
}
