package pipeline

import (
	"encoding/json"
	"fmt"
)

// BackendError reports a transport or API failure from the analysis
// backend. Recovered at batch granularity, never fatal to the run.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string { return fmt.Sprintf("backend: %v", e.Err) }
func (e *BackendError) Unwrap() error { return e.Err }

// MalformedResponseError reports a reply that arrived but could not be
// mapped onto the per-file analysis schema. Raw keeps the offending
// reply so placeholders can carry it for debugging.
type MalformedResponseError struct {
	Raw json.RawMessage
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %v", e.Err)
}
func (e *MalformedResponseError) Unwrap() error { return e.Err }
