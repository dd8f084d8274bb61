// Package llm is the analysis-backend boundary: a minimal JSON-generation
// client interface, concrete Gemini and OpenAI-compatible implementations,
// and middleware for the cross-cutting concerns around them.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Client generates one JSON reply per call. prompt carries the
// instructions; input is marshaled and appended as the payload.
type Client interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	Close() error
}

// ErrInvalidJSON means the model replied but the reply is not JSON.
var ErrInvalidJSON = errors.New("llm: invalid JSON from model")

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}
