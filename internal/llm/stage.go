package llm

import "context"

type ctxKeyStage struct{}

// WithStage tags the context with the pipeline stage issuing the call
// ("analyze batch 3/7", "optimize"). Logging middleware reads it back.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, ctxKeyStage{}, stage)
}

// StageFrom returns the stage stored in the context.
func StageFrom(ctx context.Context) string {
	if v := ctx.Value(ctxKeyStage{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "unknown"
}
