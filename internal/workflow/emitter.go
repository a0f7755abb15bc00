package workflow

import "context"

// Emitter delivers run output to the chat host
type Emitter interface {
	// Plain sends a text message
	Plain(ctx context.Context, text string) error
	// Image sends an image by URL
	Image(ctx context.Context, url string) error
}

type runIDKey struct{}

// WithRunID returns ctx carrying the id of the current run
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFrom returns the run id carried by ctx, if any
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
