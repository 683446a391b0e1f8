package logging

import "context"

// Context keys for logging values. Using private types avoids key collisions.
type contextKey int

const (
	sessionIDKey contextKey = iota
	componentKey
	agentKey
	checkpointKey
)

// WithSession adds a session ID to the context.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithComponent adds a component name to the context (e.g. "checkpoint", "transcript", "controller").
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// WithAgent adds an agent id to the context (e.g. "claude-code", "cursor").
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, agentKey, agent)
}

// WithCheckpoint adds a checkpoint name to the context.
func WithCheckpoint(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, checkpointKey, name)
}

// SessionIDFromContext extracts the session ID from the context, or "" if unset.
func SessionIDFromContext(ctx context.Context) string {
	if v := ctx.Value(sessionIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
