package session

import "context"

type contextKey string

const sessionContextKey contextKey = "kmart.session"

// WithSession attaches sess to ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// FromContext retrieves the session attached to ctx.
func FromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	sess, ok := ctx.Value(sessionContextKey).(*Session)
	return sess, ok && sess != nil
}
