package context

import "context"

type usernameKey struct{}

func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey{}, username)
}

func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey{}).(string)
	return username, ok
}

// MustUsernameFromContext is for handlers behind the auth middleware, where
// a missing username means a wiring bug rather than a bad request.
func MustUsernameFromContext(ctx context.Context) string {
	username, ok := UsernameFromContext(ctx)
	if !ok {
		panic("username not found in context")
	}
	return username
}
