package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "actor_ip"
	ctxKeyUserID    contextKey = "actor_user"
)

// ContextWithIPAddress adds the client IP to context for import records.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserID adds the authenticated user to context.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, userID)
}

// GetIPAddressFromContext extracts IP address from context.
func GetIPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}

// GetUserIDFromContext extracts the user ID from context.
func GetUserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserID).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext builds the Actor recorded with an import.
func ActorFromContext(ctx context.Context) Actor {
	return Actor{
		UserID:    GetUserIDFromContext(ctx),
		IPAddress: GetIPAddressFromContext(ctx),
	}
}
