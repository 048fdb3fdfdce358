package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/raceresults/internal/core"
	"github.com/JonMunkholm/raceresults/internal/web/middleware"
)

// WithRequestMetadata adds the client IP and token subject to ctx for
// import records.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // already rewritten by TrustedRealIP
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ctx = core.ContextWithIPAddress(ctx, ip)
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		ctx = core.ContextWithUserID(ctx, claims.Subject)
	}
	return ctx
}
