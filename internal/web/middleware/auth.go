package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/JonMunkholm/raceresults/internal/core"
	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the "role" claim.
const (
	RoleAdmin     = "admin"
	RoleOrganizer = "organizer"
)

var (
	ErrMissingToken = errors.New("unauthorized: missing bearer token")
	ErrInvalidToken = errors.New("unauthorized: invalid token")
	ErrExpiredToken = errors.New("unauthorized: token expired")
	ErrForbidden    = errors.New("forbidden: role not allowed")
)

// Claims is the bearer token payload.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type claimsKey struct{}

// ClaimsFromContext returns the claims of an authenticated request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// Authenticator validates HS256 bearer tokens. A nil Authenticator lets
// every request through, which is how authentication is switched off.
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator returns nil when secret is empty.
func NewAuthenticator(secret, issuer string) *Authenticator {
	if secret == "" {
		return nil
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Enabled reports whether tokens are checked.
func (a *Authenticator) Enabled() bool {
	return a != nil
}

// IssueToken signs a token for subject with the given role.
func (a *Authenticator) IssueToken(subject, role string, ttl time.Duration) (string, error) {
	if a == nil {
		return "", errors.New("authentication is disabled")
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a signed token.
func (a *Authenticator) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RequireRole rejects requests without a valid bearer token carrying one of
// roles. Admins pass every role check.
func (a *Authenticator) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := bearerToken(r)
			if !ok {
				authFailure(w, r, ErrMissingToken, http.StatusUnauthorized)
				return
			}

			claims, err := a.Validate(raw)
			if err != nil {
				authFailure(w, r, err, http.StatusUnauthorized)
				return
			}

			if claims.Role != RoleAdmin && !slices.Contains(roles, claims.Role) {
				authFailure(w, r, ErrForbidden, http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// authFailure logs the rejection and writes the mapped error as JSON.
func authFailure(w http.ResponseWriter, r *http.Request, err error, status int) {
	slog.Warn("auth: request rejected",
		"path", r.URL.Path,
		"method", r.Method,
		"remote_addr", r.RemoteAddr,
		"error", err,
	)
	writeMappedError(w, err, status)
}

func writeMappedError(w http.ResponseWriter, err error, status int) {
	msg := core.MapError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   msg.Message,
		"message": msg.Message,
		"action":  msg.Action,
		"code":    msg.Code,
	})
}
