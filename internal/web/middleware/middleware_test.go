package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := ClaimsFromContext(r.Context()); ok {
			w.Header().Set("X-Subject", c.Subject)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireRole(t *testing.T) {
	auth := NewAuthenticator("s3cret", "raceresults")
	require.True(t, auth.Enabled())

	organizer, err := auth.IssueToken("org-1", RoleOrganizer, time.Hour)
	require.NoError(t, err)
	admin, err := auth.IssueToken("admin-1", RoleAdmin, time.Hour)
	require.NoError(t, err)
	expired, err := auth.IssueToken("org-1", RoleOrganizer, -time.Minute)
	require.NoError(t, err)
	other, err := NewAuthenticator("other", "raceresults").IssueToken("x", RoleAdmin, time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := NewAuthenticator("s3cret", "elsewhere").IssueToken("x", RoleAdmin, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		roles   []string
		want    int
		subject string
	}{
		{"no header", "", []string{RoleOrganizer}, http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", []string{RoleOrganizer}, http.StatusUnauthorized, ""},
		{"organizer allowed", "Bearer " + organizer, []string{RoleOrganizer}, http.StatusNoContent, "org-1"},
		{"lowercase scheme", "bearer " + organizer, []string{RoleOrganizer}, http.StatusNoContent, "org-1"},
		{"organizer forbidden", "Bearer " + organizer, []string{"timer"}, http.StatusForbidden, ""},
		{"admin passes any role", "Bearer " + admin, []string{"timer"}, http.StatusNoContent, "admin-1"},
		{"expired", "Bearer " + expired, []string{RoleOrganizer}, http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + other, []string{RoleOrganizer}, http.StatusUnauthorized, ""},
		{"wrong issuer", "Bearer " + wrongIssuer, []string{RoleOrganizer}, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/races/x/imports", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			auth.RequireRole(tt.roles...)(okHandler(t)).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.subject, rec.Header().Get("X-Subject"))
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"code":"AUTH001"`)
			}
			if tt.want == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), `"code":"AUTH002"`)
			}
		})
	}
}

func TestRequireRole_Disabled(t *testing.T) {
	auth := NewAuthenticator("", "")
	assert.False(t, auth.Enabled())

	rec := httptest.NewRecorder()
	auth.RequireRole(RoleAdmin)(okHandler(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := auth.IssueToken("x", RoleAdmin, time.Hour)
	assert.Error(t, err)
}

func TestValidate_RejectsOtherAlgorithms(t *testing.T) {
	auth := NewAuthenticator("s3cret", "")
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "x"},
		Role:             RoleAdmin,
	})
	signed, err := token.SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = auth.Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRateLimit(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2)
	h := RateLimit(limiter)(okHandler(t))

	call := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/detect", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:5678").Code)

	rec := call("10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"code":"RATE001"`)

	assert.Equal(t, http.StatusNoContent, call("10.0.0.2").Code, "other IPs have their own bucket")
}

func TestRateLimit_NilLimiter(t *testing.T) {
	rec := httptest.NewRecorder()
	RateLimit(nil)(okHandler(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{"untrusted keeps remote", nil, "203.0.113.9:4000", map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.9:4000"},
		{"trusted cidr uses real ip", []string{"10.0.0.0/8"}, "10.1.2.3:4000", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted single ip uses xff", []string{"127.0.0.1"}, "127.0.0.1:4000", map[string]string{"X-Forwarded-For": "5.6.7.8, 10.0.0.1"}, "5.6.7.8"},
		{"invalid header ignored", []string{"10.0.0.0/8"}, "10.1.2.3:4000", map[string]string{"X-Real-IP": "nope"}, "10.1.2.3:4000"},
		{"invalid entry skipped", []string{"bogus", " "}, "10.1.2.3:4000", map[string]string{"X-Real-IP": "1.2.3.4"}, "10.1.2.3:4000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogger_CapturesStatusAndFlush(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("hello"))
		w.(http.Flusher).Flush()
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/detect", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.True(t, rec.Flushed)
}
