package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(UserID(r.Context())))
	})
}

func TestAuth_DevHeader(t *testing.T) {
	h := NewAuth("", discard(), "/health").Middleware(echoUser())

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "header present", path: "/v1/sessions", header: "alice", wantStatus: http.StatusOK, wantBody: "alice"},
		{name: "header missing", path: "/v1/sessions", wantStatus: http.StatusUnauthorized},
		{name: "public path", path: "/health", wantStatus: http.StatusOK, wantBody: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(UserIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestAuth_JWT(t *testing.T) {
	const secret = "test-secret"
	h := NewAuth(secret, discard()).Middleware(echoUser())

	valid, err := IssueToken(secret, "bob", jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	require.NoError(t, err)
	expired, err := IssueToken(secret, "bob", jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))})
	require.NoError(t, err)
	forged, err := IssueToken("other-secret", "mallory", jwt.RegisteredClaims{})
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name       string
		auth       string
		query      string
		wantStatus int
	}{
		{name: "valid bearer", auth: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "valid query token", query: "?access_token=" + valid, wantStatus: http.StatusOK},
		{name: "expired", auth: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", auth: "Bearer " + forged, wantStatus: http.StatusUnauthorized},
		{name: "no subject", auth: "Bearer " + noSubject, wantStatus: http.StatusUnauthorized},
		{name: "missing", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/sessions"+tt.query, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			// The dev header must be ignored once a secret is set.
			req.Header.Set(UserIDHeader, "mallory")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "bob", rec.Body.String())
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	h := Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	req = req.WithContext(WithUserID(req.Context(), "carol"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{"method=POST", "path=/v1/sessions", "status=418", "user_id=carol"} {
		assert.True(t, strings.Contains(out, want), "missing %q in %q", want, out)
	}
}
