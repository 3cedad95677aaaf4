package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDHeader carries the caller's id when no JWT secret is configured.
// Development only.
const UserIDHeader = "X-User-ID"

type contextKey struct{}

// WithUserID returns a context carrying a verified user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID returns the verified user id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// Auth resolves the caller's identity. With a secret, a bearer HS256 token
// is required and its subject becomes the user id. Without one, the
// X-User-ID header is trusted. Paths in public skip the check.
type Auth struct {
	secret []byte
	public map[string]bool
	logger *slog.Logger
}

func NewAuth(secret string, logger *slog.Logger, publicPaths ...string) *Auth {
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}
	return &Auth{secret: []byte(secret), public: public, logger: logger}
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.public[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := a.identify(r)
		if err != nil {
			a.logger.Debug("Rejected unauthenticated request", "path", r.URL.Path, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized", "code": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func (a *Auth) identify(r *http.Request) (string, error) {
	if len(a.secret) == 0 {
		id := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if id == "" {
			return "", errors.New("missing " + UserIDHeader + " header")
		}
		return id, nil
	}

	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		// EventSource cannot set headers.
		raw = r.URL.Query().Get("access_token")
	}
	if raw == "" {
		return "", errors.New("missing bearer token")
	}
	return a.ParseToken(raw)
}

// ParseToken verifies an HS256 token and returns its subject.
func (a *Auth) ParseToken(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// IssueToken signs an HS256 token for userID. Used by the console client and
// tests.
func IssueToken(secret, userID string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = userID
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
