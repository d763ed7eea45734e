package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Claims represents the parsed token claims.
type Claims struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
	Scopes  []string `json:"scopes"`
}

// ContextKey is used for storing claims in request context.
type ContextKey string

const (
	ClaimsKey ContextKey = "claims"
)

// Role constants.
const (
	// RoleObserver may list interfaces, read snapshots, and stream telemetry.
	RoleObserver = "observer"
	// RoleOperator has observer privileges plus scan start/stop.
	RoleOperator = "operator"
)

// Scope constants.
const (
	ScopeRead      = "read"
	ScopeControl   = "control"
	ScopeTelemetry = "telemetry"
)

// Middleware handles authentication and authorization.
type Middleware struct {
	verifier *Verifier
}

// NewMiddleware creates auth middleware backed by the given verifier.
func NewMiddleware(verifier *Verifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// RequireAuth creates middleware that requires a valid bearer token.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Health stays open for probes.
		if r.URL.Path == "/api/v1/health" {
			next(w, r)
			return
		}

		token, err := extractBearerToken(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		claims, err := m.verifier.VerifyToken(token)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// RequireScope creates middleware that requires all listed scopes.
func (m *Middleware) RequireScope(requiredScopes ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaimsFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			if !hasScopes(claims, requiredScopes) {
				writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
				return
			}

			next(w, r)
		}
	}
}

// RequireRole creates middleware that requires any of the listed roles.
func (m *Middleware) RequireRole(requiredRoles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaimsFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			if !hasAnyRole(claims, requiredRoles) {
				writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
				return
			}

			next(w, r)
		}
	}
}

// GetClaimsFromContext extracts claims stored by RequireAuth.
func GetClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// extractBearerToken extracts the bearer token from the Authorization header.
func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", fmt.Errorf("empty token")
	}

	return token, nil
}

// hasScopes checks that claims carry every required scope.
func hasScopes(claims *Claims, requiredScopes []string) bool {
	for _, required := range requiredScopes {
		found := false
		for _, scope := range claims.Scopes {
			if scope == required {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// hasAnyRole checks that claims carry at least one required role.
func hasAnyRole(claims *Claims, requiredRoles []string) bool {
	if len(requiredRoles) == 0 {
		return true
	}

	for _, required := range requiredRoles {
		for _, role := range claims.Roles {
			if role == required {
				return true
			}
		}
	}
	return false
}

// writeAuthError writes an error response in the API envelope format.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"result":        "error",
		"code":          code,
		"message":       message,
		"correlationId": uuid.NewString(),
	})
}
