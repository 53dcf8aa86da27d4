/**
 * @description
 * Authentication middleware for the credit-score routes. Browser callers send the
 * Supabase session JWT (HS256, signed with the project's JWT secret); backend
 * callers send the shared internal API key instead.
 *
 * @dependencies
 * - context, crypto/subtle, fmt, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: JWT parsing and validation.
 */

package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	authSubjectKey  contextKey = "authSubject"
	internalCallKey contextKey = "internalCall"

	InternalAPIKeyHeader = "X-Internal-API-Key"
)

// AuthMiddleware authenticates requests. With an empty jwtSecret, JWT checks are
// disabled and every request passes; a matching internal key always passes.
func AuthMiddleware(jwtSecret, internalAPIKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if internalAPIKey != "" {
				provided := r.Header.Get(InternalAPIKeyHeader)
				if provided != "" {
					if subtle.ConstantTimeCompare([]byte(provided), []byte(internalAPIKey)) != 1 {
						writeError(w, http.StatusUnauthorized, "Invalid internal API key")
						return
					}
					ctx := context.WithValue(r.Context(), internalCallKey, true)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			if jwtSecret == "" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				writeError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(jwtSecret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			subject, err := claims.GetSubject()
			if err != nil || subject == "" {
				writeError(w, http.StatusUnauthorized, "User ID not found in token")
				return
			}

			ctx := context.WithValue(r.Context(), authSubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAuthSubject returns the JWT subject of the authenticated caller.
func GetAuthSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(authSubjectKey).(string)
	return subject, ok
}

// IsInternalCall reports whether the request carried a valid internal API key.
func IsInternalCall(ctx context.Context) bool {
	internal, _ := ctx.Value(internalCallKey).(bool)
	return internal
}
