package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/yourorg/profilehub/internal/security/audit"
	"github.com/yourorg/profilehub/internal/security/auth"
	"github.com/yourorg/profilehub/internal/security/ratelimit"
	"github.com/yourorg/profilehub/internal/session"
)

type AccountContextKey struct{}
type SessionContextKey struct{}

// Credential endpoints carry no token and are limited by remote
// address instead of account.
func isPublic(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics", "/api/auth/register", "/api/auth/login":
		return true
	}
	return false
}

// AuthMiddleware validates the bearer token and the server-side
// session behind it. A token minted before a password change carries a
// stale credential stamp and is rejected even though its signature is
// still valid.
func AuthMiddleware(tm *auth.TokenManager, sessions session.Manager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				http.Error(w, `{"error":"invalid auth"}`, http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			if _, err := sessions.Validate(r.Context(), claims.SessionID, claims.Stamp); err != nil {
				log.Info("rejected stale or revoked session",
					slog.String("account_id", claims.AccountID),
				)
				http.Error(w, `{"error":"session expired"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), AccountContextKey{}, claims.AccountID)
			ctx = context.WithValue(ctx, SessionContextKey{}, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware applies strict per-address limits on credential
// endpoints and the default per-account limit elsewhere
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/auth/register", "/api/auth/login":
				if !limiter.AllowStrict(remoteAddr(r), 10, time.Minute) {
					log.Warn("credential endpoint rate limited",
						slog.String("path", r.URL.Path),
						slog.String("remote", remoteAddr(r)),
					)
					http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
					return
				}
			case "/healthz", "/readyz", "/metrics":
			default:
				if !limiter.Allow(GetAccountFromContext(r.Context())) {
					http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records mutations of credential and profile state
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID := GetAccountFromContext(r.Context())

			if r.Method == http.MethodPost && r.URL.Path == "/api/auth/change-password" {
				auditLog.LogPasswordChange(r.Context(), accountID, "initiated", "")
			}
			if r.Method == http.MethodPut && r.URL.Path == "/api/profile" {
				auditLog.LogProfileUpdate(r.Context(), accountID, "initiated", "")
			}
			if r.Method == http.MethodDelete && r.URL.Path == "/api/account" {
				auditLog.LogAccountDeletion(r.Context(), accountID, "initiated", "")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func remoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func GetAccountFromContext(ctx context.Context) string {
	if v := ctx.Value(AccountContextKey{}); v != nil {
		return v.(string)
	}
	return ""
}

func GetSessionFromContext(ctx context.Context) string {
	if v := ctx.Value(SessionContextKey{}); v != nil {
		return v.(string)
	}
	return ""
}
