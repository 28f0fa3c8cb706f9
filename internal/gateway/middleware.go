package gateway

import (
	"net/http"
	"strings"

	"github.com/Sriharan2222/medlog/pkg/logger"
	"github.com/Sriharan2222/medlog/pkg/types"
)

// corsMiddleware allows the configured frontend origin with credentials
func (s *Service) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && origin == s.allowedOrigin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware adds security headers
func (s *Service) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

// authMiddleware verifies the bearer token and stores the caller identity
func (s *Service) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			WriteErrorMessage(w, http.StatusUnauthorized, "No token provided")
			return
		}

		identity, err := s.tokenValidator.ValidateJWT(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			s.logger.WithContext(r.Context()).WithError(err).Debug("Token validation failed")
			s.metrics.RecordAuthAttempt("token", "invalid")
			WriteErrorMessage(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := ContextWithIdentity(r.Context(), identity)
		ctx = logger.ContextWithUserID(ctx, identity.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole rejects callers whose token does not carry role. It must run
// after authMiddleware.
func (s *Service) requireRole(role types.UserRole) func(http.Handler) http.Handler {
	message := "Doctor access required"
	if role == types.RolePatient {
		message = "Patient access required"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || identity.Role != role {
				userID := ""
				if ok {
					userID = identity.UserID
				}
				s.logger.Security("role_denied", userID, map[string]interface{}{
					"required": role,
				})
				WriteErrorMessage(w, http.StatusForbidden, message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware limits requests per client IP
func (s *Service) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.Allow(clientIP(r)) {
			s.logger.WithContext(r.Context()).Warn("Public view rate limit exceeded")
			s.metrics.RecordPublicView("rate_limited")
			WriteErrorMessage(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}
