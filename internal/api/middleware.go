package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"popcorn/internal/domain"
)

type contextKey string

const principalKey contextKey = "principal"

// AuthMiddleware checks the bearer token and stores the caller's identity in the request context.
// The claimed permissions travel along, but services authorize against the stored account.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.logger.WarnContext(r.Context(), "Authorization header missing", slog.String("path", r.URL.Path))
			h.respondError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			h.logger.WarnContext(r.Context(), "Invalid Authorization header format")
			h.respondError(w, r, http.StatusUnauthorized, "Invalid Authorization header format")
			return
		}

		claims, err := h.tokenManager.Validate(parts[1])
		if err != nil {
			h.logger.WarnContext(r.Context(), "Invalid or expired token", slog.String("error", err.Error()))
			h.respondError(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		principal := domain.Principal{UserID: claims.UserID}
		for _, raw := range claims.Permissions {
			if p := domain.UserMoviePermission(raw); p.Valid() {
				principal.Permissions = append(principal.Permissions, p)
			}
		}
		ctx := context.WithValue(r.Context(), principalKey, principal)
		h.logger.DebugContext(ctx, "Token validated successfully", slog.String("userID", claims.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFromContext returns the identity stored by AuthMiddleware.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok && p.UserID != ""
}

// principal answers 500 when a protected handler runs without AuthMiddleware.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "Principal not found in request context after AuthMiddleware")
		h.respondError(w, r, http.StatusInternalServerError, "Error processing user identity")
	}
	return p, ok
}

// requestLogger logs every request with its status and duration.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := timeNow()
		next.ServeHTTP(rec, r)
		h.logger.InfoContext(r.Context(), "HTTP request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", timeNow().Sub(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
