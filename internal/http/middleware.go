package http

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// CallerContextKey holds the account id of the caller.
	CallerContextKey ContextKey = "caller"

	// CallerHeader is set by the authentication gateway in front of the service.
	CallerHeader = "X-Caller-ID"
)

// CallerFromContext returns the caller id stored by RequireCaller.
func CallerFromContext(ctx context.Context) string {
	caller, _ := ctx.Value(CallerContextKey).(string)
	return caller
}

// RequireCaller rejects requests without a caller identity.
func (s *Server) RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := strings.TrimSpace(r.Header.Get(CallerHeader))
		if caller == "" {
			s.log.Debug().Str("path", r.URL.Path).Msg("caller header missing, denying access")
			encoder{}.StatusError(w, http.StatusUnauthorized, "missing "+CallerHeader+" header")
			return
		}

		ctx := context.WithValue(r.Context(), CallerContextKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireElevated lets moderators and admins through.
func (s *Server) RequireElevated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := CallerFromContext(r.Context())

		elevated, err := s.authz.HasElevatedRole(r.Context(), caller)
		if err != nil {
			s.log.Error().Err(err).Str("caller", caller).Msg("could not resolve caller role")
			encoder{}.Error(w, err)
			return
		}
		if !elevated {
			s.log.Warn().Str("caller", caller).Str("path", r.URL.Path).Msg("admin route denied")
			encoder{}.StatusError(w, http.StatusForbidden, "elevated role required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// LoggerMiddleware provides structured logging for HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			reqLogger := logger.With().Logger()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				reqID := middleware.GetReqID(r.Context())

				if rec := recover(); rec != nil {
					reqLogger.Error().
						Str("type", "error").
						Timestamp().
						Interface("recover_info", rec).
						Bytes("debug_stack", debug.Stack()).
						Str("request_id", reqID).
						Msg("Unhandled panic recovered by middleware")
					http.Error(ww, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}

				reqLogger.Debug().
					Str("request_id", reqID).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("took", time.Since(start)).
					Msg("request")
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
