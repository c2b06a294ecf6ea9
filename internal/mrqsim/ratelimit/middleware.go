package ratelimit

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Middleware enforces the named limit per remote address
func Middleware(service *Service, limitType string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := LimitKey{
				Type:     limitType,
				Token:    bearerToken(r),
				RemoteIP: r.RemoteAddr,
			}

			if err := service.Allow(r.Context(), key); err != nil {
				var rlErr Error
				if errors.As(err, &rlErr) && rlErr.Code == ErrLimitExceeded.Code {
					logger.Warn("rate limit exceeded",
						"type", limitType,
						"remoteIP", key.RemoteIP,
						"path", r.URL.Path,
					)
					w.Header().Set("Retry-After", "30")
					http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
					return
				}
				// A broken limit store must not take the API down
				logger.Error("rate limit check errored; allowing request", "error", err)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
