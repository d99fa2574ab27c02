package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"whisperboard/pkg/config"
	"whisperboard/pkg/logger"
)

type ctxPrincipalKey struct{}

// SecConfig carries the security middleware settings resolved at startup.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
}

// RequireSignedPrincipal verifies the HMAC signature headers and injects
// the verified principal id into the request context. Every mutating call
// goes through this; the board treats the id as an opaque authorization
// token.
func RequireSignedPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		sig := strings.TrimSpace(r.Header.Get("X-User-Signature"))

		if userID == "" || sig == "" {
			logger.Warn("missing_signature_headers", zap.String("path", r.URL.Path), zap.String("remote", r.RemoteAddr), zap.String("headers", logger.SafeHeaders(r)))
			http.Error(w, `{"error":"missing signature headers"}`, http.StatusUnauthorized)
			return
		}

		keys := config.GetSigningKeys()
		if len(keys) == 0 {
			logger.Error("no_signing_keys_configured")
			http.Error(w, `{"error":"server misconfigured: no signing secrets available"}`, http.StatusInternalServerError)
			return
		}

		ok := false
		for k := range keys {
			mac := hmac.New(sha256.New, []byte(k))
			mac.Write([]byte(userID))
			expected := hex.EncodeToString(mac.Sum(nil))
			if hmac.Equal([]byte(expected), []byte(sig)) {
				ok = true
				break
			}
		}
		if !ok {
			logger.Warn("invalid_signature", zap.String("user", userID), zap.String("headers", logger.SafeHeaders(r)))
			http.Error(w, `{"error":"invalid signature"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxPrincipalKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSignedMutations enforces signature verification on mutating
// methods only. Reads and websocket upgrades pass through, though a valid
// signature still injects the principal when the headers are present.
func RequireSignedMutations(next http.Handler) http.Handler {
	signed := RequireSignedPrincipal(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if r.Header.Get("X-User-ID") != "" {
				signed.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		default:
			signed.ServeHTTP(w, r)
		}
	})
}

// PrincipalFromContext returns the verified principal id or empty string.
func PrincipalFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxPrincipalKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SecurityMiddleware applies CORS headers and per-caller rate limiting
// ahead of signature verification.
func SecurityMiddleware(cfg SecConfig) func(http.Handler) http.Handler {
	pool := &limiterPool{cfg: cfg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && originAllowed(cfg.AllowedOrigins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID, X-User-Signature")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			key := r.Header.Get("X-User-ID")
			if key == "" {
				key = r.RemoteAddr
			}
			if cfg.RPS > 0 && !pool.Allow(key) {
				logger.Warn("rate_limited", zap.String("key", key), zap.String("path", r.URL.Path))
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// SignPrincipal computes the hex HMAC-SHA256 signature for a principal id
// under the given key. Shared with the client library and tests.
func SignPrincipal(key, userID string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}
