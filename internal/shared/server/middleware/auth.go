package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"perf-report-backend/internal/shared/server/respond"
)

const principalKey = "principal"

// APIKey guards routes with static API keys sent as a bearer token or in the
// X-Api-Key header. With no keys configured every request passes through.
func APIKey(keys []string) gin.HandlerFunc {
	var allowed [][]byte
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			allowed = append(allowed, []byte(k))
		}
	}

	return func(c *gin.Context) {
		if len(allowed) == 0 || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		key := strings.TrimSpace(c.GetHeader("X-Api-Key"))
		if key == "" {
			authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
			if !strings.HasPrefix(authHeader, "Bearer ") {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid api key", nil)
				return
			}
			key = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		}

		if !matchKey(allowed, []byte(key)) {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid api key", nil)
			return
		}
		c.Set(principalKey, "key:"+fingerprint(key))
		c.Next()
	}
}

func matchKey(allowed [][]byte, key []byte) bool {
	if len(key) == 0 {
		return false
	}
	found := 0
	for _, k := range allowed {
		found |= subtle.ConstantTimeCompare(k, key)
	}
	return found == 1
}

// fingerprint identifies a key in logs and rate-limit buckets without
// exposing it.
func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:6])
}

// PrincipalFromContext returns the caller identity set by APIKey, or "".
func PrincipalFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(principalKey)
	if p, ok := val.(string); ok {
		return p
	}
	return ""
}
