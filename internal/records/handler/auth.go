package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jmerrifield20/recordchain/internal/identity"
)

const ctxUploaderKey = "uploader"

// TokenVerifier validates upload bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*identity.UploadClaims, error)
}

// RequireUploadToken rejects requests without a valid bearer token carrying
// identity.ScopeUpload. The token subject is stored as the uploader.
func RequireUploadToken(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := v.Verify(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if !claims.HasScope(identity.ScopeUpload) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token lacks upload scope"})
			return
		}
		c.Set(ctxUploaderKey, claims.Subject)
		c.Next()
	}
}
