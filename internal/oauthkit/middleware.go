package oauthkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAPIKey gates admin routes behind the shared x-api-key header. The
// comparison is a plain equality check; this guards an internal tool on a
// trusted network, not a public auth boundary.
func RequireAPIKey(adminAPIKey string) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		if adminAPIKey == "" || contextGin.GetHeader("x-api-key") != adminAPIKey {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		contextGin.Next()
	}
}
