package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/spotvault/internal/oauthkit"
	"github.com/tyemirov/spotvault/internal/secretstore"
	"go.uber.org/zap"
)

// HandleAdminUsers enumerates onboarded users: every secret under the prefix
// is fetched and projected to its identity fields. Entries whose payload is
// absent or unparseable are skipped.
func HandleAdminUsers(secretPrefix string, secrets secretstore.Store, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(contextGin *gin.Context) {
		secretNames, listErr := secrets.ListByPrefix(contextGin.Request.Context(), secretPrefix)
		if listErr != nil {
			logger.Error("secret listing failed",
				zap.String("code", "admin.users.list_failed"),
				zap.Error(listErr))
			contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
			return
		}

		users := make([]gin.H, 0, len(secretNames))
		for _, secretName := range secretNames {
			payload, found := secrets.GetLatest(contextGin.Request.Context(), secretName)
			if !found {
				continue
			}
			users = append(users, gin.H{
				"spotify_user_id": payload["spotify_user_id"],
				"display_name":    payload["display_name"],
			})
		}
		contextGin.JSON(http.StatusOK, users)
	}
}

// HandleGetToken returns the full stored payload for one user, verbatim.
func HandleGetToken(secretPrefix string, secrets secretstore.Store, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(contextGin *gin.Context) {
		spotifyUserID := contextGin.Param("spotify_user_id")
		secretName := oauthkit.SecretName(secretPrefix, spotifyUserID)

		payload, found := secrets.GetLatest(contextGin.Request.Context(), secretName)
		if !found {
			logger.Warn("token lookup missed",
				zap.String("code", "admin.get_token.not_found"),
				zap.String("spotify_user_id", spotifyUserID))
			contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
			return
		}
		contextGin.JSON(http.StatusOK, payload)
	}
}
