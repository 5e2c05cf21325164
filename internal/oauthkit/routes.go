package oauthkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/spotvault/internal/secretstore"
	"go.uber.org/zap"
)

// MountRoutes registers the browser-facing onboarding routes: the connect
// page, the login redirect, and the OAuth callback.
func MountRoutes(router gin.IRouter, configuration ServiceConfig, provider Provider, secrets secretstore.Store, clock Clock, logger *zap.Logger, metrics MetricsRecorder) {
	router.GET("/", func(contextGin *gin.Context) {
		contextGin.Redirect(http.StatusFound, "/connect")
	})

	router.GET("/connect", func(contextGin *gin.Context) {
		contextGin.HTML(http.StatusOK, "index.html", gin.H{
			"login_url": BuildAuthorizeURL(configuration, ""),
		})
	})

	router.GET("/auth/login", func(contextGin *gin.Context) {
		contextGin.Redirect(http.StatusFound, BuildAuthorizeURL(configuration, ""))
	})

	router.GET("/auth/callback", HandleCallback(configuration, provider, secrets, clock, logger, metrics))
}
