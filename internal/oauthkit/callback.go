package oauthkit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/spotvault/internal/secretstore"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Metrics events for each callback outcome.
const (
	EventCallbackSuccess         = "callback.success"
	EventCallbackMissingCode     = "callback.missing_code"
	EventCallbackExchangeFailed  = "callback.exchange_failed"
	EventCallbackMissingTokens   = "callback.missing_tokens"
	EventCallbackProfileFailed   = "callback.profile_failed"
	EventCallbackMissingIdentity = "callback.missing_identity"
	EventCallbackStorageFailed   = "callback.storage_failed"
)

// HandleCallback runs the core onboarding sequence: exchange the code for
// tokens, resolve the Spotify identity, and append a credential record to the
// secret store. The three external calls are strictly ordered and each is
// bounded by the configured timeout; any failure is terminal for the request.
// Tokens are never logged and the access token is discarded once the profile
// is fetched.
func HandleCallback(configuration ServiceConfig, provider Provider, secrets secretstore.Store, clock Clock, logger *zap.Logger, metrics MetricsRecorder) gin.HandlerFunc {
	timeout := configuration.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(contextGin *gin.Context) {
		code := contextGin.Query("code")
		state := contextGin.Query("state")

		if strings.TrimSpace(code) == "" {
			metrics.Increment(EventCallbackMissingCode)
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_code"})
			return
		}

		logger.Info("callback invoked",
			zap.String("code", "callback.received"),
			zap.String("state", state),
			zap.String("user_agent", contextGin.Request.UserAgent()))

		exchangeCtx, exchangeCancel := context.WithTimeout(contextGin.Request.Context(), timeout)
		exchange, exchangeErr := provider.ExchangeCode(exchangeCtx, code)
		exchangeCancel()
		if exchangeErr != nil {
			metrics.Increment(EventCallbackExchangeFailed)
			logger.Error("token exchange failed",
				zap.String("code", "callback.exchange_failed"),
				zap.Error(exchangeErr))
			message := "Spotify token exchange failed."
			var retrieveErr *oauth2.RetrieveError
			if errors.As(exchangeErr, &retrieveErr) {
				message = "Failed to exchange code."
			}
			renderErrorPage(contextGin, message)
			return
		}

		if exchange.AccessToken == "" || exchange.RefreshToken == "" {
			metrics.Increment(EventCallbackMissingTokens)
			logger.Warn("token response incomplete",
				zap.String("code", "callback.missing_tokens"),
				zap.Bool("has_access_token", exchange.AccessToken != ""),
				zap.Bool("has_refresh_token", exchange.RefreshToken != ""))
			renderErrorPage(contextGin, "Missing tokens.")
			return
		}

		profileCtx, profileCancel := context.WithTimeout(contextGin.Request.Context(), timeout)
		profile, profileErr := provider.FetchProfile(profileCtx, exchange.AccessToken)
		profileCancel()
		if profileErr != nil {
			metrics.Increment(EventCallbackProfileFailed)
			logger.Error("profile fetch failed",
				zap.String("code", "callback.profile_failed"),
				zap.Error(profileErr))
			message := "Failed to fetch Spotify profile."
			if errors.Is(profileErr, ErrProfileStatus) {
				message = "Spotify profile error."
			}
			renderErrorPage(contextGin, message)
			return
		}

		if profile.ID == "" {
			metrics.Increment(EventCallbackMissingIdentity)
			logger.Warn("profile response missing id",
				zap.String("code", "callback.missing_identity"))
			renderErrorPage(contextGin, "Profile missing ID.")
			return
		}

		record := CredentialRecord{
			SpotifyUserID: profile.ID,
			DisplayName:   profile.DisplayName,
			RefreshToken:  exchange.RefreshToken,
			Scope:         exchange.Scope,
			CreatedAt:     clock.Now().UTC().Format(time.RFC3339),
		}
		payload, marshalErr := json.Marshal(record)
		if marshalErr != nil {
			metrics.Increment(EventCallbackStorageFailed)
			logger.Error("credential record marshal failed",
				zap.String("code", "callback.marshal_failed"),
				zap.Error(marshalErr))
			renderErrorPage(contextGin, "Failed to store credentials.")
			return
		}

		storeCtx, storeCancel := context.WithTimeout(contextGin.Request.Context(), timeout)
		appendErr := secrets.EnsureAndAppend(storeCtx, SecretName(configuration.SecretPrefix, profile.ID), payload)
		storeCancel()
		if appendErr != nil {
			metrics.Increment(EventCallbackStorageFailed)
			logger.Error("failed to store credentials",
				zap.String("code", "callback.storage_failed"),
				zap.String("spotify_user_id", profile.ID),
				zap.Error(appendErr))
			renderErrorPage(contextGin, "Failed to store credentials.")
			return
		}

		metrics.Increment(EventCallbackSuccess)
		logger.Info("onboarding complete",
			zap.String("code", "callback.success"),
			zap.String("spotify_user_id", profile.ID))
		contextGin.HTML(http.StatusOK, "success.html", gin.H{
			"display_name":    profile.DisplayName,
			"spotify_user_id": profile.ID,
		})
	}
}

func renderErrorPage(contextGin *gin.Context, message string) {
	contextGin.HTML(http.StatusOK, "error.html", gin.H{"message": message})
}
