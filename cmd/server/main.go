package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/spotvault/internal/oauthkit"
	"github.com/tyemirov/spotvault/internal/secretstore"
	"github.com/tyemirov/spotvault/internal/web"
	"go.uber.org/zap"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

var buildGCPStore = func(ctx context.Context, projectID string, logger *zap.Logger) (secretstore.Store, error) {
	return secretstore.NewGCPStore(ctx, projectID, logger)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "spotvault",
		Short:   "Spotify OAuth onboarding service that archives refresh tokens in a managed secret store",
		PreRunE: prepareServiceConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("spotify_client_id", "", "Spotify OAuth client ID")
	rootCmd.Flags().String("spotify_client_secret", "", "Spotify OAuth client secret")
	rootCmd.Flags().String("spotify_redirect_uri", "", "Redirect URI registered with Spotify")
	rootCmd.Flags().String("scopes", oauthkit.DefaultScopes, "Space-delimited Spotify scopes to request")
	rootCmd.Flags().String("app_url", "", "Public URL of this app")
	rootCmd.Flags().String("admin_api_key", "", "Shared secret for the admin query surface")
	rootCmd.Flags().String("gcp_project", "", "GCP project hosting Secret Manager (required unless store_url is set)")
	rootCmd.Flags().String("spotify_secret_prefix", oauthkit.DefaultSecretPrefix, "Prefix for stored secret names")
	rootCmd.Flags().String("store_url", "", "Secret store backend override (memory://, sqlite:// or postgres://; leave empty for Secret Manager)")
	rootCmd.Flags().Duration("request_timeout", oauthkit.DefaultRequestTimeout, "Timeout for each outbound Spotify call")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin admin clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled")

	_ = viper.BindPFlag("listen_addr", rootCmd.Flags().Lookup("listen_addr"))
	_ = viper.BindPFlag("spotify_client_id", rootCmd.Flags().Lookup("spotify_client_id"))
	_ = viper.BindPFlag("spotify_client_secret", rootCmd.Flags().Lookup("spotify_client_secret"))
	_ = viper.BindPFlag("spotify_redirect_uri", rootCmd.Flags().Lookup("spotify_redirect_uri"))
	_ = viper.BindPFlag("scopes", rootCmd.Flags().Lookup("scopes"))
	_ = viper.BindPFlag("app_url", rootCmd.Flags().Lookup("app_url"))
	_ = viper.BindPFlag("admin_api_key", rootCmd.Flags().Lookup("admin_api_key"))
	_ = viper.BindPFlag("gcp_project", rootCmd.Flags().Lookup("gcp_project"))
	_ = viper.BindPFlag("spotify_secret_prefix", rootCmd.Flags().Lookup("spotify_secret_prefix"))
	_ = viper.BindPFlag("store_url", rootCmd.Flags().Lookup("store_url"))
	_ = viper.BindPFlag("request_timeout", rootCmd.Flags().Lookup("request_timeout"))
	_ = viper.BindPFlag("enable_cors", rootCmd.Flags().Lookup("enable_cors"))
	_ = viper.BindPFlag("cors_allowed_origins", rootCmd.Flags().Lookup("cors_allowed_origins"))

	// No env prefix: the deployment environment already carries
	// SPOTIFY_CLIENT_ID, ADMIN_API_KEY, GCP_PROJECT and friends.
	viper.AutomaticEnv()

	return rootCmd
}

const (
	configCodeMissingClientID     = "config.missing_spotify_client_id"
	configCodeMissingClientSecret = "config.missing_spotify_client_secret"
	configCodeMissingRedirectURI  = "config.missing_spotify_redirect_uri"
	configCodeMissingAdminAPIKey  = "config.missing_admin_api_key"
	configCodeMissingGCPProject   = "config.missing_gcp_project"
	configCodeInvalidTimeout      = "config.invalid_request_timeout"
	configCodeUninitializedConfig = "config.uninitialized_service_config"
	configCodeSecretStoreInit     = "config.secret_store_init"
	configCodeInvalidCORSOrigins  = "config.invalid_cors_origins"
)

type contextKey string

const serviceConfigContextKey contextKey = "serviceConfig"

func prepareServiceConfig(command *cobra.Command, arguments []string) error {
	serviceConfig, loadErr := LoadServiceConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serviceConfigContextKey, serviceConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// LoadServiceConfig reads flags and environment into the immutable service
// configuration, failing fast when a required value is absent.
func LoadServiceConfig() (oauthkit.ServiceConfig, error) {
	spotifyClientID := viper.GetString("spotify_client_id")
	if spotifyClientID == "" {
		return oauthkit.ServiceConfig{}, configError(configCodeMissingClientID, "spotify_client_id must be provided")
	}

	spotifyClientSecret := viper.GetString("spotify_client_secret")
	if spotifyClientSecret == "" {
		return oauthkit.ServiceConfig{}, configError(configCodeMissingClientSecret, "spotify_client_secret must be provided")
	}

	redirectURI := viper.GetString("spotify_redirect_uri")
	if redirectURI == "" {
		return oauthkit.ServiceConfig{}, configError(configCodeMissingRedirectURI, "spotify_redirect_uri must be provided")
	}

	adminAPIKey := viper.GetString("admin_api_key")
	if adminAPIKey == "" {
		return oauthkit.ServiceConfig{}, configError(configCodeMissingAdminAPIKey, "admin_api_key must be provided")
	}

	if viper.GetString("store_url") == "" && viper.GetString("gcp_project") == "" {
		return oauthkit.ServiceConfig{}, configError(configCodeMissingGCPProject, "gcp_project must be provided when store_url is empty")
	}

	requestTimeout := viper.GetDuration("request_timeout")
	if requestTimeout <= 0 {
		return oauthkit.ServiceConfig{}, configError(configCodeInvalidTimeout, "request_timeout must be greater than zero")
	}

	scopes := viper.GetString("scopes")
	if scopes == "" {
		scopes = oauthkit.DefaultScopes
	}
	secretPrefix := viper.GetString("spotify_secret_prefix")
	if secretPrefix == "" {
		secretPrefix = oauthkit.DefaultSecretPrefix
	}

	return oauthkit.ServiceConfig{
		SpotifyClientID:     spotifyClientID,
		SpotifyClientSecret: spotifyClientSecret,
		RedirectURI:         redirectURI,
		Scopes:              scopes,
		AppURL:              viper.GetString("app_url"),
		AdminAPIKey:         adminAPIKey,
		SecretPrefix:        secretPrefix,
		AuthorizeURL:        oauthkit.DefaultAuthorizeURL,
		TokenURL:            oauthkit.DefaultTokenURL,
		ProfileURL:          oauthkit.DefaultProfileURL,
		RequestTimeout:      requestTimeout,
	}, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serviceConfigContextKey)
	}
	serviceConfig, ok := contextValue.(oauthkit.ServiceConfig)
	if !ok {
		return configError(configCodeUninitializedConfig, "service configuration not prepared; PreRunE must execute before RunE")
	}

	listenAddr := viper.GetString("listen_addr")
	storeURL := viper.GetString("store_url")
	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")

	secrets, closeStore, storeErr := openSecretStore(commandContext, storeURL, logger)
	if storeErr != nil {
		return fmt.Errorf("%s: %w", configCodeSecretStoreInit, storeErr)
	}
	defer closeStore()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if enableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, corsAllowedOrigins)
		if corsErr != nil {
			return fmt.Errorf("%s: %w", configCodeInvalidCORSOrigins, corsErr)
		}
		router.Use(corsMiddleware)
	}

	router.SetHTMLTemplate(web.PageTemplates())

	provider := oauthkit.NewSpotifyProvider(serviceConfig)
	clock := oauthkit.NewSystemClock()
	metricsRecorder := oauthkit.NewCounterMetrics()

	oauthkit.MountRoutes(router, serviceConfig, provider, secrets, clock, logger, metricsRecorder)

	admin := router.Group("/", oauthkit.RequireAPIKey(serviceConfig.AdminAPIKey))
	admin.GET("/admin/users", web.HandleAdminUsers(serviceConfig.SecretPrefix, secrets, logger))
	admin.GET("/internal/get-token/:spotify_user_id", web.HandleGetToken(serviceConfig.SecretPrefix, secrets, logger))

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func openSecretStore(ctx context.Context, storeURL string, logger *zap.Logger) (secretstore.Store, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	switch storeURL {
	case "":
		projectID := viper.GetString("gcp_project")
		gcpStore, storeErr := buildGCPStore(ctx, projectID, logger)
		if storeErr != nil {
			return nil, nil, storeErr
		}
		logger.Info("using secret manager store", zap.String("project", projectID))
		closeStore := func() {}
		if closer, canClose := gcpStore.(interface{ Close() error }); canClose {
			closeStore = func() { _ = closer.Close() }
		}
		return gcpStore, closeStore, nil
	case "memory://":
		logger.Info("using in-memory secret store")
		return secretstore.NewMemoryStore(), func() {}, nil
	default:
		databaseStore, storeErr := secretstore.NewDatabaseStore(ctx, storeURL, logger)
		if storeErr != nil {
			return nil, nil, storeErr
		}
		logger.Info("using database secret store", zap.String("driver", databaseStore.Driver()))
		return databaseStore, func() {}, nil
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
