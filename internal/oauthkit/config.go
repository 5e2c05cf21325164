package oauthkit

import "time"

// ServiceConfig carries the immutable process configuration: Spotify client
// credentials, endpoint URLs, and the secret naming prefix. It is built once
// at startup and passed explicitly into each component.
type ServiceConfig struct {
	SpotifyClientID     string
	SpotifyClientSecret string
	RedirectURI         string
	Scopes              string
	AppURL              string
	AdminAPIKey         string
	SecretPrefix        string
	AuthorizeURL        string
	TokenURL            string
	ProfileURL          string
	RequestTimeout      time.Duration
}

// Production Spotify endpoints. Tests override these with httptest servers.
const (
	DefaultAuthorizeURL = "https://accounts.spotify.com/authorize"
	DefaultTokenURL     = "https://accounts.spotify.com/api/token"
	DefaultProfileURL   = "https://api.spotify.com/v1/me"

	// DefaultScopes is the scope string requested when SCOPES is unset.
	DefaultScopes = "user-read-private user-read-email user-read-recently-played user-top-read user-library-read playlist-read-private playlist-read-collaborative user-follow-read"

	// DefaultSecretPrefix prefixes every stored secret name.
	DefaultSecretPrefix = "spotify1-refresh-"

	// DefaultRequestTimeout bounds each outbound Spotify call.
	DefaultRequestTimeout = 30 * time.Second
)
