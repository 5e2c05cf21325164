package oauthkit

import (
	"strings"

	"github.com/oklog/ulid/v2"
	"golang.org/x/oauth2"
)

// BuildAuthorizeURL returns the full Spotify authorization URL. An empty
// state generates a fresh one; state is echoed back on callback but not
// validated there, so collision resistance is all that is required of it.
func BuildAuthorizeURL(configuration ServiceConfig, state string) string {
	if strings.TrimSpace(state) == "" {
		state = NewStateToken()
	}
	return oauthConfig(configuration).AuthCodeURL(state,
		oauth2.SetAuthURLParam("show_dialog", "true"),
		oauth2.SetAuthURLParam("response_mode", "query"),
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// NewStateToken generates an opaque per-attempt state value.
func NewStateToken() string {
	return "st-" + ulid.Make().String()
}

func oauthConfig(configuration ServiceConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     configuration.SpotifyClientID,
		ClientSecret: configuration.SpotifyClientSecret,
		RedirectURL:  configuration.RedirectURI,
		Scopes:       strings.Fields(configuration.Scopes),
		Endpoint: oauth2.Endpoint{
			AuthURL:   configuration.AuthorizeURL,
			TokenURL:  configuration.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}
