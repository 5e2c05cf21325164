package oauthkit

import (
	"net/url"
	"strings"
	"testing"
)

func newTestServiceConfig() ServiceConfig {
	return ServiceConfig{
		SpotifyClientID:     "client-id",
		SpotifyClientSecret: "client-secret",
		RedirectURI:         "https://app.example.com/auth/callback",
		Scopes:              "user-read-email user-top-read",
		AdminAPIKey:         "admin-key",
		SecretPrefix:        "spotify1-refresh-",
		AuthorizeURL:        "https://accounts.spotify.com/authorize",
		TokenURL:            "https://accounts.spotify.com/api/token",
		ProfileURL:          "https://api.spotify.com/v1/me",
	}
}

func TestBuildAuthorizeURLContainsRequiredParams(t *testing.T) {
	config := newTestServiceConfig()

	authorizeURL := BuildAuthorizeURL(config, "")
	parsed, parseErr := url.Parse(authorizeURL)
	if parseErr != nil {
		t.Fatalf("failed to parse authorize URL: %v", parseErr)
	}
	if got := parsed.Scheme + "://" + parsed.Host + parsed.Path; got != config.AuthorizeURL {
		t.Fatalf("expected base %q, got %q", config.AuthorizeURL, got)
	}

	query := parsed.Query()
	expectations := map[string]string{
		"client_id":     "client-id",
		"response_type": "code",
		"redirect_uri":  config.RedirectURI,
		"scope":         "user-read-email user-top-read",
		"show_dialog":   "true",
		"response_mode": "query",
		"prompt":        "consent",
	}
	for key, expected := range expectations {
		if query.Get(key) != expected {
			t.Fatalf("expected %s=%q, got %q", key, expected, query.Get(key))
		}
	}
	if !strings.HasPrefix(query.Get("state"), "st-") {
		t.Fatalf("expected generated state with st- prefix, got %q", query.Get("state"))
	}
}

func TestBuildAuthorizeURLUsesSuppliedState(t *testing.T) {
	config := newTestServiceConfig()

	authorizeURL := BuildAuthorizeURL(config, "st-custom")
	parsed, parseErr := url.Parse(authorizeURL)
	if parseErr != nil {
		t.Fatalf("failed to parse authorize URL: %v", parseErr)
	}
	if parsed.Query().Get("state") != "st-custom" {
		t.Fatalf("expected supplied state, got %q", parsed.Query().Get("state"))
	}
}

func TestNewStateTokenIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		token := NewStateToken()
		if !strings.HasPrefix(token, "st-") {
			t.Fatalf("expected st- prefix, got %q", token)
		}
		if _, duplicate := seen[token]; duplicate {
			t.Fatalf("state token %q generated twice", token)
		}
		seen[token] = struct{}{}
	}
}
