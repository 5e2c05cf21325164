package oauthkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// ErrProfileStatus indicates the profile endpoint answered with a non-2xx status.
var ErrProfileStatus = errors.New("spotify.profile.unexpected_status")

// TokenExchange is the subset of the token endpoint response the flow needs.
type TokenExchange struct {
	AccessToken  string
	RefreshToken string
	Scope        string
}

// Profile identifies the authenticated Spotify user.
type Profile struct {
	ID          string
	DisplayName string
}

// Provider performs the two upstream Spotify calls of the onboarding flow.
type Provider interface {
	// ExchangeCode trades an authorization code for tokens at the token
	// endpoint, authenticating with the registered client credentials.
	ExchangeCode(ctx context.Context, code string) (TokenExchange, error)
	// FetchProfile resolves the authenticated user with a bearer access token.
	FetchProfile(ctx context.Context, accessToken string) (Profile, error)
}

// SpotifyProvider is the HTTP implementation of Provider.
type SpotifyProvider struct {
	configuration ServiceConfig
	httpClient    *http.Client
}

// NewSpotifyProvider builds a provider with a bounded-timeout HTTP client.
func NewSpotifyProvider(configuration ServiceConfig) *SpotifyProvider {
	timeout := configuration.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &SpotifyProvider{
		configuration: configuration,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// ExchangeCode posts the authorization_code grant with Basic client auth via
// the oauth2 transport. Spotify returns the granted scope alongside the
// tokens; it may differ from the scope requested.
func (provider *SpotifyProvider) ExchangeCode(ctx context.Context, code string) (TokenExchange, error) {
	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, provider.httpClient)
	token, exchangeErr := oauthConfig(provider.configuration).Exchange(exchangeCtx, code)
	if exchangeErr != nil {
		return TokenExchange{}, fmt.Errorf("spotify.exchange: %w", exchangeErr)
	}
	grantedScope, _ := token.Extra("scope").(string)
	return TokenExchange{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scope:        grantedScope,
	}, nil
}

// FetchProfile issues a bearer-authenticated GET against the profile endpoint.
func (provider *SpotifyProvider) FetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, provider.configuration.ProfileURL, nil)
	if requestErr != nil {
		return Profile{}, fmt.Errorf("spotify.profile.request: %w", requestErr)
	}
	request.Header.Set("Authorization", "Bearer "+accessToken)

	response, doErr := provider.httpClient.Do(request)
	if doErr != nil {
		return Profile{}, fmt.Errorf("spotify.profile.transport: %w", doErr)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return Profile{}, fmt.Errorf("%w: %d", ErrProfileStatus, response.StatusCode)
	}

	var decoded struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	}
	if decodeErr := json.NewDecoder(response.Body).Decode(&decoded); decodeErr != nil {
		return Profile{}, fmt.Errorf("spotify.profile.decode: %w", decodeErr)
	}
	return Profile{ID: decoded.ID, DisplayName: decoded.DisplayName}, nil
}
