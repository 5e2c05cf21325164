package oauthkit

// CredentialRecord is the persisted onboarding result. Field names match the
// payloads already stored by earlier deployments, so they must not change.
type CredentialRecord struct {
	SpotifyUserID string `json:"spotify_user_id"`
	DisplayName   string `json:"display_name"`
	RefreshToken  string `json:"refresh_token"`
	Scope         string `json:"scope"`
	CreatedAt     string `json:"created_at"`
}

// SecretName derives the stable secret name for a Spotify user.
func SecretName(secretPrefix string, spotifyUserID string) string {
	return secretPrefix + spotifyUserID
}
