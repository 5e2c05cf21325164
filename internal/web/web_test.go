package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/spotvault/internal/oauthkit"
	"github.com/tyemirov/spotvault/internal/secretstore"
	"go.uber.org/zap/zaptest"
)

type erroringStore struct {
	listErr error
}

func (store *erroringStore) EnsureAndAppend(ctx context.Context, secretName string, payload []byte) error {
	return nil
}

func (store *erroringStore) GetLatest(ctx context.Context, secretName string) (map[string]any, bool) {
	return nil, false
}

func (store *erroringStore) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return nil, store.listErr
}

func seedStore(t *testing.T) *secretstore.MemoryStore {
	t.Helper()
	store := secretstore.NewMemoryStore()
	ctx := context.Background()

	records := map[string]string{
		"spotify1-refresh-u1": `{"spotify_user_id":"u1","display_name":"Jane","refresh_token":"RT1","scope":"user-read-email","created_at":"2025-06-01T12:30:00Z"}`,
		"spotify1-refresh-u2": `{"spotify_user_id":"u2","display_name":"","refresh_token":"RT2","scope":"user-top-read","created_at":"2025-06-02T08:00:00Z"}`,
	}
	for secretName, payload := range records {
		if err := store.EnsureAndAppend(ctx, secretName, []byte(payload)); err != nil {
			t.Fatalf("seed append failed: %v", err)
		}
	}
	if err := store.EnsureAndAppend(ctx, "spotify1-refresh-corrupt", []byte("not json")); err != nil {
		t.Fatalf("seed append failed: %v", err)
	}
	return store
}

func newAdminRouter(t *testing.T, secrets secretstore.Store, adminAPIKey string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger := zaptest.NewLogger(t)
	admin := router.Group("/", oauthkit.RequireAPIKey(adminAPIKey))
	admin.GET("/admin/users", HandleAdminUsers("spotify1-refresh-", secrets, logger))
	admin.GET("/internal/get-token/:spotify_user_id", HandleGetToken("spotify1-refresh-", secrets, logger))
	return router
}

func performAdmin(router *gin.Engine, target string, apiKey string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, target, nil)
	if apiKey != "" {
		request.Header.Set("x-api-key", apiKey)
	}
	router.ServeHTTP(recorder, request)
	return recorder
}

func TestAdminUsersRequiresAPIKey(t *testing.T) {
	router := newAdminRouter(t, seedStore(t), "admin-key")

	if recorder := performAdmin(router, "/admin/users", ""); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", recorder.Code)
	}
	if recorder := performAdmin(router, "/admin/users", "wrong-key"); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", recorder.Code)
	}
}

func TestAdminUsersProjectsIdentityFields(t *testing.T) {
	router := newAdminRouter(t, seedStore(t), "admin-key")

	recorder := performAdmin(router, "/admin/users", "admin-key")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var users []map[string]any
	if decodeErr := json.Unmarshal(recorder.Body.Bytes(), &users); decodeErr != nil {
		t.Fatalf("failed to decode users payload: %v", decodeErr)
	}
	if len(users) != 2 {
		t.Fatalf("expected corrupt entry skipped and 2 users listed, got %v", users)
	}
	for _, user := range users {
		if _, hasToken := user["refresh_token"]; hasToken {
			t.Fatalf("refresh token leaked into listing: %v", user)
		}
		if user["spotify_user_id"] == "" {
			t.Fatalf("expected spotify_user_id in projection, got %v", user)
		}
	}
}

func TestAdminUsersListFailure(t *testing.T) {
	router := newAdminRouter(t, &erroringStore{listErr: errors.New("backend down")}, "admin-key")

	if recorder := performAdmin(router, "/admin/users", "admin-key"); recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on list failure, got %d", recorder.Code)
	}
}

func TestGetTokenReturnsStoredPayload(t *testing.T) {
	router := newAdminRouter(t, seedStore(t), "admin-key")

	recorder := performAdmin(router, "/internal/get-token/u1", "admin-key")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var payload map[string]any
	if decodeErr := json.Unmarshal(recorder.Body.Bytes(), &payload); decodeErr != nil {
		t.Fatalf("failed to decode payload: %v", decodeErr)
	}
	if payload["spotify_user_id"] != "u1" || payload["refresh_token"] != "RT1" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestGetTokenUnknownUser(t *testing.T) {
	router := newAdminRouter(t, seedStore(t), "admin-key")

	if recorder := performAdmin(router, "/internal/get-token/nobody", "admin-key"); recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", recorder.Code)
	}
}

func TestGetTokenRequiresAPIKey(t *testing.T) {
	router := newAdminRouter(t, seedStore(t), "admin-key")

	if recorder := performAdmin(router, "/internal/get-token/u1", ""); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", recorder.Code)
	}
}

func TestPageTemplatesParseEmbeddedPages(t *testing.T) {
	templates := PageTemplates()
	for _, pageName := range []string{"index.html", "success.html", "error.html"} {
		if templates.Lookup(pageName) == nil {
			t.Fatalf("expected embedded template %q", pageName)
		}
	}
}

func TestConfigureCORSRejectsWildcard(t *testing.T) {
	if _, corsErr := ConfigureCORS(zaptest.NewLogger(t), []string{"*"}); corsErr == nil {
		t.Fatalf("expected wildcard origin rejection")
	}
}

func TestConfigureCORSRejectsEmptyOrigins(t *testing.T) {
	if _, corsErr := ConfigureCORS(zaptest.NewLogger(t), nil); corsErr == nil {
		t.Fatalf("expected empty origin rejection")
	}
}

func TestConfigureCORSAcceptsExplicitOrigin(t *testing.T) {
	middleware, corsErr := ConfigureCORS(zaptest.NewLogger(t), []string{"https://dashboard.example.com"})
	if corsErr != nil {
		t.Fatalf("expected origin to be accepted, got %v", corsErr)
	}
	if middleware == nil {
		t.Fatalf("expected middleware handler")
	}
}
