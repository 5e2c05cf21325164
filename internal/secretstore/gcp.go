package secretstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GCPStore persists secrets in Google Secret Manager. The client is a
// long-lived handle owned by the process and injected into whatever needs it.
type GCPStore struct {
	client    *secretmanager.Client
	projectID string
	logger    *zap.Logger
}

// NewGCPStore dials Secret Manager for the given project. Extra client
// options allow tests to point at a fake endpoint.
func NewGCPStore(ctx context.Context, projectID string, logger *zap.Logger, clientOptions ...option.ClientOption) (*GCPStore, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("secret_store.gcp.open: empty project id")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, clientErr := secretmanager.NewClient(ctx, clientOptions...)
	if clientErr != nil {
		return nil, fmt.Errorf("secret_store.gcp.open: %w", clientErr)
	}
	return &GCPStore{
		client:    client,
		projectID: projectID,
		logger:    logger,
	}, nil
}

// Close releases the underlying client connection.
func (store *GCPStore) Close() error {
	return store.client.Close()
}

// EnsureAndAppend creates the secret with automatic replication when absent,
// then adds payload as a new version. The existence check and the create are
// not atomic; a concurrent create losing the race reports AlreadyExists,
// which is tolerated so the append still runs.
func (store *GCPStore) EnsureAndAppend(ctx context.Context, secretName string, payload []byte) error {
	if strings.TrimSpace(secretName) == "" {
		return fmt.Errorf("secret_store.gcp.ensure: %w", ErrEmptySecretName)
	}
	parent := fmt.Sprintf("projects/%s", store.projectID)
	fullName := fmt.Sprintf("%s/secrets/%s", parent, secretName)

	_, getErr := store.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: fullName})
	if getErr != nil {
		if status.Code(getErr) != codes.NotFound {
			return fmt.Errorf("secret_store.gcp.get: %w", getErr)
		}
		_, createErr := store.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
			Parent:   parent,
			SecretId: secretName,
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
			},
		})
		if createErr != nil && status.Code(createErr) != codes.AlreadyExists {
			return fmt.Errorf("secret_store.gcp.create: %w", createErr)
		}
	}

	_, addErr := store.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  fullName,
		Payload: &secretmanagerpb.SecretPayload{Data: payload},
	})
	if addErr != nil {
		return fmt.Errorf("secret_store.gcp.add_version: %w", addErr)
	}
	return nil
}

// GetLatest accesses the latest version. All failures collapse to absence;
// the detail lands in the debug log only.
func (store *GCPStore) GetLatest(ctx context.Context, secretName string) (map[string]any, bool) {
	versionName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", store.projectID, secretName)
	response, accessErr := store.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: versionName,
	})
	if accessErr != nil {
		store.logger.Debug("secret version access failed",
			zap.String("code", "secret_store.gcp.access_failed"),
			zap.String("secret_name", secretName),
			zap.Error(accessErr))
		return nil, false
	}
	var decoded map[string]any
	if unmarshalErr := json.Unmarshal(response.GetPayload().GetData(), &decoded); unmarshalErr != nil {
		store.logger.Debug("secret payload is not valid JSON",
			zap.String("code", "secret_store.gcp.payload_invalid"),
			zap.String("secret_name", secretName))
		return nil, false
	}
	return decoded, true
}

// ListByPrefix walks every secret in the project and keeps prefix matches.
func (store *GCPStore) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	parent := fmt.Sprintf("projects/%s", store.projectID)
	secretIterator := store.client.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{Parent: parent})

	var names []string
	for {
		secret, nextErr := secretIterator.Next()
		if nextErr == iterator.Done {
			break
		}
		if nextErr != nil {
			return nil, fmt.Errorf("secret_store.gcp.list: %w", nextErr)
		}
		segments := strings.Split(secret.GetName(), "/")
		shortName := segments[len(segments)-1]
		if strings.HasPrefix(shortName, prefix) {
			names = append(names, shortName)
		}
	}
	return names, nil
}
