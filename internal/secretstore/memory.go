package secretstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store intended for tests and local dev runs.
type MemoryStore struct {
	mutex    sync.Mutex
	versions map[string][][]byte
}

// NewMemoryStore creates an empty in-memory secret store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{versions: make(map[string][][]byte)}
}

// EnsureAndAppend appends payload as a new version, creating the secret on
// first write.
func (store *MemoryStore) EnsureAndAppend(ctx context.Context, secretName string, payload []byte) error {
	if strings.TrimSpace(secretName) == "" {
		return ErrEmptySecretName
	}
	cloned := make([]byte, len(payload))
	copy(cloned, payload)

	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.versions[secretName] = append(store.versions[secretName], cloned)
	return nil
}

// GetLatest decodes the newest version; absence covers missing secrets and
// payloads that are not JSON objects.
func (store *MemoryStore) GetLatest(ctx context.Context, secretName string) (map[string]any, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	secretVersions, ok := store.versions[secretName]
	if !ok || len(secretVersions) == 0 {
		return nil, false
	}
	var decoded map[string]any
	if err := json.Unmarshal(secretVersions[len(secretVersions)-1], &decoded); err != nil {
		return nil, false
	}
	return decoded, true
}

// ListByPrefix returns matching names in lexical order.
func (store *MemoryStore) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	names := make([]string, 0, len(store.versions))
	for secretName := range store.versions {
		if strings.HasPrefix(secretName, prefix) {
			names = append(names, secretName)
		}
	}
	sort.Strings(names)
	return names, nil
}

// VersionCount reports how many versions exist under a name. Test helper.
func (store *MemoryStore) VersionCount(secretName string) int {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return len(store.versions[secretName])
}
