package secretstore

import "context"

// Store is the capability surface over the managed secret backend. Secrets are
// append-only: every write adds a version under a stable name and the newest
// version is authoritative.
type Store interface {
	// EnsureAndAppend creates the named secret if it does not exist, then
	// appends payload as a new version. Errors propagate to the caller.
	EnsureAndAppend(ctx context.Context, secretName string, payload []byte) error
	// GetLatest fetches the newest version's payload decoded as JSON. Any
	// failure (missing secret, no versions, unparseable payload, transport or
	// permission error) is reported as absence, never as an error.
	GetLatest(ctx context.Context, secretName string) (map[string]any, bool)
	// ListByPrefix returns every secret name starting with prefix, in
	// store-defined order.
	ListByPrefix(ctx context.Context, prefix string) ([]string, error)
}
