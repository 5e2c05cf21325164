package secretstore

import "errors"

var (
	// ErrEmptySecretName indicates a call with a blank secret name.
	ErrEmptySecretName = errors.New("secret_store.empty_name")
	// ErrEmptyStoreURL indicates that no store URL was supplied.
	ErrEmptyStoreURL = errors.New("secret_store.empty_store_url")
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("secret_store.unsupported_dialect")
)
