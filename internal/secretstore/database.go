package secretstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	errSQLiteEmptyPath     = errors.New("secret_store.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("secret_store.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("secret_store.unsupported_no_scheme")
)

// DatabaseStore keeps append-only secret versions in a relational table for
// local runs where Secret Manager is unavailable.
type DatabaseStore struct {
	db          *gorm.DB
	driverLabel string
	logger      *zap.Logger
}

// Driver exposes the selected database driver label.
func (store *DatabaseStore) Driver() string {
	return store.driverLabel
}

type secretVersionRecord struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	SecretName  string `gorm:"column:secret_name;index;not null"`
	Payload     []byte `gorm:"column:payload;not null"`
	CreatedUnix int64  `gorm:"column:created_unix;not null"`
}

func (secretVersionRecord) TableName() string {
	return "secret_versions"
}

// NewDatabaseStore constructs a GORM-backed store from a sqlite:// or
// postgres:// URL.
func NewDatabaseStore(ctx context.Context, storeURL string, logger *zap.Logger) (*DatabaseStore, error) {
	if strings.TrimSpace(storeURL) == "" {
		return nil, fmt.Errorf("secret_store.open: %w", ErrEmptyStoreURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dialector, driverLabel, dialectErr := resolveDialector(storeURL)
	if dialectErr != nil {
		return nil, dialectErr
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("secret_store.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&secretVersionRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("secret_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseStore{
		db:          gormDB,
		driverLabel: driverLabel,
		logger:      logger,
	}, nil
}

// EnsureAndAppend inserts a new version row. The secret "exists" as soon as
// its first version does, so there is no separate create step to race on.
func (store *DatabaseStore) EnsureAndAppend(ctx context.Context, secretName string, payload []byte) error {
	if strings.TrimSpace(secretName) == "" {
		return fmt.Errorf("secret_store.append.%s: %w", store.driverLabel, ErrEmptySecretName)
	}
	record := secretVersionRecord{
		SecretName:  secretName,
		Payload:     payload,
		CreatedUnix: time.Now().UTC().Unix(),
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("secret_store.append.%s: %w", store.driverLabel, err)
	}
	return nil
}

// GetLatest reads the newest version row; every failure collapses to absence.
func (store *DatabaseStore) GetLatest(ctx context.Context, secretName string) (map[string]any, bool) {
	var record secretVersionRecord
	err := store.db.WithContext(ctx).
		Where("secret_name = ?", secretName).
		Order("id DESC").
		Take(&record).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			store.logger.Debug("secret version lookup failed",
				zap.String("code", "secret_store.lookup_failed"),
				zap.String("driver", store.driverLabel),
				zap.String("secret_name", secretName),
				zap.Error(err))
		}
		return nil, false
	}
	var decoded map[string]any
	if unmarshalErr := json.Unmarshal(record.Payload, &decoded); unmarshalErr != nil {
		store.logger.Debug("secret payload is not valid JSON",
			zap.String("code", "secret_store.payload_invalid"),
			zap.String("driver", store.driverLabel),
			zap.String("secret_name", secretName))
		return nil, false
	}
	return decoded, true
}

// ListByPrefix returns distinct secret names matching the prefix.
func (store *DatabaseStore) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := store.db.WithContext(ctx).
		Model(&secretVersionRecord{}).
		Distinct("secret_name").
		Where("secret_name LIKE ?", prefix+"%").
		Order("secret_name").
		Pluck("secret_name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("secret_store.list.%s: %w", store.driverLabel, err)
	}
	return names, nil
}

func resolveDialector(storeURL string) (gorm.Dialector, string, error) {
	parsed, parseErr := url.Parse(storeURL)
	if parseErr != nil {
		return nil, "", fmt.Errorf("secret_store.parse_url: %w", parseErr)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("secret_store.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(storeURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("secret_store.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("secret_store.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
