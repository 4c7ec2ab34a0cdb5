package assignments

import (
	"context"
	"fmt"
	"time"

	"cardsync/internal/config"
)

// Assignment is a stored tag to record mapping.
type Assignment struct {
	TagID     string
	Value     string
	UpdatedAt time.Time
}

// Record decodes the stored value.
func (a Assignment) Record() (Record, error) {
	return ParseRecord(a.Value)
}

// Store persists assignments keyed by tag identifier. Put overwrites any
// previous value for the tag.
type Store interface {
	Put(ctx context.Context, tagID, value string) error
	Get(ctx context.Context, tagID string) (Assignment, bool, error)
	List(ctx context.Context) ([]Assignment, error)
	Delete(ctx context.Context, tagID string) (bool, error)
	Backend() string
	Close() error
}

// Open connects to the backend selected by store.backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	switch cfg.Store.Backend {
	case "redis":
		return OpenRedis(ctx, cfg.Store.RedisURL, cfg.Store.RedisPrefix)
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.DatabasePath())
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}
