// Package store persists workspace state in a key-value settings store.
//
// Values are JSON encoded. The store is single writer and last-write-wins per key;
// callers persist full snapshots rather than diffs.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/config"
	ferrors "github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
)

// Well-known keys.
const (
	KeySite     = "site"
	KeyArticles = "articles"
)

// KV is a blocking key-value store.
type KV interface {
	// Get decodes the value of key into out. It reports false when the key is unset.
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Close() error
}

// PublishRecord is one entry of the publish history.
type PublishRecord struct {
	RunID   string    `json:"runId"`
	Commit  string    `json:"commit,omitempty"`
	Added   int       `json:"added"`
	Removed int       `json:"removed"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}

// History is implemented by stores that keep a publish log.
type History interface {
	RecordPublish(ctx context.Context, rec PublishRecord) error
	History(ctx context.Context, limit int) ([]PublishRecord, error)
}

// Open creates the store selected by cfg.
func Open(cfg config.StoreConfig) (KV, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return NewMemory(), nil
	case config.StoreNATS:
		return NewNATSKV(cfg.NATSURL, cfg.Bucket)
	case config.StoreSQLite, "":
		return NewSQLite(cfg.Path)
	default:
		return nil, ferrors.ConfigError(fmt.Sprintf("unknown store driver %q", cfg.Driver)).
			WithContext("field", "store.driver").
			Build()
	}
}

func storeErr(op, key string, err error) error {
	return ferrors.WrapError(err, ferrors.CategoryStore, op).WithContext("key", key).Build()
}
