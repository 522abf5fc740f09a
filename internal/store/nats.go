package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/logfields"
)

// NATSKV stores settings in a JetStream key-value bucket.
type NATSKV struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
}

// NewNATSKV connects to url and opens (creating if needed) bucket.
func NewNATSKV(url, bucket string) (*NATSKV, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := js.KeyValue(ctx, bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "pagespub workspace settings",
			History:     1,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create KV bucket: %w", err)
		}
		slog.Info("Created KV bucket for settings", slog.String("bucket", bucket))
	}

	slog.Debug("NATS settings store ready", logfields.URL(url), slog.String("bucket", bucket))
	return NewNATSKVFrom(conn, kv), nil
}

// NewNATSKVFrom wraps an existing bucket. conn may be nil.
func NewNATSKVFrom(conn *nats.Conn, kv jetstream.KeyValue) *NATSKV {
	return &NATSKV{conn: conn, kv: kv}
}

// Get implements KV.
func (n *NATSKV) Get(ctx context.Context, key string, out any) (bool, error) {
	entry, err := n.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("get value", key, err)
	}
	if err := json.Unmarshal(entry.Value(), out); err != nil {
		return true, storeErr("decode value", key, err)
	}
	return true, nil
}

// Set implements KV.
func (n *NATSKV) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return storeErr("encode value", key, err)
	}
	if _, err := n.kv.Put(ctx, key, raw); err != nil {
		return storeErr("put value", key, err)
	}
	return nil
}

// Close closes the NATS connection.
func (n *NATSKV) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
