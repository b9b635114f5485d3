package stats

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/muntasirraihan/orleans/errors"
	"github.com/muntasirraihan/orleans/natsclient"
)

// KVPublisher stores telemetry rows in a JetStream KV bucket. The row's
// partition and row keys stay intact inside the record; the KV key is a
// sanitized encoding of them since NATS KV keys cannot carry ':'.
type KVPublisher struct {
	client   *natsclient.Client
	bucket   string
	creation time.Duration
	kv       *natsclient.KVStore
}

// NewKVPublisher builds a publisher over the given NATS client.
func NewKVPublisher(client *natsclient.Client, bucket string, creationTimeout time.Duration) (*KVPublisher, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"KVPublisher", "NewKVPublisher", "client validation")
	}
	if bucket == "" {
		bucket = "client-statistics"
	}
	if creationTimeout <= 0 {
		creationTimeout = 2 * time.Minute
	}
	return &KVPublisher{
		client:   client,
		bucket:   bucket,
		creation: creationTimeout,
	}, nil
}

// InitTable opens or creates the KV bucket within the creation timeout.
func (p *KVPublisher) InitTable(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, p.creation)
	defer cancel()

	bucket, err := p.client.EnsureBucket(initCtx, jetstream.KeyValueConfig{
		Bucket:      p.bucket,
		Description: "grain client telemetry rows",
	})
	if err != nil {
		return errors.WrapTransient(err, "KVPublisher", "InitTable", "bucket creation")
	}
	p.kv = p.client.NewKVStore(bucket)
	return nil
}

// BulkInsert writes one batch of rows.
func (p *KVPublisher) BulkInsert(ctx context.Context, rows []Row) error {
	if p.kv == nil {
		return errors.WrapInvalid(errors.ErrNotStarted, "KVPublisher", "BulkInsert", "table state check")
	}

	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return errors.WrapInvalid(err, "KVPublisher", "BulkInsert", "row serialization")
		}
		key := sanitizeKey(row.PartitionKey + "/" + row.RowKey)
		if _, err := p.kv.Put(ctx, key, data); err != nil {
			return errors.WrapTransient(err, "KVPublisher", "BulkInsert", "row write")
		}
	}
	return nil
}

// sanitizeKey maps row keys onto the NATS KV key alphabet.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '/' || r == '=' || r == '.':
			return r
		default:
			return '.'
		}
	}, key)
}
