package stats

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/muntasirraihan/orleans/errors"
	"github.com/muntasirraihan/orleans/pkg/timestamp"
)

// Row is one published counter observation.
type Row struct {
	PartitionKey string `json:"partition_key"`
	RowKey       string `json:"row_key"`
	Name         string `json:"name"`
	Value        string `json:"value"`
	HostName     string `json:"host_name"`
	Time         string `json:"time"`
}

// Publisher is the external statistics store.
type Publisher interface {
	// InitTable prepares the backing table. Called once before the first
	// flush, bounded by the table creation timeout.
	InitTable(ctx context.Context) error

	// BulkInsert writes one batch of rows. Batches never exceed the bulk
	// row cap.
	BulkInsert(ctx context.Context, rows []Row) error
}

// TableStatistics batches log+table counters into rows for a Publisher.
type TableStatistics struct {
	deploymentID string
	hostName     string

	// clientEpoch distinguishes successive client processes in row keys.
	// Empty for silo publishers, which omit the epoch segment.
	clientEpoch string

	bulkCap   int
	registry  *Registry
	publisher Publisher

	seq atomic.Int64
}

// TableStatisticsOptions configures a TableStatistics instance.
type TableStatisticsOptions struct {
	DeploymentID string
	HostName     string
	ClientEpoch  string // empty for silo publishers
	BulkCap      int
	Registry     *Registry
	Publisher    Publisher
}

// NewTableStatistics builds the batching adapter.
func NewTableStatistics(opts TableStatisticsOptions) (*TableStatistics, error) {
	if opts.Registry == nil || opts.Publisher == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"TableStatistics", "NewTableStatistics", "dependency validation")
	}
	if opts.BulkCap <= 0 {
		opts.BulkCap = 100
	}
	return &TableStatistics{
		deploymentID: opts.DeploymentID,
		hostName:     opts.HostName,
		clientEpoch:  opts.ClientEpoch,
		bulkCap:      opts.BulkCap,
		registry:     opts.Registry,
		publisher:    opts.Publisher,
	}, nil
}

// Init prepares the backing table.
func (t *TableStatistics) Init(ctx context.Context) error {
	if err := t.publisher.InitTable(ctx); err != nil {
		return errors.Wrap(err, "TableStatistics", "Init", "table initialization")
	}
	return nil
}

// partitionKey is "deploymentID:YYYY-MM-DD" in the invariant calendar.
func (t *TableStatistics) partitionKey(now time.Time) string {
	return t.deploymentID + ":" + timestamp.UTCDate(now)
}

// rowKey is "name[:clientEpoch]:seq6". The six-digit monotonic counter
// keeps rows ordered within a partition.
func (t *TableStatistics) rowKey(name string) string {
	seq := t.seq.Add(1)
	if t.clientEpoch != "" {
		return fmt.Sprintf("%s:%s:%06d", name, t.clientEpoch, seq)
	}
	return fmt.Sprintf("%s:%06d", name, seq)
}

// Report batches the current log+table counters and flushes them. Counters
// serializing to "0" are skipped. Batches respect the bulk cap: once a
// batch reaches cap rows it is flushed before more rows accumulate.
func (t *TableStatistics) Report(ctx context.Context, now time.Time) error {
	partition := t.partitionKey(now)
	when := now.UTC().Format(time.RFC3339)

	var batch []Row
	for _, counter := range t.registry.Snapshot() {
		if counter.Storage() != StorageLogAndTable {
			continue
		}
		value := counter.SerializeValue()
		if value == "0" {
			continue
		}

		batch = append(batch, Row{
			PartitionKey: partition,
			RowKey:       t.rowKey(counter.Name()),
			Name:         counter.Name(),
			Value:        value,
			HostName:     t.hostName,
			Time:         when,
		})

		if len(batch) >= t.bulkCap {
			if err := t.publisher.BulkInsert(ctx, batch); err != nil {
				return errors.Wrap(err, "TableStatistics", "Report", "bulk insert")
			}
			batch = nil
		}
	}

	if len(batch) > 0 {
		if err := t.publisher.BulkInsert(ctx, batch); err != nil {
			return errors.Wrap(err, "TableStatistics", "Report", "bulk insert")
		}
	}
	return nil
}
