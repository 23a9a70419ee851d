package metrics

import (
	"context"
	"time"

	"github.com/monitaro/pjmanager/internal/app/storage"
)

// instrumentedStore records every call made through a RecordStore.
type instrumentedStore struct {
	next storage.RecordStore
}

// InstrumentStore wraps store with operation counters and latency histograms.
func InstrumentStore(store storage.RecordStore) storage.RecordStore {
	return instrumentedStore{next: store}
}

func (s instrumentedStore) Select(ctx context.Context, table string, q storage.Query) ([]storage.Row, error) {
	start := time.Now()
	rows, err := s.next.Select(ctx, table, q)
	RecordStoreOperation(table, "select", time.Since(start), err)
	return rows, err
}

func (s instrumentedStore) Count(ctx context.Context, table string) (int, error) {
	start := time.Now()
	n, err := s.next.Count(ctx, table)
	RecordStoreOperation(table, "count", time.Since(start), err)
	return n, err
}

func (s instrumentedStore) Insert(ctx context.Context, table string, rec storage.Row) (storage.Row, error) {
	start := time.Now()
	row, err := s.next.Insert(ctx, table, rec)
	RecordStoreOperation(table, "insert", time.Since(start), err)
	return row, err
}

func (s instrumentedStore) Update(ctx context.Context, table string, id int64, partial storage.Row) error {
	start := time.Now()
	err := s.next.Update(ctx, table, id, partial)
	RecordStoreOperation(table, "update", time.Since(start), err)
	return err
}
