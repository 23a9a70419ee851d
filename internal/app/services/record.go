// Package services holds helpers shared by the record services.
package services

import (
	"context"
	"errors"

	"github.com/monitaro/pjmanager/internal/app/storage"
	apperrors "github.com/monitaro/pjmanager/internal/errors"
)

// StoreError maps a record store failure onto the service error taxonomy.
// The store's own message is what the caller sees.
func StoreError(kind string, id int64, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound(kind, id)
	}
	if storeErr, ok := storage.AsError(err); ok {
		svcErr := apperrors.Store(err).
			WithDetails("kind", string(storeErr.Kind)).
			WithDetails("store_code", storeErr.Code)
		svcErr.Message = storeErr.Message
		return svcErr
	}
	return apperrors.Store(err)
}

// Get loads the row with id from table into a T.
func Get[T any](ctx context.Context, store storage.RecordStore, table, kind string, id int64) (T, error) {
	var out T
	rows, err := store.Select(ctx, table, storage.ByID(id))
	if err != nil {
		return out, StoreError(kind, id, err)
	}
	if len(rows) == 0 {
		return out, apperrors.NotFound(kind, id)
	}
	if err := storage.Decode(rows[0], &out); err != nil {
		return out, apperrors.Internal("decode "+kind, err)
	}
	return out, nil
}

// List runs q against table and decodes every row into a T.
func List[T any](ctx context.Context, store storage.RecordStore, table, kind string, q storage.Query) ([]T, error) {
	rows, err := store.Select(ctx, table, q)
	if err != nil {
		return nil, StoreError(kind, 0, err)
	}
	out := make([]T, 0, len(rows))
	if err := storage.Decode(rows, &out); err != nil {
		return nil, apperrors.Internal("decode "+kind, err)
	}
	return out, nil
}

// Insert encodes v, stores it in table and decodes the created row back
// into a T.
func Insert[T any](ctx context.Context, store storage.RecordStore, table, kind string, v T) (T, error) {
	var out T
	row, err := storage.Encode(v)
	if err != nil {
		return out, apperrors.Internal("encode "+kind, err)
	}
	delete(row, "id")
	delete(row, "created_at")
	created, err := store.Insert(ctx, table, row)
	if err != nil {
		return out, StoreError(kind, 0, err)
	}
	if err := storage.Decode(created, &out); err != nil {
		return out, apperrors.Internal("decode "+kind, err)
	}
	return out, nil
}

// Update encodes v and writes every column except id and created_at onto
// the row with id.
func Update[T any](ctx context.Context, store storage.RecordStore, table, kind string, id int64, v T) error {
	row, err := storage.Encode(v)
	if err != nil {
		return apperrors.Internal("encode "+kind, err)
	}
	delete(row, "id")
	delete(row, "created_at")
	return StoreError(kind, id, store.Update(ctx, table, id, row))
}
