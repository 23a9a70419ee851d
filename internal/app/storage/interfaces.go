// Package storage defines the record store contract shared by every backend.
package storage

import "context"

// Table names.
const (
	TableProjects  = "projects"
	TableCustomers = "customers"
	TableProducts  = "products"
	TablePartners  = "partners"
	TableHistory   = "project_history"
)

// Row is one record keyed by column name. Dates travel as yyyy-mm-dd text and
// timestamps as RFC 3339 text; numbers as float64 or int64.
type Row map[string]any

// RecordStore issues filtered selects, inserts and updates against named tables.
type RecordStore interface {
	// Select returns the rows of table matching q, in q's order.
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	// Count returns the number of rows in table.
	Count(ctx context.Context, table string) (int, error)
	// Insert stores rec and returns the created row including id and created_at.
	Insert(ctx context.Context, table string, rec Row) (Row, error)
	// Update writes the columns present in partial onto the row with id.
	Update(ctx context.Context, table string, id int64, partial Row) error
}
