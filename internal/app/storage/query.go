package storage

import "strings"

// Op is a filter comparison.
type Op string

const (
	OpEq    Op = "eq"
	OpILike Op = "ilike"
	OpGTE   Op = "gte"
	OpLTE   Op = "lte"
)

// Filter compares one column against a value. ILike values are bare terms;
// backends add the wildcards.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq matches column exactly.
func Eq(column string, value any) Filter { return Filter{Column: column, Op: OpEq, Value: value} }

// ILike matches a case-insensitive substring of column.
func ILike(column, term string) Filter { return Filter{Column: column, Op: OpILike, Value: term} }

// GTE matches column >= value.
func GTE(column string, value any) Filter { return Filter{Column: column, Op: OpGTE, Value: value} }

// LTE matches column <= value.
func LTE(column string, value any) Filter { return Filter{Column: column, Op: OpLTE, Value: value} }

// Query selects rows. Filters form a conjunction; when AnyOf is non-empty at
// least one of its filters must also match.
type Query struct {
	Filters    []Filter
	AnyOf      []Filter
	OrderBy    string
	Descending bool
}

// Where appends a filter unless value is empty text.
func (q Query) Where(f Filter) Query {
	if s, ok := f.Value.(string); ok && strings.TrimSpace(s) == "" {
		return q
	}
	q.Filters = append(q.Filters, f)
	return q
}

// Order sets the ordering column.
func (q Query) Order(column string, desc bool) Query {
	q.OrderBy = column
	q.Descending = desc
	return q
}

// ByID returns a query matching a single id.
func ByID(id int64) Query {
	return Query{Filters: []Filter{Eq("id", id)}}
}

// ValidColumn reports whether name is safe to splice into SQL or a PostgREST
// query string.
func ValidColumn(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
