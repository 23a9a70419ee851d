package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgerrcode"

	"github.com/monitaro/pjmanager/internal/app/storage"
)

// Store is an in-memory RecordStore. It is safe for concurrent use and is
// primarily intended for tests and local development.
type Store struct {
	mu      sync.RWMutex
	nextID  map[string]int64
	tables  map[string]map[int64]storage.Row
	unique  map[string][]string
	now     func() time.Time
	failing map[string]error
}

var _ storage.RecordStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithUnique declares a unique column on table.
func WithUnique(table, column string) Option {
	return func(s *Store) {
		s.unique[table] = append(s.unique[table], column)
	}
}

// WithClock overrides the created_at clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// timestampLayout is RFC 3339 with a fixed-width fraction so text order
// matches time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// New creates an empty store with the production unique indexes.
func New(opts ...Option) *Store {
	s := &Store{
		nextID:  make(map[string]int64),
		tables:  make(map[string]map[int64]storage.Row),
		unique:  make(map[string][]string),
		now:     time.Now,
		failing: make(map[string]error),
	}
	WithUnique(storage.TableProducts, "product_code")(s)
	WithUnique(storage.TableProjects, "pj_number")(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailNext makes the next call of op ("select", "insert", "update", "count")
// on table return err.
func (s *Store) FailNext(table, op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[table+"/"+op] = err
}

func (s *Store) injectedLocked(table, op string) error {
	key := table + "/" + op
	if err, ok := s.failing[key]; ok {
		delete(s.failing, key)
		return err
	}
	return nil
}

func (s *Store) nextIDLocked(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

func (s *Store) tableLocked(table string) map[int64]storage.Row {
	t, ok := s.tables[table]
	if !ok {
		t = make(map[int64]storage.Row)
		s.tables[table] = t
	}
	return t
}

func (s *Store) Select(_ context.Context, table string, q storage.Query) ([]storage.Row, error) {
	s.mu.Lock()
	if err := s.injectedLocked(table, "select"); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	if q.OrderBy != "" && !storage.ValidColumn(q.OrderBy) {
		return nil, &storage.Error{Kind: storage.KindQuery, Message: fmt.Sprintf("invalid order column %q", q.OrderBy)}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []storage.Row
	for _, row := range s.tables[table] {
		if matches(row, q) {
			out = append(out, row.Clone())
		}
	}

	order := q.OrderBy
	if order == "" {
		order = "id"
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compare(out[i][order], out[j][order])
		if c == 0 {
			a, _ := out[i].Int64("id")
			b, _ := out[j].Int64("id")
			if q.Descending {
				return a > b
			}
			return a < b
		}
		if q.Descending {
			return c > 0
		}
		return c < 0
	})
	return out, nil
}

func (s *Store) Count(_ context.Context, table string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injectedLocked(table, "count"); err != nil {
		return 0, err
	}
	return len(s.tables[table]), nil
}

func (s *Store) Insert(_ context.Context, table string, rec storage.Row) (storage.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injectedLocked(table, "insert"); err != nil {
		return nil, err
	}

	row := rec.Clone()
	delete(row, "id")
	if err := s.checkUniqueLocked(table, 0, row); err != nil {
		return nil, err
	}

	id := s.nextIDLocked(table)
	row["id"] = id
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = s.now().UTC().Format(timestampLayout)
	}
	s.tableLocked(table)[id] = row
	return row.Clone(), nil
}

func (s *Store) Update(_ context.Context, table string, id int64, partial storage.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injectedLocked(table, "update"); err != nil {
		return err
	}

	existing, ok := s.tables[table][id]
	if !ok {
		return storage.NotFound(table, id)
	}
	next := existing.Clone()
	for k, v := range partial {
		if k == "id" {
			continue
		}
		next[k] = v
	}
	if err := s.checkUniqueLocked(table, id, next); err != nil {
		return err
	}
	s.tables[table][id] = next
	return nil
}

func (s *Store) checkUniqueLocked(table string, selfID int64, row storage.Row) error {
	for _, column := range s.unique[table] {
		value, ok := row[column]
		if !ok || value == nil {
			continue
		}
		for id, other := range s.tables[table] {
			if id == selfID {
				continue
			}
			if compare(other[column], value) == 0 {
				return &storage.Error{
					Kind:    storage.KindConstraint,
					Code:    pgerrcode.UniqueViolation,
					Message: fmt.Sprintf("duplicate key value violates unique constraint \"%s_%s_key\"", table, column),
				}
			}
		}
	}
	return nil
}

func matches(row storage.Row, q storage.Query) bool {
	for _, f := range q.Filters {
		if !match(row, f) {
			return false
		}
	}
	if len(q.AnyOf) == 0 {
		return true
	}
	for _, f := range q.AnyOf {
		if match(row, f) {
			return true
		}
	}
	return false
}

func match(row storage.Row, f storage.Filter) bool {
	value, ok := row[f.Column]
	if !ok || value == nil {
		return false
	}
	switch f.Op {
	case storage.OpEq:
		return compare(value, f.Value) == 0
	case storage.OpILike:
		return strings.Contains(strings.ToLower(fmt.Sprint(value)), strings.ToLower(fmt.Sprint(f.Value)))
	case storage.OpGTE:
		return compare(value, f.Value) >= 0
	case storage.OpLTE:
		return compare(value, f.Value) <= 0
	default:
		return false
	}
}

// compare orders numbers numerically and everything else as text. nil sorts last.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
