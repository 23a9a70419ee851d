package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/monitaro/pjmanager/internal/app/storage"
)

// Store implements storage.RecordStore backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.RecordStore = (*Store)(nil)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn with the lib/pq driver.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (s *Store) Select(ctx context.Context, table string, q storage.Query) ([]storage.Row, error) {
	if !storage.ValidColumn(table) {
		return nil, invalid("table", table)
	}
	builder := psql.Select("*").From(table)
	for _, f := range q.Filters {
		cond, err := condition(f)
		if err != nil {
			return nil, err
		}
		builder = builder.Where(cond)
	}
	if len(q.AnyOf) > 0 {
		var or sq.Or
		for _, f := range q.AnyOf {
			cond, err := condition(f)
			if err != nil {
				return nil, err
			}
			or = append(or, cond)
		}
		builder = builder.Where(or)
	}
	if q.OrderBy != "" {
		if !storage.ValidColumn(q.OrderBy) {
			return nil, invalid("order column", q.OrderBy)
		}
		dir := " ASC"
		if q.Descending {
			dir = " DESC"
		}
		builder = builder.OrderBy(q.OrderBy + dir)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, &storage.Error{Kind: storage.KindQuery, Message: err.Error(), Err: err}
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if !storage.ValidColumn(table) {
		return 0, invalid("table", table)
	}
	query, args, err := psql.Select("COUNT(*)").From(table).ToSql()
	if err != nil {
		return 0, &storage.Error{Kind: storage.KindQuery, Message: err.Error(), Err: err}
	}
	var n int
	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (s *Store) Insert(ctx context.Context, table string, rec storage.Row) (storage.Row, error) {
	if !storage.ValidColumn(table) {
		return nil, invalid("table", table)
	}
	values := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		if k == "id" {
			continue
		}
		if !storage.ValidColumn(k) {
			return nil, invalid("column", k)
		}
		values[k] = v
	}

	query, args, err := psql.Insert(table).SetMap(values).Suffix("RETURNING *").ToSql()
	if err != nil {
		return nil, &storage.Error{Kind: storage.KindQuery, Message: err.Error(), Err: err}
	}
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &storage.Error{Kind: storage.KindQuery, Message: "insert returned no row"}
	}
	return out[0], nil
}

func (s *Store) Update(ctx context.Context, table string, id int64, partial storage.Row) error {
	if !storage.ValidColumn(table) {
		return invalid("table", table)
	}
	values := make(map[string]interface{}, len(partial))
	for k, v := range partial {
		if k == "id" {
			continue
		}
		if !storage.ValidColumn(k) {
			return invalid("column", k)
		}
		values[k] = v
	}
	if len(values) == 0 {
		return nil
	}

	query, args, err := psql.Update(table).SetMap(values).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return &storage.Error{Kind: storage.KindQuery, Message: err.Error(), Err: err}
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return storage.NotFound(table, id)
	}
	return nil
}

func condition(f storage.Filter) (sq.Sqlizer, error) {
	if !storage.ValidColumn(f.Column) {
		return nil, invalid("filter column", f.Column)
	}
	switch f.Op {
	case storage.OpEq:
		return sq.Eq{f.Column: f.Value}, nil
	case storage.OpILike:
		return sq.Expr(f.Column+" ILIKE ?", "%"+escapeLike(fmt.Sprint(f.Value))+"%"), nil
	case storage.OpGTE:
		return sq.GtOrEq{f.Column: f.Value}, nil
	case storage.OpLTE:
		return sq.LtOrEq{f.Column: f.Value}, nil
	default:
		return nil, &storage.Error{Kind: storage.KindQuery, Message: fmt.Sprintf("unsupported filter op %q", f.Op)}
	}
}

func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

func scanRows(rows *sqlx.Rows) ([]storage.Row, error) {
	types := map[string]string{}
	if cts, err := rows.ColumnTypes(); err == nil {
		for _, ct := range cts {
			types[ct.Name()] = strings.ToUpper(ct.DatabaseTypeName())
		}
	}

	var out []storage.Row
	for rows.Next() {
		raw := map[string]interface{}{}
		if err := rows.MapScan(raw); err != nil {
			return nil, translate(err)
		}
		row := make(storage.Row, len(raw))
		for k, v := range raw {
			row[k] = normalize(v, types[k])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// normalize converts driver values into the Row conventions: dates as
// yyyy-mm-dd, timestamps as RFC 3339, numerics as float64.
func normalize(v interface{}, dbType string) interface{} {
	switch val := v.(type) {
	case time.Time:
		if dbType == "DATE" || (dbType == "" && val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0) {
			return val.Format("2006-01-02")
		}
		return val.UTC().Format(time.RFC3339Nano)
	case []byte:
		if dbType == "NUMERIC" || dbType == "DECIMAL" {
			if f, err := strconv.ParseFloat(string(val), 64); err == nil {
				return f
			}
		}
		return string(val)
	default:
		return val
	}
}

func invalid(what, name string) error {
	return &storage.Error{Kind: storage.KindQuery, Message: fmt.Sprintf("invalid %s %q", what, name)}
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return &storage.Error{Kind: storage.KindForCode(code), Code: code, Message: pqErr.Message, Err: err}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &storage.Error{Kind: storage.KindNotFound, Message: err.Error(), Err: err}
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return &storage.Error{Kind: storage.KindNetwork, Message: err.Error(), Err: err}
	}
	return &storage.Error{Kind: storage.KindQuery, Message: err.Error(), Err: err}
}
