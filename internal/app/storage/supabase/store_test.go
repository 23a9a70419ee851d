package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/monitaro/pjmanager/internal/app/storage"
)

func newTestStore(t *testing.T, h http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	s, err := New(Config{URL: srv.URL, APIKey: "anon-key"})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestSelectEncodesFilters(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/projects" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("apikey") != "anon-key" || r.Header.Get("Authorization") != "Bearer anon-key" {
			t.Errorf("missing auth headers")
		}
		q := r.URL.Query()
		if got := q.Get("pj_number"); got != "ilike.*PJ24*" {
			t.Errorf("pj_number = %q", got)
		}
		dates := q["project_date"]
		if len(dates) != 2 || dates[0] != "gte.2024-01-01" || dates[1] != "lte.2024-12-31" {
			t.Errorf("project_date = %v", dates)
		}
		if q.Get("order") != "created_at.desc" {
			t.Errorf("order = %q", q.Get("order"))
		}
		w.Write([]byte(`[{"id":1,"pj_number":"PJ240101000000","credit":1.5}]`))
	})

	q := storage.Query{}.
		Where(storage.ILike("pj_number", "PJ24")).
		Where(storage.GTE("project_date", "2024-01-01")).
		Where(storage.LTE("project_date", "2024-12-31")).
		Order("created_at", true)
	rows, err := s.Select(context.Background(), storage.TableProjects, q)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %v", rows)
	}
	if id, ok := rows[0]["id"].(int64); !ok || id != 1 {
		t.Fatalf("id should decode as int64, got %T %v", rows[0]["id"], rows[0]["id"])
	}
	if rows[0]["credit"] != 1.5 {
		t.Fatalf("credit = %v", rows[0]["credit"])
	}
}

func TestSelectOrGroup(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		want := `(product_name.ilike.*abc*,product_code.ilike.*abc*)`
		if got := r.URL.Query().Get("or"); got != want {
			t.Errorf("or = %q", got)
		}
		w.Write([]byte(`[]`))
	})

	q := storage.Query{AnyOf: []storage.Filter{
		storage.ILike("product_name", "abc"),
		storage.ILike("product_code", "abc"),
	}}
	if _, err := s.Select(context.Background(), storage.TableProducts, q); err != nil {
		t.Fatalf("select: %v", err)
	}
}

func TestOperandQuotesReservedCharacters(t *testing.T) {
	got := operand(storage.ILike("product_code", "a,b"), true)
	if got != `ilike."*a,b*"` {
		t.Fatalf("operand = %s", got)
	}
	if got := operand(storage.Eq("name", "a,b"), false); got != "eq.a,b" {
		t.Fatalf("ungrouped operand = %s", got)
	}
}

func TestInsertUniqueViolation(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("unexpected request %s prefer=%q", r.Method, r.Header.Get("Prefer"))
		}
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint \"products_product_code_key\""}`))
	})

	_, err := s.Insert(context.Background(), storage.TableProducts, storage.Row{"product_code": "P-1"})
	if !storage.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestInsertStripsID(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)
		if _, ok := payload["id"]; ok {
			t.Errorf("id must not be sent: %s", body)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":9,"name":"A"}]`))
	})

	row, err := s.Insert(context.Background(), storage.TablePartners, storage.Row{"id": int64(3), "name": "A"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id, _ := row.Int64("id"); id != 9 {
		t.Fatalf("id = %v", row["id"])
	}
}

func TestUpdateMissingRow(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Query().Get("id") != "eq.12" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.RawQuery)
		}
		w.Write([]byte(`[]`))
	})

	err := s.Update(context.Background(), storage.TableProjects, 12, storage.Row{"memo": "x"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCountReadsContentRange(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Prefer") != "count=exact" {
			t.Errorf("prefer = %q", r.Header.Get("Prefer"))
		}
		w.Header().Set("Content-Range", "0-0/42")
		w.Write([]byte(`[{"id":1}]`))
	})

	n, err := s.Count(context.Background(), storage.TableCustomers)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 42 {
		t.Fatalf("count = %d", n)
	}
}

func TestNetworkErrorKind(t *testing.T) {
	s, err := New(Config{URL: "http://127.0.0.1:1", APIKey: "k"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = s.Select(context.Background(), storage.TablePartners, storage.Query{})
	storeErr, ok := storage.AsError(err)
	if !ok || storeErr.Kind != storage.KindNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
}
