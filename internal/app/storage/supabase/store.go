// Package supabase implements the record store over the Supabase PostgREST API.
package supabase

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/monitaro/pjmanager/internal/app/storage"
	"github.com/monitaro/pjmanager/internal/httputil"
)

// Config holds the project URL and API key.
type Config struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

// Store is a storage.RecordStore speaking PostgREST.
type Store struct {
	prefix     string
	apiKey     string
	httpClient *http.Client
}

var _ storage.RecordStore = (*Store)(nil)

const (
	maxResponseBytes  = 8 << 20  // 8 MiB
	maxErrorBodyBytes = 32 << 10 // 32 KiB
)

// New creates a Store.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("SUPABASE_URL must be an absolute URL")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		transport := http.DefaultTransport
		if base, ok := http.DefaultTransport.(*http.Transport); ok {
			cloned := base.Clone()
			cloned.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			transport = cloned
		}
		hc = &http.Client{Timeout: 30 * time.Second, Transport: transport}
	}

	return &Store{
		prefix:     strings.TrimRight(cfg.URL, "/") + "/rest/v1/",
		apiKey:     cfg.APIKey,
		httpClient: hc,
	}, nil
}

func (s *Store) Select(ctx context.Context, table string, q storage.Query) ([]storage.Row, error) {
	params, err := encodeQuery(q)
	if err != nil {
		return nil, err
	}
	body, _, err := s.request(ctx, http.MethodGet, table, nil, params, nil)
	if err != nil {
		return nil, err
	}
	return decode(body)
}

func (s *Store) Count(ctx context.Context, table string) (int, error) {
	params := url.Values{}
	params.Set("select", "id")
	params.Set("limit", "1")
	_, header, err := s.request(ctx, http.MethodGet, table, nil, params, http.Header{"Prefer": {"count=exact"}})
	if err != nil {
		return 0, err
	}
	return parseContentRange(header.Get("Content-Range"))
}

func (s *Store) Insert(ctx context.Context, table string, rec storage.Row) (storage.Row, error) {
	payload := rec.Clone()
	delete(payload, "id")
	body, _, err := s.request(ctx, http.MethodPost, table, payload, nil, http.Header{"Prefer": {"return=representation"}})
	if err != nil {
		return nil, err
	}
	rows, err := decode(body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &storage.Error{Kind: storage.KindQuery, Message: "insert returned no row"}
	}
	return rows[0], nil
}

func (s *Store) Update(ctx context.Context, table string, id int64, partial storage.Row) error {
	payload := partial.Clone()
	delete(payload, "id")
	if len(payload) == 0 {
		return nil
	}
	params := url.Values{}
	params.Set("id", "eq."+strconv.FormatInt(id, 10))
	body, _, err := s.request(ctx, http.MethodPatch, table, payload, params, http.Header{"Prefer": {"return=representation"}})
	if err != nil {
		return err
	}
	rows, err := decode(body)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return storage.NotFound(table, id)
	}
	return nil
}

func (s *Store) request(ctx context.Context, method, table string, body interface{}, params url.Values, extra http.Header) ([]byte, http.Header, error) {
	if !storage.ValidColumn(table) {
		return nil, nil, &storage.Error{Kind: storage.KindQuery, Message: fmt.Sprintf("invalid table %q", table)}
	}
	endpoint := s.prefix + url.PathEscape(table)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	for k, v := range extra {
		req.Header[k] = v
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, &storage.Error{Kind: storage.KindNetwork, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _, readErr := httputil.ReadAllWithLimit(resp.Body, maxErrorBodyBytes)
		if readErr != nil {
			return nil, nil, &storage.Error{Kind: storage.KindNetwork, Message: readErr.Error(), Err: readErr}
		}
		return nil, nil, apiError(resp.StatusCode, respBody)
	}

	respBody, err := httputil.ReadAllStrict(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, nil, &storage.Error{Kind: storage.KindNetwork, Message: err.Error(), Err: err}
	}
	return respBody, resp.Header, nil
}

// apiError maps a PostgREST error body ({code, message, details, hint}) to a
// storage error. Five character codes are SQLSTATEs; PGRST codes are API errors.
func apiError(status int, body []byte) error {
	code := gjson.GetBytes(body, "code").String()
	msg := gjson.GetBytes(body, "message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	kind := storage.KindQuery
	switch {
	case len(code) == 5 && !strings.HasPrefix(code, "PGRST"):
		kind = storage.KindForCode(code)
	case status == http.StatusNotFound:
		kind = storage.KindNotFound
	case status >= 500:
		kind = storage.KindNetwork
	}
	return &storage.Error{
		Kind:    kind,
		Code:    code,
		Message: fmt.Sprintf("supabase API error %d: %s", status, msg),
	}
}

func decode(body []byte) ([]storage.Row, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	rows, err := storage.DecodeRows(body)
	if err != nil {
		return nil, &storage.Error{Kind: storage.KindQuery, Message: err.Error(), Err: err}
	}
	return rows, nil
}

func encodeQuery(q storage.Query) (url.Values, error) {
	params := url.Values{}
	params.Set("select", "*")
	for _, f := range q.Filters {
		if !storage.ValidColumn(f.Column) {
			return nil, &storage.Error{Kind: storage.KindQuery, Message: fmt.Sprintf("invalid filter column %q", f.Column)}
		}
		params.Add(f.Column, operand(f, false))
	}
	if len(q.AnyOf) > 0 {
		parts := make([]string, 0, len(q.AnyOf))
		for _, f := range q.AnyOf {
			if !storage.ValidColumn(f.Column) {
				return nil, &storage.Error{Kind: storage.KindQuery, Message: fmt.Sprintf("invalid filter column %q", f.Column)}
			}
			parts = append(parts, f.Column+"."+operand(f, true))
		}
		params.Set("or", "("+strings.Join(parts, ",")+")")
	}
	if q.OrderBy != "" {
		if !storage.ValidColumn(q.OrderBy) {
			return nil, &storage.Error{Kind: storage.KindQuery, Message: fmt.Sprintf("invalid order column %q", q.OrderBy)}
		}
		dir := ".asc"
		if q.Descending {
			dir = ".desc"
		}
		params.Set("order", q.OrderBy+dir)
	}
	return params, nil
}

// operand renders "op.value". Inside an or=(...) group values holding
// reserved characters are double quoted.
func operand(f storage.Filter, grouped bool) string {
	value := fmt.Sprint(f.Value)
	if f.Op == storage.OpILike {
		value = "*" + value + "*"
	}
	if grouped && strings.ContainsAny(value, `,.:()"\`) {
		value = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value) + `"`
	}
	return string(f.Op) + "." + value
}

// parseContentRange reads the total from "0-0/42" or "*/0".
func parseContentRange(header string) (int, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0, &storage.Error{Kind: storage.KindQuery, Message: fmt.Sprintf("missing count in Content-Range %q", header)}
	}
	total := header[idx+1:]
	if total == "*" {
		return 0, &storage.Error{Kind: storage.KindQuery, Message: "count not provided"}
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, &storage.Error{Kind: storage.KindQuery, Message: fmt.Sprintf("invalid Content-Range %q", header), Err: err}
	}
	return n, nil
}
