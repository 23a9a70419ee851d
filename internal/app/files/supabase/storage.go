// Package supabase implements files.Store over Supabase Storage.
package supabase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/monitaro/pjmanager/internal/httputil"
)

// Config locates the bucket.
type Config struct {
	URL        string
	APIKey     string
	Bucket     string
	HTTPClient *http.Client
}

// Store uploads objects to one bucket.
type Store struct {
	base       string
	apiKey     string
	bucket     string
	httpClient *http.Client
}

// New creates a Store.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Store{
		base:       strings.TrimRight(cfg.URL, "/") + "/storage/v1/object/",
		apiKey:     cfg.APIKey,
		bucket:     cfg.Bucket,
		httpClient: hc,
	}, nil
}

// Put uploads r to key, replacing any existing object.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+s.objectPath(key), r)
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	if size >= 0 {
		req.ContentLength = size
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	defer resp.Body.Close()

	body, _, _ := httputil.ReadAllWithLimit(resp.Body, 32<<10)
	if resp.StatusCode >= 400 {
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return fmt.Errorf("storage API error %d: %s", resp.StatusCode, msg)
	}
	return nil
}

// PublicURL returns the public address of key.
func (s *Store) PublicURL(key string) string {
	return s.base + "public/" + s.objectPath(key)
}

func (s *Store) objectPath(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return url.PathEscape(s.bucket) + "/" + strings.Join(parts, "/")
}
