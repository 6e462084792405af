package httpx

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func fastRetry() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestGetJSONDecodesBrotli(t *testing.T) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write([]byte(`{"name":"brotli"}`)); err != nil {
		t.Fatalf("write brotli: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close brotli: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") != contentEncoding {
			t.Errorf("unexpected accept-encoding: %q", r.Header.Get("Accept-Encoding"))
		}
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	var out struct{ Name string }
	if err := New(time.Second, nil).GetJSON(context.Background(), srv.URL, nil, nil, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "brotli" {
		t.Fatalf("unexpected payload: %+v", out)
	}
}

func TestGetHTMLDecodesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte("<html><body>hello</body></html>"))
		_ = gz.Close()
	}))
	defer srv.Close()

	html, err := New(time.Second, nil).GetHTML(context.Background(), srv.URL, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if html != "<html><body>hello</body></html>" {
		t.Fatalf("unexpected body: %q", html)
	}
}

func TestDoRetriesOnceOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(time.Second, nil)
	c.Retry = fastRetry()

	if err := c.GetJSON(context.Background(), srv.URL, nil, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestDoDoesNotRetryRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	c := New(time.Second, nil)
	c.Retry = fastRetry()

	err := c.GetJSON(context.Background(), srv.URL+"?app_key=secret", nil, nil, nil)
	if StatusOf(err) != http.StatusTooManyRequests {
		t.Fatalf("expected 429 error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
	if bytes.Contains([]byte(err.Error()), []byte("secret")) {
		t.Fatalf("expected credentials to be redacted: %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "3")
	if got := ParseRetryAfter(resp); got != 3*time.Second {
		t.Fatalf("expected 3s, got %v", got)
	}

	resp.Header.Set("Retry-After", "garbage")
	if got := ParseRetryAfter(resp); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}
