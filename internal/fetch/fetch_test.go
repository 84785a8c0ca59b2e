package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go-post-archiver/internal/model"
)

func TestFetchHTML_UserAgentAndBody(t *testing.T) {
	t.Setenv("ARCHIVER_UA", "test-agent/1.0")
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	cl, err := New(Options{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	body, err := cl.FetchHTML(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if body != "<html>ok</html>" {
		t.Fatalf("body = %q", body)
	}
	if gotUA != "test-agent/1.0" {
		t.Fatalf("user-agent = %q, want %q", gotUA, "test-agent/1.0")
	}
}

func TestFetchHTML_StatusIsFetchError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cl, _ := New(Options{Timeout: 2 * time.Second})
	_, err := cl.FetchHTML(context.Background(), srv.URL+"/p/missing")
	var fe *model.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %T %v", err, err)
	}
	if fe.Status != http.StatusNotFound || !strings.HasSuffix(fe.URL, "/p/missing") {
		t.Fatalf("unexpected error fields: %+v", fe)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls = %d, want 1 (no retry by default)", n)
	}
}

func TestFetchHTML_BodyLimit(t *testing.T) {
	old := maxPageBytes
	maxPageBytes = 64
	defer func() { maxPageBytes = old }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := 64
		if r.URL.Path == "/big" {
			n = 65
		}
		_, _ = w.Write([]byte(strings.Repeat("x", n)))
	}))
	defer srv.Close()

	cl, _ := New(Options{Timeout: 2 * time.Second})
	body, err := cl.FetchHTML(context.Background(), srv.URL+"/fits")
	if err != nil || len(body) != 64 {
		t.Fatalf("body at limit: len=%d err=%v", len(body), err)
	}
	body, err = cl.FetchHTML(context.Background(), srv.URL+"/big")
	var fe *model.FetchError
	if !errors.As(err, &fe) || !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected FetchError wrapping ErrBodyTooLarge, got %v", err)
	}
	if body != "" || fe.Status != http.StatusOK || model.KindOf(err) != model.KindFetch {
		t.Fatalf("unexpected result: body=%q err=%+v", body, fe)
	}
}

func TestGet_RetryOnStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cl, _ := New(Options{Retry: 1, Timeout: 2 * time.Second})
	resp, err := cl.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
}

func TestGet_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cl, _ := New(Options{Timeout: 100 * time.Millisecond})
	_, err := cl.Get(context.Background(), srv.URL)
	var fe *model.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError on timeout, got %v", err)
	}
	if fe.Status != 0 {
		t.Fatalf("status = %d, want 0", fe.Status)
	}
}

func TestGet_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cl, _ := New(Options{RatePerSecond: 1, Burst: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cl.Get(ctx, srv.URL)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if k := model.KindOf(err); k != model.KindCancelled {
		t.Fatalf("kind = %s, want %s", k, model.KindCancelled)
	}
}

func TestNew_BadProxy(t *testing.T) {
	if _, err := New(Options{ProxyHTTP: "://bad"}); err == nil {
		t.Fatal("expected proxy parse error")
	}
}
