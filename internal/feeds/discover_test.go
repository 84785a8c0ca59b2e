package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-post-archiver/internal/fetch"
)

const rssSample = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>t</title>
    <link>https://ex.com</link>
    <item><title>a</title><link>https://ex.com/p/a</link><dc:creator>Jane</dc:creator><pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate></item>
    <item><title>b</title><link>https://ex.com/p/b/?utm=1</link><pubDate>Tue, 03 Jan 2006 15:04:05 GMT</pubDate></item>
  </channel>
</rss>`

func newClient(t *testing.T) *fetch.Client {
	t.Helper()
	cl, err := fetch.New(fetch.Options{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return cl
}

func TestDiscoverFeed_StraightCandidate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssSample))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	got, err := DiscoverFeed(context.Background(), newClient(t), srv.URL+"/")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if got != srv.URL+"/feed" {
		t.Fatalf("got %q want %q", got, srv.URL+"/feed")
	}
}

func TestDiscoverFeed_FromHTMLLink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!doctype html><head><link rel="alternate" type="application/rss+xml" href="/custom.rss"></head>`))
	})
	mux.HandleFunc("/custom.rss", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssSample))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	got, err := DiscoverFeed(context.Background(), newClient(t), srv.URL+"/")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if got != srv.URL+"/custom.rss" {
		t.Fatalf("got %q", got)
	}
}

func TestParseFeedAndIndex(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssSample))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	items, err := ParseFeed(context.Background(), newClient(t), srv.URL+"/feed", 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d", len(items))
	}
	idx := Index(items)
	a, ok := idx[NormalizeLink("http://EX.com/p/a/")]
	if !ok || a.Author != "Jane" || a.Published.Year() != 2006 {
		t.Fatalf("unexpected indexed item: %+v ok=%v", a, ok)
	}
	if _, ok := idx[NormalizeLink("https://ex.com/p/b")]; !ok {
		t.Fatal("query/trailing slash should be normalized away")
	}

	limited, _ := ParseFeed(context.Background(), newClient(t), srv.URL+"/feed", 1)
	if len(limited) != 1 {
		t.Fatalf("limit not applied: %d", len(limited))
	}
}
