package meta

import (
	"testing"
	"time"

	"go-post-archiver/internal/rules"
)

const page = `<!doctype html><html><head>
<title>Fallback Title | Site</title>
<meta property="og:title" content=" OG Title ">
<meta name="author" content="Jane Doe">
<meta property="article:published_time" content="2024-03-05T10:00:00.000Z">
</head><body><h3 class="subtitle">A subtitle</h3></body></html>`

func TestExtract_DefaultPreset(t *testing.T) {
	m, err := Extract(page, rules.Default())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if m.Title != "OG Title" {
		t.Fatalf("title = %q", m.Title)
	}
	if m.Subtitle != "A subtitle" {
		t.Fatalf("subtitle = %q", m.Subtitle)
	}
	if m.Author != "Jane Doe" {
		t.Fatalf("author = %q", m.Author)
	}
	want := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	if !m.Published.Equal(want) {
		t.Fatalf("published = %v, want %v", m.Published, want)
	}
}

func TestExtract_FallbackChain(t *testing.T) {
	p := rules.Preset{PostPage: &rules.PostPage{
		Title:  "h1.missing||title",
		Author: "a[href*='/@']",
		Date:   "time@datetime",
	}}
	html := `<html><head><title>Plain</title></head><body><a href="/@bob">Bob</a><time datetime="2023-01-02">x</time></body></html>`
	m, err := Extract(html, p)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if m.Title != "Plain" || m.Author != "Bob" {
		t.Fatalf("unexpected meta: %+v", m)
	}
	if m.Published.Year() != 2023 || m.Published.Day() != 2 {
		t.Fatalf("published = %v", m.Published)
	}
}

func TestExtract_NoPreset(t *testing.T) {
	m, err := Extract(page, rules.Preset{})
	if err != nil || m != (Meta{}) {
		t.Fatalf("expected empty meta, got %+v err=%v", m, err)
	}
}
