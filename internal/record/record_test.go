package record

import (
	"errors"
	"strings"
	"testing"

	"go-post-archiver/internal/model"
)

func TestUnescape(t *testing.T) {
	cases := map[string]string{
		"":              "",
		"plain text":    "plain text",
		`a\\bc`:         `a\bc`,
		`ab\c`:          "abc",
		`\"quoted\"`:    `"quoted"`,
		`caf\é`:         "café",
		`line\\nbreak`:  `line\nbreak`,
		`{\"k\":\"v\"}`: `{"k":"v"}`,
	}
	for in, want := range cases {
		got, err := Unescape(in)
		if err != nil {
			t.Fatalf("Unescape(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("Unescape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUnescape_IdempotentOnClean(t *testing.T) {
	in := `{"canonicalUrl":"http://x/p/1"}`
	once, _ := Unescape(in)
	twice, _ := Unescape(once)
	if once != in || twice != in {
		t.Fatalf("clean text changed: %q / %q", once, twice)
	}
}

func TestUnescape_DanglingBackslash(t *testing.T) {
	_, err := Unescape(`abc\`)
	var me *model.MalformedEscapeError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedEscapeError, got %v", err)
	}
	if me.Offset != 3 {
		t.Fatalf("offset = %d, want 3", me.Offset)
	}
}

func TestParse_MinimalRecord(t *testing.T) {
	html := `<html><script>window._preloads = JSON.parse("{\"canonicalUrl\":\"http://x/p/1\"}")</script></html>`
	p, err := Parse(html)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.URL != "http://x/p/1" {
		t.Fatalf("url = %q", p.URL)
	}
	if p.Details != nil {
		t.Fatalf("expected no details, got %+v", p.Details)
	}
}

func TestParse_FullRecord(t *testing.T) {
	html := `<script>x = JSON.parse("{\"canonicalUrl\":\"https://ex.com/p/hello\",\"base_url\":\"https://ex.com\",` +
		`\"post\":{\"title\":\"Hello \\\"World\\\"\",\"subtitle\":\"sub\",\"body_html\":\"<p>a\\nb</p>\"},\"extra\":1}")</script>`
	p, err := Parse(html)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.BaseURL == nil || *p.BaseURL != "https://ex.com" {
		t.Fatalf("base_url = %v", p.BaseURL)
	}
	if p.Title() != `Hello "World"` || p.Subtitle() != "sub" {
		t.Fatalf("title/subtitle = %q / %q", p.Title(), p.Subtitle())
	}
	if p.Details.BodyHTML == nil || *p.Details.BodyHTML != "<p>a\nb</p>" {
		t.Fatalf("body_html = %v", p.Details.BodyHTML)
	}
}

func TestParse_MissingPrefix(t *testing.T) {
	_, err := Parse(`<html><body>not a post</body></html>`)
	var nf *model.RecordNotFoundError
	if !errors.As(err, &nf) || nf.Marker != Prefix {
		t.Fatalf("expected RecordNotFoundError for prefix, got %v", err)
	}
}

func TestParse_MissingSuffixDoesNotFallBack(t *testing.T) {
	_, err := Parse(`<script>JSON.parse("{\"canonicalUrl\":\"http://x/p/1\"}")`)
	var nf *model.RecordNotFoundError
	if !errors.As(err, &nf) || nf.Marker != Suffix {
		t.Fatalf("expected RecordNotFoundError for suffix, got %v", err)
	}
	_, err = Literal(`JSON.parse(")</script>`)
	if !errors.As(err, &nf) {
		t.Fatalf("expected RecordNotFoundError for empty literal, got %v", err)
	}
}

func TestParse_DecodeError(t *testing.T) {
	_, err := Parse(`JSON.parse("{\"canonicalUrl\":42}")</script>`)
	var de *model.RecordDecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected RecordDecodeError, got %v", err)
	}
	if !strings.Contains(de.Text, "canonicalUrl") {
		t.Fatalf("decode error should carry text, got %q", de.Text)
	}

	_, err = Parse(`JSON.parse("{\"post\":null}")</script>`)
	if !errors.As(err, &de) {
		t.Fatalf("expected RecordDecodeError for missing url, got %v", err)
	}
}

func TestParse_DanglingEscape(t *testing.T) {
	_, err := Parse(`JSON.parse("{}\")</script>`)
	if model.KindOf(err) != model.KindMalformedEscape {
		t.Fatalf("kind = %s, err = %v", model.KindOf(err), err)
	}
}
