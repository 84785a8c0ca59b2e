package convert

import (
	"strings"
	"testing"

	"go-post-archiver/internal/model"
	"go-post-archiver/internal/rules"
)

func strp(s string) *string { return &s }

func TestBodyInput(t *testing.T) {
	cases := []struct {
		name string
		post *model.Post
		want string
	}{
		{"nil post", nil, Placeholder},
		{"no details", &model.Post{URL: "u"}, Placeholder},
		{"no body", &model.Post{URL: "u", Details: &model.Details{Title: strp("t")}}, Placeholder},
		{"blank body", &model.Post{URL: "u", Details: &model.Details{BodyHTML: strp("  ")}}, Placeholder},
		{"body", &model.Post{URL: "u", Details: &model.Details{BodyHTML: strp("<p>x</p>")}}, "<p>x</p>"},
	}
	for _, c := range cases {
		if got := BodyInput(c.post); got != c.want {
			t.Fatalf("%s: got %q, want %q", c.name, got, c.want)
		}
	}
}

func TestConvert_PlaceholderIsNotAnError(t *testing.T) {
	md, empty, err := New(rules.Default()).Convert(Placeholder, "https://ex.com/p/a")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !empty || md != Placeholder {
		t.Fatalf("md=%q empty=%v", md, empty)
	}
}

func TestConvert_BlocksAndInline(t *testing.T) {
	html := `<h2>Heading</h2><p>Hello <strong>bold</strong> and <em>it</em>.</p><ul><li>one</li><li>two</li></ul><blink>legacy</blink>`
	md, empty, err := New(rules.Preset{}).Convert(html, "")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if empty {
		t.Fatal("unexpected empty flag")
	}
	for _, want := range []string{"## Heading", "**bold**", "*it*", "- one", "- two", "legacy"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestConvert_StripAndAbsoluteLinks(t *testing.T) {
	html := `<p>Read <a href="/p/other">this</a></p>` +
		`<div class="subscription-widget-wrap"><p>Subscribe now</p></div>` +
		`<p><img src="img/a.png" alt="pic"></p>`
	md, _, err := New(rules.Default()).Convert(html, "https://ex.com/p/current")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if strings.Contains(md, "Subscribe now") {
		t.Fatalf("strip selector not applied:\n%s", md)
	}
	if !strings.Contains(md, "(https://ex.com/p/other)") {
		t.Fatalf("link not absolutized:\n%s", md)
	}
	if !strings.Contains(md, "https://ex.com/p/img/a.png") {
		t.Fatalf("image not absolutized:\n%s", md)
	}
}

func TestAbs(t *testing.T) {
	base := "https://ex.com/p/current"
	cases := map[string]string{
		"#note":              "#note",
		"mailto:a@b.c":       "mailto:a@b.c",
		"/x":                 "https://ex.com/x",
		"https://other.com/": "https://other.com/",
	}
	for in, want := range cases {
		if got := abs(base, in); got != want {
			t.Fatalf("abs(%q) = %q, want %q", in, got, want)
		}
	}
}
