package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go-post-archiver/internal/export"
)

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			_, _ = w.Write([]byte(`<urlset><url><loc>` + srv.URL + `/p/first-post</loc></url><url><loc>` + srv.URL + `/p/broken</loc></url></urlset>`))
		case "/p/first-post":
			rec := `{\"canonicalUrl\":\"` + srv.URL + `/p/first-post\",\"post\":{\"title\":\"First\",\"body_html\":\"<p>hi</p>\"}}`
			_, _ = w.Write([]byte(`<html><body><script>x = JSON.parse("` + rec + `")</script></body></html>`))
		case "/p/broken":
			_, _ = w.Write([]byte(`<html><body>nothing here</body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_ArchiveListAndLastRun(t *testing.T) {
	srv := newTestSite(t)
	tmp := t.TempDir()
	outDir := filepath.Join(tmp, "posts")
	manifest := filepath.Join(tmp, "manifest.json")
	summary := filepath.Join(tmp, "summary.md")
	db := filepath.Join(tmp, "index.db")

	if _, err := execute(t, srv.URL, "--out", outDir, "--no-feed", "--log-level", "off",
		"--export", manifest, "--summary", summary, "--db", db); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "first-post.md")); err != nil {
		t.Fatalf("post not written: %v", err)
	}

	b, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m export.Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if m.Stats.Converted != 1 || m.Stats.Failed != 1 || m.Stats.Saved != 1 {
		t.Fatalf("stats = %+v", m.Stats)
	}
	if s, err := os.ReadFile(summary); err != nil || !strings.Contains(string(s), "RecordNotFoundError") {
		t.Fatalf("summary = %q err=%v", s, err)
	}

	out, err := execute(t, "list", outDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "first-post") || !strings.Contains(out, "First") {
		t.Fatalf("list output = %q", out)
	}

	out, err = execute(t, "last-run", srv.URL, "--db", db)
	if err != nil {
		t.Fatalf("last-run: %v", err)
	}
	if !strings.Contains(out, "converted=1") || !strings.Contains(out, "RecordNotFoundError") {
		t.Fatalf("last-run output = %q", out)
	}
}

func TestCLI_SecondRunWithoutOverwriteFails(t *testing.T) {
	srv := newTestSite(t)
	outDir := filepath.Join(t.TempDir(), "posts")
	if _, err := execute(t, srv.URL, "--out", outDir, "--no-feed", "--log-level", "off"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := execute(t, srv.URL, "--out", outDir, "--no-feed", "--log-level", "off"); err == nil {
		t.Fatal("expected NoOverwriteError on second run")
	}
	if _, err := execute(t, srv.URL, "--out", outDir, "--no-feed", "--log-level", "off", "--overwrite"); err != nil {
		t.Fatalf("overwrite run: %v", err)
	}
}

func TestCLI_ConfigErrors(t *testing.T) {
	if _, err := execute(t, "--log-level", "off"); err == nil {
		t.Fatal("expected error without site")
	}
	if _, err := execute(t, "https://ex.com", "--config", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for explicit missing config")
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	p := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(p, []byte("SITE_URL: https://file.example\nOUTPUT_DIR: from-file\nCONCURRENCY:\n  fetch: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--config", p, "--out", "from-flag", "--save=false", "--timeout", "3s"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := loadConfig(cmd, []string{"https://arg.example"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SiteURL != "https://arg.example" || cfg.OutputDir != "from-flag" || cfg.Concurrency.Fetch != 7 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.SaveEnabled() || cfg.Timeout != "3s" {
		t.Fatalf("flag overrides lost: save=%v timeout=%q", cfg.SaveEnabled(), cfg.Timeout)
	}
}
