package parse

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/exigo-ai/exigo/internal/cache"
	"github.com/exigo-ai/exigo/internal/model"
)

func testParser(store cache.Cache) *Parser {
	return NewParser(model.HTTPConfig{
		Timeout:      5 * time.Second,
		UserAgent:    "test",
		MaxBodyBytes: 1 << 20,
	}, store, time.Hour)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse_PlainTextAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	txt := writeFile(t, dir, "notes.txt", "plain notes")
	md := writeFile(t, dir, "brief.md", "# Brief\n\nrequirements here")

	result, err := testParser(nil).Parse(context.Background(), []string{txt, md})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(result.Documents))
	}
	if result.Documents["notes.txt"] != "plain notes" {
		t.Errorf("unexpected content: %q", result.Documents["notes.txt"])
	}
	if len(result.Failed) != 0 {
		t.Errorf("unexpected failures: %+v", result.Failed)
	}
}

func TestParse_FailureIsolation(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "ok.txt", "content")
	missing := filepath.Join(dir, "does-not-exist.txt")
	unsupported := writeFile(t, dir, "image.png", "binary")

	result, err := testParser(nil).Parse(context.Background(), []string{good, missing, unsupported})
	if err != nil {
		t.Fatalf("partial failure must not fail the batch: %v", err)
	}
	if len(result.Documents) != 1 {
		t.Fatalf("expected 1 readable document, got %d", len(result.Documents))
	}
	if len(result.Failed) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(result.Failed))
	}
}

func TestParse_AllSourcesFailed(t *testing.T) {
	_, err := testParser(nil).Parse(context.Background(), []string{"/nonexistent/a.txt"})
	if err == nil {
		t.Fatal("expected an error when no source is readable")
	}
}

func TestParse_NameCollision(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	a := writeFile(t, dir1, "brief.md", "first")
	b := writeFile(t, dir2, "brief.md", "second")

	result, err := testParser(nil).Parse(context.Background(), []string{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Documents) != 2 {
		t.Fatalf("colliding base names must both survive, got %v", result.Documents)
	}
	if _, ok := result.Documents["brief.md (2)"]; !ok {
		t.Errorf("expected suffixed name, got keys %v", keys(result.Documents))
	}
}

func TestParse_HTMLFile(t *testing.T) {
	dir := t.TempDir()
	page := writeFile(t, dir, "page.html",
		`<html><head><style>body{}</style></head><body><h1>Title</h1><p>para text</p><script>var x;</script></body></html>`)

	result, err := testParser(nil).Parse(context.Background(), []string{page})
	if err != nil {
		t.Fatal(err)
	}
	text := result.Documents["page.html"]
	if !strings.Contains(text, "Title") || !strings.Contains(text, "para text") {
		t.Errorf("expected visible text extracted, got %q", text)
	}
	if strings.Contains(text, "var x") || strings.Contains(text, "body{}") {
		t.Errorf("script/style content must be dropped, got %q", text)
	}
}

func TestParse_UsesCache(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cached.txt", "original")

	store := cache.NewMemoryCache(time.Hour, time.Hour)
	parser := testParser(store)

	first, err := parser.Parse(context.Background(), []string{path})
	if err != nil {
		t.Fatal(err)
	}
	if first.Documents["cached.txt"] != "original" {
		t.Fatal("unexpected first read")
	}

	// Same mtime and size: the cached text is served.
	info, _ := os.Stat(path)
	if err := os.WriteFile(path, []byte("modified"), 0644); err != nil {
		t.Fatal(err)
	}
	_ = os.Chtimes(path, info.ModTime(), info.ModTime())

	second, err := parser.Parse(context.Background(), []string{path})
	if err != nil {
		t.Fatal(err)
	}
	if second.Documents["cached.txt"] != "original" {
		t.Errorf("expected cached content, got %q", second.Documents["cached.txt"])
	}
}

func TestStripTags(t *testing.T) {
	in := `<w:document><w:p><w:r><w:t>first line</w:t></w:r></w:p><w:p><w:r><w:t>second</w:t></w:r></w:p></w:document>`
	out := stripTags(in)
	if !strings.Contains(out, "first line") || !strings.Contains(out, "second") {
		t.Errorf("text content lost: %q", out)
	}
	if strings.Contains(out, "<") {
		t.Errorf("markup left behind: %q", out)
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
