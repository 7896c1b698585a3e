package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/exigo-ai/exigo/internal/model"
)

// fakeExtractor records bundle names and fails on request.
type fakeExtractor struct {
	mu      sync.Mutex
	names   []string
	failFor map[string]bool
}

func (f *fakeExtractor) Extract(ctx context.Context, name string, sources []string) (*model.RequirementSet, error) {
	f.mu.Lock()
	f.names = append(f.names, name)
	f.mu.Unlock()

	if f.failFor[name] {
		return nil, errors.New("extraction failed")
	}
	set := model.NewRequirementSet(name, "", sources)
	set.Status = model.StatusAccepted
	return set, nil
}

func TestBatchProcessor_ProcessBundles(t *testing.T) {
	extractor := &fakeExtractor{failFor: map[string]bool{"bad": true}}
	processor := NewBatchProcessor(extractor, 3)

	bundles := []Bundle{
		{Name: "checkout", Sources: []string{"a.md"}},
		{Name: "bad", Sources: []string{"b.md"}},
		{Name: "onboarding", Sources: []string{"c.md", "d.md"}},
	}

	results := processor.ProcessBundles(context.Background(), bundles)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	failures := 0
	for _, result := range results {
		if result.GetError() != nil {
			failures++
			if result.Bundle.Name != "bad" {
				t.Errorf("unexpected failure for %s", result.Bundle.Name)
			}
			continue
		}
		if result.Set == nil || result.Set.Status != model.StatusAccepted {
			t.Errorf("%s: unexpected set %+v", result.Bundle.Name, result.Set)
		}
	}
	if failures != 1 {
		t.Errorf("expected 1 failure, got %d", failures)
	}
}

func TestBatchProcessor_EmptyInput(t *testing.T) {
	processor := NewBatchProcessor(&fakeExtractor{}, 2)
	results := processor.ProcessBundles(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestReadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundles.txt")
	content := `# comment line

checkout: rfp.pdf, notes.md
https://example.com/brief.html
payments: spec.docx, spec.docx, extra.md
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	bundles, err := ReadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(bundles) != 3 {
		t.Fatalf("expected 3 bundles, got %d", len(bundles))
	}

	if bundles[0].Name != "checkout" || len(bundles[0].Sources) != 2 {
		t.Errorf("bundle 0: %+v", bundles[0])
	}
	// A bare URL keeps its scheme and gets a positional name.
	if bundles[1].Name != "bundle-2" || bundles[1].Sources[0] != "https://example.com/brief.html" {
		t.Errorf("bundle 1: %+v", bundles[1])
	}
	// Duplicates within a bundle collapse.
	if len(bundles[2].Sources) != 2 {
		t.Errorf("bundle 2 should dedupe sources: %+v", bundles[2])
	}
}

func TestReadManifest_EmptyBundleRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundles.txt")
	if err := os.WriteFile(path, []byte("broken:\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadManifest(path); err == nil {
		t.Fatal("bundle without sources must be rejected")
	}
}

func TestPool_RunsAllJobs(t *testing.T) {
	extractor := &fakeExtractor{}
	pool := NewPool(2)
	pool.Start()

	for _, name := range []string{"a", "b", "c", "d"} {
		pool.Submit(&ExtractJob{Bundle: Bundle{Name: name, Sources: []string{"x"}}, Extractor: extractor})
	}
	results := pool.Wait()

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	sort.Strings(extractor.names)
	want := []string{"a", "b", "c", "d"}
	for i, name := range want {
		if extractor.names[i] != name {
			t.Fatalf("missing job %s in %v", name, extractor.names)
		}
	}
}
