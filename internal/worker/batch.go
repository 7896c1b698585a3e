package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/exigo-ai/exigo/internal/model"
)

// Extractor runs one extraction over a named bundle of source
// documents.
type Extractor interface {
	Extract(ctx context.Context, name string, sources []string) (*model.RequirementSet, error)
}

// Bundle is one batch entry: a named group of sources processed as a
// single corpus.
type Bundle struct {
	Name    string
	Sources []string
}

// ExtractJob runs one bundle through the extractor.
type ExtractJob struct {
	Bundle    Bundle
	Extractor Extractor
}

// Execute implements Job
func (j *ExtractJob) Execute(ctx context.Context) Result {
	set, err := j.Extractor.Extract(ctx, j.Bundle.Name, j.Bundle.Sources)
	return &ExtractResult{Bundle: j.Bundle, Set: set, Error: err}
}

// ExtractResult is the outcome of one bundle.
type ExtractResult struct {
	Bundle Bundle
	Set    *model.RequirementSet
	Error  error
}

// GetError implements Result
func (r *ExtractResult) GetError() error {
	return r.Error
}

// BatchProcessor runs several bundles concurrently.
type BatchProcessor struct {
	extractor   Extractor
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(extractor Extractor, concurrency int) *BatchProcessor {
	return &BatchProcessor{extractor: extractor, concurrency: concurrency}
}

// ProcessBundles runs every bundle and returns the results in
// completion order.
func (b *BatchProcessor) ProcessBundles(ctx context.Context, bundles []Bundle) []*ExtractResult {
	if len(bundles) == 0 {
		return []*ExtractResult{}
	}

	pool := NewPool(b.concurrency)
	pool.Start()
	for _, bundle := range bundles {
		pool.Submit(&ExtractJob{Bundle: bundle, Extractor: b.extractor})
	}
	results := pool.Wait()

	extractResults := make([]*ExtractResult, len(results))
	for i, result := range results {
		extractResults[i] = result.(*ExtractResult)
	}
	return extractResults
}

// ProcessFile reads a batch manifest and runs every bundle in it.
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ExtractResult, error) {
	bundles, err := ReadManifest(filePath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return b.ProcessBundles(ctx, bundles), nil
}

// ReadManifest parses a batch manifest. Each non-comment line is one
// bundle: an optional "name:" prefix followed by comma-separated
// sources. Unnamed bundles get a positional name.
func ReadManifest(filePath string) ([]Bundle, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var bundles []Bundle
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lineNum++

		name := fmt.Sprintf("bundle-%d", lineNum)
		sourcesPart := line
		// A colon before any path separator or scheme names the bundle.
		if idx := strings.Index(line, ":"); idx > 0 && !strings.HasPrefix(line[idx:], "://") && !strings.Contains(line[:idx], "/") && !strings.Contains(line[:idx], "\\") && !strings.Contains(line[:idx], ".") {
			name = strings.TrimSpace(line[:idx])
			sourcesPart = line[idx+1:]
		}

		var sources []string
		seen := make(map[string]bool)
		for _, raw := range strings.Split(sourcesPart, ",") {
			source := strings.TrimSpace(raw)
			if source == "" || seen[source] {
				continue
			}
			seen[source] = true
			sources = append(sources, source)
		}
		if len(sources) == 0 {
			return nil, fmt.Errorf("line %d: no sources", lineNum)
		}
		bundles = append(bundles, Bundle{Name: name, Sources: sources})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return bundles, nil
}
