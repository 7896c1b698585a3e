// Package parse turns heterogeneous source documents into plain text
// keyed by document name. Local files and remote URLs are supported;
// one unreadable source never fails the batch.
package parse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/exigo-ai/exigo/internal/cache"
	"github.com/exigo-ai/exigo/internal/model"
)

// DocumentError records one source that could not be read.
type DocumentError struct {
	Source string
	Err    error
}

func (e DocumentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

// Result holds the parsed corpus plus per-source failures.
type Result struct {
	Documents map[string]string
	Failed    []DocumentError
}

// Parser reads source documents of several formats.
type Parser struct {
	fetcher  *Fetcher
	store    cache.Cache
	cacheTTL time.Duration
}

// NewParser creates a parser. store may be nil to disable caching.
func NewParser(httpCfg model.HTTPConfig, store cache.Cache, cacheTTL time.Duration) *Parser {
	return &Parser{
		fetcher:  NewFetcher(httpCfg),
		store:    store,
		cacheTTL: cacheTTL,
	}
}

// Parse reads every source and returns the corpus. Failures are
// isolated per source and reported in Result.Failed.
func (p *Parser) Parse(ctx context.Context, sources []string) (*Result, error) {
	result := &Result{Documents: make(map[string]string)}
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		text, err := p.parseOne(ctx, source)
		if err != nil {
			result.Failed = append(result.Failed, DocumentError{Source: source, Err: err})
			continue
		}
		result.Documents[documentName(source, result.Documents)] = text
	}
	if len(result.Documents) == 0 && len(result.Failed) > 0 {
		return result, fmt.Errorf("all %d source(s) failed to parse", len(result.Failed))
	}
	return result, nil
}

func (p *Parser) parseOne(ctx context.Context, source string) (string, error) {
	if isURL(source) {
		return p.parseURL(ctx, source)
	}
	return p.parseFile(ctx, source)
}

func (p *Parser) parseURL(ctx context.Context, rawURL string) (string, error) {
	key := cache.CacheKey(rawURL)
	if p.store != nil {
		if data, ok := p.store.Get(key); ok {
			return string(data), nil
		}
	}

	fetched, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}

	text := fetched.Body
	if strings.Contains(fetched.ContentType, "html") || looksLikeHTML(text) {
		text, err = htmlToText(text)
		if err != nil {
			return "", fmt.Errorf("parse html: %w", err)
		}
	}

	if p.store != nil {
		_ = p.store.Set(key, []byte(text), p.cacheTTL)
	}
	return text, nil
}

func (p *Parser) parseFile(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	key := cache.CacheKey(fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano()))
	if p.store != nil {
		if data, ok := p.store.Get(key); ok {
			return string(data), nil
		}
	}

	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		text = string(data)
	case ".pdf":
		text, err = parsePDF(ctx, path, info.Size())
	case ".docx":
		text, err = parseDocx(path)
	case ".xlsx":
		text, err = parseXlsx(ctx, path)
	case ".html", ".htm":
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return "", rerr
		}
		text, err = htmlToText(string(data))
	default:
		return "", fmt.Errorf("unsupported document format %q", filepath.Ext(path))
	}
	if err != nil {
		return "", err
	}

	if p.store != nil {
		_ = p.store.Set(key, []byte(text), p.cacheTTL)
	}
	return text, nil
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func looksLikeHTML(text string) bool {
	head := strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// documentName derives a stable corpus key from the source, keeping the
// base name for files and the full URL for remote sources. Collisions
// get a numeric suffix.
func documentName(source string, existing map[string]string) string {
	name := source
	if !isURL(source) {
		name = filepath.Base(source)
	}
	if _, taken := existing[name]; !taken {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		if _, taken := existing[candidate]; !taken {
			return candidate
		}
	}
}
