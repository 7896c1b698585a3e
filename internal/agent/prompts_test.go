package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPromptFile_StripsComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analyzer.txt")
	content := "# role definition\nYou extract requirements.\n  # indented comment\nCite verbatim.\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	prompt, err := LoadPromptFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(prompt, "#") {
		t.Errorf("comment lines must be stripped, got %q", prompt)
	}
	if !strings.Contains(prompt, "You extract requirements.") || !strings.Contains(prompt, "Cite verbatim.") {
		t.Errorf("content lines lost: %q", prompt)
	}
}

func TestResolvePrompt_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.txt")
	if err := os.WriteFile(path, []byte("file prompt"), 0644); err != nil {
		t.Fatal(err)
	}

	// Inline wins over file.
	got, err := resolvePrompt("inline prompt", path, "fallback")
	if err != nil || got != "inline prompt" {
		t.Errorf("inline must win: %q, %v", got, err)
	}

	got, err = resolvePrompt("", path, "fallback")
	if err != nil || got != "file prompt" {
		t.Errorf("file must win over fallback: %q, %v", got, err)
	}

	got, err = resolvePrompt("", "", "fallback")
	if err != nil || got != "fallback" {
		t.Errorf("fallback expected: %q, %v", got, err)
	}

	if _, err := resolvePrompt("", filepath.Join(dir, "missing.txt"), "fallback"); err == nil {
		t.Error("missing prompt file must error")
	}
}

func TestFormatDocuments_StableOrder(t *testing.T) {
	docs := map[string]string{
		"b.md": "second",
		"a.md": "first",
	}

	out := formatDocuments(docs)
	ai := strings.Index(out, "--- Document: a.md ---")
	bi := strings.Index(out, "--- Document: b.md ---")
	if ai < 0 || bi < 0 || ai > bi {
		t.Errorf("documents must render in name order: %q", out)
	}
}
