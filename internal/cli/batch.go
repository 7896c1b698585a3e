package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/exigo-ai/exigo/internal/pipeline"
	"github.com/exigo-ai/exigo/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <manifest>",
	Short: "Extract requirements from multiple document bundles in parallel",
	Long: `Batch reads a manifest file and processes every bundle
concurrently. Each non-comment line is one bundle: an optional "name:"
prefix followed by comma-separated sources. Every bundle produces its
own requirement set.

Example manifest:
  checkout: rfp.pdf, notes.md
  onboarding: https://example.com/brief.html

Example:
  exigo batch bundles.txt
  exigo batch bundles.txt --concurrency 8 --output-dir ./requirements`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of concurrent extraction runs")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./exigo-requirements", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", time.Hour, "total timeout for batch processing")

	batchCmd.Flags().StringVar(&provider, "provider", "openai", "agent provider (openai, anthropic, ollama)")
	batchCmd.Flags().StringVar(&agentModel, "model", "gpt-4o-mini", "agent model name")
	batchCmd.Flags().IntVar(&maxIter, "max-iterations", 5, "iteration budget per bundle (1-10)")
	batchCmd.Flags().IntVar(&acceptAfter, "acceptance-threshold", 3, "consecutive clean verifications required to accept (1-5)")
	batchCmd.Flags().IntVar(&maxRetries, "retries", 2, "retries per agent call")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the document cache")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	if concurrency > 0 {
		cfg.Concurrency.BatchWorkers = concurrency
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ex, err := newExtractor(cfg)
	if err != nil {
		return err
	}
	defer ex.Close()

	processor := worker.NewBatchProcessor(ex, cfg.Concurrency.BatchWorkers)
	results, err := processor.ProcessFile(ctx, args[0])
	if err != nil {
		return err
	}

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
	failures := 0
	for _, result := range results {
		if result.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Bundle.Name, result.Error)
			if result.Set == nil {
				continue
			}
		}

		base := filepath.Join(outputDir, sanitizeName(result.Bundle.Name))
		data, err := renderer.RenderJSON(result.Set)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: render: %v\n", result.Bundle.Name, err)
			continue
		}
		if err := os.WriteFile(base+".json", []byte(data), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: write: %v\n", result.Bundle.Name, err)
			continue
		}
		if err := os.WriteFile(base+".md", []byte(renderer.RenderMarkdown(result.Set)), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: write: %v\n", result.Bundle.Name, err)
			continue
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ %s: %s (%d iteration(s))\n", result.Bundle.Name, result.Set.Status, result.Set.IterationCount)
		}
	}

	fmt.Fprintf(os.Stderr, "Processed %d bundle(s), %d failure(s)\n", len(results), failures)
	if failures == len(results) && len(results) > 0 {
		return fmt.Errorf("all bundles failed")
	}
	return nil
}

func sanitizeName(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(name)
}
