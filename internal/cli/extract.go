package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/exigo-ai/exigo/internal/agent"
	"github.com/exigo-ai/exigo/internal/cache"
	"github.com/exigo-ai/exigo/internal/model"
	"github.com/exigo-ai/exigo/internal/parse"
	"github.com/exigo-ai/exigo/internal/pipeline"
	"github.com/exigo-ai/exigo/internal/progress"
)

var (
	outJSON      string
	outMD        string
	setName      string
	runTimeout   time.Duration
	provider     string
	agentModel   string
	maxIter      int
	acceptAfter  int
	enableReview bool
	maxRetries   int
	noCache      bool
	noFooter     bool
	jsonProgress bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <source>...",
	Short: "Extract business requirements from documents",
	Long: `Extract reads one or more source documents (txt, md, pdf, docx,
xlsx, html or http(s) URLs), drafts business requirements with an
analyzer agent, verifies every citation with a verifier agent and
iterates until the requirement set is accepted or the iteration budget
runs out.

Example:
  exigo extract brief.pdf notes.md
  exigo extract spec.docx --json out.json --md report.md
  exigo extract https://example.com/rfp.html --provider anthropic`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&outJSON, "json", "requirements.json", "output JSON path")
	extractCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	extractCmd.Flags().StringVar(&setName, "name", "", "requirement set name (default: first source)")
	extractCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Minute, "overall run timeout")

	extractCmd.Flags().StringVar(&provider, "provider", "openai", "agent provider (openai, anthropic, ollama)")
	extractCmd.Flags().StringVar(&agentModel, "model", "gpt-4o-mini", "agent model name")

	extractCmd.Flags().IntVar(&maxIter, "max-iterations", 5, "iteration budget (1-10)")
	extractCmd.Flags().IntVar(&acceptAfter, "acceptance-threshold", 3, "consecutive clean verifications required to accept (1-5)")
	extractCmd.Flags().BoolVar(&enableReview, "review", false, "enable the review stage after each verification pass")
	extractCmd.Flags().IntVar(&maxRetries, "retries", 2, "retries per agent call")

	extractCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the document cache")
	extractCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	extractCmd.Flags().BoolVar(&jsonProgress, "json-progress", false, "emit progress as JSON lines on stderr")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	ex, err := newExtractor(cfg)
	if err != nil {
		return err
	}
	defer ex.Close()

	name := setName
	if name == "" {
		name = filepath.Base(args[0])
	}

	set, err := ex.Extract(ctx, name, args)
	if err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ %d requirement(s), %d hypothesis(es), %d open issue(s)\n",
			len(set.ActiveRequirements()), len(set.Hypotheses), len(set.Issues))
		fmt.Fprintf(os.Stderr, "✓ Status: %s after %d iteration(s)\n", set.Status, set.IterationCount)
	}

	if err := writeReports(set, cfg); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	if set.Status == model.StatusFailed {
		return fmt.Errorf("run failed; partial results written")
	}
	return nil
}

// buildConfig assembles the effective configuration from defaults and
// flags. API keys come from the environment only.
func buildConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	cfg.Pipeline.MaxIterations = maxIter
	cfg.Pipeline.AcceptanceThreshold = acceptAfter
	cfg.Pipeline.EnableReviewStage = enableReview
	cfg.Pipeline.MaxRetries = maxRetries
	cfg.Pipeline.Normalize()
	cfg.Agent.Provider = provider
	cfg.Agent.Model = agentModel
	cfg.Cache.Enabled = !noCache
	cfg.Output.Verbose = verbose
	cfg.Output.IncludeFooter = !noFooter

	switch provider {
	case "openai":
		cfg.Agent.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.Agent.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.Agent.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.Agent.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.Agent.BaseURL = baseURL
		}
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	return cfg, nil
}

// extractor wires the parser, the agent gateway and the orchestrator.
// It implements worker.Extractor for batch runs.
type extractor struct {
	parser       *parse.Parser
	orchestrator *pipeline.Orchestrator
	dispatcher   *progress.Dispatcher
}

func newExtractor(cfg *model.Config) (*extractor, error) {
	gateway, err := agent.NewLLMGateway(cfg.Agent)
	if err != nil {
		return nil, fmt.Errorf("create agent gateway: %w", err)
	}

	var store cache.Cache
	if cfg.Cache.Enabled {
		if cfg.Cache.Dir != "" {
			store = cache.NewLayeredCache(cfg.Cache.TTL, cfg.Cache.Dir, cfg.Cache.TTL)
		} else {
			store = cache.NewMemoryCache(cfg.Cache.TTL, 10*time.Minute)
		}
	}

	var sink progress.Sink = progress.NopSink{}
	if jsonProgress {
		sink = progress.NewJSONLSink(os.Stderr)
	} else if verbose {
		sink = progress.NewConsoleSink(os.Stderr)
	}
	dispatcher := progress.NewDispatcher(sink, 256)

	orch := pipeline.NewOrchestrator(gateway, nil, cfg.Pipeline, dispatcher)
	if cfg.Output.Verbose {
		orch.SetLogger(func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		})
	}

	return &extractor{
		parser:       parse.NewParser(cfg.HTTP, store, cfg.Cache.TTL),
		orchestrator: orch,
		dispatcher:   dispatcher,
	}, nil
}

// Extract parses the sources and runs the pipeline over the corpus.
func (e *extractor) Extract(ctx context.Context, name string, sources []string) (*model.RequirementSet, error) {
	parsed, err := e.parser.Parse(ctx, sources)
	if err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	for _, failure := range parsed.Failed {
		fmt.Fprintf(os.Stderr, "Warning: skipping unreadable source %s\n", failure)
	}

	failed := make([]string, 0, len(parsed.Failed))
	for _, failure := range parsed.Failed {
		failed = append(failed, failure.Source)
	}

	return e.orchestrator.Run(ctx, pipeline.Input{
		Name:            name,
		Documents:       parsed.Documents,
		FailedDocuments: failed,
	})
}

// Close flushes pending progress events.
func (e *extractor) Close() {
	e.dispatcher.Close()
}

// writeReports renders the set to the configured output paths.
func writeReports(set *model.RequirementSet, cfg *model.Config) error {
	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)

	if outJSON != "" {
		data, err := renderer.RenderJSON(set)
		if err != nil {
			return err
		}
		if err := os.WriteFile(outJSON, []byte(data), 0644); err != nil {
			return fmt.Errorf("write %s: %w", outJSON, err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", outJSON)
		}
	}

	if outMD != "" {
		if err := os.WriteFile(outMD, []byte(renderer.RenderMarkdown(set)), 0644); err != nil {
			return fmt.Errorf("write %s: %w", outMD, err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", outMD)
		}
	}
	return nil
}
