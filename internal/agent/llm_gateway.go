package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/time/rate"

	"github.com/exigo-ai/exigo/internal/model"
)

// LLMGateway implements Gateway over a ChatClient. One chat client backs
// both roles; the role is selected by the system prompt of each call. The
// gateway holds no per-run state, so calls are idempotent-safe to retry.
type LLMGateway struct {
	client         ChatClient
	analyzerPrompt string
	verifierPrompt string
	temperature    float64
	maxTokens      int
	docBudget      int
	limiter        *rate.Limiter
	counter        *TokenCounter
}

// NewLLMGateway builds a gateway from the agent configuration
func NewLLMGateway(cfg model.AgentConfig) (*LLMGateway, error) {
	client, err := NewChatClient(ConfigFromModel(cfg))
	if err != nil {
		return nil, fmt.Errorf("create chat client: %w", err)
	}
	return NewLLMGatewayWithClient(client, cfg)
}

// NewLLMGatewayWithClient builds a gateway around an existing chat
// client (used by tests and callers with custom transports).
func NewLLMGatewayWithClient(client ChatClient, cfg model.AgentConfig) (*LLMGateway, error) {
	analyzerPrompt, err := resolvePrompt(cfg.AnalyzerPrompt, cfg.AnalyzerPromptFile, defaultAnalyzerPrompt)
	if err != nil {
		return nil, fmt.Errorf("analyzer prompt: %w", err)
	}
	verifierPrompt, err := resolvePrompt(cfg.VerifierPrompt, cfg.VerifierPromptFile, defaultVerifierPrompt)
	if err != nil {
		return nil, fmt.Errorf("verifier prompt: %w", err)
	}

	counter, err := NewTokenCounter(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("token counter: %w", err)
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	budget := cfg.DocumentTokenBudget
	if budget <= 0 {
		budget = 80000
	}

	return &LLMGateway{
		client:         client,
		analyzerPrompt: analyzerPrompt,
		verifierPrompt: verifierPrompt,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		docBudget:      budget,
		limiter:        rate.NewLimiter(rate.Limit(rpm/60.0), 1),
		counter:        counter,
	}, nil
}

// DraftInitial implements Gateway
func (g *LLMGateway) DraftInitial(ctx context.Context, documents map[string]string) (*DraftResult, error) {
	const op = "draft"
	docs, truncated := g.documentsSection(documents)

	content, err := g.complete(ctx, op, g.analyzerPrompt, buildDraftPrompt(docs))
	if err != nil {
		return nil, err
	}

	result, err := decodeDraft(op, content)
	if err != nil {
		return nil, err
	}
	result.Truncated = truncated
	return result, nil
}

// Refine implements Gateway
func (g *LLMGateway) Refine(ctx context.Context, requirements []model.BusinessRequirement, hypotheses []model.Hypothesis, documents map[string]string) (*DraftResult, error) {
	const op = "refine"
	docs, truncated := g.documentsSection(documents)

	content, err := g.complete(ctx, op, g.analyzerPrompt, buildRefinePrompt(requirements, hypotheses, docs))
	if err != nil {
		return nil, err
	}

	result, err := decodeDraft(op, content)
	if err != nil {
		return nil, err
	}
	result.Truncated = truncated
	return result, nil
}

// Verify implements Gateway
func (g *LLMGateway) Verify(ctx context.Context, requirements []model.BusinessRequirement, documents map[string]string) (*VerifyReport, error) {
	const op = "verify"
	docs, truncated := g.documentsSection(documents)

	content, err := g.complete(ctx, op, g.verifierPrompt, buildVerifyPrompt(requirements, docs))
	if err != nil {
		return nil, err
	}

	report, err := decodeVerify(op, content)
	if err != nil {
		return nil, err
	}
	report.Truncated = truncated
	return report, nil
}

// Resolve implements Gateway
func (g *LLMGateway) Resolve(ctx context.Context, requirements []model.BusinessRequirement, issues []model.VerificationIssue, documents map[string]string) ([]model.BusinessRequirement, error) {
	const op = "resolve"
	docs, _ := g.documentsSection(documents)

	content, err := g.complete(ctx, op, g.analyzerPrompt, buildResolvePrompt(requirements, issues, docs))
	if err != nil {
		return nil, err
	}

	return decodeResolve(op, content)
}

// complete runs one rate-limited chat exchange and classifies failures
// into the agent error taxonomy.
func (g *LLMGateway) complete(ctx context.Context, op, system, user string) (string, error) {
	// A stage deadline expiring during the wait must surface as a
	// timeout-kind error so the retry policy applies to it.
	if err := g.limiter.Wait(ctx); err != nil {
		return "", classify(op, err)
	}

	resp, err := g.client.Complete(ctx, ChatRequest{
		System:      system,
		User:        user,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		ForceJSON:   true,
	})
	if err != nil {
		return "", classify(op, err)
	}
	if resp.Content == "" {
		return "", &Error{Kind: ErrMalformedOutput, Op: op, Err: fmt.Errorf("empty response from %s", g.client.Name())}
	}
	return resp.Content, nil
}

// documentsSection renders the corpus within the token budget. When the
// corpus overflows, each document gets an equal share of the budget and
// overlong documents are cut at a token boundary.
func (g *LLMGateway) documentsSection(documents map[string]string) (string, bool) {
	full := formatDocuments(documents)
	if g.counter.Count(full) <= g.docBudget {
		return full, false
	}

	names := make([]string, 0, len(documents))
	for name := range documents {
		names = append(names, name)
	}
	sort.Strings(names)

	perDoc := g.docBudget / max(len(names), 1)
	var b strings.Builder
	b.WriteString("Source documents:\n")
	for _, name := range names {
		text, cut := g.counter.Truncate(documents[name], perDoc)
		fmt.Fprintf(&b, "\n--- Document: %s ---\n%s\n", name, text)
		if cut {
			fmt.Fprintf(&b, "[... document truncated ...]\n")
		}
	}
	return b.String(), true
}
