package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/exigo-ai/exigo/internal/agent"
	"github.com/exigo-ai/exigo/internal/control"
	"github.com/exigo-ai/exigo/internal/issues"
	"github.com/exigo-ai/exigo/internal/metrics"
	"github.com/exigo-ai/exigo/internal/model"
	"github.com/exigo-ai/exigo/internal/progress"
	"github.com/exigo-ai/exigo/internal/validate"
)

// Reviewer is the optional collaborator consulted after verification,
// before the iteration verdict. Implementations may be another agent
// or a human gate.
type Reviewer interface {
	Review(ctx context.Context, requirements []model.BusinessRequirement, openIssues []model.VerificationIssue, documents map[string]string) ([]model.VerificationIssue, error)
}

// Input is one extraction request.
type Input struct {
	Name        string
	Description string
	// Documents maps source document name to its plain text.
	Documents map[string]string
	// FailedDocuments lists sources that could not be parsed upstream.
	FailedDocuments []string
}

// Orchestrator drives a requirement set through the staged
// draft-verify-fix loop until it is accepted, rejected or failed.
type Orchestrator struct {
	gateway  agent.Gateway
	reviewer Reviewer
	tracker  *issues.Tracker
	calc     *metrics.Calculator
	machine  Machine
	sink     progress.Sink
	cfg      model.PipelineConfig
	verbose  bool
	logf     func(format string, args ...interface{})
}

// NewOrchestrator creates an orchestrator. reviewer may be nil; it is
// consulted only when the review stage is enabled in the configuration.
func NewOrchestrator(gateway agent.Gateway, reviewer Reviewer, cfg model.PipelineConfig, sink progress.Sink) *Orchestrator {
	cfg.Normalize()
	if sink == nil {
		sink = progress.NopSink{}
	}
	return &Orchestrator{
		gateway:  gateway,
		reviewer: reviewer,
		tracker:  issues.NewTracker(),
		calc:     metrics.NewCalculator(),
		machine:  NewMachine(cfg.EnableReviewStage && reviewer != nil),
		sink:     sink,
		cfg:      cfg,
		logf:     func(string, ...interface{}) {},
	}
}

// SetLogger installs a verbose logging function (stderr in the CLI).
func (o *Orchestrator) SetLogger(logf func(format string, args ...interface{})) {
	if logf != nil {
		o.logf = logf
		o.verbose = true
	}
}

// run carries the mutable state of a single Run call.
type run struct {
	set     *model.RequirementSet
	state   State
	retryer *agent.Retryer
	ctrl    *control.Controller
}

// Run executes the full pipeline for one input and returns the final
// requirement set. The set is returned even on failure so callers can
// inspect the last valid snapshot; the error then describes the cause.
func (o *Orchestrator) Run(ctx context.Context, input Input) (*model.RequirementSet, error) {
	names := make([]string, 0, len(input.Documents))
	for name := range input.Documents {
		names = append(names, name)
	}
	set := model.NewRequirementSet(input.Name, input.Description, names)
	set.FailedDocuments = append(set.FailedDocuments, input.FailedDocuments...)

	if len(input.Documents) == 0 {
		set.Status = model.StatusFailed
		set.Touch()
		return set, fmt.Errorf("no readable source documents")
	}

	r := &run{
		set:     set,
		state:   StateDrafting,
		retryer: agent.NewRetryer(o.cfg.MaxRetries),
		ctrl:    control.NewController(o.cfg),
	}

	err := o.loop(ctx, r, input.Documents)
	set.Touch()
	if err != nil {
		o.emit(progress.Event{Type: progress.TypeError, RunID: set.ID, Message: err.Error()})
		return set, err
	}
	o.emit(progress.Event{
		Type:    progress.TypeComplete,
		RunID:   set.ID,
		Message: fmt.Sprintf("%s after %d iteration(s)", set.Status, set.IterationCount),
	})
	return set, nil
}

func (o *Orchestrator) loop(ctx context.Context, r *run, documents map[string]string) error {
	for !r.state.Terminal() {
		// Cancellation is honored at stage boundaries only, so a
		// stage never observes a half-applied snapshot.
		if err := ctx.Err(); err != nil {
			o.fail(r)
			return err
		}

		switch r.state {
		case StateDrafting:
			o.step(r, model.StageDraft, "drafting initial requirements")
			result, err := o.draft(ctx, r, documents)
			if err != nil {
				return o.failWith(r, model.StageDraft, err)
			}
			o.applyDraft(r, result, documents)
			o.advance(r, evAdvance)

		case StateSelfImproving:
			o.step(r, model.StageRefine, "refining draft")
			result, err := o.refine(ctx, r, documents)
			if err != nil {
				return o.failWith(r, model.StageRefine, err)
			}
			o.applyDraft(r, result, documents)
			o.advance(r, evAdvance)

		case StateVerifying:
			r.set.IterationCount++
			o.step(r, model.StageVerify, fmt.Sprintf("verifying iteration %d", r.set.IterationCount))
			report, err := o.verify(ctx, r, documents)
			if err != nil {
				return o.failWith(r, model.StageVerify, err)
			}
			o.applyVerify(r, report)
			o.advance(r, evAdvance)

		case StateReviewing:
			o.step(r, model.StageReview, "reviewing findings")
			extra, err := o.review(ctx, r, documents)
			if err != nil {
				return o.failWith(r, model.StageReview, err)
			}
			o.applyReview(r, extra)
			o.advance(r, evAdvance)

		case StateDeciding:
			o.step(r, model.StageDecision, "deciding")
			r.set.DropUncitedHypotheses()
			o.decide(r)

		case StateFixing:
			// Reached only on a Continue verdict, so fix output is
			// always re-verified before it can be accepted.
			o.step(r, model.StageFix, "resolving open issues")
			if len(r.set.Issues) > 0 {
				fixed, err := o.resolve(ctx, r, documents)
				if err != nil {
					return o.failWith(r, model.StageFix, err)
				}
				o.applyFix(r, fixed, documents)
			}
			o.advance(r, evAdvance)
		}
	}

	switch r.state {
	case StateAccepted:
		r.set.Status = model.StatusAccepted
	case StateRejected:
		r.set.Status = model.StatusRejected
	case StateFailed:
		r.set.Status = model.StatusFailed
	}
	return nil
}

// decide consults the iteration controller and applies its verdict.
func (o *Orchestrator) decide(r *run) {
	completion := 0.0
	if r.set.Metrics != nil {
		completion = r.set.Metrics.CompletionRate
	}
	hasCritical := false
	for _, issue := range r.set.Issues {
		if issue.ErrorType.IsCritical() {
			hasCritical = true
			break
		}
	}

	switch r.ctrl.Observe(r.set.IterationCount, hasCritical, completion) {
	case control.Accept:
		o.logf("accepted after %d iteration(s), clean streak %d", r.set.IterationCount, r.ctrl.CleanStreak())
		o.advance(r, evAccept)
	case control.Reject:
		o.logf("rejected: iteration budget of %d exhausted", r.ctrl.MaxIterations())
		o.advance(r, evReject)
	default:
		o.advance(r, evContinue)
	}
}

func (o *Orchestrator) draft(ctx context.Context, r *run, documents map[string]string) (*agent.DraftResult, error) {
	var result *agent.DraftResult
	err := r.retryer.Do(ctx, func() error {
		stageCtx, cancel := o.stageContext(ctx, model.StageDraft)
		defer cancel()
		var err error
		result, err = o.gateway.DraftInitial(stageCtx, documents)
		return err
	})
	return result, err
}

func (o *Orchestrator) refine(ctx context.Context, r *run, documents map[string]string) (*agent.DraftResult, error) {
	var result *agent.DraftResult
	err := r.retryer.Do(ctx, func() error {
		stageCtx, cancel := o.stageContext(ctx, model.StageRefine)
		defer cancel()
		var err error
		result, err = o.gateway.Refine(stageCtx, r.set.ActiveRequirements(), r.set.Hypotheses, documents)
		return err
	})
	return result, err
}

func (o *Orchestrator) verify(ctx context.Context, r *run, documents map[string]string) (*agent.VerifyReport, error) {
	var report *agent.VerifyReport
	err := r.retryer.Do(ctx, func() error {
		stageCtx, cancel := o.stageContext(ctx, model.StageVerify)
		defer cancel()
		var err error
		report, err = o.gateway.Verify(stageCtx, r.set.ActiveRequirements(), documents)
		return err
	})
	return report, err
}

func (o *Orchestrator) review(ctx context.Context, r *run, documents map[string]string) ([]model.VerificationIssue, error) {
	var extra []model.VerificationIssue
	err := r.retryer.Do(ctx, func() error {
		stageCtx, cancel := o.stageContext(ctx, model.StageReview)
		defer cancel()
		var err error
		extra, err = o.reviewer.Review(stageCtx, r.set.ActiveRequirements(), r.set.Issues, documents)
		return err
	})
	return extra, err
}

func (o *Orchestrator) resolve(ctx context.Context, r *run, documents map[string]string) ([]model.BusinessRequirement, error) {
	var fixed []model.BusinessRequirement
	err := r.retryer.Do(ctx, func() error {
		stageCtx, cancel := o.stageContext(ctx, model.StageFix)
		defer cancel()
		var err error
		fixed, err = o.gateway.Resolve(stageCtx, r.set.ActiveRequirements(), r.set.Issues, documents)
		return err
	})
	return fixed, err
}

// applyDraft validates and installs agent output from the draft and
// refine stages. Invalid items are excluded and surfaced as set-level
// issues rather than dropped silently; installation goes through the
// set's lifecycle rule so refinement cannot delete a requirement.
func (o *Orchestrator) applyDraft(r *run, result *agent.DraftResult, documents map[string]string) {
	checked := validate.Requirements(result.Requirements, r.set.SourceDocuments)
	r.set.InstallRequirements(checked.Requirements)
	r.set.Hypotheses = result.Hypotheses
	o.recordSetIssues(r, checked.Issues)
	if result.Truncated {
		o.recordTruncation(r)
	}
	r.set.Touch()
	o.logf("stage %d: %d requirement(s), %d hypothesis(es), %d excluded item(s)",
		r.set.Stage, len(checked.Requirements), len(result.Hypotheses), len(checked.Issues))
}

// applyVerify reconciles the fresh verification report against open
// issues, archiving the ones that no longer reproduce.
func (o *Orchestrator) applyVerify(r *run, report *agent.VerifyReport) {
	kept, rejected := validate.Issues(report.Issues, r.set.RequirementIDs())
	open, resolved, hasCritical := o.tracker.Reconcile(r.set.Issues, append(kept, rejected...))
	r.set.Issues = open
	r.set.ResolvedIssues = append(r.set.ResolvedIssues, resolved...)
	if report.Truncated {
		o.recordTruncation(r)
	}
	m := o.calc.Compute(r.set, r.set.Issues, report.RecallHint)
	r.set.Metrics = &m
	r.set.Touch()
	o.logf("stage %d: %d open issue(s), %d resolved, critical=%v, completion=%.2f",
		r.set.Stage, len(open), len(resolved), hasCritical, m.CompletionRate)
}

// applyReview merges reviewer findings into the open issue list via the
// same reconciliation path so threading stays consistent.
func (o *Orchestrator) applyReview(r *run, extra []model.VerificationIssue) {
	if len(extra) == 0 {
		return
	}
	kept, rejected := validate.Issues(extra, r.set.RequirementIDs())
	merged := append(append([]model.VerificationIssue{}, r.set.Issues...), kept...)
	merged = append(merged, rejected...)
	open, _, _ := o.tracker.Reconcile(r.set.Issues, merged)
	r.set.Issues = open
	r.set.Touch()
	o.logf("stage %d: reviewer added %d finding(s)", r.set.Stage, len(extra))
}

// applyFix installs the corrected requirement list from the fix stage,
// under the same lifecycle rule as refinement.
func (o *Orchestrator) applyFix(r *run, fixed []model.BusinessRequirement, documents map[string]string) {
	checked := validate.Requirements(fixed, r.set.SourceDocuments)
	r.set.InstallRequirements(checked.Requirements)
	o.recordSetIssues(r, checked.Issues)
	r.set.Touch()
	o.logf("stage %d: %d requirement(s) after fixes", r.set.Stage, len(r.set.ActiveRequirements()))
}

func (o *Orchestrator) recordSetIssues(r *run, found []model.VerificationIssue) {
	if len(found) == 0 {
		return
	}
	r.set.Issues = append(r.set.Issues, found...)
}

func (o *Orchestrator) recordTruncation(r *run) {
	const note = "source documents exceeded the token budget and were truncated before agent calls"
	for _, issue := range r.set.Issues {
		if issue.SetLevel() && issue.Description == note {
			return
		}
	}
	r.set.Issues = append(r.set.Issues, model.NewSetLevelIssue(model.ErrorMissingMetadata, note))
}

// fail marks the run failed while keeping the last valid snapshot.
func (o *Orchestrator) fail(r *run) {
	r.state = StateFailed
	r.set.Status = model.StatusFailed
	r.set.Touch()
}

func (o *Orchestrator) failWith(r *run, stage int, err error) error {
	o.fail(r)
	if agentErr, ok := agent.IsAgentError(err); ok {
		return fmt.Errorf("stage %d: agent %s error: %w", stage, agentErr.Kind, err)
	}
	return fmt.Errorf("stage %d: %w", stage, err)
}

func (o *Orchestrator) advance(r *run, ev event) {
	next, err := o.machine.Next(r.state, ev)
	if err != nil {
		// The loop only emits events its own table accepts, so this
		// indicates a programming error.
		panic(fmt.Sprintf("pipeline: %v", err))
	}
	r.state = next
}

// step records entering a stage and publishes progress.
func (o *Orchestrator) step(r *run, stage int, message string) {
	r.set.Stage = stage
	r.set.Status = model.StatusInProgress
	o.emit(progress.Event{
		Type:      progress.TypeStep,
		RunID:     r.set.ID,
		Stage:     stage,
		Iteration: r.set.IterationCount,
		Message:   message,
	})
	o.emit(progress.Event{
		Type:      progress.TypeProgress,
		RunID:     r.set.ID,
		Stage:     stage,
		Iteration: r.set.IterationCount,
		Percent:   o.percent(r, stage),
		Message:   message,
	})
}

// percent is a coarse completion estimate: the first two stages cover
// the first fifth, then each iteration advances through the remainder.
func (o *Orchestrator) percent(r *run, stage int) float64 {
	if stage <= model.StageRefine {
		return float64(stage) * 10
	}
	iterSpan := 80.0 / float64(o.ctrlMax())
	done := float64(r.set.IterationCount-1) * iterSpan
	within := stageOrdinal(stage) / 4.0 * iterSpan
	p := 20 + done + within
	if p > 99 {
		p = 99
	}
	return p
}

// stageOrdinal orders the loop stages as executed: the verdict comes
// before fixing, so stage ids are not monotonic within an iteration.
func stageOrdinal(stage int) float64 {
	switch stage {
	case model.StageVerify:
		return 0
	case model.StageReview:
		return 1
	case model.StageDecision:
		return 2
	case model.StageFix:
		return 3
	}
	return 0
}

func (o *Orchestrator) ctrlMax() int {
	if o.cfg.MaxIterations > 0 {
		return o.cfg.MaxIterations
	}
	return 1
}

func (o *Orchestrator) emit(event progress.Event) {
	event.Timestamp = time.Now()
	o.sink.Emit(event)
}

func (o *Orchestrator) stageContext(ctx context.Context, stage int) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.cfg.StageTimeout(stage))
}
