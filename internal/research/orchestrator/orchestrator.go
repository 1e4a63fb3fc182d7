// Package orchestrator implements the judge-gated iterative research loop
// (spec §4.5): search, ingest, judge, and either loop again with the
// Judge's proposed follow-up query or move to synthesis, emitting a stream
// of progress Events throughout. Grounded on the teacher's streaming
// orchestration style in pkg/mcp handlers (a buffered channel of typed
// events fed from a background goroutine) and on the termination-decision
// handling shown in the retrieved corpus's deep-research SSE handler
// (explicit phase events, graceful timeout-to-fallback instead of a raised
// error).
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/litagent/research-core/internal/domain"
	"github.com/litagent/research-core/internal/research/judge"
	"github.com/litagent/research-core/internal/research/search"
	"github.com/litagent/research-core/internal/research/store"
	"github.com/litagent/research-core/internal/research/synth"
)

// Config bounds one orchestrated research run; it mirrors the relevant
// fields of domain.ResearchConfig so the Orchestrator does not depend on
// the whole configuration surface.
type Config struct {
	MaxIterations              int
	MaxResultsPerProvider      int
	SearchTimeout              time.Duration
	OverallTimeout             time.Duration
	EmergencyEvidenceThreshold int
	MaxEvidenceSentToJudge     int
}

// Orchestrator drives the search -> ingest -> judge -> loop-or-synthesize
// cycle for a single research question.
type Orchestrator struct {
	dispatcher *search.Dispatcher
	judge      *judge.Judge
	synth      *synth.Synthesizer
	embedder   interface {
		Embed(ctx context.Context, text string) ([]float32, error)
	}
	similarityThreshold float64
	cfg                 Config
	log                 *logrus.Logger
}

// New constructs an Orchestrator. embedder may be nil (semantic dedup and
// ranking degrade to relevance-only, per the Evidence Store's contract).
func New(dispatcher *search.Dispatcher, j *judge.Judge, s *synth.Synthesizer, embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}, similarityThreshold float64, cfg Config, log *logrus.Logger) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 5
	}
	if cfg.EmergencyEvidenceThreshold <= 0 {
		cfg.EmergencyEvidenceThreshold = 10
	}
	if cfg.MaxEvidenceSentToJudge <= 0 {
		cfg.MaxEvidenceSentToJudge = 30
	}
	return &Orchestrator{
		dispatcher:          dispatcher,
		judge:               j,
		synth:               s,
		embedder:            embedder,
		similarityThreshold: similarityThreshold,
		cfg:                 cfg,
		log:                 log,
	}
}

// RunOptions customizes a single Run call, overriding the Orchestrator's
// construction-time Config where set.
type RunOptions struct {
	// MaxIterations, if > 0, overrides cfg.MaxIterations for this run only
	// (spec §5's documented per-call research_question override).
	MaxIterations int
}

// Run drives the full loop for question and returns a channel of progress
// Events, terminating with exactly one EventComplete or EventError. The
// channel is closed once the terminal event has been sent. Run returns
// immediately; the loop runs in a background goroutine bound to ctx.
func (o *Orchestrator) Run(ctx context.Context, question string) <-chan domain.Event {
	return o.RunWithOptions(ctx, question, RunOptions{})
}

// RunWithOptions is Run with a per-call RunOptions override.
func (o *Orchestrator) RunWithOptions(ctx context.Context, question string, opts RunOptions) <-chan domain.Event {
	events := make(chan domain.Event, 32)
	go o.run(ctx, question, opts, events)
	return events
}

func (o *Orchestrator) run(ctx context.Context, question string, opts RunOptions, events chan<- domain.Event) {
	defer close(events)

	overall := o.cfg.OverallTimeout
	if overall <= 0 {
		overall = 5 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, overall)
	defer cancel()

	runID := uuid.NewString()

	emit := func(t domain.EventType, iteration int, message string, data map[string]interface{}) {
		select {
		case events <- domain.Event{RunID: runID, Type: t, Iteration: iteration, Message: message, Data: data, Timestamp: time.Now()}:
		case <-runCtx.Done():
		}
	}

	maxIterations := o.cfg.MaxIterations
	if opts.MaxIterations > 0 {
		maxIterations = opts.MaxIterations
	}

	emit(domain.EventStarted, 0, "research started", map[string]interface{}{"question": question, "max_iterations": maxIterations})

	st := store.New(question, o.embedder, o.similarityThreshold, o.log)

	query := question
	iteration := 0
	budgetExhausted := false
	deadlineHit := false

	for {
		if runCtx.Err() != nil {
			deadlineHit = true
			break
		}

		iteration = st.IncrementIteration()
		emit(domain.EventSearching, iteration, "searching providers", map[string]interface{}{"query": query})

		searchCtx := runCtx
		searchCancel := func() {}
		if o.cfg.SearchTimeout > 0 {
			searchCtx, searchCancel = context.WithTimeout(runCtx, o.cfg.SearchTimeout)
		}

		batch := o.dispatcher.Dispatch(searchCtx, query, o.cfg.MaxResultsPerProvider)
		searchCancel()
		added := st.Ingest(batch.Evidence)

		emit(domain.EventSearchComplete, iteration, "search round complete", map[string]interface{}{
			"found":            batch.TotalFound,
			"added":            len(added),
			"sources_searched": batch.SourcesSearched,
			"errors":           batch.Errors,
		})

		if runCtx.Err() != nil {
			deadlineHit = true
			break
		}

		emit(domain.EventJudging, iteration, "assessing evidence sufficiency", nil)
		assessment := o.judge.Assess(runCtx, question, st.TopRelevant(o.cfg.MaxEvidenceSentToJudge))

		emit(domain.EventJudgeComplete, iteration, "judge assessment complete", map[string]interface{}{
			"sufficient":     assessment.Sufficient,
			"recommendation": assessment.Recommendation,
			"forced":         assessment.Forced,
			"confidence":     assessment.Confidence,
		})

		decision := decide(assessment, iteration, maxIterations, st.Len(), o.cfg.EmergencyEvidenceThreshold)
		switch decision {
		case decisionSynthesize:
			goto synthesize
		case decisionBudgetExhausted:
			budgetExhausted = true
			goto synthesize
		case decisionContinue:
			if len(assessment.NextQueries) > 0 {
				query = assessment.NextQueries[0]
			}
			emit(domain.EventLooping, iteration, "continuing search", map[string]interface{}{"next_query": query})
			continue
		}
	}

synthesize:
	emit(domain.EventSynthesizing, iteration, "synthesizing report", nil)

	input := synth.Input{
		Question:         question,
		Evidence:         st.TopRelevant(o.cfg.MaxEvidenceSentToJudge),
		SourcesSearched:  distinctSources(st.All()),
		SearchIterations: iteration,
		BudgetExhausted:  budgetExhausted,
	}

	var report domain.Report
	if deadlineHit || budgetExhausted {
		// spec §4.5: any non-Judge-approved break (blown overall deadline,
		// iteration budget exhausted, or the emergency-evidence case) goes
		// through fallback synthesis rather than a full LLM write-up.
		report = o.synth.Fallback(input)
	} else {
		report = o.synth.Synthesize(runCtx, input)
	}

	// The terminal event is still sent after runCtx's overall deadline has
	// passed; only cancellation of the caller's ctx abandons it.
	select {
	case events <- domain.Event{RunID: runID, Type: domain.EventComplete, Iteration: iteration, Message: "research complete", Data: map[string]interface{}{"report": report}, Timestamp: time.Now()}:
	case <-ctx.Done():
	}
}

type decision int

const (
	decisionContinue decision = iota
	decisionSynthesize
	decisionBudgetExhausted
)

// decide implements the termination decision table of spec §4.5.
// Priority 0: a forced assessment always synthesizes immediately,
// regardless of iteration count or evidence volume.
func decide(a domain.JudgeAssessment, iteration, maxIterations, evidenceCount, emergencyThreshold int) decision {
	if a.Forced {
		return decisionSynthesize
	}
	if a.Sufficient && a.Recommendation == domain.RecommendationSynthesize && (a.MechanismScore+a.ClinicalScore >= 10) {
		return decisionSynthesize
	}
	if iteration >= maxIterations {
		// Both the emergency-evidence case (evidenceCount >= emergencyThreshold)
		// and the plain exhaustion case are non-Judge-approved breaks, so
		// both take the fallback-synthesis path (spec §4.5 decision table
		// rows 3-4): only a Judge approval (above) ever reaches normal
		// Synthesize.
		return decisionBudgetExhausted
	}
	return decisionContinue
}

func distinctSources(evidence []domain.Evidence) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range evidence {
		s := string(e.Citation.Source)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
