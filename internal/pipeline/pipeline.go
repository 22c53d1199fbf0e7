package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/qos-advisor/advisor/internal/backend"
	"github.com/qos-advisor/advisor/internal/config"
	"github.com/qos-advisor/advisor/internal/llmclient"
	"github.com/qos-advisor/advisor/internal/masking"
	"github.com/qos-advisor/advisor/internal/state"
)

// Pipeline wires the stage instances around one shared backend and LLM
// client and sequences them per request.
type Pipeline struct {
	Backend *backend.Client
	LLM     *llmclient.Client
	Logger  *slog.Logger

	// StabilityWindow and StabilityResolution override the
	// StabilityAnalyzer's query range/step when non-zero; set these before
	// the first Run call, not concurrently with one.
	StabilityWindow     time.Duration
	StabilityResolution time.Duration

	contextLoader *ContextLoader
	intent        *IntentClassifier
	metrics       *MetricsEngine
	taskProfiler  *TaskProfiler
	evaluator     *ProfileEvaluator
	constraints   *ConstraintExtractor
	filter        *CandidateFilter
	stability     *StabilityAnalyzer
	advisor       *AllocationAdvisor
	reporter      *Reporter
}

// New builds a Pipeline from a connected backend client and LLM client.
func New(backendClient *backend.Client, llmClient *llmclient.Client, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	masker := masking.NewService()
	return &Pipeline{
		Backend:       backendClient,
		LLM:           llmClient,
		Logger:        logger,
		contextLoader: &ContextLoader{Client: backendClient},
		intent:        &IntentClassifier{LLM: llmClient},
		metrics:       &MetricsEngine{Client: backendClient, Logger: logger},
		taskProfiler:  &TaskProfiler{LLM: llmClient},
		evaluator:     &ProfileEvaluator{},
		constraints:   &ConstraintExtractor{LLM: llmClient, Masking: masker},
		filter:        &CandidateFilter{},
		stability:     &StabilityAnalyzer{Client: backendClient, Logger: logger},
		advisor:       &AllocationAdvisor{LLM: llmClient},
		reporter:      &Reporter{LLM: llmClient, Masking: masker},
	}
}

// Result is the outcome of one full pipeline run: exactly one of Report or
// Recommendation is populated, depending on the routed intent.
type Result struct {
	Intent         state.Intent
	Report         string
	Recommendation *Recommendation
}

// Run executes the full staged dataflow for one user request.
func (p *Pipeline) Run(ctx context.Context, userMessage string) (*Result, error) {
	targets, kb, sane, err := p.contextLoader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !sane {
		p.Logger.Warn("knowledge base sanity check failed: no profiles defined")
	}

	st := state.NewPipelineState(userMessage, targets)
	st.SanityOK = sane

	p.intent.Classify(ctx, st, targets)

	snap, report := p.metrics.Run(ctx, kb, st.TargetFilter)
	st.Snapshot = snap
	p.Logger.Debug("metrics engine run complete",
		"elapsed", report.Elapsed, "metrics", report.MetricCount,
		"nodes", report.NodeCount, "errors", report.ErrorCount)

	if st.Intent == state.IntentAllocation {
		profiles, reasoning, ok := p.taskProfiler.Profile(ctx, userMessage, kb)
		if ok {
			st.TargetProfiles = profiles
			st.ClassificationReason = reasoning
		}
	}

	evalSet := SelectProfiles(kb, st.TargetProfiles)
	p.evaluator.Evaluate(kb, st.Snapshot, evalSet, st.ProfileResultAcc)

	switch Decide(st) {
	case RouteFilter:
		return p.runAllocation(ctx, kb, st, userMessage)
	default:
		text, err := p.reporter.Report(ctx, kb, st)
		if err != nil {
			return nil, err
		}
		return &Result{Intent: st.Intent, Report: text}, nil
	}
}

func (p *Pipeline) runAllocation(ctx context.Context, kb config.KnowledgeBase, st *state.PipelineState, userMessage string) (*Result, error) {
	st.ExplicitConstraints = p.constraints.Extract(ctx, userMessage, kb)
	st.FinalCandidates = p.filter.Filter(st, st.TargetProfiles, st.ExplicitConstraints)

	profiles := resolveProfiles(kb, st.TargetProfiles)
	metrics := scoringMetricUnion(profiles)
	if len(metrics) == 0 {
		metrics = []string{defaultWeightMetric}
	}

	if len(st.FinalCandidates) > 0 {
		p.stability.Window = p.StabilityWindow
		p.stability.Resolution = p.StabilityResolution
		st.StabilityReport = p.stability.Analyze(ctx, kb, profiles, metrics, st.FinalCandidates, st.Snapshot)
	}

	rec := p.advisor.Advise(ctx, kb, profiles, st.FinalCandidates, st.Snapshot, st.StabilityReport, st.ClassificationReason)
	return &Result{Intent: st.Intent, Recommendation: &rec}, nil
}

func resolveProfiles(kb config.KnowledgeBase, names []string) []config.Profile {
	out := make([]config.Profile, 0, len(names))
	for _, name := range names {
		if p, ok := kb.Profiles[name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// scoringMetricUnion is the union of scoring-weight metric names across
// profiles, so the stability query covers every metric any target profile scores on.
func scoringMetricUnion(profiles []config.Profile) []string {
	seen := make(map[string]struct{})
	for _, p := range profiles {
		for metric := range p.ScoringWeights {
			seen[metric] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	return out
}
