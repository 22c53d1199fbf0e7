package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/qos-advisor/advisor/internal/config"
	"github.com/qos-advisor/advisor/internal/humanize"
	"github.com/qos-advisor/advisor/internal/llmclient"
	"github.com/qos-advisor/advisor/internal/state"
)

// Strategy is the closed enumeration of advisory postures selected after
// the rescue scan.
type Strategy string

const (
	StrategyClearWinner      Strategy = "CLEAR_WINNER"
	StrategyConsiderRunnerUp Strategy = "CONSIDER_RUNNER_UP"
	StrategyProposeSafeHaven Strategy = "PROPOSE_SAFE_HAVEN"
	StrategyAllRisky         Strategy = "ALL_RISKY"
)

// defaultWeightMetric is used when target_profiles is empty.
const defaultWeightMetric = "cpu_usage_pct"

// mixedWeight is one metric's resolved weight after max-weight-wins
// mixing across target profiles.
type mixedWeight struct {
	Direction config.Direction
	Weight    float64
}

// Ranked is one candidate's score, risk list, and humanized metric view.
type Ranked struct {
	Node    string
	Score   float64
	Risks   []string
	Metrics map[string]string // metric -> humanized value
}

// Recommendation is the AllocationAdvisor's fully-computed, pre-rendered
// output. The LLM only explains it — the ranking and strategy are fixed.
type Recommendation struct {
	Strategy  Strategy
	Ranked    []Ranked
	Shown     []string // node names to present, in display order
	Winner    string
	RunnerUp  string // "" if none
	SafeHaven string // "" if none
	Empty     bool
	Advice    string
}

// AllocationAdvisor computes weighted normalized scores, ranks candidates,
// runs the rescue scan, and assembles the LLM explanation prompt.
type AllocationAdvisor struct {
	LLM *llmclient.Client
}

// Advise runs the full scoring and strategy-selection algorithm. candidates must already be the
// filtered final_candidates list. classificationReason is the TaskProfiler's
// rationale for the selected target profiles (may be empty) and is threaded
// into the advice prompt so the rendered text can explain why a profile was
// selected, not just which one.
func (a *AllocationAdvisor) Advise(ctx context.Context, kb config.KnowledgeBase, profiles []config.Profile, candidates []string, snap state.Snapshot, stability state.StabilityReport, classificationReason string) Recommendation {
	if len(candidates) == 0 {
		return Recommendation{Empty: true, Advice: "No suitable node found: no candidate satisfies the target profile's conditions and constraints."}
	}

	weights := mixWeights(profiles)
	ranked := scoreCandidates(candidates, weights, snap, stability)

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Node < ranked[j].Node
	})

	for i := range ranked {
		ranked[i].Metrics = humanizeMetrics(kb, weights, snap, ranked[i].Node)
	}

	winner := ranked[0]
	var runnerUp *Ranked
	if len(ranked) > 1 {
		runnerUp = &ranked[1]
	}
	var safeHaven *Ranked
	for i := range ranked {
		if len(ranked[i].Risks) == 0 {
			safeHaven = &ranked[i]
			break
		}
	}

	strategy, shown := selectStrategy(winner, runnerUp, safeHaven, ranked)

	rec := Recommendation{
		Strategy: strategy,
		Ranked:   ranked,
		Shown:    shown,
		Winner:   winner.Node,
	}
	if runnerUp != nil {
		rec.RunnerUp = runnerUp.Node
	}
	if safeHaven != nil {
		rec.SafeHaven = safeHaven.Node
	}

	prompt := buildAdvicePrompt(rec, ranked, classificationReason)
	advice, err := a.LLM.GenerateText(ctx, prompt)
	if err != nil {
		advice = fallbackAdvice(rec)
	}
	rec.Advice = advice
	return rec
}

// mixWeights does max-weight-wins mixing across target
// profiles, normalized to sum 1 (skipped if the sum is 0). An empty
// profile set falls back to the default CPU-minimizing weight.
func mixWeights(profiles []config.Profile) map[string]mixedWeight {
	weights := make(map[string]mixedWeight)
	for _, p := range profiles {
		for metric, w := range p.ScoringWeights {
			existing, ok := weights[metric]
			if !ok || w.Weight > existing.Weight {
				weights[metric] = mixedWeight{Direction: w.Direction, Weight: w.Weight}
			}
		}
	}
	if len(weights) == 0 {
		weights[defaultWeightMetric] = mixedWeight{Direction: config.DirectionMinimize, Weight: 1.0}
	}

	sum := 0.0
	for _, w := range weights {
		sum += w.Weight
	}
	if sum == 0 {
		return weights
	}
	for metric, w := range weights {
		w.Weight = w.Weight / sum
		weights[metric] = w
	}
	return weights
}

// scoreCandidates does the min-max normalization and risk tagging.
func scoreCandidates(candidates []string, weights map[string]mixedWeight, snap state.Snapshot, stability state.StabilityReport) []Ranked {
	ranked := make([]Ranked, len(candidates))
	for i, node := range candidates {
		ranked[i] = Ranked{Node: node}
	}

	for metric, w := range weights {
		values := make(map[string]float64, len(candidates))
		minV, maxV := 0.0, 0.0
		first := true
		for _, node := range candidates {
			v, ok := snap.Get(node, metric)
			if !ok {
				continue
			}
			values[node] = v
			if first {
				minV, maxV = v, v
				first = false
				continue
			}
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
		spread := maxV - minV

		for i, node := range candidates {
			v, ok := values[node]
			if !ok {
				continue
			}
			var component float64
			switch {
			case spread == 0:
				component = 1
			case w.Direction == config.DirectionMaximize:
				component = (v - minV) / spread
			default:
				component = (maxV - v) / spread
			}
			ranked[i].Score += component * w.Weight
		}
	}

	for i, node := range candidates {
		for metric := range weights {
			cell := stability.Cell(node, metric)
			if cell.Status == state.StatusSpike || cell.Status == state.StatusChaotic {
				ranked[i].Risks = append(ranked[i].Risks, fmt.Sprintf("%s → %s", metric, cell.Reason))
			}
		}
	}
	return ranked
}

// selectStrategy picks the recommendation strategy from the ranked list.
func selectStrategy(winner Ranked, runnerUp, safeHaven *Ranked, ranked []Ranked) (Strategy, []string) {
	if len(winner.Risks) == 0 {
		return StrategyClearWinner, []string{winner.Node}
	}
	if safeHaven == nil {
		return StrategyAllRisky, []string{winner.Node}
	}
	if runnerUp != nil && safeHaven.Node == runnerUp.Node {
		return StrategyConsiderRunnerUp, []string{winner.Node, runnerUp.Node}
	}

	shown := []string{winner.Node}
	if runnerUp != nil {
		shown = append(shown, runnerUp.Node)
	}
	shown = append(shown, safeHaven.Node)
	return StrategyProposeSafeHaven, shown
}

func humanizeMetrics(kb config.KnowledgeBase, weights map[string]mixedWeight, snap state.Snapshot, node string) map[string]string {
	out := make(map[string]string, len(weights))
	for metric := range weights {
		v, ok := snap.Get(node, metric)
		if !ok {
			continue
		}
		unit := config.UnitRaw
		if m, ok := kb.Metrics[metric]; ok {
			unit = m.Unit
		}
		out[metric] = humanize.Value(v, unit)
	}
	return out
}

func buildAdvicePrompt(rec Recommendation, ranked []Ranked, classificationReason string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Strategy: %s\n\n", rec.Strategy)
	if classificationReason != "" {
		fmt.Fprintf(&sb, "Why these profiles were selected: %s\n\n", classificationReason)
	}
	for _, r := range ranked {
		if !contains(rec.Shown, r.Node) {
			continue
		}
		fmt.Fprintf(&sb, "- %s: score=%.3f", r.Node, r.Score)
		if len(r.Risks) > 0 {
			fmt.Fprintf(&sb, ", risks=[%s]", strings.Join(r.Risks, "; "))
		}
		for metric, v := range r.Metrics {
			fmt.Fprintf(&sb, ", %s=%s", metric, v)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nRanking and strategy are already fixed; explain the recommendation to an operator in two or three sentences. Do not recompute scores or invent numbers.")
	switch rec.Strategy {
	case StrategyConsiderRunnerUp:
		sb.WriteString(" The top-ranked node carries risk; recommend the runner-up as the safer choice.")
	case StrategyProposeSafeHaven:
		sb.WriteString(" The top-ranked node carries risk; propose the safe haven as an alternative.")
	case StrategyAllRisky:
		sb.WriteString(" Every candidate carries some risk; be upfront about the trade-off.")
	}
	return sb.String()
}

func fallbackAdvice(rec Recommendation) string {
	switch rec.Strategy {
	case StrategyClearWinner:
		return fmt.Sprintf("%s is the clear choice: no stability risks detected.", rec.Winner)
	case StrategyConsiderRunnerUp:
		return fmt.Sprintf("%s ranks first but carries risk; consider %s instead.", rec.Winner, rec.RunnerUp)
	case StrategyProposeSafeHaven:
		return fmt.Sprintf("%s ranks first but carries risk; %s is a safer alternative.", rec.Winner, rec.SafeHaven)
	default:
		return fmt.Sprintf("%s ranks first, but every candidate carries some risk.", rec.Winner)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
