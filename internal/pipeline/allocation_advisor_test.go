package pipeline

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qos-advisor/advisor/internal/config"
	"github.com/qos-advisor/advisor/internal/state"
)

func cpuBoundProfile() config.Profile {
	return config.Profile{
		Name:               "cpu-bound",
		RequiredConditions: []config.Condition{{Metric: "cpu_usage_pct", Operator: config.OpLT, Threshold: 80}},
		ScoringWeights: map[string]config.ScoringWeight{
			"cpu_usage_pct": {Weight: 1.0, Direction: config.DirectionMinimize},
		},
	}
}

func snapshotWithCPU(values map[string]float64) state.Snapshot {
	out := make(map[string]map[string]float64, len(values))
	for node, v := range values {
		out[node] = map[string]float64{"cpu_usage_pct": v}
	}
	return state.Snapshot{Values: out, RetrievedAt: time.Now()}
}

func stableReport(nodes ...string) state.StabilityReport {
	r := make(state.StabilityReport, len(nodes))
	for _, n := range nodes {
		r[n] = map[string]state.StabilityCell{"cpu_usage_pct": {Status: state.StatusStable}}
	}
	return r
}

func TestAllocationAdvisor_ClearWinner(t *testing.T) {
	a := &AllocationAdvisor{LLM: nil}
	kb := config.KnowledgeBase{Metrics: map[string]config.Metric{"cpu_usage_pct": {Unit: config.UnitPercentage}}}
	snap := snapshotWithCPU(map[string]float64{"w1": 10, "w2": 50})
	stability := stableReport("w1", "w2")

	rec := a.adviseWithoutLLM(kb, []config.Profile{cpuBoundProfile()}, []string{"w1", "w2"}, snap, stability)

	require.Len(t, rec.Ranked, 2)
	assert.Equal(t, "w1", rec.Winner)
	assert.InDelta(t, 1.0, rec.Ranked[0].Score, 1e-9)
	assert.Equal(t, StrategyClearWinner, rec.Strategy)
}

func TestAllocationAdvisor_RescueScanProposesSafeHaven(t *testing.T) {
	a := &AllocationAdvisor{}
	kb := config.KnowledgeBase{Metrics: map[string]config.Metric{"cpu_usage_pct": {Unit: config.UnitPercentage}}}
	snap := snapshotWithCPU(map[string]float64{"w1": 5, "w2": 20, "w3": 60})
	stability := state.StabilityReport{
		"w1": map[string]state.StabilityCell{"cpu_usage_pct": {Status: state.StatusChaotic, Reason: "volatile"}},
		"w2": map[string]state.StabilityCell{"cpu_usage_pct": {Status: state.StatusChaotic, Reason: "volatile"}},
		"w3": map[string]state.StabilityCell{"cpu_usage_pct": {Status: state.StatusStable}},
	}

	rec := a.adviseWithoutLLM(kb, []config.Profile{cpuBoundProfile()}, []string{"w1", "w2", "w3"}, snap, stability)

	assert.Equal(t, "w1", rec.Winner)
	assert.Equal(t, "w3", rec.SafeHaven)
	assert.Equal(t, StrategyProposeSafeHaven, rec.Strategy)
	assert.ElementsMatch(t, []string{"w1", "w2", "w3"}, rec.Shown)
}

func TestAllocationAdvisor_ConsiderRunnerUp(t *testing.T) {
	a := &AllocationAdvisor{}
	kb := config.KnowledgeBase{Metrics: map[string]config.Metric{"cpu_usage_pct": {Unit: config.UnitPercentage}}}
	snap := snapshotWithCPU(map[string]float64{"w1": 5, "w2": 20, "w3": 60})
	stability := state.StabilityReport{
		"w1": map[string]state.StabilityCell{"cpu_usage_pct": {Status: state.StatusChaotic, Reason: "volatile"}},
		"w2": map[string]state.StabilityCell{"cpu_usage_pct": {Status: state.StatusStable}},
		"w3": map[string]state.StabilityCell{"cpu_usage_pct": {Status: state.StatusStable}},
	}

	rec := a.adviseWithoutLLM(kb, []config.Profile{cpuBoundProfile()}, []string{"w1", "w2", "w3"}, snap, stability)

	assert.Equal(t, "w1", rec.Winner)
	assert.Equal(t, "w2", rec.RunnerUp)
	assert.Equal(t, "w2", rec.SafeHaven)
	assert.Equal(t, StrategyConsiderRunnerUp, rec.Strategy)
	assert.ElementsMatch(t, []string{"w1", "w2"}, rec.Shown)
}

func TestAllocationAdvisor_AllRisky(t *testing.T) {
	a := &AllocationAdvisor{}
	kb := config.KnowledgeBase{Metrics: map[string]config.Metric{"cpu_usage_pct": {Unit: config.UnitPercentage}}}
	snap := snapshotWithCPU(map[string]float64{"w1": 5, "w2": 20, "w3": 60})
	stability := state.StabilityReport{
		"w1": map[string]state.StabilityCell{"cpu_usage_pct": {Status: state.StatusChaotic, Reason: "volatile"}},
		"w2": map[string]state.StabilityCell{"cpu_usage_pct": {Status: state.StatusChaotic, Reason: "volatile"}},
		"w3": map[string]state.StabilityCell{"cpu_usage_pct": {Status: state.StatusSpike, Reason: "spiking"}},
	}

	rec := a.adviseWithoutLLM(kb, []config.Profile{cpuBoundProfile()}, []string{"w1", "w2", "w3"}, snap, stability)

	assert.Equal(t, "w1", rec.Winner)
	assert.Equal(t, "", rec.SafeHaven)
	assert.Equal(t, StrategyAllRisky, rec.Strategy)
}

func TestAllocationAdvisor_EmptyCandidates(t *testing.T) {
	a := &AllocationAdvisor{}
	rec := a.adviseWithoutLLM(config.KnowledgeBase{}, nil, nil, state.Snapshot{}, nil)
	assert.True(t, rec.Empty)
	assert.NotEmpty(t, rec.Advice)
}

func TestAllocationAdvisor_SpreadZeroGivesEveryoneScoreOne(t *testing.T) {
	a := &AllocationAdvisor{}
	kb := config.KnowledgeBase{Metrics: map[string]config.Metric{"cpu_usage_pct": {Unit: config.UnitPercentage}}}
	snap := snapshotWithCPU(map[string]float64{"w1": 40, "w2": 40})
	stability := stableReport("w1", "w2")

	rec := a.adviseWithoutLLM(kb, []config.Profile{cpuBoundProfile()}, []string{"w1", "w2"}, snap, stability)
	for _, r := range rec.Ranked {
		assert.InDelta(t, 1.0, r.Score, 1e-9)
	}
}

func TestAllocationAdvisor_DefaultWeightWhenNoTargetProfiles(t *testing.T) {
	weights := mixWeights(nil)
	require.Contains(t, weights, defaultWeightMetric)
	assert.Equal(t, config.DirectionMinimize, weights[defaultWeightMetric].Direction)
}

func TestMixWeights_MaxWeightWinsAndNormalizes(t *testing.T) {
	profiles := []config.Profile{
		{ScoringWeights: map[string]config.ScoringWeight{"cpu_usage_pct": {Weight: 0.5, Direction: config.DirectionMinimize}}},
		{ScoringWeights: map[string]config.ScoringWeight{"cpu_usage_pct": {Weight: 2.0, Direction: config.DirectionMinimize}}},
		{ScoringWeights: map[string]config.ScoringWeight{"ram_available_bytes": {Weight: 2.0, Direction: config.DirectionMaximize}}},
	}
	weights := mixWeights(profiles)
	assert.InDelta(t, 0.5, weights["cpu_usage_pct"].Weight, 1e-9)
	assert.InDelta(t, 0.5, weights["ram_available_bytes"].Weight, 1e-9)
}

func TestBuildAdvicePrompt_IncludesClassificationReasonWhenPresent(t *testing.T) {
	rec := Recommendation{Strategy: StrategyClearWinner, Shown: []string{"w1"}}
	ranked := []Ranked{{Node: "w1", Score: 1.0}}

	withReason := buildAdvicePrompt(rec, ranked, "workload is CPU-bound per its description")
	assert.Contains(t, withReason, "workload is CPU-bound per its description")

	withoutReason := buildAdvicePrompt(rec, ranked, "")
	assert.NotContains(t, withoutReason, "Why these profiles were selected")
}

// adviseWithoutLLM runs the deterministic portion of Advise and skips the
// LLM explanation call (tests never exercise the network).
func (a *AllocationAdvisor) adviseWithoutLLM(kb config.KnowledgeBase, profiles []config.Profile, candidates []string, snap state.Snapshot, stability state.StabilityReport) Recommendation {
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
	rec := Recommendation{Strategy: strategy, Ranked: ranked, Shown: shown, Winner: winner.Node, Advice: fallbackAdvice(Recommendation{Strategy: strategy, Winner: winner.Node})}
	if runnerUp != nil {
		rec.RunnerUp = runnerUp.Node
	}
	if safeHaven != nil {
		rec.SafeHaven = safeHaven.Node
	}
	return rec
}

