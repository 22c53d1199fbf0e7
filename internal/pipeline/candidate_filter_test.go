package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/qos-advisor/advisor/internal/state"
)

func sampleSnapshot() state.Snapshot {
	return state.Snapshot{
		Values: map[string]map[string]float64{
			"w1": {"cpu_usage_pct": 10, "ram_available_bytes": 8 * 1024 * 1024 * 1024},
			"w2": {"cpu_usage_pct": 90, "ram_available_bytes": 4 * 1024 * 1024 * 1024},
		},
		RetrievedAt: time.Now(),
	}
}

func TestCandidateFilter_Intersection(t *testing.T) {
	st := state.NewPipelineState("req", []string{"w1", "w2"})
	st.Snapshot = sampleSnapshot()
	st.ProfileResultAcc.Append(state.ProfileResult{Profile: "cpu-bound", QualifiedNodes: []string{"w1"}})
	st.ProfileResultAcc.Append(state.ProfileResult{Profile: "memory-bound", QualifiedNodes: []string{"w1", "w2"}})

	f := &CandidateFilter{}
	out := f.Filter(st, []string{"cpu-bound", "memory-bound"}, nil)
	assert.Equal(t, []string{"w1"}, out)
}

func TestCandidateFilter_UnionWhenNoTargetProfiles(t *testing.T) {
	st := state.NewPipelineState("req", []string{"w1", "w2"})
	st.Snapshot = sampleSnapshot()
	st.ProfileResultAcc.Append(state.ProfileResult{Profile: "cpu-bound", QualifiedNodes: []string{"w1"}})
	st.ProfileResultAcc.Append(state.ProfileResult{Profile: "memory-bound", QualifiedNodes: []string{"w2"}})

	f := &CandidateFilter{}
	out := f.Filter(st, nil, nil)
	assert.Equal(t, []string{"w1", "w2"}, out)
}

func TestCandidateFilter_ExplicitConstraintDropsNode(t *testing.T) {
	st := state.NewPipelineState("req", []string{"w1", "w2"})
	st.Snapshot = sampleSnapshot()
	st.ProfileResultAcc.Append(state.ProfileResult{Profile: "any", QualifiedNodes: []string{"w1", "w2"}})

	f := &CandidateFilter{}
	out := f.Filter(st, nil, []state.ExplicitConstraint{
		{Metric: "ram_available_bytes", Operator: ">=", Value: 8589934592},
	})
	assert.Equal(t, []string{"w1"}, out)
}

func TestCandidateFilter_MissingMetricDropsNode(t *testing.T) {
	st := state.NewPipelineState("req", []string{"w1"})
	st.Snapshot = state.Snapshot{Values: map[string]map[string]float64{"w1": {"cpu_usage_pct": 10}}}
	st.ProfileResultAcc.Append(state.ProfileResult{Profile: "any", QualifiedNodes: []string{"w1"}})

	f := &CandidateFilter{}
	out := f.Filter(st, nil, []state.ExplicitConstraint{{Metric: "unknown_metric", Operator: ">", Value: 0}})
	assert.Empty(t, out)
}
