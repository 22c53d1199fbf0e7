package pipeline

import (
	"sort"

	"github.com/qos-advisor/advisor/internal/config"
	"github.com/qos-advisor/advisor/internal/state"
)

// CandidateFilter intersects qualified node sets across target profiles
// and applies the user's explicit constraints.
type CandidateFilter struct{}

// Filter returns the sorted final candidates.
func (f *CandidateFilter) Filter(st *state.PipelineState, targetProfiles []string, constraints []state.ExplicitConstraint) []string {
	results := st.ProfileResults()

	var base []string
	if len(targetProfiles) == 0 {
		base = unionQualified(results)
	} else {
		base = intersectQualified(results, targetProfiles)
	}

	out := make([]string, 0, len(base))
	for _, node := range base {
		if satisfiesConstraints(st.Snapshot, node, constraints) {
			out = append(out, node)
		}
	}
	sort.Strings(out)
	return out
}

func unionQualified(results []state.ProfileResult) []string {
	seen := make(map[string]struct{})
	for _, r := range results {
		for _, n := range r.QualifiedNodes {
			seen[n] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	return out
}

func intersectQualified(results []state.ProfileResult, targetProfiles []string) []string {
	byProfile := make(map[string]state.ProfileResult, len(results))
	for _, r := range results {
		byProfile[r.Profile] = r
	}

	first, ok := byProfile[targetProfiles[0]]
	if !ok {
		return nil
	}
	current := make(map[string]struct{}, len(first.QualifiedNodes))
	for _, n := range first.QualifiedNodes {
		current[n] = struct{}{}
	}

	for _, p := range targetProfiles[1:] {
		r, ok := byProfile[p]
		if !ok {
			return nil
		}
		next := make(map[string]struct{})
		for _, n := range r.QualifiedNodes {
			if _, in := current[n]; in {
				next[n] = struct{}{}
			}
		}
		current = next
	}

	out := make([]string, 0, len(current))
	for n := range current {
		out = append(out, n)
	}
	return out
}

// satisfiesConstraints evaluates every constraint against node's snapshot
// readings. A missing metric drops the candidate, as does a false
// predicate; the first failure short-circuits the remaining checks.
func satisfiesConstraints(snap state.Snapshot, node string, constraints []state.ExplicitConstraint) bool {
	for _, c := range constraints {
		v, ok := snap.Get(node, c.Metric)
		if !ok {
			return false
		}
		pass, err := config.Compare(v, config.Operator(c.Operator), c.Value)
		if err != nil || !pass {
			return false
		}
	}
	return true
}
