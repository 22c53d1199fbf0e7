package pipeline

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/qos-advisor/advisor/internal/config"
	"github.com/qos-advisor/advisor/internal/state"
)

// ProfileEvaluator deterministically checks, for each profile in the
// evaluation set, which nodes meet every required condition.
type ProfileEvaluator struct{}

// SelectProfiles implements the fan-out policy: evaluate the early-
// bound target profiles if set and non-empty after validation against kb,
// otherwise fall back to every profile in kb.
func SelectProfiles(kb config.KnowledgeBase, targetProfiles []string) []string {
	if len(targetProfiles) > 0 {
		valid := make([]string, 0, len(targetProfiles))
		for _, name := range targetProfiles {
			if _, ok := kb.Profiles[name]; ok {
				valid = append(valid, name)
			}
		}
		if len(valid) > 0 {
			return valid
		}
	}
	return kb.ProfileNames()
}

// Evaluate runs one profile per goroutine, appending each ProfileResult to
// acc. Independent and order-insensitive — acc.Results() sorts afterward.
// Evaluation is purely CPU-bound and cannot fail, so the errgroup functions
// always return nil; errgroup here is just bounded goroutine bookkeeping.
func (e *ProfileEvaluator) Evaluate(kb config.KnowledgeBase, snap state.Snapshot, profiles []string, acc *state.ProfileResultAccumulator) {
	var g errgroup.Group
	for _, name := range profiles {
		profile, ok := kb.Profiles[name]
		if !ok {
			continue
		}
		profile := profile
		g.Go(func() error {
			acc.Append(evaluateProfile(profile, snap))
			return nil
		})
	}
	_ = g.Wait()
}

func evaluateProfile(profile config.Profile, snap state.Snapshot) state.ProfileResult {
	qualified := make([]string, 0, len(snap.Values))
	audit := make(map[string][]string, len(snap.Values))

	for _, node := range snap.Nodes() {
		pass := true
		lines := make([]string, 0, len(profile.RequiredConditions))
		for _, cond := range profile.RequiredConditions {
			v, ok := snap.Get(node, cond.Metric)
			if !ok {
				lines = append(lines, fmt.Sprintf("%s N/A (FAIL)", cond.Metric))
				pass = false
				continue
			}
			ok, err := config.Compare(v, cond.Operator, cond.Threshold)
			result := "FAIL"
			if err == nil && ok {
				result = "PASS"
			}
			if err != nil || !ok {
				pass = false
			}
			lines = append(lines, fmt.Sprintf("%s %v %s %v (%s)", cond.Metric, v, cond.Operator, cond.Threshold, result))
		}
		audit[node] = lines
		if pass {
			qualified = append(qualified, node)
		}
	}

	return state.ProfileResult{Profile: profile.Name, QualifiedNodes: qualified, AuditLog: audit}
}
