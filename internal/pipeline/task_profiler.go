package pipeline

import (
	"context"

	"github.com/qos-advisor/advisor/internal/config"
	"github.com/qos-advisor/advisor/internal/llmclient"
)

// TaskProfiler maps a free-text workload description to one or more QoS
// profile names. Allocation path only.
type TaskProfiler struct {
	LLM *llmclient.Client
}

// Profile runs the task-profiling LLM call. ok is false when the LLM call failed or
// returned no profiles; callers fall back to evaluating every profile.
func (p *TaskProfiler) Profile(ctx context.Context, userMessage string, kb config.KnowledgeBase) (profiles []string, reasoning string, ok bool) {
	descriptions := make(map[string]string, len(kb.Profiles))
	for name, prof := range kb.Profiles {
		descriptions[name] = prof.Description
	}

	out, ok := p.LLM.ProfileTask(ctx, userMessage, descriptions)
	if !ok {
		return nil, "", false
	}
	return filterKnownProfiles(out, kb)
}

// filterKnownProfiles drops any LLM-selected profile name absent from kb.
// ok is false if nothing survives the filter.
func filterKnownProfiles(out llmclient.TaskProfileIntent, kb config.KnowledgeBase) (profiles []string, reasoning string, ok bool) {
	valid := out.SelectedProfiles[:0]
	for _, name := range out.SelectedProfiles {
		if _, exists := kb.Profiles[name]; exists {
			valid = append(valid, name)
		}
	}
	if len(valid) == 0 {
		return nil, "", false
	}
	return valid, out.Reasoning, true
}
