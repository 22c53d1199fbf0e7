package pipeline

import (
	"context"

	"github.com/qos-advisor/advisor/internal/llmclient"
	"github.com/qos-advisor/advisor/internal/state"
)

// IntentClassifier labels the request status or allocation and resolves an
// optional single-node target filter.
type IntentClassifier struct {
	LLM *llmclient.Client
}

// Classify runs the LLM intent call against st.LastUserMessage and the valid
// node list, writing Intent and TargetFilter onto st.
func (c *IntentClassifier) Classify(ctx context.Context, st *state.PipelineState, validNodes []string) {
	out := c.LLM.ClassifyIntent(ctx, st.LastUserMessage(), validNodes)

	st.Intent = state.Intent(out.Intent)
	if st.Intent != state.IntentAllocation {
		st.Intent = state.IntentStatus
	}

	st.TargetFilter = ""
	if out.TargetFilter != nil && isValidNode(*out.TargetFilter, validNodes) {
		st.TargetFilter = *out.TargetFilter
	}
}

func isValidNode(name string, nodes []string) bool {
	for _, n := range nodes {
		if n == name {
			return true
		}
	}
	return false
}
