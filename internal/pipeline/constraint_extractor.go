package pipeline

import (
	"context"

	"github.com/qos-advisor/advisor/internal/config"
	"github.com/qos-advisor/advisor/internal/llmclient"
	"github.com/qos-advisor/advisor/internal/masking"
	"github.com/qos-advisor/advisor/internal/state"
)

// ConstraintExtractor pulls explicit numeric requirements out of free text
// via the LLM. Unit conversion to the metric's native unit is the LLM's
// responsibility per its prompt contract; this stage only validates that
// the named metric exists and wraps the result as ExplicitConstraint.
type ConstraintExtractor struct {
	LLM     *llmclient.Client
	Masking *masking.Service
}

// Extract pulls explicit numeric constraints out of free text. Returns an empty slice on any failure —
// it must never block the pipeline.
func (c *ConstraintExtractor) Extract(ctx context.Context, userMessage string, kb config.KnowledgeBase) []state.ExplicitConstraint {
	units := make(map[string]string, len(kb.Metrics))
	for name, m := range kb.Metrics {
		units[name] = string(m.Unit)
	}

	extracted := c.LLM.ExtractConstraints(ctx, c.mask(userMessage), units)
	return toExplicitConstraints(extracted, kb)
}

func (c *ConstraintExtractor) mask(text string) string {
	if c.Masking == nil {
		return text
	}
	return c.Masking.Mask(text)
}

// toExplicitConstraints drops any extracted constraint whose metric name
// is not in kb and wraps the rest as ExplicitConstraint.
func toExplicitConstraints(extracted []llmclient.ExtractedConstraint, kb config.KnowledgeBase) []state.ExplicitConstraint {
	out := make([]state.ExplicitConstraint, 0, len(extracted))
	for _, e := range extracted {
		if _, ok := kb.Metrics[e.MetricName]; !ok {
			continue
		}
		out = append(out, state.ExplicitConstraint{
			Metric:       e.MetricName,
			Operator:     e.Operator,
			Value:        e.Value,
			OriginalText: e.OriginalText,
		})
	}
	return out
}
