package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qos-advisor/advisor/internal/config"
	"github.com/qos-advisor/advisor/internal/llmclient"
)

func TestToExplicitConstraints_DropsUnknownMetric(t *testing.T) {
	kb := config.KnowledgeBase{Metrics: map[string]config.Metric{"ram_available_bytes": {}}}
	extracted := []llmclient.ExtractedConstraint{
		{MetricName: "ram_available_bytes", Operator: ">=", Value: 8589934592, OriginalText: "8 GB"},
		{MetricName: "nonexistent_metric", Operator: ">", Value: 1},
	}
	out := toExplicitConstraints(extracted, kb)
	assert.Len(t, out, 1)
	assert.Equal(t, "ram_available_bytes", out[0].Metric)
}

func TestToExplicitConstraints_EmptyInputYieldsEmptyOutput(t *testing.T) {
	out := toExplicitConstraints(nil, config.KnowledgeBase{})
	assert.Empty(t, out)
}
