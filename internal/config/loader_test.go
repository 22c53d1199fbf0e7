package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleKB = `{
  "metrics": {
    "cpu_usage_pct": {"query": "cpu_usage", "unit": "percentage_100"},
    "ram_available_bytes": {"query": "ram_free", "unit": "bytes"}
  },
  "profiles": {
    "cpu-bound": {
      "description": "CPU-bound workload",
      "required_conditions": [{"metric": "cpu_usage_pct", "operator": "<", "threshold": 80}],
      "scoring_weights": {"cpu_usage_pct": {"weight": 1.0, "direction": "minimize", "stability_threshold": 5.0}}
    },
    "memory-bound": {
      "description": "Memory-bound workload",
      "required_conditions": [{"metric": "ram_available_bytes", "operator": ">", "threshold": 1073741824}],
      "scoring_weights": {"ram_available_bytes": {"weight": 1.0, "direction": "maximize"}}
    }
  }
}`

func TestParse_Valid(t *testing.T) {
	kb, sane, err := Parse([]byte(sampleKB))
	require.NoError(t, err)
	assert.True(t, sane)
	assert.Len(t, kb.Metrics, 2)
	assert.Len(t, kb.Profiles, 2)
	assert.Equal(t, []string{"cpu-bound", "memory-bound"}, kb.ProfileNames())
}

func TestParse_EmptyBody(t *testing.T) {
	_, _, err := Parse(nil)
	require.ErrorIs(t, err, ErrKBMissing)
}

func TestParse_MissingProfilesKey(t *testing.T) {
	_, _, err := Parse([]byte(`{"metrics": {}}`))
	require.ErrorIs(t, err, ErrKBMissing)
}

func TestParse_EmptyProfilesMarksInsane(t *testing.T) {
	kb, sane, err := Parse([]byte(`{"metrics": {}, "profiles": {}}`))
	require.NoError(t, err)
	assert.False(t, sane)
	assert.Empty(t, kb.Profiles)
}

func TestParse_UnknownOperatorIsConfigInvalid(t *testing.T) {
	body := `{
      "metrics": {"cpu_usage_pct": {"query": "q", "unit": "percentage_100"}},
      "profiles": {"bad": {"required_conditions": [{"metric": "cpu_usage_pct", "operator": "~=", "threshold": 1}], "scoring_weights": {}}}
    }`
	_, _, err := Parse([]byte(body))
	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "bad", invalid.Profile)
}

func TestParse_UnknownMetricIsConfigInvalid(t *testing.T) {
	body := `{
      "metrics": {},
      "profiles": {"bad": {"required_conditions": [{"metric": "nope", "operator": "<", "threshold": 1}], "scoring_weights": {}}}
    }`
	_, _, err := Parse([]byte(body))
	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)
}
