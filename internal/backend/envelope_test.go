package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTargets_PrefersNameOverInstance(t *testing.T) {
	body := []byte(`{"activeTargets": [
      {"labels": {"name": "w1", "instance": "10.0.0.1:9100"}},
      {"labels": {"instance": "10.0.0.2:9100"}},
      {"labels": {"name": "w1"}}
    ]}`)
	targets, err := ParseTargets(body)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.2:9100", "w1"}, targets)
}

func TestParseQueryResult_RoundsAndLabels(t *testing.T) {
	body := []byte(`{"result": [
      {"metric": {"name": "w1"}, "value": [1700000000, "10.12345"]},
      {"metric": {"instance": "w2:9100"}, "value": [1700000000, "5"]},
      {"metric": {}, "value": [1700000000, "1"]},
      {"metric": {"name": "bad"}, "value": [1700000000, "not-a-number"]}
    ]}`)
	samples, err := ParseQueryResult(body)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, "w1", samples[0].Node)
	assert.InDelta(t, 10.123, samples[0].Value, 0.0001)
	assert.Equal(t, "w2:9100", samples[1].Node)
	assert.Equal(t, "unknown", samples[2].Node)
}

func TestParseQueryResult_DropsNonFiniteValues(t *testing.T) {
	body := []byte(`{"result": [
      {"metric": {"name": "w1"}, "value": [1700000000, "NaN"]},
      {"metric": {"name": "w2"}, "value": [1700000000, "+Inf"]},
      {"metric": {"name": "w3"}, "value": [1700000000, "-Inf"]},
      {"metric": {"name": "w4"}, "value": [1700000000, "42"]}
    ]}`)
	samples, err := ParseQueryResult(body)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "w4", samples[0].Node)
}
