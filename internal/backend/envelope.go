package backend

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// targetsEnvelope mirrors get_targets' JSON shape:
// { activeTargets: [ { labels: { name?, instance?, ... } } ] }.
type targetsEnvelope struct {
	ActiveTargets []struct {
		Labels map[string]string `json:"labels"`
	} `json:"activeTargets"`
}

// ParseTargets extracts the deduplicated, lexicographically sorted list
// of active node names from a get_targets response: prefer the
// "name" label over "instance".
func ParseTargets(body []byte) ([]string, error) {
	var env targetsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parse get_targets response: %w", err)
	}

	seen := make(map[string]struct{})
	for _, t := range env.ActiveTargets {
		name := t.Labels["name"]
		if name == "" {
			name = t.Labels["instance"]
		}
		if name == "" {
			continue
		}
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// queryEnvelope mirrors execute_query's JSON shape:
// { result: [ { metric: {labels}, value: [unix_ts, "stringified_float"] } ] }.
type queryEnvelope struct {
	Result []struct {
		Metric map[string]string `json:"metric"`
		Value  [2]any            `json:"value"`
	} `json:"result"`
}

// QuerySample is one parsed (node, value) pair from an execute_query
// response row.
type QuerySample struct {
	Node  string
	Value float64
}

// ParseQueryResult parses an execute_query envelope into per-node samples.
// Each row's node label is "name" else "instance" else "unknown".
// Non-numeric values are dropped (logged by the caller, not fatal here);
// NaN and +/-Inf are likewise dropped, since strconv.ParseFloat accepts
// those strings but a snapshot must hold only finite values; numeric
// values are rounded to three decimals.
func ParseQueryResult(body []byte) ([]QuerySample, error) {
	var env queryEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parse execute_query response: %w", err)
	}

	samples := make([]QuerySample, 0, len(env.Result))
	for _, row := range env.Result {
		node := row.Metric["name"]
		if node == "" {
			node = row.Metric["instance"]
		}
		if node == "" {
			node = "unknown"
		}

		if len(row.Value) != 2 {
			continue
		}
		str, ok := row.Value[1].(string)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		samples = append(samples, QuerySample{Node: node, Value: round3(v)})
	}
	return samples, nil
}

func round3(v float64) float64 {
	return float64(int64(v*1000+sign(v)*0.5)) / 1000
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
