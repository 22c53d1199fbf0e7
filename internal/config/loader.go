package config

import (
	"encoding/json"
	"fmt"
)

// rawKnowledgeBase mirrors the wire shape of the qos/config resource: a
// map of metric/profile name to definition, both optional but the keys
// themselves must be present.
type rawKnowledgeBase struct {
	Metrics  map[string]Metric  `json:"metrics"`
	Profiles map[string]Profile `json:"profiles"`
}

// Parse decodes the qos/config resource body into a validated
// KnowledgeBase. Returns ErrKBMissing if body is empty, ErrKBMissing if
// either top-level key is absent from the JSON object, and an
// *InvalidError if a profile references an unknown operator or metric.
func Parse(body []byte) (KnowledgeBase, bool, error) {
	if len(body) == 0 {
		return KnowledgeBase{}, false, ErrKBMissing
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return KnowledgeBase{}, false, fmt.Errorf("%w: %v", ErrKBMissing, err)
	}
	if _, ok := probe["metrics"]; !ok {
		return KnowledgeBase{}, false, fmt.Errorf("%w: missing \"metrics\" key", ErrKBMissing)
	}
	if _, ok := probe["profiles"]; !ok {
		return KnowledgeBase{}, false, fmt.Errorf("%w: missing \"profiles\" key", ErrKBMissing)
	}

	var raw rawKnowledgeBase
	if err := json.Unmarshal(body, &raw); err != nil {
		return KnowledgeBase{}, false, fmt.Errorf("%w: %v", ErrKBMissing, err)
	}

	kb := KnowledgeBase{
		Metrics:  make(map[string]Metric, len(raw.Metrics)),
		Profiles: make(map[string]Profile, len(raw.Profiles)),
	}
	for name, m := range raw.Metrics {
		m.Name = name
		kb.Metrics[name] = m
	}
	for name, p := range raw.Profiles {
		p.Name = name
		kb.Profiles[name] = p
	}

	if err := validate(kb); err != nil {
		return KnowledgeBase{}, false, err
	}

	sane := len(kb.Profiles) > 0
	return kb, sane, nil
}

// validate checks closed-enumeration invariants: every condition and
// scoring weight uses a known operator/direction and a metric present in
// kb.Metrics.
func validate(kb KnowledgeBase) error {
	for name, p := range kb.Profiles {
		for _, c := range p.RequiredConditions {
			if !ValidOperator(c.Operator) {
				return NewInvalidError(name, "required_conditions.operator", ErrUnknownOperator)
			}
			if _, ok := kb.Metrics[c.Metric]; !ok {
				return NewInvalidError(name, "required_conditions.metric", ErrUnknownMetric)
			}
		}
		for metric, w := range p.ScoringWeights {
			if w.Direction != DirectionMinimize && w.Direction != DirectionMaximize {
				return NewInvalidError(name, "scoring_weights.direction",
					fmt.Errorf("invalid direction %q", w.Direction))
			}
			if _, ok := kb.Metrics[metric]; !ok {
				return NewInvalidError(name, "scoring_weights.metric", ErrUnknownMetric)
			}
		}
	}
	return nil
}
