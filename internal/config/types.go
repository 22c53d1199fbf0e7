// Package config holds the QoS knowledge base: metric definitions and
// profiles loaded once per session from the metrics backend's "qos/config"
// resource.
package config

import "sort"

// Unit is the closed enumeration of metric unit tags.
type Unit string

const (
	UnitPercentage Unit = "percentage_100"
	UnitBytes      Unit = "bytes"
	UnitRate       Unit = "rate"
	UnitRaw        Unit = "raw"
)

// Operator is the closed enumeration of comparison operators a required
// condition or explicit constraint may use. Unknown operators are a
// ConfigInvalid error, never a runtime surprise.
type Operator string

const (
	OpLT Operator = "<"
	OpLE Operator = "<="
	OpGT Operator = ">"
	OpGE Operator = ">="
	OpEQ Operator = "=="
	OpNE Operator = "!="
)

// Metric is a named backend query plus the metadata needed to interpret
// and render its values.
type Metric struct {
	Name                string   `json:"-"`
	Query               string   `json:"query"`
	Unit                Unit     `json:"unit"`
	Description         string   `json:"description,omitempty"`
	StabilityThreshold  *float64 `json:"stability_threshold,omitempty"`
}

// Condition is one required-condition gate predicate of a profile.
type Condition struct {
	Metric    string   `json:"metric"`
	Operator  Operator `json:"operator"`
	Threshold float64  `json:"threshold"`
}

// ScoringWeight is one scoring-weight entry of a profile.
type ScoringWeight struct {
	Weight             float64  `json:"weight"`
	Direction          Direction `json:"direction"`
	StabilityThreshold *float64 `json:"stability_threshold,omitempty"`
}

// Direction is the closed enumeration of scoring directions.
type Direction string

const (
	DirectionMinimize Direction = "minimize"
	DirectionMaximize Direction = "maximize"
)

// Profile is a named QoS bundle: gate conditions plus scoring weights.
type Profile struct {
	Name               string                   `json:"-"`
	Description        string                   `json:"description,omitempty"`
	RequiredConditions []Condition              `json:"required_conditions"`
	ScoringWeights     map[string]ScoringWeight `json:"scoring_weights"`
}

// KnowledgeBase is the immutable {metrics, profiles} pair loaded once per
// session.
type KnowledgeBase struct {
	Metrics  map[string]Metric
	Profiles map[string]Profile
}

// MetricNames returns the sorted metric names, used when presenting the
// metric catalog to the LLM.
func (kb KnowledgeBase) MetricNames() []string {
	names := make([]string, 0, len(kb.Metrics))
	for name := range kb.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProfileNames returns the sorted profile names.
func (kb KnowledgeBase) ProfileNames() []string {
	names := make([]string, 0, len(kb.Profiles))
	for name := range kb.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
