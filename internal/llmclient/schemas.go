package llmclient

// The four structured-output contracts the LLM is asked for. It only
// classifies and writes prose; these types are the wire shape it must
// reply in, never used for arithmetic or ranking.

// IntentClassification is the result of classifying a user request.
type IntentClassification struct {
	Intent       string  `json:"intent"` // "allocation" | "status"
	TargetFilter *string `json:"target_filter"`
}

// TaskProfileIntent maps free text to one or more QoS profile names.
type TaskProfileIntent struct {
	SelectedProfiles []string `json:"selected_profiles"`
	Reasoning        string   `json:"reasoning"`
}

// ExtractedConstraint is one element of RequirementExtraction.constraints.
type ExtractedConstraint struct {
	MetricName   string  `json:"metric_name"`
	Operator     string  `json:"operator"`
	Value        float64 `json:"value"`
	OriginalText string  `json:"original_text"`
}

// RequirementExtraction is the ConstraintExtractor's structured contract.
type RequirementExtraction struct {
	Constraints []ExtractedConstraint `json:"constraints"`
}
