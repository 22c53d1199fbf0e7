// Package llmclient wraps the LLM used for intent classification, task
// profiling, constraint extraction, and final prose rendering. It
// never performs arithmetic, ranking, or comparisons — only classification
// and text generation.
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	// DefaultBaseURL points langchaingo's OpenAI-compatible client at
	// Groq's API, authenticated with the GROQ_API_KEY credential.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
)

// Client wraps an LLM model for the four structured/free-text contracts
// the pipeline needs.
type Client struct {
	model  llms.Model
	logger *slog.Logger
}

// NewClient builds a Client backed by Groq's OpenAI-compatible endpoint.
// apiKey comes from GROQ_API_KEY (or equivalent); model defaults to
// DefaultModel when empty.
func NewClient(apiKey, model string) (*Client, error) {
	if model == "" {
		model = DefaultModel
	}
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(DefaultBaseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	return &Client{model: llm, logger: slog.Default()}, nil
}

// ClassifyIntent runs the intent-classification call. On any failure
// it returns the safe read-only default (status, nil) rather than an
// error — the pipeline never blocks on this stage.
func (c *Client) ClassifyIntent(ctx context.Context, userMessage string, validNodes []string) IntentClassification {
	prompt := fmt.Sprintf(`Classify this operator request as "status" or "allocation".
If a specific node is named and it appears in the valid node list, set target_filter to
that name; otherwise set target_filter to null. Treat "none"/"all"/"tutti"/"nessuno"
(case-insensitive) as null.

Valid nodes:
%s

Request: %q

Respond with JSON only: {"intent": "status"|"allocation", "target_filter": string|null}`,
		strings.Join(validNodes, ", "), userMessage)

	var out IntentClassification
	if err := c.generateJSON(ctx, prompt, &out); err != nil {
		c.logger.Warn("intent classification failed, defaulting to status", "error", err)
		return IntentClassification{Intent: "status", TargetFilter: nil}
	}
	return normalizeIntent(out)
}

// normalizeIntent enforces the closed {status, allocation} enumeration and
// collapses case-insensitive "none"/"all"/"tutti"/"nessuno" target filters
// to nil.
func normalizeIntent(out IntentClassification) IntentClassification {
	if out.Intent != "allocation" {
		out.Intent = "status"
	}
	if out.TargetFilter != nil {
		switch strings.ToLower(*out.TargetFilter) {
		case "none", "all", "tutti", "nessuno", "null", "":
			out.TargetFilter = nil
		}
	}
	return out
}

// ProfileTask runs the task-profiling call. Returns ok=false on
// failure or if the LLM returns no profiles — callers should fall back to
// evaluating every profile.
func (c *Client) ProfileTask(ctx context.Context, userMessage string, profiles map[string]string) (TaskProfileIntent, bool) {
	var sb strings.Builder
	for name, desc := range profiles {
		fmt.Fprintf(&sb, "- %s: %s\n", name, desc)
	}

	prompt := fmt.Sprintf(`A workload needs to be placed on a node. Identify which QoS
profiles best describe it; a workload may match more than one profile.

Available profiles:
%s
Request: %q

Respond with JSON only: {"selected_profiles": string[], "reasoning": string}`,
		sb.String(), userMessage)

	var out TaskProfileIntent
	if err := c.generateJSON(ctx, prompt, &out); err != nil {
		c.logger.Warn("task profiling failed", "error", err)
		return TaskProfileIntent{}, false
	}
	return out, len(out.SelectedProfiles) > 0
}

// ExtractConstraints runs the constraint-extraction call. Returns
// an empty list on any failure — it must never block the pipeline.
func (c *Client) ExtractConstraints(ctx context.Context, userMessage string, metrics map[string]string) []ExtractedConstraint {
	var sb strings.Builder
	for name, unit := range metrics {
		fmt.Fprintf(&sb, "- %s (%s)\n", name, unit)
	}

	prompt := fmt.Sprintf(`Extract explicit numeric requirements from this request as
constraints against known metrics. If no explicit numbers appear, return an empty list.

Conversion rules:
- Percentages stay on a 0-100 scale.
- Byte quantities use binary units: 1 KB = 1024, 1 MB = 1024^2, 1 GB = 1024^3.
- metric_name must be one of the metrics below; otherwise omit the constraint.

Known metrics:
%s
Request: %q

Respond with JSON only:
{"constraints": [{"metric_name": string, "operator": string, "value": number, "original_text": string}]}`,
		sb.String(), userMessage)

	var out RequirementExtraction
	if err := c.generateJSON(ctx, prompt, &out); err != nil {
		c.logger.Warn("constraint extraction failed", "error", err)
		return nil
	}
	valid := out.Constraints[:0]
	for _, constr := range out.Constraints {
		if _, ok := metrics[constr.MetricName]; ok {
			valid = append(valid, constr)
		}
	}
	return valid
}

// GenerateText produces free-form prose (the final allocation advice or
// the status capability report). The caller supplies a fully-assembled
// prompt; GenerateText performs no further structuring.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt)
	if err != nil {
		return "", fmt.Errorf("LLM generation failed: %w", err)
	}
	return resp, nil
}

// generateJSON issues prompt and decodes the response into out, tolerating
// a markdown code fence around the JSON body (a common model quirk).
func (c *Client) generateJSON(ctx context.Context, prompt string, out any) error {
	resp, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt)
	if err != nil {
		return err
	}
	body := stripCodeFence(resp)
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("decode LLM JSON response: %w", err)
	}
	return nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
