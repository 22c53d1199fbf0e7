package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/qos-advisor/advisor/internal/config"
	"github.com/qos-advisor/advisor/internal/llmclient"
	"github.com/qos-advisor/advisor/internal/masking"
	"github.com/qos-advisor/advisor/internal/state"
)

// Reporter assembles the status-path capability report: a focus-mode
// single-node card when target_filter is set, else a cluster-mode
// profile x node suitability matrix.
type Reporter struct {
	LLM     *llmclient.Client
	Masking *masking.Service
}

// Report builds the status-path Markdown and returns it.
func (r *Reporter) Report(ctx context.Context, kb config.KnowledgeBase, st *state.PipelineState) (string, error) {
	var table string
	if st.TargetFilter != "" {
		table = focusTable(st.TargetFilter, st.ProfileResults())
	} else {
		table = clusterTable(st.Snapshot.Nodes(), st.ProfileResults())
	}

	promptTable := table
	if r.Masking != nil {
		promptTable = r.Masking.Mask(table)
	}
	prompt := fmt.Sprintf(`Write a short SRE status report in Markdown from this data. Do not
invent nodes, profiles, or numbers not present in the table; only restate and explain it.

%s`, promptTable)

	prose, err := r.LLM.GenerateText(ctx, prompt)
	if err != nil {
		return table, nil
	}
	return prose + "\n\n" + table, nil
}

func focusTable(node string, results []state.ProfileResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", node)
	fmt.Fprintf(&sb, "Qualified profiles: ")
	var qualified []string
	for _, r := range results {
		if r.Qualified(node) {
			qualified = append(qualified, r.Profile)
		}
	}
	if len(qualified) == 0 {
		sb.WriteString("none\n\n")
	} else {
		sb.WriteString(strings.Join(qualified, ", ") + "\n\n")
	}

	sb.WriteString("### Audit\n\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "**%s**\n", r.Profile)
		for _, line := range r.AuditLog[node] {
			fmt.Fprintf(&sb, "- %s\n", line)
		}
	}
	return sb.String()
}

func clusterTable(nodes []string, results []state.ProfileResult) string {
	var sb strings.Builder
	sb.WriteString("### Profile x Node matrix\n\n")
	sb.WriteString("| node |")
	for _, r := range results {
		fmt.Fprintf(&sb, " %s |", r.Profile)
	}
	sb.WriteString("\n|---|")
	for range results {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")

	for _, node := range nodes {
		fmt.Fprintf(&sb, "| %s |", node)
		for _, r := range results {
			mark := "FAIL"
			if r.Qualified(node) {
				mark = "PASS"
			}
			fmt.Fprintf(&sb, " %s |", mark)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n### Per-node audit\n\n")
	for _, node := range nodes {
		fmt.Fprintf(&sb, "**%s**\n", node)
		for _, r := range results {
			for _, line := range r.AuditLog[node] {
				fmt.Fprintf(&sb, "- %s: %s\n", r.Profile, line)
			}
		}
	}
	return sb.String()
}
