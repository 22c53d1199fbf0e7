package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qos-advisor/advisor/internal/config"
	"github.com/qos-advisor/advisor/internal/llmclient"
)

func TestFilterKnownProfiles_DropsUnknownProfile(t *testing.T) {
	kb := cpuMemKB()
	profiles, reasoning, ok := filterKnownProfiles(llmclient.TaskProfileIntent{
		SelectedProfiles: []string{"cpu-bound", "not-a-real-profile"},
		Reasoning:        "heavy on CPU",
	}, kb)
	require.True(t, ok)
	assert.Equal(t, []string{"cpu-bound"}, profiles)
	assert.Equal(t, "heavy on CPU", reasoning)
}

func TestFilterKnownProfiles_AllUnknownYieldsNotOK(t *testing.T) {
	kb := cpuMemKB()
	_, _, ok := filterKnownProfiles(llmclient.TaskProfileIntent{SelectedProfiles: []string{"bogus"}}, kb)
	assert.False(t, ok)
}

func TestFilterKnownProfiles_EmptySelectionYieldsNotOK(t *testing.T) {
	_, _, ok := filterKnownProfiles(llmclient.TaskProfileIntent{}, config.KnowledgeBase{})
	assert.False(t, ok)
}
