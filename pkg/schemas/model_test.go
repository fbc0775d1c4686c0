package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelVersions(t *testing.T) {
	mvs := ModelVersions{
		{Name: "m", Version: 2},
		{Name: "m", Version: 9},
		{Name: "m", Version: 5},
	}

	latest, found := mvs.Latest()
	assert.True(t, found)
	assert.Equal(t, 9, latest.Version)

	mvs.SortDescending()
	assert.Equal(t, []int{9, 5, 2}, mvs.VersionNumbers())

	_, found = ModelVersions{}.Latest()
	assert.False(t, found)
}

func TestModelVersionStrings(t *testing.T) {
	mv := ModelVersion{Name: "workspace.agent.support-agent", Version: 4}
	assert.Equal(t, "workspace.agent.support-agent@4", mv.String())
	assert.Equal(t, "models:/workspace.agent.support-agent/4", mv.URI())
}

func TestAgentQueryLabel(t *testing.T) {
	q := AgentQuery{Description: "usage question", Input: []Message{{Role: "user", Content: "How much data left?"}}}
	assert.Equal(t, "usage question", q.Label())

	q.Description = ""
	assert.Equal(t, "How much data left?", q.Label())

	assert.Equal(t, "(empty query)", AgentQuery{}.Label())
}

func TestAgentResponseFirstText(t *testing.T) {
	resp := AgentResponse{Output: []OutputItem{
		{Role: "assistant", Content: []ContentBlock{{Type: "reasoning"}, {Type: "output_text", Text: "hello"}}},
	}}

	assert.False(t, resp.Empty())
	assert.Equal(t, "hello", resp.FirstText())
	assert.True(t, AgentResponse{}.Empty())
	assert.Equal(t, "", AgentResponse{}.FirstText())
}
