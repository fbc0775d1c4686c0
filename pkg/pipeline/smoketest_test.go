package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

type fakeQuerier struct {
	responses map[string]schemas.AgentResponse
	errs      map[string]error
}

func (f *fakeQuerier) QueryEndpoint(_ context.Context, _ string, query schemas.AgentQuery) (schemas.AgentResponse, error) {
	if err, ok := f.errs[query.Label()]; ok {
		return schemas.AgentResponse{}, err
	}

	return f.responses[query.Label()], nil
}

func TestSmokeTestEndpointCasesAreIndependent(t *testing.T) {
	querier := &fakeQuerier{
		responses: map[string]schemas.AgentResponse{
			"usage": textResponse("You have 12GB left."),
			"empty": {},
		},
		errs: map[string]error{
			"roaming": fmt.Errorf("endpoint returned HTTP 503"),
		},
	}

	report := SmokeTestEndpoint(context.Background(), querier, "support-agent-dev", []schemas.AgentQuery{
		agentQuery("usage", "How much data do I have left?"),
		agentQuery("roaming", "What are the roaming charges?"),
		agentQuery("empty", "Hello?"),
	})

	assert.Equal(t, "support-agent-dev", report.EndpointName)
	require.Len(t, report.Results, 3)
	assert.Equal(t, 1, report.PassedCount())
	assert.Equal(t, 2, report.FailedCount())
	assert.False(t, report.RanAt.IsZero())

	assert.True(t, report.Results[0].Passed)
	assert.Equal(t, "You have 12GB left.", report.Results[0].Answer)

	assert.False(t, report.Results[1].Passed)
	assert.Contains(t, report.Results[1].Error, "503")

	assert.False(t, report.Results[2].Passed)
	assert.Equal(t, "endpoint returned an empty output", report.Results[2].Error)
}

func TestSmokeTestEndpointTruncatesLongAnswers(t *testing.T) {
	longAnswer := strings.Repeat("a", 500)
	querier := &fakeQuerier{
		responses: map[string]schemas.AgentResponse{"usage": textResponse(longAnswer)},
	}

	report := SmokeTestEndpoint(context.Background(), querier, "support-agent-dev", []schemas.AgentQuery{
		agentQuery("usage", "How much data do I have left?"),
	})

	require.Len(t, report.Results, 1)
	assert.Equal(t, strings.Repeat("a", maxRecordedAnswerLength)+"...", report.Results[0].Answer)
}

func TestSmokeTestEndpointNoCases(t *testing.T) {
	report := SmokeTestEndpoint(context.Background(), &fakeQuerier{}, "support-agent-dev", nil)

	assert.Empty(t, report.Results)
	assert.Equal(t, 0, report.FailedCount())
}
