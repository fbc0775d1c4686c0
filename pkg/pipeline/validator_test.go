package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telco-platform/agent-deployer/pkg/platform"
	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

type fakePredictor struct {
	responses map[string]schemas.AgentResponse
	errs      map[string]error
	queried   []string
}

func (f *fakePredictor) Predict(_ context.Context, q schemas.AgentQuery) (schemas.AgentResponse, error) {
	f.queried = append(f.queried, q.Label())

	if err, ok := f.errs[q.Label()]; ok {
		return schemas.AgentResponse{}, err
	}

	return f.responses[q.Label()], nil
}

type fakeLoader struct {
	predictor *fakePredictor
	loadErr   error
}

func (f *fakeLoader) LoadModelVersion(_ context.Context, _ schemas.ModelVersion) (platform.Predictor, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}

	return f.predictor, nil
}

func textResponse(text string) schemas.AgentResponse {
	return schemas.AgentResponse{
		Output: []schemas.OutputItem{
			{Role: "assistant", Content: []schemas.ContentBlock{{Type: "output_text", Text: text}}},
		},
	}
}

func agentQuery(label, content string) schemas.AgentQuery {
	return schemas.AgentQuery{
		Description: label,
		Input:       []schemas.Message{{Role: "user", Content: content}},
	}
}

func TestValidateAgentAllQueriesPass(t *testing.T) {
	mv := schemas.ModelVersion{Name: "workspace.agent.support-agent", Version: 4}
	predictor := &fakePredictor{responses: map[string]schemas.AgentResponse{
		"plans":   textResponse("We offer three plans."),
		"roaming": textResponse("Roaming is included."),
	}}
	loader := &fakeLoader{predictor: predictor}

	err := ValidateAgent(context.Background(), loader, mv, []schemas.AgentQuery{
		agentQuery("plans", "What plans do you offer?"),
		agentQuery("roaming", "What about roaming?"),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"plans", "roaming"}, predictor.queried)
}

func TestValidateAgentLoadFailure(t *testing.T) {
	mv := schemas.ModelVersion{Name: "workspace.agent.support-agent", Version: 4}
	loader := &fakeLoader{loadErr: fmt.Errorf("artifact missing")}

	err := ValidateAgent(context.Background(), loader, mv, []schemas.AgentQuery{agentQuery("plans", "plans?")})

	var verr schemas.ValidationError

	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "(loading model)", verr.Query)
}

func TestValidateAgentPredictionFailureAbortsOnFirstError(t *testing.T) {
	mv := schemas.ModelVersion{Name: "workspace.agent.support-agent", Version: 4}
	predictor := &fakePredictor{
		responses: map[string]schemas.AgentResponse{"plans": textResponse("ok")},
		errs:      map[string]error{"roaming": fmt.Errorf("model raised")},
	}
	loader := &fakeLoader{predictor: predictor}

	err := ValidateAgent(context.Background(), loader, mv, []schemas.AgentQuery{
		agentQuery("plans", "plans?"),
		agentQuery("roaming", "roaming?"),
		agentQuery("billing", "billing?"),
	})

	var verr schemas.ValidationError

	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "roaming", verr.Query)
	// The failing query stops the validation, subsequent ones never run.
	assert.Equal(t, []string{"plans", "roaming"}, predictor.queried)
}

func TestValidateAgentEmptyOutputFails(t *testing.T) {
	mv := schemas.ModelVersion{Name: "workspace.agent.support-agent", Version: 4}
	predictor := &fakePredictor{responses: map[string]schemas.AgentResponse{"plans": {}}}
	loader := &fakeLoader{predictor: predictor}

	err := ValidateAgent(context.Background(), loader, mv, []schemas.AgentQuery{agentQuery("plans", "plans?")})

	var verr schemas.ValidationError

	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "plans", verr.Query)
	assert.Contains(t, verr.Error(), "empty")
}
