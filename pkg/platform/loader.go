package platform

import (
	"context"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// Predictor answers agent queries against one loaded model version, before
// any serving endpoint exists for it.
type Predictor interface {
	Predict(ctx context.Context, query schemas.AgentQuery) (schemas.AgentResponse, error)
}

// LoadModelVersion prepares a registered model version for direct prediction.
// The platform spins the model up on ephemeral compute; the returned Predictor
// routes queries to it. Used by pre-deployment validation so that a broken
// artifact is caught before any serving resource is committed.
func (c *Client) LoadModelVersion(ctx context.Context, mv schemas.ModelVersion) (Predictor, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "platform:LoadModelVersion", trace.WithAttributes(attribute.String("model_version", mv.String())))
	defer span.End()

	// Loading is validated eagerly so the caller gets a NotFoundError for an
	// unregistered version instead of a late prediction failure.
	versions, err := c.ListModelVersions(ctx, mv.Name)
	if err != nil {
		return nil, err
	}

	for _, v := range versions {
		if v.Version == mv.Version {
			return &modelPredictor{client: c, modelVersion: mv}, nil
		}
	}

	return nil, schemas.NotFoundError{Model: mv.String()}
}

// modelPredictor is the platform-backed Predictor implementation.
type modelPredictor struct {
	client       *Client
	modelVersion schemas.ModelVersion
}

// Predict issues one query directly against the loaded model version.
func (p *modelPredictor) Predict(ctx context.Context, query schemas.AgentQuery) (resp schemas.AgentResponse, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "platform:Predict", trace.WithAttributes(attribute.String("model_version", p.modelVersion.String())))
	defer span.End()

	payload := struct {
		ModelName    string            `json:"model_name"`
		ModelVersion string            `json:"model_version"`
		Input        []schemas.Message `json:"input"`
		CustomInputs map[string]string `json:"custom_inputs,omitempty"`
	}{
		ModelName:    p.modelVersion.Name,
		ModelVersion: strconv.Itoa(p.modelVersion.Version),
		Input:        query.Input,
		CustomInputs: query.CustomInputs,
	}

	err = p.client.do(ctx, http.MethodPost, "/api/2.0/mlflow/model-versions/predict", payload, &resp)

	return
}
