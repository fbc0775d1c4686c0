package pipeline

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/telco-platform/agent-deployer/pkg/platform"
	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// ModelLoader prepares a registered model version for direct prediction,
// without committing any serving resource.
type ModelLoader interface {
	LoadModelVersion(ctx context.Context, mv schemas.ModelVersion) (platform.Predictor, error)
}

// ValidateAgent runs the configured canary queries through the resolved model
// version before anything is deployed. Every query must produce a non-empty
// output; the first failing query aborts the validation with a
// schemas.ValidationError. No serving resource is touched here: a broken
// artifact must be caught while rollback is still free.
func ValidateAgent(ctx context.Context, loader ModelLoader, mv schemas.ModelVersion, queries []schemas.AgentQuery) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline:ValidateAgent", trace.WithAttributes(
		attribute.String("model_version", mv.String()),
		attribute.Int("queries_count", len(queries)),
	))
	defer span.End()

	log.WithFields(log.Fields{
		"model-version": mv.String(),
		"queries-count": len(queries),
	}).Info("validating agent before deployment")

	predictor, err := loader.LoadModelVersion(ctx, mv)
	if err != nil {
		return schemas.ValidationError{Query: "(loading model)", Err: err}
	}

	for _, q := range queries {
		resp, err := predictor.Predict(ctx, q)
		if err != nil {
			return schemas.ValidationError{Query: q.Label(), Err: err}
		}

		if resp.Empty() {
			return schemas.ValidationError{Query: q.Label(), Err: fmt.Errorf("agent returned an empty output")}
		}

		log.WithFields(log.Fields{
			"model-version": mv.String(),
			"query":         q.Label(),
		}).Debug("canary query passed")
	}

	log.WithFields(log.Fields{
		"model-version": mv.String(),
	}).Info("agent validation passed")

	return nil
}
