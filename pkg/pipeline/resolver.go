package pipeline

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// VersionLister lists the registered versions of a model, newest first.
type VersionLister interface {
	ListModelVersions(ctx context.Context, modelName string) (schemas.ModelVersions, error)
}

// ResolveVersion determines which registered model version the pipeline
// operates on. A pinned version is returned as-is without consulting the
// registry, its existence surfaces in the validation stage when the model is
// loaded. When pinned is zero the latest registered version is resolved; a
// model with no registered versions yields a schemas.NotFoundError.
func ResolveVersion(ctx context.Context, lister VersionLister, modelName string, pinned int) (mv schemas.ModelVersion, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline:ResolveVersion", trace.WithAttributes(
		attribute.String("model_name", modelName),
		attribute.Int("pinned_version", pinned),
	))
	defer span.End()

	if pinned > 0 {
		log.WithFields(log.Fields{
			"model-name":    modelName,
			"model-version": pinned,
		}).Info("using pinned model version")

		return schemas.ModelVersion{Name: modelName, Version: pinned}, nil
	}

	versions, err := lister.ListModelVersions(ctx, modelName)
	if err != nil {
		return
	}

	mv, found := versions.Latest()
	if !found {
		return mv, schemas.NotFoundError{Model: modelName}
	}

	log.WithFields(log.Fields{
		"model-name":    modelName,
		"model-version": mv.Version,
	}).Info("resolved latest model version")

	return mv, nil
}
