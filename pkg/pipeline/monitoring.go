package pipeline

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/telco-platform/agent-deployer/pkg/config"
	"github.com/telco-platform/agent-deployer/pkg/platform"
	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// ScorerRegistry covers the experiment and scorer operations the monitoring
// configurator needs.
type ScorerRegistry interface {
	EnsureExperiment(ctx context.Context, path string) (platform.Experiment, error)
	ListScorers(ctx context.Context, experimentID string) (schemas.ScorerSpecs, error)
	RegisterScorer(ctx context.Context, experimentID string, scorer schemas.ScorerSpec) error
	DeleteScorer(ctx context.Context, experimentID, scorerName string) error
}

// ConfigureMonitoring attaches the configured scorer set to the model's
// experiment. With replaceExisting the previously registered scorers that are
// not part of the desired set get removed first, so that reruns converge to
// exactly the configured set instead of accumulating scorers. The registered
// set is returned for the deployment summary. Failures are wrapped in a
// schemas.AgentMonitoringError.
func ConfigureMonitoring(ctx context.Context, registry ScorerRegistry, cfg config.Monitoring, experimentPath string) (desired schemas.ScorerSpecs, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline:ConfigureMonitoring", trace.WithAttributes(
		attribute.String("experiment_path", experimentPath),
	))
	defer span.End()

	exp, err := registry.EnsureExperiment(ctx, experimentPath)
	if err != nil {
		return nil, schemas.AgentMonitoringError{Err: err}
	}

	desired = schemas.NewScorerSpecs(cfg.BuiltinScorers, true)
	for name, s := range schemas.NewScorerSpecs(cfg.CustomScorers, false) {
		desired[name] = s
	}

	log.WithFields(log.Fields{
		"experiment-path": experimentPath,
		"experiment-id":   exp.ExperimentID,
		"scorers":         desired.Names(),
	}).Info("configuring agent monitoring")

	if cfg.ReplaceExisting {
		existing, listErr := registry.ListScorers(ctx, exp.ExperimentID)
		if listErr != nil {
			return nil, schemas.AgentMonitoringError{Err: listErr}
		}

		for name := range existing {
			if _, keep := desired[name]; keep {
				continue
			}

			if err = registry.DeleteScorer(ctx, exp.ExperimentID, name); err != nil {
				return nil, schemas.AgentMonitoringError{Err: err}
			}

			log.WithFields(log.Fields{
				"experiment-id": exp.ExperimentID,
				"scorer":        name,
			}).Info("removed previously registered scorer")
		}
	}

	for _, s := range desired {
		if err = registry.RegisterScorer(ctx, exp.ExperimentID, s); err != nil {
			return nil, schemas.AgentMonitoringError{Err: err}
		}

		log.WithFields(log.Fields{
			"experiment-id": exp.ExperimentID,
			"scorer":        s.Name,
			"sample-rate":   s.SampleRate,
			"built-in":      s.BuiltIn,
		}).Info("registered scorer")
	}

	return desired, nil
}
