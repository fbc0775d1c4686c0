package pipeline

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// runState carries the artifacts produced by the stages of one pipeline run.
type runState struct {
	ModelVersion schemas.ModelVersion
	Deployment   schemas.DeploymentResult
	Scorers      schemas.ScorerSpecs
	Cleanup      schemas.CleanupReport
	SmokeTest    schemas.SmokeTestReport
}

// stage is one step of the deployment pipeline. A stage whose failFast
// predicate holds aborts the run on error; the others record the failure and
// let the run continue, the deployed endpoint is already serving at that
// point and a post-deployment hiccup must not roll it back.
type stage struct {
	name     string
	failFast func(c *Controller) bool
	enabled  func(c *Controller) bool
	run      func(ctx context.Context, c *Controller, state *runState) error
}

// alwaysFatal marks the stages whose failure leaves nothing to continue with.
func alwaysFatal(_ *Controller) bool { return true }

// stages returns the pipeline stage table in execution order.
func stages() []stage {
	return []stage{
		{
			name:     "resolve-version",
			failFast: alwaysFatal,
			run: func(ctx context.Context, c *Controller, state *runState) (err error) {
				state.ModelVersion, err = ResolveVersion(ctx, c.Platform, c.Config.Model.FullName(), c.Config.Model.Version)

				return
			},
		},
		{
			name:     "validate-agent",
			failFast: alwaysFatal,
			run: func(ctx context.Context, c *Controller, state *runState) error {
				return ValidateAgent(ctx, c.Platform, state.ModelVersion, c.Config.Validation.CanaryQueries)
			},
		},
		{
			name:     "deploy-agent",
			failFast: alwaysFatal,
			run: func(ctx context.Context, c *Controller, state *runState) (err error) {
				state.Deployment, err = DeployAgent(ctx, c.Platform, c.Config, state.ModelVersion)
				if err != nil {
					return
				}

				if err = c.Store.SetDeployment(ctx, state.Deployment); err != nil {
					log.WithContext(ctx).
						WithError(err).
						Warn("recording deployment in the store")

					err = nil
				}

				return
			},
		},
		{
			name: "configure-monitoring",
			// A monitoring failure aborts the run before retention cleanup
			// when fail_on_error is set: no version gets deleted while the
			// deployment is not fully observable.
			failFast: func(c *Controller) bool { return c.Config.Monitoring.FailOnError },
			enabled:  func(c *Controller) bool { return c.Config.Monitoring.Enabled },
			run: func(ctx context.Context, c *Controller, state *runState) (err error) {
				state.Scorers, err = ConfigureMonitoring(ctx, c.Platform, c.Config.Monitoring, c.Config.Model.ExperimentPath)
				if err != nil && !c.Config.Monitoring.FailOnError {
					log.WithContext(ctx).
						WithError(err).
						Warn("monitoring configuration failed, deployment remains live")

					err = nil
				}

				return
			},
		},
		{
			name:    "retention-cleanup",
			enabled: func(c *Controller) bool { return c.Config.Cleanup.Enabled },
			run: func(ctx context.Context, c *Controller, state *runState) (err error) {
				state.Cleanup, err = CleanupOldVersions(
					ctx,
					c.Platform,
					c.Config.Cleanup,
					c.Config.Model.FullName(),
					c.Config.Deployment.EndpointName,
					state.ModelVersion.Version,
				)

				if storeErr := c.Store.SetCleanupReport(ctx, state.Cleanup); storeErr != nil {
					log.WithContext(ctx).
						WithError(storeErr).
						Warn("recording cleanup report in the store")
				}

				return
			},
		},
		{
			name:    "smoke-test",
			enabled: func(c *Controller) bool { return c.Config.SmokeTest.Enabled },
			run: func(ctx context.Context, c *Controller, state *runState) error {
				state.SmokeTest = SmokeTestEndpoint(ctx, c.Platform, c.Config.Deployment.EndpointName, c.Config.SmokeTest.Cases)

				if storeErr := c.Store.SetSmokeTestReport(ctx, state.SmokeTest); storeErr != nil {
					log.WithContext(ctx).
						WithError(storeErr).
						Warn("recording smoke-test report in the store")
				}

				// Failing cases end up in the report, not in the run outcome:
				// the endpoint is already serving and the report exists for
				// human review, not as a release gate.
				if failed := state.SmokeTest.FailedCount(); failed > 0 {
					log.WithContext(ctx).
						WithFields(log.Fields{
							"endpoint-name": state.SmokeTest.EndpointName,
							"failed-cases":  failed,
						}).
						Warn("smoke test reported failing cases")
				}

				return nil
			},
		},
	}
}

// Run executes the full deployment pipeline: version resolution, canary
// validation, endpoint deployment, then the post-deployment stages gated by
// their configuration. The first fail-fast stage error aborts the run; errors
// of the later stages are returned after every remaining stage had its turn.
func (c *Controller) Run(ctx context.Context) (result schemas.DeploymentResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline:Run")
	defer span.End()

	state := &runState{}

	var softErrs []error

	for _, s := range stages() {
		if s.enabled != nil && !s.enabled(c) {
			log.WithField("stage", s.name).Debug("stage disabled, skipping")

			continue
		}

		log.WithField("stage", s.name).Info("running pipeline stage")

		if stageErr := s.run(ctx, c, state); stageErr != nil {
			if s.failFast != nil && s.failFast(c) {
				return state.Deployment, fmt.Errorf("stage %s: %w", s.name, stageErr)
			}

			softErrs = append(softErrs, fmt.Errorf("stage %s: %w", s.name, stageErr))
		}
	}

	c.logSummary(state)

	if len(softErrs) > 0 {
		return state.Deployment, softErrs[0]
	}

	return state.Deployment, nil
}

// logSummary prints the outcome of a pipeline run in one structured log
// entry per concern.
func (c *Controller) logSummary(state *runState) {
	fields := log.Fields{
		"endpoint-name":  state.Deployment.EndpointName,
		"model-version":  state.ModelVersion.String(),
		"environment":    state.Deployment.Environment,
		"query-endpoint": state.Deployment.QueryEndpoint,
	}

	if state.Deployment.GitCommit != "" {
		fields["git-commit"] = state.Deployment.GitCommit
	}

	if len(state.Scorers) > 0 {
		fields["scorers"] = state.Scorers.Names()
	}

	if c.Config.Cleanup.Enabled {
		fields["versions-deleted"] = len(state.Cleanup.Deleted)
		fields["versions-failed"] = len(state.Cleanup.Failed)
	}

	if c.Config.SmokeTest.Enabled {
		fields["smoke-cases-passed"] = state.SmokeTest.PassedCount()
		fields["smoke-cases-failed"] = state.SmokeTest.FailedCount()
	}

	log.WithFields(fields).Info("deployment pipeline finished")
}
